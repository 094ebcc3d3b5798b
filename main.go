package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/scienceol/seqpanel/cmd/api"
	"github.com/scienceol/seqpanel/cmd/console"
	"github.com/scienceol/seqpanel/cmd/ctl"
	"github.com/scienceol/seqpanel/internal/config"
	"github.com/scienceol/seqpanel/pkg/middleware/logger"
	"github.com/scienceol/seqpanel/pkg/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// @title       seqpanel
// @version     1.0
// @description Operator console scheduling exposure sequences.
// @BasePath    /api
func main() {
	// ctl 有自己的 PersistentPreRunE, 全局配置仍需加载
	cobra.EnableTraverseRunHooks = true

	rootCtx := utils.SetupSignalContext()
	root := &cobra.Command{
		SilenceUsage:      true,
		Short:             "seqpanel",
		Long:              "seqpanel - operator console for exposure sequences",
		PersistentPreRunE: initGlobalResource,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
		PersistentPostRunE: cleanGlobalResource,
	}
	root.SetContext(rootCtx)
	root.AddCommand(console.New())
	root.AddCommand(api.NewMigrate())
	root.AddCommand(ctl.New())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func initGlobalResource(_ *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found - using environment variables")
	}

	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.AutomaticEnv()

	conf := config.Global()
	if err := v.Unmarshal(conf); err != nil {
		log.Fatal(err)
	}

	logger.Init(&logger.LogConfig{
		Path:     conf.Log.LogPath,
		LogLevel: conf.Log.LogLevel,
		ServiceEnv: logger.ServiceEnv{
			Platform: conf.Server.Platform,
			Service:  conf.Server.Service,
			Env:      conf.Server.Env,
		},
	})

	return nil
}

func cleanGlobalResource(_ *cobra.Command, _ []string) error {
	logger.Close()
	return nil
}
