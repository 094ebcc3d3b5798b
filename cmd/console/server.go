package console

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/olahol/melody"
	_ "github.com/scienceol/seqpanel/docs" // swagger generated docs
	"github.com/scienceol/seqpanel/internal/config"
	"github.com/scienceol/seqpanel/pkg/common/constant"
	"github.com/scienceol/seqpanel/pkg/core/actor/hub"
	coreConsole "github.com/scienceol/seqpanel/pkg/core/console"
	impl "github.com/scienceol/seqpanel/pkg/core/console/console"
	"github.com/scienceol/seqpanel/pkg/core/notify/events"
	"github.com/scienceol/seqpanel/pkg/core/schedule/scheduler"
	"github.com/scienceol/seqpanel/pkg/middleware/db"
	"github.com/scienceol/seqpanel/pkg/middleware/logger"
	"github.com/scienceol/seqpanel/pkg/middleware/redis"
	"github.com/scienceol/seqpanel/pkg/middleware/trace"
	"github.com/scienceol/seqpanel/pkg/middleware/watch"
	"github.com/scienceol/seqpanel/pkg/repo/sequence"
	"github.com/scienceol/seqpanel/pkg/web"
	"github.com/scienceol/seqpanel/pkg/web/views/health"
	"github.com/spf13/cobra"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"
)

type server struct {
	unlock  func()
	bridge  *hub.Hub
	console coreConsole.Service
	ui      *melody.Melody
}

var srv = &server{}

func New() *cobra.Command {
	return &cobra.Command{
		Use:          "console",
		Long:         "Start the sequence console (operator UI, actor bridge and scheduler)",
		SilenceUsage: true,
		PreRunE:      initConsole,
		RunE:         run,
		PostRunE:     cleanConsole,
	}
}

func initConsole(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	conf := config.Global()
	trace.InitTrace(ctx, &trace.InitConfig{
		ServiceName:     fmt.Sprintf("%s-%s", conf.Server.Service, conf.Server.Platform),
		Version:         conf.Trace.Version,
		TraceEndpoint:   conf.Trace.TraceEndpoint,
		MetricEndpoint:  conf.Trace.MetricEndpoint,
		TraceProject:    conf.Trace.TraceProject,
		TraceInstanceID: conf.Trace.TraceInstanceID,
		TraceAK:         conf.Trace.TraceAK,
		TraceSK:         conf.Trace.TraceSK,
	})
	db.InitPostgres(ctx, &db.Config{
		Host: conf.Database.Host, Port: conf.Database.Port,
		User: conf.Database.User, PW: conf.Database.Password,
		DBName: conf.Database.Name, LogConf: db.LogConf{Level: conf.Log.LogLevel},
	})
	redis.InitRedis(ctx, &redis.Redis{
		Host: conf.Redis.Host, Port: conf.Redis.Port,
		Password: conf.Redis.Password, DB: conf.Redis.DB,
	})

	// 同一个 console 只允许一个进程调度
	unlock, err := impl.Lock(ctx, redis.GetClient(), conf.Console.Name)
	if err != nil {
		return err
	}
	srv.unlock = unlock

	board := events.NewEvents()
	srv.bridge = hub.New(ctx, &hub.Config{
		Console: conf.Console.Name,
		RClient: redis.GetClient(),
		Board:   board,
	})
	srv.ui = melody.New()
	srv.ui.Config.MaxMessageSize = constant.MaxMessageSize
	srv.ui.Config.PingPeriod = constant.WSPingPeriod

	srv.console, err = impl.New(ctx, &impl.Config{
		Name:      conf.Console.Name,
		PoolSize:  conf.Console.PoolSize,
		Scheduler: startOptions(ctx, &conf.Scheduler, conf.Console.DynamicPath),
		Bridge:    srv.bridge,
		WSClient:  srv.ui,
		RClient:   redis.GetClient(),
		Board:     board,
		Store:     sequence.New(),
	})
	return err
}

func options(conf *config.Scheduler) *scheduler.Options {
	opts := scheduler.DefaultOptions()
	opts.DelayMinutes = conf.DelayMinutes
	opts.MinDelay = time.Duration(conf.MinDelay) * time.Millisecond
	opts.PollInterval = time.Duration(conf.PollInterval) * time.Millisecond
	opts.DispatchTimeLimit = time.Duration(conf.DispatchTimeLimit) * time.Hour
	opts.ControlTimeLimit = time.Duration(conf.ControlTimeLimit) * time.Second
	opts.AbortCmd = conf.AbortCmd
	opts.FinishCmd = conf.FinishCmd
	opts.FinishNowCmd = conf.FinishNowCmd
	return opts
}

// startOptions applies the dynamic file directly, the scheduler loop does
// not exist yet so UpdateOptions would block.
func startOptions(ctx context.Context, conf *config.Scheduler, path string) *scheduler.Options {
	opts := options(conf)
	if path == "" {
		return opts
	}
	d, err := config.LoadDynamic(path)
	if err != nil {
		logger.Errorf(ctx, "load dynamic config %s err: %+v", path, err)
		return opts
	}
	applyDynamic(opts, d)
	return opts
}

func run(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Root().Context()
	conf := config.Global()

	router := gin.Default()
	web.NewRouter(router, &web.Deps{
		Console:  srv.console,
		WSClient: srv.ui,
		Bridge:   srv.bridge,
		Probes: map[string]health.Probe{
			"postgres": health.Postgres,
			"redis":    health.Redis,
		},
	})

	addr := ":" + strconv.Itoa(conf.Server.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 30 * time.Second,
		IdleTimeout:       120 * time.Second,
		TLSNextProto:      make(map[string]func(*http.Server, *tls.Conn, http.Handler)),
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	if conf.Server.MaxConns > 0 {
		ln = netutil.LimitListener(ln, conf.Server.MaxConns)
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return srv.console.Run(egCtx)
	})
	// reload 走调度循环, 必须在 Run 之后
	if path := conf.Console.DynamicPath; path != "" {
		if err := watch.File(egCtx, path, func(ctx context.Context) { reload(ctx, path) }); err != nil {
			logger.Errorf(ctx, "watch dynamic config %s err: %+v", path, err)
		}
	}
	eg.Go(func() error {
		fmt.Printf("Console %s listening on http://0.0.0.0:%d\n", conf.Console.Name, conf.Server.Port)
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-egCtx.Done()
		srv.bridge.Close(context.Background())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Errorf(ctx, "console exit err: %+v", err)
		return err
	}
	return nil
}

func reload(ctx context.Context, path string) {
	d, err := config.LoadDynamic(path)
	if err != nil {
		logger.Errorf(ctx, "load dynamic config %s err: %+v", path, err)
		return
	}
	if err := srv.console.UpdateOptions(ctx, func(o *scheduler.Options) { applyDynamic(o, d) }); err != nil {
		logger.Errorf(ctx, "apply dynamic config err: %+v", err)
		return
	}
	logger.Infof(ctx, "dynamic config reloaded from %s", path)
}

// applyDynamic copies the set fields of d onto o.
func applyDynamic(o *scheduler.Options, d *config.Dynamic) {
	if d.DelayMinutes != nil && *d.DelayMinutes >= 0 && *d.DelayMinutes <= constant.MaxDelayMinutes {
		o.DelayMinutes = *d.DelayMinutes
	}
	if d.Scheduler.MinDelayMs > 0 {
		o.MinDelay = time.Duration(d.Scheduler.MinDelayMs) * time.Millisecond
	}
	if d.Scheduler.AbortCmd != "" {
		o.AbortCmd = d.Scheduler.AbortCmd
	}
	if d.Scheduler.FinishCmd != "" {
		o.FinishCmd = d.Scheduler.FinishCmd
	}
	if d.Scheduler.FinishNowCmd != "" {
		o.FinishNowCmd = d.Scheduler.FinishNowCmd
	}
}

func cleanConsole(cmd *cobra.Command, _ []string) error {
	if srv.console != nil {
		srv.console.Close(cmd.Context())
	}
	if srv.unlock != nil {
		srv.unlock()
	}
	events.NewEvents().Close(cmd.Context())
	redis.CloseRedis(cmd.Context())
	db.ClosePostgres(cmd.Context())
	trace.CloseTrace()
	return nil
}
