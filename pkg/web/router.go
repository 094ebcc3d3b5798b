package web

import (
	"fmt"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/olahol/melody"
	"github.com/scienceol/seqpanel/internal/config"
	"github.com/scienceol/seqpanel/pkg/core/actor"
	"github.com/scienceol/seqpanel/pkg/core/console"
	"github.com/scienceol/seqpanel/pkg/middleware/auth"
	"github.com/scienceol/seqpanel/pkg/middleware/logger"
	consoleView "github.com/scienceol/seqpanel/pkg/web/views/console"
	"github.com/scienceol/seqpanel/pkg/web/views/health"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

type Deps struct {
	Console  console.Service
	WSClient *melody.Melody // 与 console 共用
	Bridge   actor.Bridge
	// 额外的就绪检查, 如 postgres 和 redis
	Probes map[string]health.Probe
}

func NewRouter(g *gin.Engine, deps *Deps) {
	installMiddleware(g)
	installURL(g, deps)
}

func installMiddleware(g *gin.Engine) {
	g.ContextWithFallback = true
	server := config.Global().Server
	g.Use(cors.Default())
	g.Use(otelgin.Middleware(fmt.Sprintf("%s-%s", server.Platform, server.Service)))
	g.Use(logger.LogWithWriter())
}

func installURL(g *gin.Engine, deps *Deps) {
	probes := map[string]health.Probe{"actor": health.Actor(deps.Bridge.Connected)}
	for name, p := range deps.Probes {
		probes[name] = p
	}

	api := g.Group("/api")
	api.GET("/health", health.Health)
	api.GET("/health/live", health.Live)
	api.GET("/health/ready", health.Ready(probes))
	api.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))

	handle := consoleView.NewHandle(deps.Console, deps.WSClient)
	v1 := api.Group("/v1")

	// actor bridge
	{
		v1.GET("/ws/actor", auth.AuthActor(), deps.Bridge.Connect)
	}

	// operator UI
	{
		v1.GET("/ws/console", auth.AuthWeb(), handle.Connect)

		c := v1.Group("/console", auth.AuthWeb(), consoleView.Confirm())
		c.GET("/snapshot", handle.Snapshot)
		c.GET("/status", handle.Status)
		c.GET("/templates", handle.Templates)

		c.POST("/sequence", handle.AddSequence)
		c.PUT("/sequence/validate", handle.Validate)
		c.PUT("/sequence/move", handle.Move)
		c.DELETE("/sequence", handle.Remove)
		c.DELETE("/sequence/done", handle.ClearDone)
		c.POST("/sequence/copy", handle.Copy)
		c.POST("/sequence/paste", handle.Paste)

		c.POST("/script", handle.LoadScript)
		c.GET("/script", handle.SaveScript)

		c.POST("/start", handle.Start)
		c.POST("/stop", handle.Stop)
		c.POST("/abort", handle.Abort)
		c.POST("/finish", handle.Finish)
		c.POST("/finish_now", handle.FinishNow)
		c.PUT("/delay", handle.SetDelay)

		c.GET("/history", handle.History)
		c.GET("/previous", handle.Previous)
		c.GET("/annotations/:sequence_id", handle.Annotations)
		c.POST("/annotations", handle.Annotate)
	}
}
