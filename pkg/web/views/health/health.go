package health

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/scienceol/seqpanel/pkg/middleware/db"
	"github.com/scienceol/seqpanel/pkg/middleware/redis"
)

// Probe reports one downstream dependency: ok, unhealthy or not_initialized.
type Probe func(ctx context.Context) string

const (
	ok             = "ok"
	unhealthy      = "unhealthy"
	notInitialized = "not_initialized"
)

func Health(g *gin.Context) {
	g.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Live: the process is alive.
func Live(g *gin.Context) {
	g.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func Postgres(ctx context.Context) string {
	ds := db.DB()
	if ds == nil {
		return notInitialized
	}
	sqlDB, err := ds.DBIns().DB()
	if err != nil || sqlDB.PingContext(ctx) != nil {
		return unhealthy
	}
	return ok
}

func Redis(ctx context.Context) string {
	rc := redis.GetClient()
	if rc == nil {
		return notInitialized
	}
	if err := rc.Ping(ctx).Err(); err != nil {
		return unhealthy
	}
	return ok
}

// Actor probes the actor bridge connection.
func Actor(connected func() bool) Probe {
	return func(context.Context) string {
		if connected() {
			return ok
		}
		return "disconnected"
	}
}

// Ready checks every probe; any result other than ok makes the console not ready.
func Ready(probes map[string]Probe) gin.HandlerFunc {
	return func(g *gin.Context) {
		checks := gin.H{}
		healthy := true
		for name, probe := range probes {
			res := probe(g.Request.Context())
			checks[name] = res
			healthy = healthy && res == ok
		}

		status := http.StatusOK
		msg := "ready"
		if !healthy {
			status = http.StatusServiceUnavailable
			msg = "not_ready"
		}
		g.JSON(status, gin.H{
			"status": msg,
			"checks": checks,
		})
	}
}
