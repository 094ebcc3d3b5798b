package logger

import (
	"time"

	"github.com/gin-gonic/gin"
)

func LogWithWriter() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		path := ctx.Request.URL.Path
		query := ctx.Request.URL.RawQuery
		ctx.Next()

		latency := time.Since(start)
		status := ctx.Writer.Status()
		switch {
		case status >= 500:
			Errorf(ctx, "http %s %s?%s status: %d latency: %s errs: %s",
				ctx.Request.Method, path, query, status, latency, ctx.Errors.String())
		case status >= 400:
			Warnf(ctx, "http %s %s?%s status: %d latency: %s",
				ctx.Request.Method, path, query, status, latency)
		default:
			Infof(ctx, "http %s %s?%s status: %d latency: %s",
				ctx.Request.Method, path, query, status, latency)
		}
	}
}
