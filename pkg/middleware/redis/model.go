package redis

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/extra/rediscmd/v9"
	r "github.com/redis/go-redis/v9"
	"github.com/scienceol/seqpanel/pkg/middleware/logger"
)

const slowCmdThreshold = 200 * time.Millisecond

type Redis struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func initRedis(ctx context.Context, conf *Redis) (*r.Client, error) {
	client := r.NewClient(&r.Options{
		Addr:     fmt.Sprintf("%s:%d", conf.Host, conf.Port),
		Password: conf.Password,
		DB:       conf.DB,
	})
	client.AddHook(&slowLogHook{})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// slowLogHook 记录慢命令
type slowLogHook struct{}

func (h *slowLogHook) DialHook(next r.DialHook) r.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (h *slowLogHook) ProcessHook(next r.ProcessHook) r.ProcessHook {
	return func(ctx context.Context, cmd r.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		if cost := time.Since(start); cost > slowCmdThreshold {
			logger.Warnf(ctx, "redis slow cmd: %s cost: %s", rediscmd.CmdString(cmd), cost)
		}
		return err
	}
}

func (h *slowLogHook) ProcessPipelineHook(next r.ProcessPipelineHook) r.ProcessPipelineHook {
	return func(ctx context.Context, cmds []r.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		if cost := time.Since(start); cost > slowCmdThreshold {
			_, cmdStr := rediscmd.CmdsString(cmds)
			logger.Warnf(ctx, "redis slow pipeline: %s cost: %s", cmdStr, cost)
		}
		return err
	}
}
