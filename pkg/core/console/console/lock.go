package console

import (
	"context"
	"time"

	r "github.com/redis/go-redis/v9"
	"github.com/scienceol/seqpanel/pkg/common/code"
	"github.com/scienceol/seqpanel/pkg/common/constant"
	"github.com/scienceol/seqpanel/pkg/common/uuid"
	"github.com/scienceol/seqpanel/pkg/middleware/logger"
	"github.com/scienceol/seqpanel/pkg/utils"
)

// 只在持有者是自己时续期或释放
var (
	renewScript = r.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
	releaseScript = r.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
)

// Lock makes sure a single process serves a console name. The returned
// release func stops the heartbeat and frees the name.
func Lock(ctx context.Context, rClient *r.Client, console string) (func(), error) {
	name := utils.ConsoleLockName(console)
	owner := uuid.NewV4().String()
	ok, err := rClient.SetNX(ctx, name, owner, constant.ConsoleLockTTL).Result()
	if err != nil {
		return nil, code.ConsoleLockedErr.WithErr(err)
	}
	if !ok {
		holder, _ := rClient.Get(ctx, name).Result()
		return nil, code.ConsoleLockedErr.WithMsgf("console %s is served by %s", console, holder)
	}
	logger.Infof(ctx, "console.Lock acquired name: %s owner: %s", name, owner)

	heartCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	utils.SafelyGo(func() {
		defer close(done)
		ticker := time.NewTicker(constant.ConsoleLockTTL / 2)
		defer ticker.Stop()
		for {
			select {
			case <-heartCtx.Done():
				return
			case <-ticker.C:
				n, err := renewScript.Run(heartCtx, rClient, []string{name}, owner,
					constant.ConsoleLockTTL.Milliseconds()).Int()
				if err != nil {
					logger.Errorf(heartCtx, "console.Lock renew err: %+v", err)
					continue
				}
				if n == 0 {
					logger.Errorf(heartCtx, "console.Lock lost name: %s", name)
				}
			}
		}
	}, func(err error) {
		logger.Errorf(ctx, "console.Lock heartbeat err: %+v", err)
	})

	return func() {
		cancel()
		<-done
		if err := releaseScript.Run(context.Background(), rClient, []string{name}, owner).Err(); err != nil {
			logger.Errorf(context.Background(), "console.Lock release err: %+v", err)
		}
	}, nil
}
