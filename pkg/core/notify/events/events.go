package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	r "github.com/redis/go-redis/v9"
	"github.com/scienceol/seqpanel/pkg/common/code"
	"github.com/scienceol/seqpanel/pkg/common/uuid"
	"github.com/scienceol/seqpanel/pkg/core/notify"
	"github.com/scienceol/seqpanel/pkg/middleware/logger"
	"github.com/scienceol/seqpanel/pkg/middleware/redis"
	"github.com/scienceol/seqpanel/pkg/utils"
)

/*
	使用 redis 的发布订阅把队列状态和 actor 日志广播到所有 web 进程
*/

var (
	once   sync.Once
	center *Events
)

type Events struct {
	actions sync.Map
	subs    sync.Map
	client  *r.Client
	wait    sync.WaitGroup
}

func NewEvents() notify.MsgCenter {
	once.Do(func() {
		center = newEvents(redis.GetClient())
	})
	return center
}

func newEvents(client *r.Client) *Events {
	return &Events{client: client}
}

func (e *Events) Registry(ctx context.Context, msgName notify.Action, handleFunc notify.HandleFunc) error {
	if _, ok := e.actions.LoadOrStore(msgName, handleFunc); ok {
		return code.NotifyActionAlreadyRegistryErr.WithMsg(string(msgName))
	}

	// 订阅消息
	sub := e.client.Subscribe(ctx, string(msgName))
	e.subs.Store(msgName, sub)

	e.wait.Add(1)
	utils.SafelyGo(func() {
		defer e.wait.Done()
		defer e.actions.Delete(msgName)

		ch := sub.Channel()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					logger.Infof(ctx, "exit redis channel name: %s", string(msgName))
					return
				}
				if msg == nil {
					continue
				}
				if err := handleFunc(ctx, msg.Payload); err != nil {
					logger.Errorf(ctx, "handle redis msg fail name: %s, err: %+v", msgName, err)
				}
			case <-ctx.Done():
				logger.Infof(ctx, "exit redis channel name: %s", string(msgName))
				if err := sub.Unsubscribe(context.Background(), string(msgName)); err != nil {
					logger.Errorf(ctx, "unsubscribe fail msg name: %s, err: %+v", msgName, err)
				}
				return
			}
		}
	}, func(err error) {
		logger.Errorf(ctx, "Registry handle msg err: %+v", err)
	})
	return nil
}

func (e *Events) Broadcast(ctx context.Context, msg *notify.SendMsg) error {
	msg.Timestamp = time.Now().Unix()
	if uuid.IsNil(msg.UUID) {
		msg.UUID = uuid.NewV4()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return code.NotifySendMsgErr.WithErr(err)
	}
	if err := e.client.Publish(ctx, string(msg.Channel), data).Err(); err != nil {
		logger.Errorf(ctx, "send msg fail action: %s, err: %+v", msg.Channel, err)
		return code.NotifySendMsgErr.WithErr(err)
	}
	return nil
}

func (e *Events) Close(ctx context.Context) error {
	e.subs.Range(func(key, value any) bool {
		if sub, ok := value.(*r.PubSub); ok {
			if err := sub.Close(); err != nil {
				logger.Warnf(ctx, "close redis sub name: %v err: %+v", key, err)
			}
		}
		e.subs.Delete(key)
		return true
	})
	e.wait.Wait()
	return nil
}
