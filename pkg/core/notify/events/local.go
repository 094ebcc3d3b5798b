package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/scienceol/seqpanel/pkg/common/code"
	"github.com/scienceol/seqpanel/pkg/common/uuid"
	"github.com/scienceol/seqpanel/pkg/core/notify"
	"github.com/scienceol/seqpanel/pkg/middleware/logger"
	"github.com/scienceol/seqpanel/pkg/utils"
)

// Local delivers messages inside the process, for a console running
// without redis.
type Local struct {
	actions sync.Map
}

func NewLocal() *Local {
	return &Local{}
}

func (l *Local) Registry(_ context.Context, msgName notify.Action, handleFunc notify.HandleFunc) error {
	if _, ok := l.actions.LoadOrStore(msgName, handleFunc); ok {
		return code.NotifyActionAlreadyRegistryErr.WithMsg(string(msgName))
	}
	return nil
}

func (l *Local) Broadcast(ctx context.Context, msg *notify.SendMsg) error {
	msg.Timestamp = time.Now().Unix()
	if uuid.IsNil(msg.UUID) {
		msg.UUID = uuid.NewV4()
	}
	v, ok := l.actions.Load(msg.Channel)
	if !ok {
		return nil
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return code.NotifySendMsgErr.WithErr(err)
	}
	handle := v.(notify.HandleFunc)
	if err := utils.SafelyRun(func() {
		if err := handle(ctx, string(data)); err != nil {
			logger.Errorf(ctx, "handle local msg fail name: %s, err: %+v", msg.Channel, err)
		}
	}); err != nil {
		return code.NotifySendMsgErr.WithErr(err)
	}
	return nil
}

func (l *Local) Close(_ context.Context) error {
	l.actions.Range(func(key, _ any) bool {
		l.actions.Delete(key)
		return true
	})
	return nil
}
