package notify

import (
	"context"

	"github.com/scienceol/seqpanel/pkg/common/uuid"
)

type Action string

const (
	QueueChanged  Action = "seqpanel-queue"
	SequenceEvent Action = "seqpanel-sequence"
	ActorLog      Action = "seqpanel-actor-log"
	OperatorMsg   Action = "seqpanel-operator"
)

type SendMsg struct {
	Channel   Action    `json:"action"`
	Console   string    `json:"console"`
	Operator  string    `json:"operator,omitempty"`
	Data      any       `json:"data"`
	UUID      uuid.UUID `json:"uuid"`
	Timestamp int64     `json:"timestamp"`
}

type HandleFunc func(ctx context.Context, msg string) error

type MsgCenter interface {
	Registry(ctx context.Context, msgName Action, handleFunc HandleFunc) error
	Broadcast(ctx context.Context, msg *SendMsg) error
	Close(ctx context.Context) error
}
