package actor

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/scienceol/seqpanel/pkg/core/schedule"
	"github.com/scienceol/seqpanel/pkg/core/sequence"
)

// Bridge is the actor side of the console: a process connected over a
// websocket that forwards commands to the instrument actors and streams
// their replies back.
type Bridge interface {
	schedule.Actor
	Connect(ctx *gin.Context)
	Connected() bool
	Close(ctx context.Context)
}

type Action string

const (
	ActionCommand Action = "command"
	ActionReply   Action = "reply"
	ActionPing    Action = "ping"
	ActionPong    Action = "pong"
)

type Msg struct {
	Action Action `json:"action"`
}

type Data[T any] struct {
	Msg
	Data T `json:"data"`
}

type CommandData struct {
	CmdID     int64  `json:"cmd_id"`
	Actor     string `json:"actor"`
	CmdStr    string `json:"cmd_str"`
	TimeLimit int64  `json:"time_limit"` // seconds
}

type ReplyData struct {
	CmdID    int64             `json:"cmd_id"`
	Actor    string            `json:"actor"`
	Code     sequence.Code     `json:"code"`
	Keywords sequence.Keywords `json:"keywords"`
}

// LogLine is what operator UIs receive for every actor reply.
type LogLine struct {
	CmdID  int64         `json:"cmd_id"`
	Actor  string        `json:"actor"`
	Code   sequence.Code `json:"code"`
	Level  int           `json:"level"`
	Text   string        `json:"text"`
	CmdStr string        `json:"cmd_str,omitempty"`
}

// Level orders reply codes by severity: debug 0, info 1, warning 2,
// failure 3, fatal 4.
func Level(c sequence.Code) int {
	switch c {
	case sequence.CodeDebug, sequence.CodeQueued:
		return 0
	case sequence.CodeInform, sequence.CodeFinished:
		return 1
	case sequence.CodeWarning:
		return 2
	case sequence.CodeFailed, sequence.CodeTimeout:
		return 3
	case sequence.CodeFatal:
		return 4
	}
	return 1
}
