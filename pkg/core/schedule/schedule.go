package schedule

import (
	"context"
	"time"

	"github.com/scienceol/seqpanel/pkg/core/sequence"
)

type State string

const (
	StateOff        State = "off"
	StateWaiting    State = "waiting"
	StateProcessing State = "processing"
)

// Prompt names the operation an operator is asked to confirm.
type Prompt string

const (
	PromptStart     Prompt = "start"
	PromptStop      Prompt = "stop"
	PromptAbort     Prompt = "abort"
	PromptFinish    Prompt = "finish"
	PromptFinishNow Prompt = "finish_now"
	PromptAnnotate  Prompt = "annotate"
)

type PromptContext struct {
	StartAt  time.Time      `json:"start_at,omitempty"`
	Sequence *sequence.Info `json:"sequence,omitempty"`
	Detail   string         `json:"detail,omitempty"`
}

// Command is one line sent to an actor.
type Command struct {
	Actor     string
	CmdStr    string
	TimeLimit time.Duration
}

type ReplyFunc func(reply *sequence.Reply)

// Actor sends commands to the remote command actors. Send returns once the
// command is handed over; replies arrive later through onReply, the last
// one carrying a terminal code.
type Actor interface {
	Send(ctx context.Context, cmd *Command, onReply ReplyFunc) error
}

// Operator is asked before the scheduler commits to a transition and is
// told about rejected operations.
type Operator interface {
	Confirm(ctx context.Context, prompt Prompt, detail *PromptContext) bool
	Report(ctx context.Context, err error)
}

type Event string

const (
	EventActivated  Event = "activated"
	EventRegistered Event = "registered"
	EventTerminal   Event = "terminal"
)

// Interrupt records which wrap up request was pending when a sequence ended.
type Interrupt string

const (
	InterruptNone      Interrupt = ""
	InterruptAbort     Interrupt = "abort"
	InterruptFinish    Interrupt = "finish"
	InterruptFinishNow Interrupt = "finish_now"
)

type SequenceEvent struct {
	Event     Event          `json:"event"`
	Interrupt Interrupt      `json:"interrupt,omitempty"`
	Sequence  *sequence.View `json:"sequence"`
}

// Observer is called on the scheduler goroutine and must not block.
type Observer interface {
	OnChanged(ctx context.Context, snap *Snapshot)
	OnSequence(ctx context.Context, ev *SequenceEvent)
}

type Countdown struct {
	StartedAt time.Time     `json:"started_at"`
	StartAt   time.Time     `json:"start_at"`
	Elapsed   time.Duration `json:"elapsed"`
	Total     time.Duration `json:"total"`
}

type Status struct {
	State          State      `json:"state"`
	AbortRequested bool       `json:"abort_requested"`
	Interrupt      Interrupt  `json:"interrupt,omitempty"`
	DelayMinutes   int        `json:"delay_minutes"`
	Countdown      *Countdown `json:"countdown,omitempty"`
	ActorConnected bool       `json:"actor_connected"`
}

type Snapshot struct {
	Status    Status           `json:"status"`
	Sequences []*sequence.View `json:"sequences"`
}
