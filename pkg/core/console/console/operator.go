package console

import (
	"context"
	"encoding/json"
	"time"

	"github.com/olahol/melody"
	"github.com/scienceol/seqpanel/pkg/common/code"
	"github.com/scienceol/seqpanel/pkg/core/console"
	"github.com/scienceol/seqpanel/pkg/core/notify"
	"github.com/scienceol/seqpanel/pkg/core/schedule"
	"github.com/scienceol/seqpanel/pkg/core/sequence"
	"github.com/scienceol/seqpanel/pkg/middleware/auth"
	"github.com/scienceol/seqpanel/pkg/middleware/logger"
	"github.com/scienceol/seqpanel/pkg/repo/model"
	"github.com/scienceol/seqpanel/pkg/utils"
	"gorm.io/datatypes"
)

const operatorKey = "operator"

/*
	以下方法在调度 goroutine 上调用, 不能阻塞: 持久化和广播交给任务池
*/

// Confirm accepts the operations whose request carried the confirmation.
// Otherwise the operator is sent the prompt so the UI can ask and retry.
func (c *consoleImpl) Confirm(ctx context.Context, prompt schedule.Prompt, detail *schedule.PromptContext) bool {
	if console.Confirmed(ctx) {
		return true
	}
	c.send(ctx, &notify.SendMsg{
		Channel:  notify.OperatorMsg,
		Console:  c.name,
		Operator: auth.OperatorName(ctx),
		Data:     &console.OperatorMsg{Prompt: prompt, Context: detail, Code: code.NotConfirmedErr},
	})
	return false
}

func (c *consoleImpl) Report(ctx context.Context, err error) {
	logger.Warnf(ctx, "console operation rejected operator: %s err: %+v", auth.OperatorName(ctx), err)
	c.send(ctx, &notify.SendMsg{
		Channel:  notify.OperatorMsg,
		Console:  c.name,
		Operator: auth.OperatorName(ctx),
		Data:     &console.OperatorMsg{Code: code.Of(err), Error: code.Msg(err)},
	})
}

func (c *consoleImpl) OnChanged(ctx context.Context, snap *schedule.Snapshot) {
	c.send(ctx, &notify.SendMsg{
		Channel: notify.QueueChanged,
		Console: c.name,
		Data:    &console.QueueMsg{Version: c.version.Add(1), Snapshot: snap},
	})
}

func (c *consoleImpl) OnSequence(ctx context.Context, ev *schedule.SequenceEvent) {
	record := toRecord(c.name, ev, time.Now())
	c.submit(ctx, func() {
		if c.store == nil {
			return
		}
		if err := c.store.UpsertSequence(ctx, record); err != nil {
			logger.Errorf(ctx, "console.OnSequence persist sequence: %s err: %+v", ev.Sequence.UUID, err)
		}
	})
	c.send(ctx, &notify.SendMsg{
		Channel: notify.SequenceEvent,
		Console: c.name,
		Data:    ev,
	})
}

func (c *consoleImpl) send(ctx context.Context, msg *notify.SendMsg) {
	c.submit(ctx, func() {
		if err := c.board.Broadcast(ctx, msg); err != nil {
			logger.Errorf(ctx, "console.send %s err: %+v", msg.Channel, err)
		}
	})
}

// submit outlives the request that triggered it.
func (c *consoleImpl) submit(ctx context.Context, task func()) {
	ctx = context.WithoutCancel(ctx)
	if err := c.pools.Submit(func() {
		if err := utils.SafelyRun(task); err != nil {
			logger.Errorf(ctx, "console task panic: %+v", err)
		}
	}); err != nil {
		logger.Errorf(ctx, "console.submit err: %+v", err)
	}
}

// onNotify forwards board messages of this console to the UI sessions; an
// operator message only reaches the sessions of that operator.
func (c *consoleImpl) onNotify(_ context.Context, msg string) error {
	if c.wsClient == nil {
		return nil
	}
	head := &notify.SendMsg{}
	if err := json.Unmarshal([]byte(msg), head); err != nil {
		return err
	}
	if head.Console != c.name {
		return nil
	}
	return c.wsClient.BroadcastFilter([]byte(msg), func(s *melody.Session) bool {
		if head.Operator == "" {
			return true
		}
		op, ok := s.Get(operatorKey)
		return ok && op == head.Operator
	})
}

func statusFlag(ev *schedule.SequenceEvent) int {
	switch ev.Sequence.Status {
	case sequence.StatusFinished:
		if ev.Interrupt == schedule.InterruptFinish || ev.Interrupt == schedule.InterruptFinishNow {
			return model.FlagFinished
		}
		return model.FlagOK
	case sequence.StatusFailed:
		if ev.Interrupt == schedule.InterruptAbort {
			return model.FlagAborted
		}
		return model.FlagFailed
	}
	return model.FlagPending
}

func toRecord(console string, ev *schedule.SequenceEvent, at time.Time) *model.Sequence {
	v := ev.Sequence
	subs, _ := json.Marshal(v.SubCommands)
	record := &model.Sequence{
		Console:     console,
		SequenceID:  v.ID,
		SeqType:     v.SeqType,
		Name:        v.Name,
		Comments:    v.Comments,
		CmdStr:      v.CmdStr,
		Status:      string(v.Status),
		StatusFlag:  statusFlag(ev),
		CmdOutput:   v.ReturnStr,
		Anomalies:   v.Anomalies,
		SubCommands: datatypes.JSON(subs),
		VisitStart:  v.VisitStart,
		VisitEnd:    v.VisitEnd,
	}
	record.UUID = v.UUID
	record.CreatedAt = at
	record.UpdatedAt = at
	if v.Status.IsTerminal() {
		record.FinishedAt = &at
	}
	return record
}
