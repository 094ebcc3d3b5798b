package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/scienceol/seqpanel/pkg/common/code"
	"github.com/scienceol/seqpanel/pkg/common/constant"
	"github.com/scienceol/seqpanel/pkg/core/schedule"
	"github.com/scienceol/seqpanel/pkg/core/sequence"
	"github.com/scienceol/seqpanel/pkg/middleware/logger"
	"github.com/scienceol/seqpanel/pkg/utils"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

/*
 调度器: 队列、序列和调度状态只在 Run 的 goroutine 上修改,
 外部调用、actor 回复和倒计时都以事件形式投递到该 goroutine
*/

const eventBuffer = 64

type event struct {
	ctx context.Context
	fn  func(ctx context.Context)
}

type countdown struct {
	gen       uint64
	startedAt time.Time
	total     time.Duration
}

type Scheduler struct {
	opts     Options
	queue    *sequence.Queue
	actor    schedule.Actor
	operator schedule.Operator
	observer schedule.Observer
	now      func() time.Time
	tracer   trace.Tracer
	metrics  *metrics

	state          schedule.State
	abortRequested bool
	interrupt      schedule.Interrupt
	countdown      *countdown
	gen            uint64
	stopTicker     context.CancelFunc
	dirty          bool

	events  chan *event
	done    chan struct{}
	running atomic.Bool
}

type Option func(s *Scheduler)

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

func WithObserver(o schedule.Observer) Option {
	return func(s *Scheduler) {
		s.observer = o
	}
}

func New(queue *sequence.Queue, actor schedule.Actor, operator schedule.Operator, opts *Options, options ...Option) *Scheduler {
	if opts == nil {
		opts = DefaultOptions()
	}
	s := &Scheduler{
		opts:     *opts,
		queue:    queue,
		actor:    actor,
		operator: operator,
		now:      time.Now,
		tracer:   otel.Tracer(instrumentation),
		metrics:  newMetrics(),
		state:    schedule.StateOff,
		events:   make(chan *event, eventBuffer),
		done:     make(chan struct{}),
	}
	s.opts.normalize()
	for _, o := range options {
		o(s)
	}
	queue.OnChange(func() { s.dirty = true })
	return s
}

// Run processes events until ctx is done. It may only be called once.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return code.SchedulerRunningErr.WithMsg("loop already running")
	}
	defer close(s.done)
	defer s.disarm()

	logger.Infof(ctx, "Scheduler.Run loop started")
	for {
		select {
		case <-ctx.Done():
			logger.Infof(ctx, "Scheduler.Run loop exit")
			return nil
		case ev := <-s.events:
			if err := utils.SafelyRun(func() { ev.fn(ev.ctx) }); err != nil {
				logger.Errorf(ev.ctx, "Scheduler.Run event panic: %+v", err)
			}
			s.flush(ev.ctx)
		}
	}
}

func (s *Scheduler) post(ctx context.Context, fn func(ctx context.Context)) error {
	ev := &event{ctx: context.WithoutCancel(ctx), fn: fn}
	select {
	case s.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return code.SchedulerClosedErr
	}
}

// Do runs fn on the scheduler goroutine and waits for its result.
// fn may read and mutate the queue and its sequences.
func (s *Scheduler) Do(ctx context.Context, fn func(ctx context.Context, q *sequence.Queue) error) error {
	errCh := make(chan error, 1)
	if err := s.post(ctx, func(ctx context.Context) {
		if err := utils.SafelyRun(func() { errCh <- fn(ctx, s.queue) }); err != nil {
			errCh <- err
		}
	}); err != nil {
		return err
	}
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return code.SchedulerClosedErr
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	return s.Do(ctx, func(ctx context.Context, _ *sequence.Queue) error { return s.start(ctx) })
}

func (s *Scheduler) Stop(ctx context.Context) error {
	return s.Do(ctx, func(ctx context.Context, _ *sequence.Queue) error { return s.stop(ctx) })
}

func (s *Scheduler) Abort(ctx context.Context) error {
	return s.Do(ctx, func(ctx context.Context, _ *sequence.Queue) error {
		return s.control(ctx, schedule.PromptAbort, schedule.InterruptAbort, s.opts.AbortCmd)
	})
}

func (s *Scheduler) Finish(ctx context.Context) error {
	return s.Do(ctx, func(ctx context.Context, _ *sequence.Queue) error {
		return s.control(ctx, schedule.PromptFinish, schedule.InterruptFinish, s.opts.FinishCmd)
	})
}

func (s *Scheduler) FinishNow(ctx context.Context) error {
	return s.Do(ctx, func(ctx context.Context, _ *sequence.Queue) error {
		return s.control(ctx, schedule.PromptFinishNow, schedule.InterruptFinishNow, s.opts.FinishNowCmd)
	})
}

func (s *Scheduler) SetDelay(ctx context.Context, minutes int) error {
	return s.Do(ctx, func(ctx context.Context, _ *sequence.Queue) error { return s.setDelay(ctx, minutes) })
}

// UpdateOptions applies f to the options on the scheduler goroutine.
func (s *Scheduler) UpdateOptions(ctx context.Context, f func(o *Options)) error {
	return s.Do(ctx, func(context.Context, *sequence.Queue) error {
		f(&s.opts)
		s.opts.normalize()
		s.dirty = true
		return nil
	})
}

func (s *Scheduler) Status(ctx context.Context) (*schedule.Status, error) {
	var st *schedule.Status
	err := s.Do(ctx, func(context.Context, *sequence.Queue) error {
		st = s.status()
		return nil
	})
	return st, err
}

func (s *Scheduler) Snapshot(ctx context.Context) (*schedule.Snapshot, error) {
	var snap *schedule.Snapshot
	err := s.Do(ctx, func(context.Context, *sequence.Queue) error {
		snap = s.snapshot()
		return nil
	})
	return snap, err
}

func (s *Scheduler) reject(ctx context.Context, err error) error {
	if s.operator != nil {
		s.operator.Report(ctx, err)
	}
	return err
}

func (s *Scheduler) confirm(ctx context.Context, prompt schedule.Prompt, detail *schedule.PromptContext) bool {
	return s.operator == nil || s.operator.Confirm(ctx, prompt, detail)
}

func (s *Scheduler) setState(state schedule.State) {
	if s.state == state {
		return
	}
	logger.Infof(context.Background(), "Scheduler state %s -> %s", s.state, state)
	s.state = state
	s.dirty = true
}

func (s *Scheduler) firstDelay() time.Duration {
	return max(time.Duration(s.opts.DelayMinutes)*time.Minute, s.opts.MinDelay)
}

func (s *Scheduler) start(ctx context.Context) error {
	if s.state != schedule.StateOff {
		return s.reject(ctx, code.SchedulerRunningErr.WithMsgf("scheduler is %s", s.state))
	}
	active := s.queue.Active()
	if active == nil && len(s.queue.Valid()) == 0 {
		return s.reject(ctx, code.NoValidSequenceErr)
	}

	total := s.firstDelay()
	detail := &schedule.PromptContext{StartAt: s.now().Add(total)}
	if active != nil {
		info := active.Info()
		detail.StartAt = s.now()
		detail.Sequence = &info
		detail.Detail = "resume active sequence"
	}
	if !s.confirm(ctx, schedule.PromptStart, detail) {
		return code.NotConfirmedErr.WithMsgf("start at %s", detail.StartAt.Format(time.RFC3339))
	}

	s.abortRequested = false
	s.interrupt = schedule.InterruptNone
	if active != nil {
		logger.Infof(ctx, "Scheduler.start resume sequence: %s", active.UUID)
		s.setState(schedule.StateProcessing)
		return nil
	}
	s.arm(total)
	s.setState(schedule.StateWaiting)
	return nil
}

func (s *Scheduler) stop(ctx context.Context) error {
	if s.state == schedule.StateOff {
		return s.reject(ctx, code.SchedulerOffErr)
	}
	if !s.confirm(ctx, schedule.PromptStop, &schedule.PromptContext{}) {
		return code.NotConfirmedErr.WithMsg("stop")
	}
	s.off()
	return nil
}

func (s *Scheduler) off() {
	s.disarm()
	s.abortRequested = false
	s.interrupt = schedule.InterruptNone
	s.setState(schedule.StateOff)
}

// control sends a wrap up command for the active sequence and latches it;
// the scheduler turns off once that sequence ends.
func (s *Scheduler) control(ctx context.Context, prompt schedule.Prompt, interrupt schedule.Interrupt, cmdLine string) error {
	active := s.queue.Active()
	if active == nil {
		return s.reject(ctx, code.NoActiveSequenceErr.WithMsgf("nothing to %s", prompt))
	}
	info := active.Info()
	if !s.confirm(ctx, prompt, &schedule.PromptContext{Sequence: &info, Detail: cmdLine}) {
		return code.NotConfirmedErr.WithMsg(string(prompt))
	}
	actor, cmdStr, err := sequence.SplitCommand(cmdLine)
	if err != nil {
		return s.reject(ctx, err)
	}
	if err := s.actor.Send(ctx, &schedule.Command{
		Actor:     actor,
		CmdStr:    cmdStr,
		TimeLimit: s.opts.ControlTimeLimit,
	}, s.controlReply(interrupt)); err != nil {
		return s.reject(ctx, err)
	}

	s.metrics.onControl(ctx, interrupt)
	s.abortRequested = true
	s.interrupt = interrupt
	s.dirty = true
	return nil
}

func (s *Scheduler) controlReply(interrupt schedule.Interrupt) schedule.ReplyFunc {
	return func(reply *sequence.Reply) {
		if reply.Code.IsTerminal() && !reply.Code.IsSuccess() {
			logger.Warnf(context.Background(), "Scheduler %s command failed code: %s reply: %s",
				interrupt, reply.Code, reply.Keywords.Canonical(";"))
		}
	}
}

func (s *Scheduler) setDelay(ctx context.Context, minutes int) error {
	if minutes < 0 || minutes > constant.MaxDelayMinutes {
		return s.reject(ctx, code.DelayRangeErr.WithMsgf("%d not in [0, %d] minutes", minutes, constant.MaxDelayMinutes))
	}
	s.opts.DelayMinutes = minutes
	s.dirty = true
	return nil
}

func (s *Scheduler) arm(total time.Duration) {
	s.disarm()
	s.countdown = &countdown{gen: s.gen, startedAt: s.now(), total: total}
	s.dirty = true
	if !s.running.Load() {
		return
	}

	gen := s.gen
	tickCtx, cancel := context.WithCancel(context.Background())
	s.stopTicker = cancel
	utils.SafelyGo(func() {
		ticker := time.NewTicker(s.opts.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-tickCtx.Done():
				return
			case <-ticker.C:
				if err := s.post(tickCtx, func(ctx context.Context) { s.elapsed(ctx, gen) }); err != nil {
					return
				}
			}
		}
	}, func(err error) {
		logger.Errorf(tickCtx, "Scheduler.arm ticker err: %+v", err)
	})
}

// disarm cancels the countdown; ticks already queued for it are ignored.
func (s *Scheduler) disarm() {
	if s.stopTicker != nil {
		s.stopTicker()
		s.stopTicker = nil
	}
	if s.countdown != nil {
		s.countdown = nil
		s.dirty = true
	}
	s.gen++
}

func (s *Scheduler) elapsed(ctx context.Context, gen uint64) {
	cd := s.countdown
	if cd == nil || cd.gen != gen || s.state != schedule.StateWaiting {
		return
	}
	s.dirty = true
	if s.queue.Active() == nil && len(s.queue.Valid()) == 0 {
		logger.Infof(ctx, "Scheduler.elapsed nothing left to run")
		s.off()
		return
	}
	if s.now().Sub(cd.startedAt) < cd.total {
		return
	}
	s.disarm()
	s.activateNext(ctx)
}

// activateNext is the only place a sequence becomes active.
func (s *Scheduler) activateNext(ctx context.Context) {
	s.setState(schedule.StateProcessing)
	if s.queue.Active() != nil {
		return
	}
	valid := s.queue.Valid()
	if len(valid) == 0 {
		logger.Infof(ctx, "Scheduler.activateNext no valid sequence left")
		s.off()
		return
	}
	next := valid[0]

	ctx, span := s.tracer.Start(ctx, "Scheduler.activate", trace.WithAttributes(
		attribute.String("sequence.uuid", next.UUID.String()),
		attribute.String("sequence.cmd", next.CmdStr),
	))
	defer span.End()

	err := next.Activate(func(actor, cmdStr string) error {
		return s.actor.Send(ctx, &schedule.Command{
			Actor:     actor,
			CmdStr:    cmdStr,
			TimeLimit: s.opts.DispatchTimeLimit,
		}, s.sequenceReply(next))
	})
	switch {
	case err == nil:
		logger.Infof(ctx, "Scheduler.activateNext sequence: %s cmd: %s", next.UUID, next.FullCommand())
		s.metrics.onActivated(ctx, next)
		s.notifySequence(ctx, schedule.EventActivated, next)
	case errors.Is(err, code.MalformedCommandErr):
		span.RecordError(err)
		next.Fail(code.Msg(err))
		s.reject(ctx, err)
		s.metrics.onTerminal(ctx, next)
		s.notifySequence(ctx, schedule.EventTerminal, next)
		s.onTerminal(ctx, next)
	default:
		span.RecordError(err)
		logger.Errorf(ctx, "Scheduler.activateNext send sequence: %s err: %+v", next.UUID, err)
		s.reject(ctx, err)
		s.off()
	}
}

func (s *Scheduler) sequenceReply(seq *sequence.Sequence) schedule.ReplyFunc {
	return func(reply *sequence.Reply) {
		if err := s.post(context.Background(), func(ctx context.Context) {
			s.onReply(ctx, seq, reply)
		}); err != nil {
			logger.Warnf(context.Background(), "Scheduler drop reply for sequence: %s err: %+v", seq.UUID, err)
		}
	}
}

func (s *Scheduler) onReply(ctx context.Context, seq *sequence.Sequence, reply *sequence.Reply) {
	id := seq.ID
	terminal, err := seq.ApplyReply(reply)
	if err != nil {
		logger.Warnf(ctx, "Scheduler.onReply sequence: %s code: %s err: %+v", seq.UUID, reply.Code, err)
	}
	if seq.ID != id {
		s.notifySequence(ctx, schedule.EventRegistered, seq)
	}
	if !terminal {
		return
	}
	logger.Infof(ctx, "Scheduler.onReply sequence: %s id: %d %s", seq.UUID, seq.ID, seq.Status)
	s.metrics.onTerminal(ctx, seq)
	s.notifySequence(ctx, schedule.EventTerminal, seq)
	s.onTerminal(ctx, seq)
}

func (s *Scheduler) onTerminal(ctx context.Context, seq *sequence.Sequence) {
	switch {
	case s.state == schedule.StateOff:
		s.abortRequested = false
		s.interrupt = schedule.InterruptNone
	case s.abortRequested:
		logger.Infof(ctx, "Scheduler.onTerminal %s requested, stop after sequence: %s", s.interrupt, seq.UUID)
		s.off()
	case len(s.queue.Valid()) == 0:
		logger.Infof(ctx, "Scheduler.onTerminal queue exhausted")
		s.off()
	default:
		s.arm(s.opts.MinDelay)
		s.setState(schedule.StateWaiting)
	}
}

func (s *Scheduler) notifySequence(ctx context.Context, ev schedule.Event, seq *sequence.Sequence) {
	if s.observer == nil {
		return
	}
	s.observer.OnSequence(ctx, &schedule.SequenceEvent{
		Event:     ev,
		Interrupt: s.interrupt,
		Sequence:  seq.View(),
	})
}

func (s *Scheduler) status() *schedule.Status {
	st := &schedule.Status{
		State:          s.state,
		AbortRequested: s.abortRequested,
		Interrupt:      s.interrupt,
		DelayMinutes:   s.opts.DelayMinutes,
	}
	if cd := s.countdown; cd != nil {
		st.Countdown = &schedule.Countdown{
			StartedAt: cd.startedAt,
			StartAt:   cd.startedAt.Add(cd.total),
			Elapsed:   min(max(s.now().Sub(cd.startedAt), 0), cd.total),
			Total:     cd.total,
		}
	}
	if c, ok := s.actor.(interface{ Connected() bool }); ok {
		st.ActorConnected = c.Connected()
	}
	return st
}

func (s *Scheduler) snapshot() *schedule.Snapshot {
	return &schedule.Snapshot{
		Status:    *s.status(),
		Sequences: s.queue.Views(),
	}
}

func (s *Scheduler) flush(ctx context.Context) {
	if !s.dirty || s.observer == nil {
		return
	}
	s.dirty = false
	s.observer.OnChanged(ctx, s.snapshot())
}
