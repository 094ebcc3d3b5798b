package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/scienceol/seqpanel/pkg/common/code"
	"github.com/scienceol/seqpanel/pkg/core/schedule"
	"github.com/scienceol/seqpanel/pkg/core/sequence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeActor struct {
	mu      sync.Mutex
	sent    []*schedule.Command
	replies []schedule.ReplyFunc
	err     error
	// autoReply answers every command from another goroutine
	autoReply sequence.Code
}

func (f *fakeActor) Send(_ context.Context, cmd *schedule.Command, onReply schedule.ReplyFunc) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, cmd)
	f.replies = append(f.replies, onReply)
	if f.autoReply != "" {
		c := f.autoReply
		go onReply(&sequence.Reply{Actor: cmd.Actor, Code: c})
	}
	return nil
}

func (f *fakeActor) Connected() bool { return true }

func (f *fakeActor) commands() []*schedule.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*schedule.Command(nil), f.sent...)
}

type fakeOperator struct {
	deny    bool
	prompts []schedule.Prompt
	details []*schedule.PromptContext
	reports []error
}

func (f *fakeOperator) Confirm(_ context.Context, prompt schedule.Prompt, detail *schedule.PromptContext) bool {
	f.prompts = append(f.prompts, prompt)
	f.details = append(f.details, detail)
	return !f.deny
}

func (f *fakeOperator) Report(_ context.Context, err error) {
	f.reports = append(f.reports, err)
}

type fakeObserver struct {
	mu      sync.Mutex
	changed int
	events  []*schedule.SequenceEvent
}

func (f *fakeObserver) OnChanged(context.Context, *schedule.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changed++
}

func (f *fakeObserver) OnSequence(_ context.Context, ev *schedule.SequenceEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
}

type clock struct {
	t time.Time
}

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

type harness struct {
	s        *Scheduler
	queue    *sequence.Queue
	seqs     []*sequence.Sequence
	actor    *fakeActor
	operator *fakeOperator
	observer *fakeObserver
	clock    *clock
}

func newHarness(t *testing.T, cmds ...string) *harness {
	t.Helper()
	h := &harness{
		queue:    sequence.NewQueue(),
		actor:    &fakeActor{},
		operator: &fakeOperator{},
		observer: &fakeObserver{},
		clock:    &clock{t: time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)},
	}
	for i, c := range cmds {
		seq := sequence.New(sequence.Info{Name: string(rune('A' + i)), CmdStr: c})
		require.NoError(t, seq.Validate(true))
		h.seqs = append(h.seqs, seq)
	}
	h.queue.Append(h.seqs...)
	h.s = New(h.queue, h.actor, h.operator, DefaultOptions(),
		WithClock(h.clock.now), WithObserver(h.observer))
	return h
}

// tick delivers a countdown poll for the current countdown.
func (h *harness) tick(ctx context.Context) {
	if cd := h.s.countdown; cd != nil {
		h.s.elapsed(ctx, cd.gen)
	}
}

func (h *harness) reply(ctx context.Context, seq *sequence.Sequence, c sequence.Code, kws ...sequence.Keyword) {
	h.s.onReply(ctx, seq, &sequence.Reply{Actor: "iic", Code: c, Keywords: kws})
}

func (h *harness) startAndActivate(t *testing.T, ctx context.Context) {
	t.Helper()
	require.NoError(t, h.s.start(ctx))
	h.clock.advance(h.s.opts.MinDelay)
	h.tick(ctx)
	require.Equal(t, schedule.StateProcessing, h.s.state)
}

func TestSchedulerDrain(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "iic bias duplicate=1", "iic dark exptime=60")
	a, b := h.seqs[0], h.seqs[1]

	require.NoError(t, h.s.start(ctx))
	assert.Equal(t, schedule.StateWaiting, h.s.state)
	require.Equal(t, []schedule.Prompt{schedule.PromptStart}, h.operator.prompts)
	assert.Equal(t, h.clock.t.Add(2*time.Second), h.operator.details[0].StartAt)

	h.clock.advance(time.Second)
	h.tick(ctx)
	assert.Equal(t, schedule.StateWaiting, h.s.state)
	assert.Empty(t, h.actor.commands())
	st := h.s.status()
	require.NotNil(t, st.Countdown)
	assert.Equal(t, time.Second, st.Countdown.Elapsed)
	assert.Equal(t, 2*time.Second, st.Countdown.Total)

	h.clock.advance(time.Second)
	h.tick(ctx)
	assert.Equal(t, schedule.StateProcessing, h.s.state)
	assert.Equal(t, sequence.StatusActive, a.Status)
	assert.Equal(t, sequence.StatusValid, b.Status)
	cmds := h.actor.commands()
	require.Len(t, cmds, 1)
	assert.Equal(t, "iic", cmds[0].Actor)
	assert.Equal(t, `bias duplicate=1 name="A"`, cmds[0].CmdStr)
	assert.Equal(t, DefaultOptions().DispatchTimeLimit, cmds[0].TimeLimit)

	h.reply(ctx, a, sequence.CodeFinished)
	assert.Equal(t, sequence.StatusFinished, a.Status)
	assert.Equal(t, schedule.StateWaiting, h.s.state)
	require.NotNil(t, h.s.countdown)
	assert.Equal(t, h.s.opts.MinDelay, h.s.countdown.total)

	h.clock.advance(2 * time.Second)
	h.tick(ctx)
	assert.Equal(t, sequence.StatusActive, b.Status)

	h.reply(ctx, b, sequence.CodeFinished)
	assert.Equal(t, schedule.StateOff, h.s.state)
	assert.Nil(t, h.s.countdown)
	assert.Empty(t, h.operator.reports)
}

func TestSchedulerConfiguredDelayOnlyFirst(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "iic bias", "iic dark")
	require.NoError(t, h.s.setDelay(ctx, 5))
	require.NoError(t, h.s.start(ctx))
	require.Equal(t, 5*time.Minute, h.s.countdown.total)

	h.clock.advance(4 * time.Minute)
	h.tick(ctx)
	assert.Equal(t, sequence.StatusValid, h.seqs[0].Status)
	h.clock.advance(time.Minute)
	h.tick(ctx)
	assert.Equal(t, sequence.StatusActive, h.seqs[0].Status)

	h.reply(ctx, h.seqs[0], sequence.CodeFailed)
	require.NotNil(t, h.s.countdown)
	assert.Equal(t, h.s.opts.MinDelay, h.s.countdown.total)
}

func TestSchedulerSetDelayRange(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "iic bias")
	require.ErrorIs(t, h.s.setDelay(ctx, -1), code.DelayRangeErr)
	require.ErrorIs(t, h.s.setDelay(ctx, 14401), code.DelayRangeErr)
	require.NoError(t, h.s.setDelay(ctx, 14400))
	assert.Equal(t, 14400, h.s.status().DelayMinutes)
	assert.Len(t, h.operator.reports, 2)
}

func TestSchedulerAbortLatch(t *testing.T) {
	tests := []struct {
		name      string
		control   func(s *Scheduler, ctx context.Context) error
		cmd       string
		interrupt schedule.Interrupt
		result    sequence.Code
	}{
		{"abort", func(s *Scheduler, ctx context.Context) error {
			return s.control(ctx, schedule.PromptAbort, schedule.InterruptAbort, s.opts.AbortCmd)
		}, "abortExposure", schedule.InterruptAbort, sequence.CodeFailed},
		{"finish", func(s *Scheduler, ctx context.Context) error {
			return s.control(ctx, schedule.PromptFinish, schedule.InterruptFinish, s.opts.FinishCmd)
		}, "finishExposure", schedule.InterruptFinish, sequence.CodeFinished},
		{"finish now", func(s *Scheduler, ctx context.Context) error {
			return s.control(ctx, schedule.PromptFinishNow, schedule.InterruptFinishNow, s.opts.FinishNowCmd)
		}, "finishExposure now", schedule.InterruptFinishNow, sequence.CodeFinished},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			h := newHarness(t, "iic bias", "iic dark")
			h.startAndActivate(t, ctx)

			require.NoError(t, tt.control(h.s, ctx))
			assert.True(t, h.s.abortRequested)
			assert.Equal(t, schedule.StateProcessing, h.s.state)
			cmds := h.actor.commands()
			require.Len(t, cmds, 2)
			assert.Equal(t, "iic", cmds[1].Actor)
			assert.Equal(t, tt.cmd, cmds[1].CmdStr)
			assert.Equal(t, DefaultOptions().ControlTimeLimit, cmds[1].TimeLimit)

			h.reply(ctx, h.seqs[0], tt.result)
			assert.Equal(t, schedule.StateOff, h.s.state)
			assert.False(t, h.s.abortRequested)
			assert.Equal(t, sequence.StatusValid, h.seqs[1].Status)

			last := h.observer.events[len(h.observer.events)-1]
			assert.Equal(t, schedule.EventTerminal, last.Event)
			assert.Equal(t, tt.interrupt, last.Interrupt)
		})
	}
}

func TestSchedulerControlWithoutActive(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "iic bias")
	err := h.s.control(ctx, schedule.PromptAbort, schedule.InterruptAbort, h.s.opts.AbortCmd)
	require.ErrorIs(t, err, code.NoActiveSequenceErr)
	assert.False(t, h.s.abortRequested)
	assert.Empty(t, h.actor.commands())
	assert.Empty(t, h.operator.prompts)
	require.Len(t, h.operator.reports, 1)
}

func TestSchedulerStartGuards(t *testing.T) {
	ctx := context.Background()

	t.Run("no valid sequence", func(t *testing.T) {
		h := newHarness(t)
		h.queue.Append(sequence.New(sequence.Info{CmdStr: "iic bias"}))
		require.ErrorIs(t, h.s.start(ctx), code.NoValidSequenceErr)
		assert.Equal(t, schedule.StateOff, h.s.state)
		assert.Empty(t, h.operator.prompts)
		require.Len(t, h.operator.reports, 1)
	})

	t.Run("not confirmed", func(t *testing.T) {
		h := newHarness(t, "iic bias")
		h.operator.deny = true
		require.ErrorIs(t, h.s.start(ctx), code.NotConfirmedErr)
		assert.Equal(t, schedule.StateOff, h.s.state)
		assert.Nil(t, h.s.countdown)
	})

	t.Run("already running", func(t *testing.T) {
		h := newHarness(t, "iic bias")
		require.NoError(t, h.s.start(ctx))
		require.ErrorIs(t, h.s.start(ctx), code.SchedulerRunningErr)
	})

	t.Run("resume active", func(t *testing.T) {
		h := newHarness(t, "iic bias", "iic dark")
		h.startAndActivate(t, ctx)
		require.NoError(t, h.s.stop(ctx))
		assert.Equal(t, sequence.StatusActive, h.seqs[0].Status)

		require.NoError(t, h.s.start(ctx))
		assert.Equal(t, schedule.StateProcessing, h.s.state)
		assert.Nil(t, h.s.countdown)
		assert.Equal(t, "A", h.operator.details[len(h.operator.details)-1].Sequence.Name)

		h.reply(ctx, h.seqs[0], sequence.CodeFinished)
		assert.Equal(t, schedule.StateWaiting, h.s.state)
	})
}

func TestSchedulerStopCancelsCountdown(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "iic bias")
	require.NoError(t, h.s.start(ctx))
	stale := h.s.countdown.gen

	require.NoError(t, h.s.stop(ctx))
	assert.Equal(t, schedule.StateOff, h.s.state)
	assert.Nil(t, h.s.countdown)

	h.clock.advance(time.Minute)
	h.s.elapsed(ctx, stale)
	assert.Equal(t, sequence.StatusValid, h.seqs[0].Status)
	assert.Empty(t, h.actor.commands())

	// a later countdown ignores ticks of the cancelled one
	require.NoError(t, h.s.start(ctx))
	h.clock.advance(time.Minute)
	h.s.elapsed(ctx, stale)
	assert.Equal(t, schedule.StateWaiting, h.s.state)
	assert.Empty(t, h.actor.commands())

	require.ErrorIs(t, newHarness(t).s.stop(ctx), code.SchedulerOffErr)
}

func TestSchedulerStopDuringProcessing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "iic bias", "iic dark")
	h.startAndActivate(t, ctx)
	require.NoError(t, h.s.stop(ctx))

	h.reply(ctx, h.seqs[0], sequence.CodeFinished)
	assert.Equal(t, schedule.StateOff, h.s.state)
	assert.Equal(t, sequence.StatusValid, h.seqs[1].Status)
	assert.Len(t, h.actor.commands(), 1)
}

func TestSchedulerQueueEmptiedDuringCountdown(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "iic bias")
	require.NoError(t, h.s.start(ctx))
	require.NoError(t, h.seqs[0].Validate(false))
	h.tick(ctx)
	assert.Equal(t, schedule.StateOff, h.s.state)
}

func TestSchedulerSendFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "iic bias")
	h.actor.err = code.ActorNotConnectedErr
	require.NoError(t, h.s.start(ctx))
	h.clock.advance(2 * time.Second)
	h.tick(ctx)

	assert.Equal(t, schedule.StateOff, h.s.state)
	assert.Equal(t, sequence.StatusValid, h.seqs[0].Status)
	require.Len(t, h.operator.reports, 1)
	assert.True(t, errors.Is(h.operator.reports[0], code.ActorNotConnectedErr))
}

func TestSchedulerMalformedAtActivation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "iic bias", "iic dark")
	h.seqs[0].CmdStr = "iic"
	require.NoError(t, h.s.start(ctx))
	h.clock.advance(2 * time.Second)
	h.tick(ctx)

	assert.Equal(t, sequence.StatusFailed, h.seqs[0].Status)
	assert.Equal(t, sequence.StatusValid, h.seqs[1].Status)
	assert.Equal(t, schedule.StateWaiting, h.s.state)
	require.Len(t, h.operator.reports, 1)
	assert.ErrorIs(t, h.operator.reports[0], code.MalformedCommandErr)
	assert.Empty(t, h.actor.commands())

	h.clock.advance(2 * time.Second)
	h.tick(ctx)
	assert.Equal(t, sequence.StatusActive, h.seqs[1].Status)
}

func TestSchedulerTimeoutReply(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "iic bias")
	h.startAndActivate(t, ctx)
	h.reply(ctx, h.seqs[0], sequence.CodeTimeout)
	assert.Equal(t, sequence.StatusFailed, h.seqs[0].Status)
	assert.NotEmpty(t, h.seqs[0].Anomalies)
	assert.Equal(t, schedule.StateOff, h.s.state)
}

func TestSchedulerEndToEnd(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "iic bias duplicate=3", "iic dark exptime=60")
	h.seqs[0].Comments = "warm up"
	a, b := h.seqs[0], h.seqs[1]

	h.startAndActivate(t, ctx)
	cmds := h.actor.commands()
	require.Len(t, cmds, 1)
	assert.Equal(t, `bias duplicate=3 name="A" comments="warm up"`, cmds[0].CmdStr)

	h.reply(ctx, a, sequence.CodeInform, sequence.Keyword{
		Name: sequence.KeySequence, Values: []string{"17", "biases", "bias duplicate=3", "A", "warm up"},
	})
	assert.EqualValues(t, 17, a.ID)

	h.reply(ctx, a, sequence.CodeInform, sequence.Keyword{
		Name: sequence.KeySubCommand, Values: []string{"17", "0", "-1", ""},
	})
	require.Contains(t, a.SubCommands, 0)
	assert.Equal(t, sequence.StatusActive, a.SubCommands[0].Status)

	h.reply(ctx, a, sequence.CodeFinished, sequence.Keyword{Name: "fileids", Values: []string{"900", "0", "1"}})
	assert.Equal(t, sequence.StatusFinished, a.Status)
	assert.Equal(t, sequence.StatusActive, a.SubCommands[0].Status)
	assert.Equal(t, sequence.NoObservedUnit, a.SubCommands[0].ObservedUnit)

	h.clock.advance(2 * time.Second)
	h.tick(ctx)
	assert.Equal(t, sequence.StatusFinished, a.Status)
	assert.Equal(t, sequence.StatusActive, b.Status)

	var got []schedule.Event
	for _, ev := range h.observer.events {
		got = append(got, ev.Event)
	}
	assert.Equal(t, []schedule.Event{
		schedule.EventActivated, schedule.EventRegistered, schedule.EventTerminal, schedule.EventActivated,
	}, got)
}

func TestSchedulerLoop(t *testing.T) {
	queue := sequence.NewQueue()
	for _, c := range []string{"iic bias", "iic dark"} {
		seq := sequence.New(sequence.Info{CmdStr: c})
		require.NoError(t, seq.Validate(true))
		queue.Append(seq)
	}
	actor := &fakeActor{autoReply: sequence.CodeFinished}
	observer := &fakeObserver{}
	s := New(queue, actor, &fakeOperator{}, &Options{
		MinDelay:     20 * time.Millisecond,
		PollInterval: 5 * time.Millisecond,
	}, WithObserver(observer))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx)
	}()

	require.NoError(t, s.Start(ctx))
	require.Eventually(t, func() bool {
		st, err := s.Status(ctx)
		return err == nil && st.State == schedule.StateOff && len(actor.commands()) == 2
	}, 5*time.Second, 10*time.Millisecond)

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Sequences, 2)
	for _, v := range snap.Sequences {
		assert.Equal(t, sequence.StatusFinished, v.Status)
	}
	assert.True(t, snap.Status.ActorConnected)

	err = s.Do(ctx, func(context.Context, *sequence.Queue) error { panic("boom") })
	require.Error(t, err)

	observer.mu.Lock()
	assert.Positive(t, observer.changed)
	observer.mu.Unlock()

	cancel()
	<-done
	require.ErrorIs(t, s.Start(context.Background()), code.SchedulerClosedErr)
	require.ErrorIs(t, s.Run(context.Background()), code.SchedulerRunningErr)
}
