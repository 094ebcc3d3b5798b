package scheduler

import (
	"context"

	"github.com/scienceol/seqpanel/pkg/core/schedule"
	"github.com/scienceol/seqpanel/pkg/core/sequence"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentation = "github.com/scienceol/seqpanel/pkg/core/schedule/scheduler"

type metrics struct {
	activated metric.Int64Counter
	terminal  metric.Int64Counter
	controls  metric.Int64Counter
}

func newMetrics() *metrics {
	meter := otel.Meter(instrumentation)
	m := &metrics{}
	m.activated, _ = meter.Int64Counter("seqpanel.sequence.activated",
		metric.WithDescription("sequences handed to the actor"))
	m.terminal, _ = meter.Int64Counter("seqpanel.sequence.terminal",
		metric.WithDescription("sequences that reached finished or failed"))
	m.controls, _ = meter.Int64Counter("seqpanel.scheduler.controls",
		metric.WithDescription("abort and finish requests sent to the actor"))
	return m
}

func (m *metrics) onActivated(ctx context.Context, seq *sequence.Sequence) {
	if m.activated != nil {
		m.activated.Add(ctx, 1, metric.WithAttributes(attribute.String("seq_type", seq.SeqType)))
	}
}

func (m *metrics) onTerminal(ctx context.Context, seq *sequence.Sequence) {
	if m.terminal != nil {
		m.terminal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("seq_type", seq.SeqType),
			attribute.String("status", string(seq.Status)),
		))
	}
}

func (m *metrics) onControl(ctx context.Context, interrupt schedule.Interrupt) {
	if m.controls != nil {
		m.controls.Add(ctx, 1, metric.WithAttributes(attribute.String("interrupt", string(interrupt))))
	}
}
