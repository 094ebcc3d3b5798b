package scheduler

import (
	"time"

	"github.com/scienceol/seqpanel/pkg/common/constant"
)

type Options struct {
	// DelayMinutes postpones the first activation after Start.
	DelayMinutes int
	// MinDelay is the shortest countdown, used between sequences.
	MinDelay          time.Duration
	PollInterval      time.Duration
	DispatchTimeLimit time.Duration
	ControlTimeLimit  time.Duration
	AbortCmd          string
	FinishCmd         string
	FinishNowCmd      string
}

func DefaultOptions() *Options {
	return &Options{
		MinDelay:          constant.MinSequenceDelay,
		PollInterval:      constant.CountdownPoll,
		DispatchTimeLimit: constant.DispatchTimeLimit,
		ControlTimeLimit:  constant.ControlTimeLimit,
		AbortCmd:          "iic abortExposure",
		FinishCmd:         "iic finishExposure",
		FinishNowCmd:      "iic finishExposure now",
	}
}

func (o *Options) normalize() {
	def := DefaultOptions()
	if o.MinDelay <= 0 {
		o.MinDelay = def.MinDelay
	}
	if o.PollInterval <= 0 {
		o.PollInterval = def.PollInterval
	}
	if o.DispatchTimeLimit <= 0 {
		o.DispatchTimeLimit = def.DispatchTimeLimit
	}
	if o.ControlTimeLimit <= 0 {
		o.ControlTimeLimit = def.ControlTimeLimit
	}
	if o.AbortCmd == "" {
		o.AbortCmd = def.AbortCmd
	}
	if o.FinishCmd == "" {
		o.FinishCmd = def.FinishCmd
	}
	if o.FinishNowCmd == "" {
		o.FinishNowCmd = def.FinishNowCmd
	}
	o.DelayMinutes = max(0, min(o.DelayMinutes, constant.MaxDelayMinutes))
}
