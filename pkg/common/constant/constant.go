package constant

import "time"

const (
	MaxMessageSize = 1 << 20
	WSPingPeriod   = 10 * time.Second

	// 调度相关
	MinSequenceDelay   = 2 * time.Second
	CountdownPoll      = 500 * time.Millisecond
	MaxDelayMinutes    = 14400
	DispatchTimeLimit  = 7 * 24 * time.Hour
	ControlTimeLimit   = 5 * time.Second
	ConsoleLockTTL     = 5 * time.Second
	ClipboardTTL       = 24 * time.Hour
	SequenceHistoryKey = "sequence_id"
)
