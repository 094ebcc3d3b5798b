package model

import (
	"time"

	"gorm.io/datatypes"
)

// 执行结果标记
const (
	FlagPending  = -1
	FlagOK       = 0
	FlagFailed   = 1
	FlagAborted  = 2
	FlagFinished = 3
)

var flagText = map[int]string{
	FlagOK:       "OK",
	FlagFailed:   "FAILED",
	FlagAborted:  "aborted",
	FlagFinished: "finished",
}

func FlagText(flag int) string {
	if t, ok := flagText[flag]; ok {
		return t
	}
	return ""
}

// Sequence is one queue row as recorded once the actor acknowledged it or
// once it reached a terminal state. UUID is the console side identity.
type Sequence struct {
	BaseModel
	Console     string         `gorm:"index" json:"console"`
	SequenceID  int64          `gorm:"index" json:"sequence_id"`
	SeqType     string         `json:"sequence_type"`
	Name        string         `json:"name"`
	Comments    string         `json:"comments"`
	CmdStr      string         `json:"cmd_str"`
	Status      string         `json:"status"`
	StatusFlag  int            `json:"status_flag"`
	CmdOutput   string         `json:"cmd_output"`
	Anomalies   string         `json:"anomalies"`
	SubCommands datatypes.JSON `json:"sub_commands"`
	VisitStart  int64          `json:"visit_start"`
	VisitEnd    int64          `json:"visit_end"`
	Operator    string         `json:"operator"`
	FinishedAt  *time.Time     `json:"finished_at"`
}

func (*Sequence) TableName() string {
	return "seqpanel_sequence"
}
