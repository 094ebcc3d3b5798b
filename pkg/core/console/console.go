package console

import (
	"context"
	"strconv"
	"strings"

	"github.com/olahol/melody"
	"github.com/scienceol/seqpanel/pkg/common"
	"github.com/scienceol/seqpanel/pkg/common/code"
	"github.com/scienceol/seqpanel/pkg/common/uuid"
	"github.com/scienceol/seqpanel/pkg/core/schedule"
	"github.com/scienceol/seqpanel/pkg/core/schedule/scheduler"
	"github.com/scienceol/seqpanel/pkg/core/sequence"
	"github.com/scienceol/seqpanel/pkg/core/template"
	"github.com/scienceol/seqpanel/pkg/repo/model"
)

type Service interface {
	// 队列
	Snapshot(ctx context.Context) (*schedule.Snapshot, error)
	AddSequence(ctx context.Context, req *AddReq) ([]*sequence.View, error)
	Validate(ctx context.Context, req *ValidateReq) (*CountResp, error)
	Move(ctx context.Context, req *MoveReq) error
	Remove(ctx context.Context, req *UUIDsReq) (*CountResp, error)
	ClearDone(ctx context.Context) (*CountResp, error)
	Copy(ctx context.Context, req *UUIDsReq) (*CountResp, error)
	Paste(ctx context.Context, req *PasteReq) ([]*sequence.View, error)
	LoadScript(ctx context.Context, req *ScriptReq) (*CountResp, error)
	SaveScript(ctx context.Context) ([]byte, error)

	// 调度
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Abort(ctx context.Context) error
	Finish(ctx context.Context) error
	FinishNow(ctx context.Context) error
	SetDelay(ctx context.Context, req *DelayReq) error
	Status(ctx context.Context) (*schedule.Status, error)

	// 历史和标注
	Templates(ctx context.Context) []*template.Template
	Previous(ctx context.Context, req *PreviousReq) (*PreviousResp, error)
	History(ctx context.Context, req *common.PageReq) (*common.PageResp[[]*model.Sequence], error)
	Annotations(ctx context.Context, req *PreviousReq) (*AnnotationResp, error)
	Annotate(ctx context.Context, req *AnnotateReq) (*CountResp, error)

	OnWSConnect(ctx context.Context, s *melody.Session) error
	OnWSMsg(ctx context.Context, s *melody.Session, b []byte) error

	// UpdateOptions changes the scheduler settings, e.g. on a dynamic config reload.
	UpdateOptions(ctx context.Context, f func(o *scheduler.Options)) error
	Run(ctx context.Context) error
	Close(ctx context.Context)
}

type WSAction string

const (
	FetchSnapshot WSAction = "fetch_snapshot"
	Ping          WSAction = "ping"
	Pong          WSAction = "pong"
)

type WSMsg struct {
	Action WSAction `json:"action"`
}

// AddReq adds one row. With PreviousID set the row is rebuilt from the
// history store, otherwise from the template named by SeqType.
type AddReq struct {
	SeqType    string            `json:"seq_type"`
	Name       string            `json:"name"`
	Comments   string            `json:"comments"`
	CmdStr     string            `json:"cmd_str"`
	Values     map[string]string `json:"values"`
	PreviousID int64             `json:"previous_id"`
	// 插入位置, 为空时追加到队尾
	Index *int `json:"index"`
	Valid bool `json:"valid"`
}

type ValidateReq struct {
	UUIDs []uuid.UUID `json:"uuids" binding:"required"`
	Valid bool        `json:"valid"`
}

type MoveReq struct {
	UUID uuid.UUID `json:"uuid" binding:"required"`
	Up   bool      `json:"up"`
}

type UUIDsReq struct {
	UUIDs []uuid.UUID `json:"uuids" binding:"required"`
}

type PasteReq struct {
	Index *int `json:"index"`
}

type ScriptReq struct {
	Content string `json:"content" binding:"required"`
}

type DelayReq struct {
	Minutes int `json:"minutes"`
}

type CountResp struct {
	Count int `json:"count"`
}

type PreviousReq struct {
	SequenceID int64 `json:"sequence_id" form:"sequence_id" uri:"sequence_id"`
}

type PreviousResp struct {
	SequenceID    int64  `json:"sequence_id"`
	MaxSequenceID int64  `json:"max_sequence_id"`
	SeqType       string `json:"sequence_type"`
	Name          string `json:"name"`
	Comments      string `json:"comments"`
	CmdStr        string `json:"cmd_str"`
	Status        string `json:"status"`
	Output        string `json:"output"`
}

type AnnotationItem struct {
	VisitID  int64  `json:"visit_id"`
	Camera   string `json:"camera"`
	DataFlag string `json:"data_flag"`
	Notes    string `json:"notes"`
	Locked   bool   `json:"locked"`
}

type AnnotationResp struct {
	Sequence   *PreviousResp     `json:"sequence"`
	VisitStart int64             `json:"visit_start"`
	VisitEnd   int64             `json:"visit_end"`
	Items      []*AnnotationItem `json:"items"`
}

type AnnotateReq struct {
	Items []*AnnotationItem `json:"items" binding:"required"`
}

// QueueMsg is pushed to operator UIs on every queue or scheduler change.
// Version orders messages that may arrive out of order.
type QueueMsg struct {
	Version  uint64             `json:"version"`
	Snapshot *schedule.Snapshot `json:"snapshot"`
}

// OperatorMsg tells operator UIs that an operation needs confirmation or
// was rejected.
type OperatorMsg struct {
	Prompt  schedule.Prompt         `json:"prompt,omitempty"`
	Context *schedule.PromptContext `json:"context,omitempty"`
	Code    code.ErrCode            `json:"code,omitempty"`
	Error   string                  `json:"error,omitempty"`
}

type confirmKey struct{}

// WithConfirm marks the operations run with ctx as confirmed by the
// operator. Unconfirmed operations that need it fail with NotConfirmedErr.
func WithConfirm(ctx context.Context, confirmed bool) context.Context {
	return context.WithValue(ctx, confirmKey{}, confirmed)
}

func Confirmed(ctx context.Context) bool {
	v, _ := ctx.Value(confirmKey{}).(bool)
	return v
}

var dataFlags = map[string]int{"OK": 0, "BAD": 1}

// ParseDataFlag accepts 0, 1, OK or BAD, case insensitive.
func ParseDataFlag(s string) (int, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if v, ok := dataFlags[s]; ok {
		return v, nil
	}
	if v, err := strconv.Atoi(s); err == nil && (v == 0 || v == 1) {
		return v, nil
	}
	return 0, code.DataFlagErr.WithMsgf("%q is not one of 0, 1, OK, BAD", s)
}

func DataFlagText(flag int) string {
	for k, v := range dataFlags {
		if v == flag {
			return k
		}
	}
	return strconv.Itoa(flag)
}
