package console

import (
	"context"
	"fmt"
	"strings"

	"github.com/scienceol/seqpanel/pkg/common"
	"github.com/scienceol/seqpanel/pkg/common/code"
	"github.com/scienceol/seqpanel/pkg/core/console"
	"github.com/scienceol/seqpanel/pkg/core/schedule"
	"github.com/scienceol/seqpanel/pkg/core/sequence"
	"github.com/scienceol/seqpanel/pkg/middleware/auth"
	"github.com/scienceol/seqpanel/pkg/middleware/logger"
	"github.com/scienceol/seqpanel/pkg/repo/model"
	"github.com/scienceol/seqpanel/pkg/utils"
)

func (c *consoleImpl) history() error {
	if c.store == nil {
		return code.QueryRecordErr.WithMsg("history store not configured")
	}
	return nil
}

func (c *consoleImpl) History(ctx context.Context, req *common.PageReq) (*common.PageResp[[]*model.Sequence], error) {
	if err := c.history(); err != nil {
		return nil, err
	}
	return c.store.ListSequences(ctx, c.name, req)
}

// Previous loads a recorded sequence, the latest one when no id is given.
func (c *consoleImpl) Previous(ctx context.Context, req *console.PreviousReq) (*console.PreviousResp, error) {
	if err := c.history(); err != nil {
		return nil, err
	}
	maxID, err := c.store.MaxSequenceID(ctx)
	if err != nil {
		return nil, err
	}
	id := req.SequenceID
	if id <= 0 {
		id = maxID
	}
	if id <= 0 {
		return nil, code.RecordNotFound.WithMsg("no sequence recorded yet")
	}
	seq, err := c.store.GetSequenceByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &console.PreviousResp{
		SequenceID:    seq.SequenceID,
		MaxSequenceID: maxID,
		SeqType:       seq.SeqType,
		Name:          seq.Name,
		Comments:      seq.Comments,
		CmdStr:        sequence.Reformat(seq.CmdStr),
		Status:        model.FlagText(seq.StatusFlag),
		Output:        seq.CmdOutput,
	}, nil
}

func (c *consoleImpl) Annotations(ctx context.Context, req *console.PreviousReq) (*console.AnnotationResp, error) {
	prev, err := c.Previous(ctx, req)
	if err != nil {
		return nil, err
	}
	seq, err := c.store.GetSequenceByID(ctx, prev.SequenceID)
	if err != nil {
		return nil, err
	}
	resp := &console.AnnotationResp{
		Sequence:   prev,
		VisitStart: seq.VisitStart,
		VisitEnd:   seq.VisitEnd,
		Items:      make([]*console.AnnotationItem, 0),
	}
	if seq.VisitStart < 0 {
		return resp, nil
	}
	datas, err := c.store.GetAnnotations(ctx, seq.VisitStart, seq.VisitEnd)
	if err != nil {
		return nil, err
	}
	resp.Items = utils.MapSlice(datas, func(a *model.Annotation) *console.AnnotationItem {
		return &console.AnnotationItem{
			VisitID:  a.VisitID,
			Camera:   a.Camera,
			DataFlag: console.DataFlagText(a.DataFlag),
			Notes:    a.Notes,
			Locked:   a.Notes != "",
		}
	})
	return resp, nil
}

type annotationKey struct {
	visit  int64
	camera string
}

// Annotate records the items carrying notes. Items whose annotation
// already has notes are locked and skipped. A note without a flag is
// flagged OK.
func (c *consoleImpl) Annotate(ctx context.Context, req *console.AnnotateReq) (*console.CountResp, error) {
	if err := c.history(); err != nil {
		return nil, err
	}
	operator := auth.OperatorName(ctx)

	items := make([]*console.AnnotationItem, 0, len(req.Items))
	visitStart, visitEnd := int64(-1), int64(-1)
	for _, it := range req.Items {
		if strings.TrimSpace(it.Notes) == "" {
			continue
		}
		items = append(items, it)
		if visitStart < 0 || it.VisitID < visitStart {
			visitStart = it.VisitID
		}
		visitEnd = max(visitEnd, it.VisitID)
	}
	if len(items) == 0 {
		return &console.CountResp{}, nil
	}

	existing, err := c.store.GetAnnotations(ctx, visitStart, visitEnd)
	if err != nil {
		return nil, err
	}
	locked := make(map[annotationKey]bool, len(existing))
	for _, a := range existing {
		locked[annotationKey{a.VisitID, a.Camera}] = a.Notes != ""
	}

	annotations := make([]*model.Annotation, 0, len(items))
	lines := make([]string, 0, len(items))
	for _, it := range items {
		if locked[annotationKey{it.VisitID, it.Camera}] {
			continue
		}
		flag := 0
		if strings.TrimSpace(it.DataFlag) != "" {
			if flag, err = console.ParseDataFlag(it.DataFlag); err != nil {
				return nil, err
			}
		}
		annotations = append(annotations, &model.Annotation{
			VisitID:  it.VisitID,
			Camera:   it.Camera,
			DataFlag: flag,
			Notes:    strings.TrimSpace(it.Notes),
			Operator: operator,
		})
		lines = append(lines, fmt.Sprintf("visit=%d camera=%s data_flag=%d notes=%q", it.VisitID, it.Camera, flag, it.Notes))
	}
	if len(annotations) == 0 {
		return nil, code.AnnotationLockedErr
	}

	if !c.Confirm(ctx, schedule.PromptAnnotate, &schedule.PromptContext{Detail: strings.Join(lines, "\n")}) {
		return nil, code.NotConfirmedErr.WithMsgf("annotate %d exposures", len(annotations))
	}
	if err := c.store.CreateAnnotations(ctx, annotations); err != nil {
		return nil, err
	}
	logger.Infof(ctx, "console.Annotate operator: %s count: %d", operator, len(annotations))
	return &console.CountResp{Count: len(annotations)}, nil
}
