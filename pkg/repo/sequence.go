package repo

import (
	"context"

	"github.com/scienceol/seqpanel/pkg/common"
	"github.com/scienceol/seqpanel/pkg/repo/model"
)

type SequenceRepo interface {
	// UpsertSequence creates the record or overwrites the one with the same uuid.
	UpsertSequence(ctx context.Context, seq *model.Sequence) error
	GetSequenceByID(ctx context.Context, sequenceID int64) (*model.Sequence, error)
	MaxSequenceID(ctx context.Context) (int64, error)
	ListSequences(ctx context.Context, console string, page *common.PageReq) (*common.PageResp[[]*model.Sequence], error)

	GetAnnotations(ctx context.Context, visitStart, visitEnd int64) ([]*model.Annotation, error)
	// CreateAnnotations never overwrites an annotation that already has notes.
	CreateAnnotations(ctx context.Context, annotations []*model.Annotation) error
}
