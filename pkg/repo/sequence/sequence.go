package sequence

import (
	"context"
	"errors"

	"github.com/scienceol/seqpanel/pkg/common"
	"github.com/scienceol/seqpanel/pkg/common/code"
	"github.com/scienceol/seqpanel/pkg/middleware/db"
	"github.com/scienceol/seqpanel/pkg/middleware/logger"
	"github.com/scienceol/seqpanel/pkg/repo"
	"github.com/scienceol/seqpanel/pkg/repo/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type sequenceImpl struct {
	*db.Datastore
}

func New() repo.SequenceRepo {
	return &sequenceImpl{Datastore: db.DB()}
}

func (s *sequenceImpl) UpsertSequence(ctx context.Context, seq *model.Sequence) error {
	err := s.DBWithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "uuid"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"sequence_id", "seq_type", "name", "comments", "cmd_str", "status", "status_flag",
			"cmd_output", "anomalies", "sub_commands", "visit_start", "visit_end", "finished_at", "updated_at",
		}),
		// 乱序到达的旧状态不覆盖新状态
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "seqpanel_sequence.updated_at <= excluded.updated_at"},
		}},
	}).Create(seq).Error
	if err != nil {
		logger.Errorf(ctx, "UpsertSequence err: %+v, uuid: %s", err, seq.UUID)
		return code.CreateDataErr.WithErr(err)
	}
	return nil
}

func (s *sequenceImpl) GetSequenceByID(ctx context.Context, sequenceID int64) (*model.Sequence, error) {
	seq := &model.Sequence{}
	err := s.DBWithContext(ctx).
		Where("sequence_id = ?", sequenceID).
		Order("updated_at desc").
		First(seq).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, code.RecordNotFound.WithMsgf("sequence %d", sequenceID)
		}
		logger.Errorf(ctx, "GetSequenceByID err: %+v, id: %d", err, sequenceID)
		return nil, code.QueryRecordErr.WithErr(err)
	}
	return seq, nil
}

func (s *sequenceImpl) MaxSequenceID(ctx context.Context) (int64, error) {
	var maxID *int64
	if err := s.DBWithContext(ctx).
		Model(&model.Sequence{}).
		Select("max(sequence_id)").
		Scan(&maxID).Error; err != nil {
		logger.Errorf(ctx, "MaxSequenceID err: %+v", err)
		return 0, code.QueryRecordErr.WithErr(err)
	}
	if maxID == nil {
		return 0, nil
	}
	return *maxID, nil
}

func (s *sequenceImpl) ListSequences(ctx context.Context, console string, page *common.PageReq) (*common.PageResp[[]*model.Sequence], error) {
	page.Normalize()
	query := s.DBWithContext(ctx).Model(&model.Sequence{})
	if console != "" {
		query = query.Where("console = ?", console)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		logger.Errorf(ctx, "ListSequences count err: %+v", err)
		return nil, code.QueryRecordErr.WithErr(err)
	}

	datas := make([]*model.Sequence, 0, page.PageSize)
	if err := query.
		Order("id desc").
		Offset(page.Offset()).
		Limit(page.PageSize).
		Find(&datas).Error; err != nil {
		logger.Errorf(ctx, "ListSequences find err: %+v", err)
		return nil, code.QueryRecordErr.WithErr(err)
	}

	return &common.PageResp[[]*model.Sequence]{
		Total:    total,
		Page:     page.Page,
		PageSize: page.PageSize,
		Data:     datas,
	}, nil
}

func (s *sequenceImpl) GetAnnotations(ctx context.Context, visitStart, visitEnd int64) ([]*model.Annotation, error) {
	datas := make([]*model.Annotation, 0)
	if err := s.DBWithContext(ctx).
		Where("visit_id between ? and ?", visitStart, visitEnd).
		Order("visit_id, camera").
		Find(&datas).Error; err != nil {
		logger.Errorf(ctx, "GetAnnotations err: %+v", err)
		return nil, code.QueryRecordErr.WithErr(err)
	}
	return datas, nil
}

func (s *sequenceImpl) CreateAnnotations(ctx context.Context, annotations []*model.Annotation) error {
	if len(annotations) == 0 {
		return nil
	}
	err := s.DBWithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "visit_id"}, {Name: "camera"}},
		DoUpdates: clause.AssignmentColumns([]string{"data_flag", "notes", "operator", "updated_at"}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Eq{Column: clause.Column{Table: (&model.Annotation{}).TableName(), Name: "notes"}, Value: ""},
		}},
	}).Create(&annotations).Error
	if err != nil {
		logger.Errorf(ctx, "CreateAnnotations err: %+v", err)
		return code.CreateDataErr.WithErr(err)
	}
	return nil
}
