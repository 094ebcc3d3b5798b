package migrate

import (
	"context"

	"github.com/scienceol/seqpanel/pkg/middleware/db"
	"github.com/scienceol/seqpanel/pkg/middleware/logger"
	"github.com/scienceol/seqpanel/pkg/repo/model"
)

func Table(ctx context.Context) error {
	d := db.DB().DBWithContext(ctx)
	models := []any{
		&model.Sequence{},
		&model.Annotation{},
	}
	for _, m := range models {
		if err := d.AutoMigrate(m); err != nil {
			logger.Errorf(ctx, "migrate table err: %+v", err)
			return err
		}
	}
	logger.Infof(ctx, "migrate %d tables done", len(models))
	return nil
}
