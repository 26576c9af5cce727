// Package notify hands defect captures to the photo-capture workflow.
package notify

import (
	"context"
	"log/slog"

	"github.com/vbonduro/sitecheck/internal/inspection"
)

type Publisher interface {
	PublishDefectCapture(ctx context.Context, capture inspection.DefectCapture) error
	Close()
}

// LogPublisher only logs captures. It is used when no message bus is set up.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) PublishDefectCapture(_ context.Context, c inspection.DefectCapture) error {
	p.logger.Info("defect capture requested",
		"property_id", c.PropertyID,
		"item_id", c.ItemID,
		"evaluation_id", c.EvaluationID,
		"grade", c.Grade,
		"is_similar", c.IsSimilar,
		"return_path", c.ReturnPath,
	)
	return nil
}

func (p *LogPublisher) Close() {}
