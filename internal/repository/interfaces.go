// Package repository defines data access interfaces.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/smartcost/backend/internal/model"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// CostRecordRepository defines cost record data access methods.
type CostRecordRepository interface {
	CreateBatch(ctx context.Context, records []model.CostRecord) error
	ListByDateRange(ctx context.Context, filter model.CostFilter) ([]model.CostRecord, error)
	ListSubscriptions(ctx context.Context) ([]string, error)
}

// ThresholdRepository defines threshold data access methods. It also serves
// as the alerting engine's threshold provider.
type ThresholdRepository interface {
	ListThresholds(ctx context.Context) ([]model.CostThreshold, error)
	GetByID(ctx context.Context, id string) (*model.CostThreshold, error)
	Create(ctx context.Context, t *model.CostThreshold) error
	Update(ctx context.Context, t *model.CostThreshold) error
	Delete(ctx context.Context, id string) error
	MarkTriggered(ctx context.Context, ids []string, at time.Time) error
}
