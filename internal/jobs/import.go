package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/smartcost/backend/internal/model"
	"github.com/smartcost/backend/internal/provider"
)

// RecordStore persists imported cost records.
type RecordStore interface {
	CreateBatch(ctx context.Context, records []model.CostRecord) error
}

// CostImportJob pulls recent costs from every registered provider.
type CostImportJob struct {
	registry     *provider.Registry
	store        RecordStore
	lookbackDays int
	logger       *slog.Logger
	now          func() time.Time
}

// NewCostImportJob creates a CostImportJob.
func NewCostImportJob(registry *provider.Registry, store RecordStore, lookbackDays int, logger *slog.Logger) *CostImportJob {
	if lookbackDays < 1 {
		lookbackDays = 3
	}
	return &CostImportJob{
		registry:     registry,
		store:        store,
		lookbackDays: lookbackDays,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Run imports from each provider in name order. Re-importing a day overwrites
// it, so late-arriving costs are picked up on the next run.
func (j *CostImportJob) Run(ctx context.Context) error {
	today := model.TruncateDay(j.now())
	req := provider.CostRequest{
		StartDate: today.AddDate(0, 0, -(j.lookbackDays - 1)),
		EndDate:   today.AddDate(0, 0, 1),
	}

	var errs []error
	for _, name := range j.registry.Names() {
		if err := ctx.Err(); err != nil {
			return err
		}
		p, _ := j.registry.Get(name)

		resp, err := p.GetCosts(ctx, req)
		if err != nil {
			j.logger.Error("cost import failed", "provider", name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		if len(resp.Records) == 0 {
			j.logger.Info("cost import returned no records", "provider", name)
			continue
		}

		if err := j.store.CreateBatch(ctx, resp.Records); err != nil {
			j.logger.Error("failed to store imported costs", "provider", name, "error", err)
			errs = append(errs, fmt.Errorf("%s: store: %w", name, err))
			continue
		}

		j.logger.Info("cost import completed",
			"provider", name,
			"records", len(resp.Records),
			"total", resp.TotalAmount.StringFixed(2),
			"currency", resp.Currency,
		)
	}

	return errors.Join(errs...)
}
