// Package sink delivers evaluated alert batches to downstream consumers.
package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/smartcost/backend/internal/alerting"
	"github.com/smartcost/backend/internal/model"
)

// Batch is the alert list produced by one evaluation of one subscription.
type Batch struct {
	SubscriptionID string             `json:"subscription_id"`
	EvaluatedAt    time.Time          `json:"evaluated_at"`
	Alerts         []model.CostAlert  `json:"alerts"`
	Summary        model.AlertSummary `json:"summary"`
}

// NewBatch builds a batch stamped now.
func NewBatch(subscriptionID string, alerts []model.CostAlert) Batch {
	if alerts == nil {
		alerts = []model.CostAlert{}
	}
	return Batch{
		SubscriptionID: subscriptionID,
		EvaluatedAt:    time.Now().UTC(),
		Alerts:         alerts,
		Summary:        alerting.Summarize(alerts),
	}
}

// Empty reports whether the batch carries no alerts.
func (b Batch) Empty() bool {
	return len(b.Alerts) == 0
}

// Sink receives alert batches.
type Sink interface {
	Name() string
	Publish(ctx context.Context, batch Batch) error
}

// Fanout publishes every batch to all of its sinks. Empty batches are dropped.
type Fanout struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewFanout creates a Fanout over sinks.
func NewFanout(logger *slog.Logger, sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks, logger: logger}
}

func (f *Fanout) Name() string { return "fanout" }

// Len returns the number of sinks.
func (f *Fanout) Len() int { return len(f.sinks) }

// Publish sends the batch to every sink and joins their errors. One failing
// sink does not stop delivery to the others.
func (f *Fanout) Publish(ctx context.Context, batch Batch) error {
	if batch.Empty() {
		return nil
	}

	var errs []error
	for _, s := range f.sinks {
		if err := s.Publish(ctx, batch); err != nil {
			f.logger.Error("alert sink publish failed",
				"sink", s.Name(),
				"subscription", batch.SubscriptionID,
				"alerts", len(batch.Alerts),
				"error", err,
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		f.logger.Info("alert batch published",
			"sink", s.Name(),
			"subscription", batch.SubscriptionID,
			"alerts", len(batch.Alerts),
		)
	}
	return errors.Join(errs...)
}
