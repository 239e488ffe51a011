package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/smartcost/backend/internal/model"
	"github.com/smartcost/backend/internal/sink"
)

// RecordSource lists stored cost records.
type RecordSource interface {
	ListSubscriptions(ctx context.Context) ([]string, error)
	ListByDateRange(ctx context.Context, filter model.CostFilter) ([]model.CostRecord, error)
}

// AlertEvaluator turns cost records into alerts.
type AlertEvaluator interface {
	EvaluateAlerts(ctx context.Context, records []model.CostRecord) ([]model.CostAlert, error)
}

// TriggerRecorder stores the fact that thresholds fired.
type TriggerRecorder interface {
	MarkTriggered(ctx context.Context, ids []string, at time.Time) error
}

// AlertJob evaluates every subscription's recent costs and publishes the alerts.
type AlertJob struct {
	records      RecordSource
	evaluator    AlertEvaluator
	triggers     TriggerRecorder
	sink         sink.Sink
	lookbackDays int
	concurrency  int
	logger       *slog.Logger
	now          func() time.Time
}

// AlertJobConfig configures an AlertJob.
type AlertJobConfig struct {
	LookbackDays int
	Concurrency  int
}

// NewAlertJob creates an AlertJob. triggers may be nil when thresholds are not
// persisted.
func NewAlertJob(records RecordSource, evaluator AlertEvaluator, triggers TriggerRecorder, out sink.Sink, cfg AlertJobConfig, logger *slog.Logger) *AlertJob {
	if cfg.LookbackDays < 1 {
		cfg.LookbackDays = 8
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &AlertJob{
		records:      records,
		evaluator:    evaluator,
		triggers:     triggers,
		sink:         out,
		lookbackDays: cfg.LookbackDays,
		concurrency:  cfg.Concurrency,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Run evaluates all subscriptions. A failing subscription is logged and does
// not stop the others; Run reports how many failed.
func (j *AlertJob) Run(ctx context.Context) error {
	subscriptions, err := j.records.ListSubscriptions(ctx)
	if err != nil {
		return fmt.Errorf("list subscriptions: %w", err)
	}

	var failed, alerted atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.concurrency)

	for _, sub := range subscriptions {
		g.Go(func() error {
			n, err := j.EvaluateSubscription(gctx, sub)
			if err != nil {
				failed.Add(1)
				j.logger.Error("alert evaluation failed", "subscription", sub, "error", err)
				return nil
			}
			alerted.Add(int64(n))
			return nil
		})
	}
	_ = g.Wait()

	j.logger.Info("alert evaluation finished",
		"subscriptions", len(subscriptions),
		"failed", failed.Load(),
		"alerts", alerted.Load(),
	)

	if err := ctx.Err(); err != nil {
		return err
	}
	if n := failed.Load(); n > 0 {
		return fmt.Errorf("alert evaluation failed for %d of %d subscriptions", n, len(subscriptions))
	}
	return nil
}

// EvaluateSubscription evaluates one subscription and returns the number of
// alerts produced.
func (j *AlertJob) EvaluateSubscription(ctx context.Context, subscriptionID string) (int, error) {
	now := j.now()
	end := model.TruncateDay(now)
	filter := model.CostFilter{
		SubscriptionID: subscriptionID,
		DateRange: model.DateRange{
			Start: end.AddDate(0, 0, -(j.lookbackDays - 1)),
			End:   end,
		},
	}

	records, err := j.records.ListByDateRange(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("list records: %w", err)
	}

	alerts, err := j.evaluator.EvaluateAlerts(ctx, records)
	if err != nil {
		return 0, fmt.Errorf("evaluate: %w", err)
	}
	if len(alerts) == 0 {
		return 0, nil
	}

	if j.triggers != nil {
		ids := triggeredThresholdIDs(alerts)
		if len(ids) > 0 {
			if err := j.triggers.MarkTriggered(ctx, ids, now); err != nil {
				j.logger.Warn("failed to record threshold triggers", "subscription", subscriptionID, "error", err)
			}
		}
	}

	if err := j.sink.Publish(ctx, sink.NewBatch(subscriptionID, alerts)); err != nil {
		return len(alerts), fmt.Errorf("publish: %w", err)
	}
	return len(alerts), nil
}

func triggeredThresholdIDs(alerts []model.CostAlert) []string {
	thresholdAlerts := lo.Reject(alerts, func(a model.CostAlert, _ int) bool { return a.IsAnomaly() })
	return lo.Uniq(lo.Map(thresholdAlerts, func(a model.CostAlert, _ int) string { return a.ThresholdID }))
}
