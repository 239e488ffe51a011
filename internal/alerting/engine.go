package alerting

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/lo"

	"github.com/smartcost/backend/internal/model"
	"github.com/smartcost/backend/internal/threshold"
)

// Engine runs a full evaluation: aggregate, evaluate every enabled threshold,
// then run the spike detector. It holds no per-call state and is safe for
// concurrent use when its threshold provider is.
type Engine struct {
	thresholds threshold.Provider
	evaluator  ThresholdEvaluator
	detector   *AnomalyDetector
	logger     *slog.Logger
}

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	anomaly   AnomalyConfig
	factory   *Factory
	evaluator ThresholdEvaluator
}

// WithAnomalyConfig overrides the spike detector parameters.
func WithAnomalyConfig(cfg AnomalyConfig) Option {
	return func(o *engineOptions) { o.anomaly = cfg }
}

// WithFactory sets the alert factory shared by the evaluator and detector.
func WithFactory(f *Factory) Option {
	return func(o *engineOptions) { o.factory = f }
}

// WithThresholdEvaluator replaces the per-threshold evaluator.
func WithThresholdEvaluator(e ThresholdEvaluator) Option {
	return func(o *engineOptions) { o.evaluator = e }
}

// NewEngine creates an Engine reading thresholds from provider.
func NewEngine(provider threshold.Provider, logger *slog.Logger, opts ...Option) *Engine {
	o := engineOptions{anomaly: DefaultAnomalyConfig()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.factory == nil {
		o.factory = NewFactory()
	}
	if o.evaluator == nil {
		o.evaluator = NewEvaluator(o.factory)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		thresholds: provider,
		evaluator:  o.evaluator,
		detector:   NewAnomalyDetector(o.anomaly, o.factory),
		logger:     logger,
	}
}

// AnomalyConfig returns the spike detector parameters in use.
func (e *Engine) AnomalyConfig() AnomalyConfig {
	return e.detector.Config()
}

// EvaluateAlerts returns threshold alerts followed by any spike alert. The
// result is never nil. Failing thresholds are logged and skipped; only a
// threshold lookup or aggregation failure is returned as an error.
func (e *Engine) EvaluateAlerts(ctx context.Context, records []model.CostRecord) ([]model.CostAlert, error) {
	all, err := e.thresholds.ListThresholds(ctx)
	if err != nil {
		return nil, fmt.Errorf("list thresholds: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	active := lo.Filter(all, func(t model.CostThreshold, _ int) bool {
		return t.IsEnabled
	})

	aggregates, err := Aggregate(records)
	if err != nil {
		return nil, fmt.Errorf("aggregate cost records: %w", err)
	}

	alerts := make([]model.CostAlert, 0)
	if len(aggregates) == 0 {
		e.logger.Debug("no cost data to evaluate", "thresholds", len(active))
		return alerts, nil
	}

	for _, t := range active {
		alerts = append(alerts, e.evaluateSafely(t, aggregates)...)
	}

	alerts = append(alerts, e.detector.Detect(aggregates)...)

	e.logger.Debug("alerts evaluated",
		"records", len(records),
		"days", len(aggregates),
		"thresholds", len(active),
		"alerts", len(alerts),
	)

	return alerts, nil
}

func (e *Engine) evaluateSafely(t model.CostThreshold, aggregates []model.DailyCostAggregate) (alerts []model.CostAlert) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("threshold evaluation panicked", "threshold", t.ID, "panic", r)
			alerts = nil
		}
	}()

	alerts, err := e.evaluator.Evaluate(t, aggregates)
	if err != nil {
		e.logger.Error("threshold evaluation failed", "threshold", t.ID, "name", t.Name, "error", err)
		return nil
	}
	return alerts
}
