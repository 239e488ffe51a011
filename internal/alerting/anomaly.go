package alerting

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/smartcost/backend/internal/model"
)

// AnomalyConfig holds the spike heuristic parameters.
type AnomalyConfig struct {
	// SpikeMultiplier is applied to the trailing average to get the spike threshold.
	SpikeMultiplier decimal.Decimal
	// MinimumCost is the absolute floor the latest day must also exceed.
	MinimumCost decimal.Decimal
	// WindowDays is the number of days before the latest one used for the average.
	WindowDays int
	// MinimumDays is the number of aggregates required before detecting anything.
	MinimumDays int
}

// DefaultAnomalyConfig returns the stock heuristic: 1.5x the trailing 7-day
// average, above $100, with at least 3 days of data.
func DefaultAnomalyConfig() AnomalyConfig {
	return AnomalyConfig{
		SpikeMultiplier: decimal.RequireFromString("1.5"),
		MinimumCost:     decimal.NewFromInt(100),
		WindowDays:      7,
		MinimumDays:     3,
	}
}

// Validate checks the parameters are usable.
func (c AnomalyConfig) Validate() error {
	if !c.SpikeMultiplier.IsPositive() {
		return fmt.Errorf("anomaly: spike multiplier must be positive, got %s", c.SpikeMultiplier)
	}
	if c.MinimumCost.IsNegative() {
		return fmt.Errorf("anomaly: minimum cost must not be negative, got %s", c.MinimumCost)
	}
	if c.WindowDays < 1 {
		return fmt.Errorf("anomaly: window must cover at least one day, got %d", c.WindowDays)
	}
	if c.MinimumDays < 2 {
		return fmt.Errorf("anomaly: minimum days must be at least 2, got %d", c.MinimumDays)
	}
	return nil
}

// AnomalyDetector flags a latest-day total that spikes above its trailing average.
type AnomalyDetector struct {
	cfg     AnomalyConfig
	factory *Factory
}

// NewAnomalyDetector creates an AnomalyDetector.
func NewAnomalyDetector(cfg AnomalyConfig, factory *Factory) *AnomalyDetector {
	return &AnomalyDetector{cfg: cfg, factory: factory}
}

// Config returns the detector parameters.
func (d *AnomalyDetector) Config() AnomalyConfig {
	return d.cfg
}

// Detect returns at most one spike alert. aggregates must be ordered most
// recent first; the latest day is excluded from its own baseline.
func (d *AnomalyDetector) Detect(aggregates []model.DailyCostAggregate) []model.CostAlert {
	if len(aggregates) < d.cfg.MinimumDays {
		return nil
	}

	latest := aggregates[0]
	end := min(len(aggregates), 1+d.cfg.WindowDays)
	window := aggregates[1:end]
	if len(window) == 0 {
		return nil
	}

	sum := decimal.Zero
	for _, day := range window {
		sum = sum.Add(day.TotalCost)
	}
	average := sum.Div(decimal.NewFromInt(int64(len(window))))
	spikeThreshold := average.Mul(d.cfg.SpikeMultiplier)

	if !latest.TotalCost.GreaterThan(spikeThreshold) || !latest.TotalCost.GreaterThan(d.cfg.MinimumCost) {
		return nil
	}
	return []model.CostAlert{d.factory.AnomalyAlert(latest, average, spikeThreshold, d.cfg.SpikeMultiplier, spikePercentage(latest.TotalCost, average, d.cfg.MinimumCost), len(window))}
}

// spikePercentage is the increase over the trailing average. A zero baseline
// has no defined increase, so it is measured against the floor instead.
func spikePercentage(current, average, floor decimal.Decimal) decimal.Decimal {
	switch {
	case !average.IsZero():
		return PercentageOver(current, average)
	case floor.IsPositive():
		return PercentageOver(current, floor)
	default:
		return decimal.Zero
	}
}
