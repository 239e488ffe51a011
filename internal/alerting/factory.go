package alerting

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/smartcost/backend/internal/model"
)

var hundred = decimal.NewFromInt(100)

// Factory builds CostAlert values for both threshold and spike alerts.
type Factory struct {
	now func() time.Time
}

// NewFactory creates a Factory stamping alerts with the current UTC time.
func NewFactory() *Factory {
	return &Factory{now: func() time.Time { return time.Now().UTC() }}
}

// LevelIcon maps an alert level to its title icon.
func LevelIcon(level model.AlertLevel) string {
	switch level {
	case model.AlertLevelInfo:
		return "ℹ️"
	case model.AlertLevelWarning:
		return "⚠️"
	case model.AlertLevelCritical:
		return "🚨"
	default:
		return "📢"
	}
}

// Title renders "{icon} {LEVEL}: {name}".
func Title(level model.AlertLevel, name string) string {
	return fmt.Sprintf("%s %s: %s", LevelIcon(level), strings.ToUpper(string(level)), name)
}

// ContextDescription describes the scope a threshold was evaluated against.
func ContextDescription(t model.CostThreshold) string {
	switch t.Scope() {
	case model.ScopeService:
		return "Service: " + t.ServiceName
	case model.ScopeResourceGroup:
		return "Resource Group: " + t.ResourceGroup
	default:
		return "Global daily cost"
	}
}

// PercentageOver returns (current-base)/base*100 rounded to 2 decimals.
// base must be non-zero.
func PercentageOver(current, base decimal.Decimal) decimal.Decimal {
	return current.Sub(base).Div(base).Mul(hundred).Round(2)
}

func thresholdMessage(t model.CostThreshold, current, pct decimal.Decimal) string {
	return fmt.Sprintf("%s - %s threshold has been exceeded. Current cost is $%s, which is %s%% over the configured threshold of $%s.",
		ContextDescription(t),
		strings.ToUpper(string(t.AlertLevel)),
		current.StringFixed(2),
		pct.StringFixed(2),
		t.Amount.StringFixed(2),
	)
}

func anomalyMessage(day time.Time, current, average, pct decimal.Decimal, window int) string {
	return fmt.Sprintf("Unusual cost spike detected on %s. Daily cost of $%s is %s%% above the recent average of $%s (previous %d days).",
		model.DayKey(day),
		current.StringFixed(2),
		pct.StringFixed(2),
		average.StringFixed(2),
		window,
	)
}

// ThresholdAlert builds the alert for a threshold whose scoped value exceeded it.
func (f *Factory) ThresholdAlert(t model.CostThreshold, day model.DailyCostAggregate, current decimal.Decimal) model.CostAlert {
	pct := PercentageOver(current, t.Amount)

	return model.CostAlert{
		ID:              uuid.NewString(),
		ThresholdID:     t.ID,
		Level:           t.AlertLevel,
		Type:            t.AlertType,
		Title:           Title(t.AlertLevel, t.Name),
		Message:         thresholdMessage(t, current, pct),
		CurrentCost:     current.Round(2),
		ThresholdAmount: t.Amount.Round(2),
		PercentageOver:  pct,
		ResourceGroup:   t.ResourceGroup,
		ServiceName:     t.ServiceName,
		TriggeredAt:     f.now(),
		IsResolved:      false,
		Metadata: map[string]any{
			"date":              model.DayKey(day.Date),
			"thresholdName":     t.Name,
			"evaluationContext": ContextDescription(t),
			"scope":             string(t.Scope()),
		},
	}
}

// AnomalyAlert builds the spike alert for the latest day.
func (f *Factory) AnomalyAlert(latest model.DailyCostAggregate, average, spikeThreshold, multiplier, pct decimal.Decimal, window int) model.CostAlert {
	return model.CostAlert{
		ID:              uuid.NewString(),
		ThresholdID:     model.AnomalyDetectorID,
		Level:           model.AlertLevelWarning,
		Type:            model.AlertTypeAnomalyCostSpike,
		Title:           Title(model.AlertLevelWarning, "Cost Anomaly Detected"),
		Message:         anomalyMessage(latest.Date, latest.TotalCost, average, pct, window),
		CurrentCost:     latest.TotalCost.Round(2),
		ThresholdAmount: spikeThreshold.Round(2),
		PercentageOver:  pct,
		TriggeredAt:     f.now(),
		IsResolved:      false,
		Metadata: map[string]any{
			"date":            model.DayKey(latest.Date),
			"recentAverage":   average.Round(2).String(),
			"windowDays":      window,
			"spikeMultiplier": multiplier.String(),
			"spikeThreshold":  spikeThreshold.Round(2).String(),
		},
	}
}
