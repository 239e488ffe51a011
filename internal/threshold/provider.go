// Package threshold supplies the cost thresholds the alerting engine evaluates.
package threshold

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/smartcost/backend/internal/model"
)

// Provider supplies the current set of thresholds. Implementations must be
// safe for concurrent reads.
type Provider interface {
	ListThresholds(ctx context.Context) ([]model.CostThreshold, error)
}

// StaticProvider serves a fixed in-memory list.
type StaticProvider struct {
	mu         sync.RWMutex
	thresholds []model.CostThreshold
}

// NewStaticProvider creates a provider over a copy of thresholds.
func NewStaticProvider(thresholds []model.CostThreshold) *StaticProvider {
	return &StaticProvider{thresholds: cloneAll(thresholds)}
}

// ListThresholds returns a copy of the configured thresholds.
func (p *StaticProvider) ListThresholds(_ context.Context) ([]model.CostThreshold, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return cloneAll(p.thresholds), nil
}

// Replace swaps the configured thresholds.
func (p *StaticProvider) Replace(thresholds []model.CostThreshold) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.thresholds = cloneAll(thresholds)
}

func cloneAll(in []model.CostThreshold) []model.CostThreshold {
	out := make([]model.CostThreshold, len(in))
	for i, t := range in {
		if t.LastTriggered != nil {
			ts := *t.LastTriggered
			t.LastTriggered = &ts
		}
		out[i] = t
	}
	return out
}

// DefaultThresholds returns the stock threshold set used when nothing else is
// configured.
func DefaultThresholds() []model.CostThreshold {
	created := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

	return []model.CostThreshold{
		{
			ID:         "daily-global-warning",
			Name:       "Daily Cost Warning",
			Amount:     decimal.NewFromInt(100),
			AlertLevel: model.AlertLevelWarning,
			AlertType:  model.AlertTypeDailyCostThreshold,
			IsEnabled:  true,
			CreatedAt:  created,
		},
		{
			ID:         "daily-global-critical",
			Name:       "Daily Cost Critical",
			Amount:     decimal.NewFromInt(500),
			AlertLevel: model.AlertLevelCritical,
			AlertType:  model.AlertTypeDailyCostThreshold,
			IsEnabled:  true,
			CreatedAt:  created,
		},
		{
			ID:          "service-vm-warning",
			Name:        "Virtual Machines Cost Warning",
			ServiceName: "Virtual Machines",
			Amount:      decimal.NewFromInt(200),
			AlertLevel:  model.AlertLevelWarning,
			AlertType:   model.AlertTypeServiceCostIncrease,
			IsEnabled:   true,
			CreatedAt:   created,
		},
		{
			ID:            "rg-production-critical",
			Name:          "Production Resource Group Critical",
			ResourceGroup: "rg-production",
			Amount:        decimal.NewFromInt(300),
			AlertLevel:    model.AlertLevelCritical,
			AlertType:     model.AlertTypeDailyCostThreshold,
			IsEnabled:     true,
			CreatedAt:     created,
		},
		{
			ID:         "monthly-global-info",
			Name:       "Monthly Budget Notice",
			Amount:     decimal.NewFromInt(5000),
			AlertLevel: model.AlertLevelInfo,
			AlertType:  model.AlertTypeMonthlyCostThreshold,
			IsEnabled:  false,
			CreatedAt:  created,
		},
	}
}
