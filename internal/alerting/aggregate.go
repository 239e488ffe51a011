// Package alerting evaluates cost records against thresholds and a spike
// detector and builds the resulting alerts.
package alerting

import (
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/smartcost/backend/internal/model"
)

// Aggregate groups records by UTC calendar day and returns one aggregate per
// day, most recent first. Each day carries its total plus per-service and
// per-resource-group sums.
func Aggregate(records []model.CostRecord) ([]model.DailyCostAggregate, error) {
	for i, r := range records {
		if r.TotalCost.IsNegative() {
			return nil, fmt.Errorf("%w: record %d (%s) has negative cost %s",
				ErrMalformedRecord, i, r.ID, r.TotalCost.String())
		}
		if r.Date.IsZero() {
			return nil, fmt.Errorf("%w: record %d (%s) has no date", ErrMalformedRecord, i, r.ID)
		}
	}

	byDay := lo.GroupBy(records, func(r model.CostRecord) time.Time {
		return model.TruncateDay(r.Date)
	})

	aggregates := make([]model.DailyCostAggregate, 0, len(byDay))
	for day, dayRecords := range byDay {
		aggregates = append(aggregates, aggregateDay(day, dayRecords))
	}

	sort.Slice(aggregates, func(i, j int) bool {
		return aggregates[i].Date.After(aggregates[j].Date)
	})

	return aggregates, nil
}

func aggregateDay(day time.Time, records []model.CostRecord) model.DailyCostAggregate {
	agg := model.DailyCostAggregate{
		Date:               day,
		TotalCost:          decimal.Zero,
		ServiceCosts:       make(map[string]decimal.Decimal),
		ResourceGroupCosts: make(map[string]decimal.Decimal),
	}

	for _, r := range records {
		agg.TotalCost = agg.TotalCost.Add(r.TotalCost)
		agg.ServiceCosts[r.ServiceName] = agg.ServiceCost(r.ServiceName).Add(r.TotalCost)
		agg.ResourceGroupCosts[r.ResourceGroup] = agg.ResourceGroupCost(r.ResourceGroup).Add(r.TotalCost)
	}

	return agg
}
