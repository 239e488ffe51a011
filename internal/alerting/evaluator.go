package alerting

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/smartcost/backend/internal/model"
)

// ThresholdEvaluator evaluates one threshold against daily aggregates ordered
// most recent first.
type ThresholdEvaluator interface {
	Evaluate(t model.CostThreshold, aggregates []model.DailyCostAggregate) ([]model.CostAlert, error)
}

// Evaluator compares the most recent day against a threshold.
type Evaluator struct {
	factory *Factory
}

// NewEvaluator creates an Evaluator.
func NewEvaluator(factory *Factory) *Evaluator {
	return &Evaluator{factory: factory}
}

// Evaluate returns at most one alert. A value equal to the threshold does not
// trigger. Missing service or resource-group keys count as zero cost.
func (e *Evaluator) Evaluate(t model.CostThreshold, aggregates []model.DailyCostAggregate) ([]model.CostAlert, error) {
	if !t.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: %q amount must be positive, got %s", ErrInvalidThreshold, t.ID, t.Amount.String())
	}
	if len(aggregates) == 0 {
		return nil, nil
	}

	latest := aggregates[0]
	value := ScopedValue(t, latest)

	if !value.GreaterThan(t.Amount) {
		return nil, nil
	}

	return []model.CostAlert{e.factory.ThresholdAlert(t, latest, value)}, nil
}

// ScopedValue selects the aggregate value a threshold applies to.
func ScopedValue(t model.CostThreshold, day model.DailyCostAggregate) decimal.Decimal {
	switch t.Scope() {
	case model.ScopeService:
		return day.ServiceCost(t.ServiceName)
	case model.ScopeResourceGroup:
		return day.ResourceGroupCost(t.ResourceGroup)
	default:
		return day.TotalCost
	}
}
