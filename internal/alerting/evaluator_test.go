package alerting

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcost/backend/internal/model"
)

func TestEvaluator_Evaluate(t *testing.T) {
	latest := model.DailyCostAggregate{
		Date:      day(10),
		TotalCost: dec("680"),
		ServiceCosts: map[string]decimal.Decimal{
			"Virtual Machines": dec("250"),
			"Storage":          dec("430"),
		},
		ResourceGroupCosts: map[string]decimal.Decimal{
			"rg-production": dec("280"),
			"rg-dev":        dec("400"),
		},
	}
	older := aggregateOf(day(9), "10000")
	aggregates := []model.DailyCostAggregate{latest, older}

	tests := []struct {
		name      string
		threshold model.CostThreshold
		wantAlert bool
		wantValue string
		wantPct   string
	}{
		{
			name:      "global over",
			threshold: globalThreshold("g", "500", model.AlertLevelWarning),
			wantAlert: true,
			wantValue: "680",
			wantPct:   "36",
		},
		{
			name:      "global under",
			threshold: globalThreshold("g", "700", model.AlertLevelWarning),
		},
		{
			name: "service over",
			threshold: model.CostThreshold{
				ID: "vm", Name: "VM", ServiceName: "Virtual Machines", Amount: dec("200"),
				AlertLevel: model.AlertLevelWarning, AlertType: model.AlertTypeServiceCostIncrease, IsEnabled: true,
			},
			wantAlert: true,
			wantValue: "250",
			wantPct:   "25",
		},
		{
			name: "unknown service reads as zero",
			threshold: model.CostThreshold{
				ID: "x", Name: "X", ServiceName: "Does Not Exist", Amount: dec("0.01"),
				AlertLevel: model.AlertLevelInfo, AlertType: model.AlertTypeDailyCostThreshold, IsEnabled: true,
			},
		},
		{
			name: "resource group scope is isolated",
			threshold: model.CostThreshold{
				ID: "rg", Name: "RG", ResourceGroup: "rg-production", Amount: dec("300"),
				AlertLevel: model.AlertLevelCritical, AlertType: model.AlertTypeDailyCostThreshold, IsEnabled: true,
			},
		},
		{
			name: "service takes precedence over resource group",
			threshold: model.CostThreshold{
				ID: "both", Name: "Both", ServiceName: "Virtual Machines", ResourceGroup: "rg-dev", Amount: dec("300"),
				AlertLevel: model.AlertLevelCritical, AlertType: model.AlertTypeDailyCostThreshold, IsEnabled: true,
			},
		},
	}

	e := NewEvaluator(fixedFactory())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alerts, err := e.Evaluate(tt.threshold, aggregates)
			require.NoError(t, err)
			if !tt.wantAlert {
				assert.Empty(t, alerts)
				return
			}
			require.Len(t, alerts, 1)
			a := alerts[0]
			assert.True(t, dec(tt.wantValue).Equal(a.CurrentCost), "current cost %s", a.CurrentCost)
			assert.True(t, dec(tt.wantPct).Equal(a.PercentageOver), "percentage %s", a.PercentageOver)
			assert.Equal(t, tt.threshold.ID, a.ThresholdID)
			assert.Equal(t, tt.threshold.AlertLevel, a.Level)
			assert.Equal(t, tt.threshold.AlertType, a.Type)
			assert.False(t, a.IsResolved)
			assert.Equal(t, "2024-03-10", a.Metadata["date"])
		})
	}
}

func TestEvaluator_Boundary(t *testing.T) {
	e := NewEvaluator(fixedFactory())
	th := globalThreshold("g", "100", model.AlertLevelWarning)

	alerts, err := e.Evaluate(th, []model.DailyCostAggregate{aggregateOf(day(1), "100")})
	require.NoError(t, err)
	assert.Empty(t, alerts, "equal to threshold must not trigger")

	alerts, err = e.Evaluate(th, []model.DailyCostAggregate{aggregateOf(day(1), "100.01")})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "0.01", alerts[0].PercentageOver.StringFixed(2))
}

func TestEvaluator_EmptyAggregates(t *testing.T) {
	alerts, err := NewEvaluator(fixedFactory()).Evaluate(globalThreshold("g", "1", model.AlertLevelInfo), nil)
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestEvaluator_InvalidAmount(t *testing.T) {
	e := NewEvaluator(fixedFactory())
	for _, amount := range []string{"0", "-5"} {
		_, err := e.Evaluate(globalThreshold("bad", amount, model.AlertLevelInfo), []model.DailyCostAggregate{aggregateOf(day(1), "10")})
		assert.ErrorIs(t, err, ErrInvalidThreshold)
	}
}
