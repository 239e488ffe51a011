package alerting

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/smartcost/backend/internal/model"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(n int) time.Time {
	return time.Date(2024, time.March, n, 0, 0, 0, 0, time.UTC)
}

func record(date time.Time, cost, rg, service string) model.CostRecord {
	return model.CostRecord{
		ID:             uuid.New(),
		SubscriptionID: "sub-1",
		Date:           date,
		TotalCost:      dec(cost),
		Currency:       model.CurrencyUSD,
		ResourceGroup:  rg,
		ServiceName:    service,
	}
}

func aggregateOf(date time.Time, total string) model.DailyCostAggregate {
	return model.DailyCostAggregate{
		Date:               date,
		TotalCost:          dec(total),
		ServiceCosts:       map[string]decimal.Decimal{},
		ResourceGroupCosts: map[string]decimal.Decimal{},
	}
}

func globalThreshold(id, amount string, level model.AlertLevel) model.CostThreshold {
	return model.CostThreshold{
		ID:         id,
		Name:       id,
		Amount:     dec(amount),
		AlertLevel: level,
		AlertType:  model.AlertTypeDailyCostThreshold,
		IsEnabled:  true,
	}
}

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedFactory() *Factory {
	return &Factory{now: func() time.Time { return time.Date(2024, time.March, 31, 12, 0, 0, 0, time.UTC) }}
}
