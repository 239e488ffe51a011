package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CostRecord represents one observed cost line item for a subscription day.
type CostRecord struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	SubscriptionID string          `json:"subscription_id" db:"subscription_id" validate:"required"`
	Date           time.Time       `json:"date" db:"date" validate:"required"`
	TotalCost      decimal.Decimal `json:"total_cost" db:"total_cost"`
	Currency       Currency        `json:"currency" db:"currency"`
	ResourceGroup  string          `json:"resource_group" db:"resource_group"`
	ServiceName    string          `json:"service_name" db:"service_name"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

// NewCostRecord creates a CostRecord with a generated ID and creation time.
func NewCostRecord(subscriptionID string, date time.Time, cost decimal.Decimal, resourceGroup, service string) CostRecord {
	return CostRecord{
		ID:             uuid.New(),
		SubscriptionID: subscriptionID,
		Date:           TruncateDay(date),
		TotalCost:      cost,
		Currency:       CurrencyUSD,
		ResourceGroup:  resourceGroup,
		ServiceName:    service,
		CreatedAt:      time.Now().UTC(),
	}
}

// CostFilter defines filter criteria for cost record queries.
type CostFilter struct {
	SubscriptionID string    `json:"subscription_id"`
	DateRange      DateRange `json:"date_range"`
}

// DailyCostAggregate is the per-calendar-day rollup of cost records.
type DailyCostAggregate struct {
	Date               time.Time                  `json:"date"`
	TotalCost          decimal.Decimal            `json:"total_cost"`
	ServiceCosts       map[string]decimal.Decimal `json:"service_costs"`
	ResourceGroupCosts map[string]decimal.Decimal `json:"resource_group_costs"`
}

// ServiceCost returns the cost of a service on this day, zero when absent.
func (d DailyCostAggregate) ServiceCost(service string) decimal.Decimal {
	if v, ok := d.ServiceCosts[service]; ok {
		return v
	}
	return decimal.Zero
}

// ResourceGroupCost returns the cost of a resource group on this day, zero when absent.
func (d DailyCostAggregate) ResourceGroupCost(group string) decimal.Decimal {
	if v, ok := d.ResourceGroupCosts[group]; ok {
		return v
	}
	return decimal.Zero
}
