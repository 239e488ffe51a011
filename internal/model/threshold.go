package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CostThreshold is a named rule pairing a scope with a cost ceiling and severity.
// With neither ResourceGroup nor ServiceName set the threshold applies to the
// global daily total.
type CostThreshold struct {
	ID            string          `json:"id" db:"id" validate:"required,max=64"`
	Name          string          `json:"name" db:"name" validate:"required,min=1,max=255"`
	ResourceGroup string          `json:"resource_group,omitempty" db:"resource_group" validate:"max=255"`
	ServiceName   string          `json:"service_name,omitempty" db:"service_name" validate:"max=255"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	AlertLevel    AlertLevel      `json:"alert_level" db:"alert_level" validate:"required,oneof=Info Warning Critical"`
	AlertType     AlertType       `json:"alert_type" db:"alert_type" validate:"required,oneof=DailyCostThreshold MonthlyCostThreshold AnomalyCostSpike ServiceCostIncrease"`
	IsEnabled     bool            `json:"is_enabled" db:"is_enabled"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	LastTriggered *time.Time      `json:"last_triggered,omitempty" db:"last_triggered"`
	TriggerCount  int             `json:"trigger_count" db:"trigger_count" validate:"min=0"`
}

// Scope describes which aggregate value a threshold is compared against.
type Scope string

const (
	ScopeGlobal        Scope = "global"
	ScopeService       Scope = "service"
	ScopeResourceGroup Scope = "resource_group"
)

// Scope returns the effective scope. Service scoping takes precedence over
// resource-group scoping.
func (t CostThreshold) Scope() Scope {
	switch {
	case t.ServiceName != "":
		return ScopeService
	case t.ResourceGroup != "":
		return ScopeResourceGroup
	default:
		return ScopeGlobal
	}
}

// NewThresholdID generates an identifier for a new threshold.
func NewThresholdID() string {
	return uuid.NewString()
}

// ThresholdCreateRequest represents a request to create a threshold.
type ThresholdCreateRequest struct {
	Name          string          `json:"name" validate:"required,min=1,max=255"`
	ResourceGroup string          `json:"resource_group,omitempty" validate:"max=255"`
	ServiceName   string          `json:"service_name,omitempty" validate:"max=255"`
	Amount        decimal.Decimal `json:"amount"`
	AlertLevel    AlertLevel      `json:"alert_level" validate:"required,oneof=Info Warning Critical"`
	AlertType     AlertType       `json:"alert_type"`
	IsEnabled     *bool           `json:"is_enabled,omitempty"`
}

// ThresholdUpdateRequest represents a partial threshold update.
type ThresholdUpdateRequest struct {
	Name          *string          `json:"name,omitempty"`
	ResourceGroup *string          `json:"resource_group,omitempty"`
	ServiceName   *string          `json:"service_name,omitempty"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	AlertLevel    *AlertLevel      `json:"alert_level,omitempty"`
	AlertType     *AlertType       `json:"alert_type,omitempty"`
	IsEnabled     *bool            `json:"is_enabled,omitempty"`
}

// Apply copies the set fields of the request onto t.
func (r ThresholdUpdateRequest) Apply(t *CostThreshold) {
	if r.Name != nil {
		t.Name = *r.Name
	}
	if r.ResourceGroup != nil {
		t.ResourceGroup = *r.ResourceGroup
	}
	if r.ServiceName != nil {
		t.ServiceName = *r.ServiceName
	}
	if r.Amount != nil {
		t.Amount = *r.Amount
	}
	if r.AlertLevel != nil {
		t.AlertLevel = *r.AlertLevel
	}
	if r.AlertType != nil {
		t.AlertType = *r.AlertType
	}
	if r.IsEnabled != nil {
		t.IsEnabled = *r.IsEnabled
	}
}
