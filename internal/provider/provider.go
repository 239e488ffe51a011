// Package provider defines the cloud cost sources records are imported from.
package provider

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/smartcost/backend/internal/model"
)

// Provider is a source of daily cost records.
type Provider interface {
	// Name returns the provider name.
	Name() string

	// Health checks provider connectivity.
	Health(ctx context.Context) HealthStatus

	// GetCosts retrieves daily cost records grouped by service and resource
	// group for the requested period.
	GetCosts(ctx context.Context, req CostRequest) (*CostResponse, error)

	// Close cleans up provider resources.
	Close() error
}

// HealthStatus represents provider health.
type HealthStatus struct {
	Healthy     bool           `json:"healthy"`
	Message     string         `json:"message"`
	LastChecked time.Time      `json:"last_checked"`
	Details     map[string]any `json:"details,omitempty"`
}

// CostRequest defines parameters for cost queries. EndDate is exclusive.
type CostRequest struct {
	StartDate time.Time
	EndDate   time.Time
	Filters   CostFilters
}

// CostFilters narrows a cost query.
type CostFilters struct {
	Services       []string
	ResourceGroups []string
}

// CostResponse contains cost query results.
type CostResponse struct {
	Records     []model.CostRecord `json:"records"`
	TotalAmount decimal.Decimal    `json:"total_amount"`
	Currency    model.Currency     `json:"currency"`
	StartDate   time.Time          `json:"start_date"`
	EndDate     time.Time          `json:"end_date"`
}

// NewCostResponse totals records into a response.
func NewCostResponse(records []model.CostRecord, currency model.Currency, start, end time.Time) *CostResponse {
	total := decimal.Zero
	for _, r := range records {
		total = total.Add(r.TotalCost)
	}
	if records == nil {
		records = []model.CostRecord{}
	}
	return &CostResponse{
		Records:     records,
		TotalAmount: total,
		Currency:    currency,
		StartDate:   start,
		EndDate:     end,
	}
}

// Registry manages registered providers.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry creates a new provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// Register adds a provider to the registry.
func (r *Registry) Register(name string, provider Provider) {
	r.providers[name] = provider
}

// Get retrieves a provider by name.
func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// All returns all registered providers.
func (r *Registry) All() map[string]Provider {
	return r.providers
}

// Names returns all provider names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HealthAll checks health of all providers.
func (r *Registry) HealthAll(ctx context.Context) map[string]HealthStatus {
	health := make(map[string]HealthStatus)
	for name, provider := range r.providers {
		health[name] = provider.Health(ctx)
	}
	return health
}

// Close closes all providers.
func (r *Registry) Close() error {
	for _, provider := range r.providers {
		provider.Close()
	}
	return nil
}
