// Package azure provides the Azure Cost Management cost source.
package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/smartcost/backend/internal/config"
	"github.com/smartcost/backend/internal/model"
	"github.com/smartcost/backend/internal/provider"
)

const (
	defaultLoginURL      = "https://login.microsoftonline.com"
	defaultManagementURL = "https://management.azure.com"
)

// Provider implements the Azure cost source.
type Provider struct {
	cfg           config.AzureConfig
	httpClient    *http.Client
	logger        *slog.Logger
	loginURL      string
	managementURL string

	tokenMu     sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewProvider creates a new Azure provider.
func NewProvider(cfg config.AzureConfig, logger *slog.Logger) (*Provider, error) {
	if cfg.TenantID == "" || cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.SubscriptionID == "" {
		return nil, fmt.Errorf("azure: tenant_id, client_id, client_secret, and subscription_id are required")
	}

	return &Provider{
		cfg:           cfg,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		logger:        logger,
		loginURL:      defaultLoginURL,
		managementURL: defaultManagementURL,
	}, nil
}

func (p *Provider) Name() string { return "azure" }
func (p *Provider) Close() error { return nil }

// Health checks Azure connectivity by requesting a token.
func (p *Provider) Health(ctx context.Context) provider.HealthStatus {
	_, err := p.getToken(ctx)
	status := provider.HealthStatus{
		LastChecked: time.Now(),
		Details:     map[string]any{"subscription": p.cfg.SubscriptionID},
	}
	if err != nil {
		status.Healthy = false
		status.Message = fmt.Sprintf("Azure health check failed: %v", err)
	} else {
		status.Healthy = true
		status.Message = "Azure provider healthy"
	}
	return status
}

// GetCosts retrieves daily actual cost grouped by service and resource group
// from the Cost Management query API.
func (p *Provider) GetCosts(ctx context.Context, req provider.CostRequest) (*provider.CostResponse, error) {
	p.logger.Info("fetching Azure costs",
		"subscription", p.cfg.SubscriptionID,
		"start", req.StartDate.Format("2006-01-02"),
		"end", req.EndDate.Format("2006-01-02"),
	)

	token, err := p.getToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("azure: failed to get token: %w", err)
	}

	jsonBody, err := json.Marshal(buildQuery(req))
	if err != nil {
		return nil, fmt.Errorf("azure: failed to marshal request: %w", err)
	}

	apiURL := fmt.Sprintf(
		"%s/subscriptions/%s/providers/Microsoft.CostManagement/query?api-version=2023-11-01",
		p.managementURL, p.cfg.SubscriptionID,
	)

	var records []model.CostRecord
	currency := model.CurrencyUSD
	for apiURL != "" {
		result, err := p.query(ctx, token, apiURL, jsonBody)
		if err != nil {
			return nil, err
		}
		page, pageCurrency, err := parseCostResponse(result, p.cfg.SubscriptionID)
		if err != nil {
			return nil, fmt.Errorf("azure: %w", err)
		}
		if pageCurrency != "" {
			currency = pageCurrency
		}
		records = append(records, page...)
		apiURL = result.Properties.NextLink
	}

	return provider.NewCostResponse(records, currency, req.StartDate, req.EndDate), nil
}

func (p *Provider) query(ctx context.Context, token, apiURL string, body []byte) (*costQueryResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("azure: API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("azure: API error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var result costQueryResponse
	if err := dec.Decode(&result); err != nil {
		return nil, fmt.Errorf("azure: failed to decode response: %w", err)
	}
	return &result, nil
}

func buildQuery(req provider.CostRequest) map[string]any {
	dataset := map[string]any{
		"granularity": "Daily",
		"aggregation": map[string]any{
			"totalCost": map[string]string{
				"name":     "Cost",
				"function": "Sum",
			},
		},
		"grouping": []map[string]string{
			{"type": "Dimension", "name": "ServiceName"},
			{"type": "Dimension", "name": "ResourceGroupName"},
		},
	}

	var filters []map[string]any
	if len(req.Filters.Services) > 0 {
		filters = append(filters, dimensionFilter("ServiceName", req.Filters.Services))
	}
	if len(req.Filters.ResourceGroups) > 0 {
		filters = append(filters, dimensionFilter("ResourceGroupName", req.Filters.ResourceGroups))
	}
	switch len(filters) {
	case 0:
	case 1:
		dataset["filter"] = filters[0]
	default:
		dataset["filter"] = map[string]any{"and": filters}
	}

	return map[string]any{
		"type":      "ActualCost",
		"timeframe": "Custom",
		"timePeriod": map[string]string{
			"from": req.StartDate.Format("2006-01-02T00:00:00Z"),
			"to":   req.EndDate.Format("2006-01-02T00:00:00Z"),
		},
		"dataset": dataset,
	}
}

func dimensionFilter(name string, values []string) map[string]any {
	return map[string]any{
		"dimensions": map[string]any{
			"name":     name,
			"operator": "In",
			"values":   values,
		},
	}
}

// getToken acquires an OAuth2 token using client credentials flow.
func (p *Provider) getToken(ctx context.Context) (string, error) {
	p.tokenMu.Lock()
	defer p.tokenMu.Unlock()

	if p.token != "" && time.Now().Before(p.tokenExpiry) {
		return p.token, nil
	}

	tokenURL := fmt.Sprintf("%s/%s/oauth2/v2.0/token", p.loginURL, p.cfg.TenantID)

	data := url.Values{}
	data.Set("client_id", p.cfg.ClientID)
	data.Set("client_secret", p.cfg.ClientSecret)
	data.Set("scope", "https://management.azure.com/.default")
	data.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("token request error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}

	p.token = tokenResp.AccessToken
	p.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn-60) * time.Second)

	return p.token, nil
}

// --- Response types for Azure APIs ---

type costQueryResponse struct {
	Properties struct {
		NextLink string `json:"nextLink"`
		Columns  []struct {
			Name string `json:"name"`
			Type string `json:"type"`
		} `json:"columns"`
		Rows [][]any `json:"rows"`
	} `json:"properties"`
}

// parseCostResponse maps query rows to records. Column positions are looked up
// by name since Azure orders them by the requested grouping.
func parseCostResponse(result *costQueryResponse, subscriptionID string) ([]model.CostRecord, model.Currency, error) {
	costIdx, dateIdx, serviceIdx, rgIdx, currencyIdx := -1, -1, -1, -1, -1

	for i, col := range result.Properties.Columns {
		switch col.Name {
		case "Cost", "PreTaxCost", "CostUSD":
			costIdx = i
		case "UsageDate", "BillingPeriod":
			dateIdx = i
		case "ServiceName":
			serviceIdx = i
		case "ResourceGroupName", "ResourceGroup":
			rgIdx = i
		case "Currency":
			currencyIdx = i
		}
	}
	if costIdx < 0 || dateIdx < 0 {
		return nil, "", fmt.Errorf("cost response is missing cost or date columns")
	}

	var currency model.Currency
	records := make([]model.CostRecord, 0, len(result.Properties.Rows))
	for i, row := range result.Properties.Rows {
		amount, err := decimalCell(row, costIdx)
		if err != nil {
			return nil, "", fmt.Errorf("row %d: %w", i, err)
		}
		date, err := dateCell(row, dateIdx)
		if err != nil {
			return nil, "", fmt.Errorf("row %d: %w", i, err)
		}

		// Credits and refunds come back as negative rows; they are not spend.
		if amount.IsNegative() {
			amount = decimal.Zero
		}

		rec := model.NewCostRecord(subscriptionID, date, amount, stringCell(row, rgIdx), stringCell(row, serviceIdx))
		if c := stringCell(row, currencyIdx); c != "" {
			rec.Currency = model.Currency(c)
			currency = rec.Currency
		}
		records = append(records, rec)
	}

	return records, currency, nil
}

func decimalCell(row []any, idx int) (decimal.Decimal, error) {
	if idx >= len(row) {
		return decimal.Zero, fmt.Errorf("missing cost cell")
	}
	switch v := row[idx].(type) {
	case json.Number:
		return decimal.NewFromString(v.String())
	case float64:
		return decimal.NewFromFloat(v), nil
	case string:
		return decimal.NewFromString(v)
	default:
		return decimal.Zero, fmt.Errorf("unexpected cost value %v", v)
	}
}

// dateCell parses Azure's numeric yyyymmdd dates.
func dateCell(row []any, idx int) (time.Time, error) {
	if idx >= len(row) {
		return time.Time{}, fmt.Errorf("missing date cell")
	}
	var raw string
	switch v := row[idx].(type) {
	case json.Number:
		raw = v.String()
	case float64:
		raw = fmt.Sprintf("%.0f", v)
	case string:
		raw = v
	default:
		return time.Time{}, fmt.Errorf("unexpected date value %v", v)
	}
	if t, err := time.Parse("20060102", raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func stringCell(row []any, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	s, _ := row[idx].(string)
	return s
}
