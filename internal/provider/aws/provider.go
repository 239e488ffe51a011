// Package aws provides the AWS Cost Explorer cost source.
package aws

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/shopspring/decimal"

	"github.com/smartcost/backend/internal/config"
	"github.com/smartcost/backend/internal/model"
	"github.com/smartcost/backend/internal/provider"
)

const costMetric = "UnblendedCost"

// costExplorerAPI is the subset of the Cost Explorer client used here.
type costExplorerAPI interface {
	GetCostAndUsage(ctx context.Context, params *costexplorer.GetCostAndUsageInput, optFns ...func(*costexplorer.Options)) (*costexplorer.GetCostAndUsageOutput, error)
}

// Provider implements the AWS cost source.
type Provider struct {
	name         string
	region       string
	accountID    string
	tagKey       string
	costExplorer costExplorerAPI
	logger       *slog.Logger
	retryConfig  RetryConfig
}

// RetryConfig holds retry settings.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// NewProvider creates a new AWS provider.
func NewProvider(ctx context.Context, cfg config.AWSConfig, retry config.ResilienceConfig, logger *slog.Logger) (*Provider, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}

	// Use explicit credentials if provided
	if cfg.AccessKeyID != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Handle role assumption if configured
	if cfg.AssumeRoleARN != "" {
		stsClient := sts.NewFromConfig(awsCfg)
		creds := stscreds.NewAssumeRoleProvider(stsClient, cfg.AssumeRoleARN, func(o *stscreds.AssumeRoleOptions) {
			if cfg.ExternalID != "" {
				o.ExternalID = aws.String(cfg.ExternalID)
			}
		})
		awsCfg.Credentials = aws.NewCredentialsCache(creds)
	}

	return newProvider(costexplorer.NewFromConfig(awsCfg), cfg, retry, logger), nil
}

func newProvider(client costExplorerAPI, cfg config.AWSConfig, retry config.ResilienceConfig, logger *slog.Logger) *Provider {
	tagKey := cfg.CostTagKey
	if tagKey == "" {
		tagKey = "ResourceGroup"
	}
	return &Provider{
		name:         "aws",
		region:       cfg.Region,
		accountID:    cfg.AccountID,
		tagKey:       tagKey,
		costExplorer: client,
		logger:       logger,
		retryConfig: RetryConfig{
			MaxAttempts: max(retry.RetryMaxAttempts, 1),
			BaseDelay:   retry.RetryBaseDelay,
			MaxDelay:    retry.RetryMaxDelay,
		},
	}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return p.name
}

// Health checks AWS connectivity.
func (p *Provider) Health(ctx context.Context) provider.HealthStatus {
	// Simple health check - try to get cost data for yesterday
	_, err := p.costExplorer.GetCostAndUsage(ctx, &costexplorer.GetCostAndUsageInput{
		TimePeriod: &types.DateInterval{
			Start: aws.String(time.Now().AddDate(0, 0, -1).Format("2006-01-02")),
			End:   aws.String(time.Now().Format("2006-01-02")),
		},
		Granularity: types.GranularityDaily,
		Metrics:     []string{costMetric},
	})

	status := provider.HealthStatus{
		LastChecked: time.Now(),
		Details:     map[string]any{"region": p.region},
	}

	if err != nil {
		status.Healthy = false
		status.Message = fmt.Sprintf("AWS health check failed: %v", err)
	} else {
		status.Healthy = true
		status.Message = "AWS provider healthy"
	}

	return status
}

// GetCosts retrieves daily costs grouped by service and the cost allocation
// tag configured as the resource group.
func (p *Provider) GetCosts(ctx context.Context, req provider.CostRequest) (*provider.CostResponse, error) {
	p.logger.Info("fetching AWS costs",
		"start", req.StartDate.Format("2006-01-02"),
		"end", req.EndDate.Format("2006-01-02"),
		"tag", p.tagKey,
	)

	input := &costexplorer.GetCostAndUsageInput{
		TimePeriod: &types.DateInterval{
			Start: aws.String(req.StartDate.Format("2006-01-02")),
			End:   aws.String(req.EndDate.Format("2006-01-02")),
		},
		Granularity: types.GranularityDaily,
		Metrics:     []string{costMetric},
		GroupBy: []types.GroupDefinition{
			{Type: types.GroupDefinitionTypeDimension, Key: aws.String("SERVICE")},
			{Type: types.GroupDefinitionTypeTag, Key: aws.String(p.tagKey)},
		},
		Filter: p.buildFilter(req.Filters),
	}

	var records []model.CostRecord
	for {
		output, err := p.getCostAndUsage(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to get cost data: %w", err)
		}

		page, err := recordsFromResults(output.ResultsByTime, p.accountID)
		if err != nil {
			return nil, err
		}
		records = append(records, page...)

		if output.NextPageToken == nil || *output.NextPageToken == "" {
			break
		}
		input.NextPageToken = output.NextPageToken
	}

	return provider.NewCostResponse(records, model.CurrencyUSD, req.StartDate, req.EndDate), nil
}

func (p *Provider) getCostAndUsage(ctx context.Context, input *costexplorer.GetCostAndUsageInput) (*costexplorer.GetCostAndUsageOutput, error) {
	var lastErr error
	delay := p.retryConfig.BaseDelay

	for attempt := 1; attempt <= p.retryConfig.MaxAttempts; attempt++ {
		output, err := p.costExplorer.GetCostAndUsage(ctx, input)
		if err == nil {
			return output, nil
		}
		lastErr = err

		if attempt == p.retryConfig.MaxAttempts {
			break
		}
		p.logger.Warn("cost explorer request failed, retrying", "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay = min(delay*2, p.retryConfig.MaxDelay)
	}
	return nil, lastErr
}

// recordsFromResults converts grouped results. Group keys are
// [service, "tagKey$value"]; an untagged line has an empty tag value.
func recordsFromResults(results []types.ResultByTime, accountID string) ([]model.CostRecord, error) {
	var records []model.CostRecord
	for _, result := range results {
		if result.TimePeriod == nil || result.TimePeriod.Start == nil {
			continue
		}
		date, err := time.Parse("2006-01-02", *result.TimePeriod.Start)
		if err != nil {
			return nil, fmt.Errorf("invalid period start %q: %w", *result.TimePeriod.Start, err)
		}

		for _, group := range result.Groups {
			metric, ok := group.Metrics[costMetric]
			if !ok || metric.Amount == nil {
				continue
			}
			amount, err := decimal.NewFromString(*metric.Amount)
			if err != nil {
				return nil, fmt.Errorf("invalid amount %q: %w", *metric.Amount, err)
			}
			if amount.IsNegative() {
				amount = decimal.Zero
			}

			var service, resourceGroup string
			if len(group.Keys) > 0 {
				service = group.Keys[0]
			}
			if len(group.Keys) > 1 {
				resourceGroup = tagValue(group.Keys[1])
			}

			rec := model.NewCostRecord(accountID, date, amount, resourceGroup, service)
			if metric.Unit != nil && *metric.Unit != "" {
				rec.Currency = model.Currency(*metric.Unit)
			}
			records = append(records, rec)
		}
	}
	return records, nil
}

func tagValue(key string) string {
	if _, value, ok := strings.Cut(key, "$"); ok {
		return value
	}
	return key
}

func (p *Provider) buildFilter(filters provider.CostFilters) *types.Expression {
	var expressions []types.Expression

	if len(filters.Services) > 0 {
		expressions = append(expressions, types.Expression{
			Dimensions: &types.DimensionValues{
				Key:    types.DimensionService,
				Values: filters.Services,
			},
		})
	}

	if len(filters.ResourceGroups) > 0 {
		expressions = append(expressions, types.Expression{
			Tags: &types.TagValues{
				Key:    aws.String(p.tagKey),
				Values: filters.ResourceGroups,
			},
		})
	}

	if len(expressions) == 0 {
		return nil
	}

	if len(expressions) == 1 {
		return &expressions[0]
	}

	return &types.Expression{
		And: expressions,
	}
}

// Close cleans up provider resources.
func (p *Provider) Close() error {
	return nil
}
