package threshold

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcost/backend/internal/model"
)

const sampleHCL = `
threshold "daily-global-warning" {
  name        = "Daily Cost Warning"
  amount      = 100
  alert_level = "Warning"
}

threshold "rg-production-critical" {
  name           = "Production"
  resource_group = "rg-production"
  amount         = "300.50"
  alert_level    = "Critical"
  alert_type     = "DailyCostThreshold"
}

threshold "monthly" {
  name        = "Monthly"
  amount      = 5000
  alert_level = "Info"
  alert_type  = "MonthlyCostThreshold"
  enabled     = false
}
`

const sampleYAML = `
thresholds:
  - id: vm-warning
    name: Virtual Machines
    service_name: Virtual Machines
    amount: "200"
    alert_level: Warning
    alert_type: ServiceCostIncrease
  - id: global-critical
    name: Daily Critical
    amount: "500"
    alert_level: Critical
    enabled: false
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFile_HCL(t *testing.T) {
	got, err := LoadFile(writeFile(t, "thresholds.hcl", sampleHCL))
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "daily-global-warning", got[0].ID)
	assert.True(t, decimal.NewFromInt(100).Equal(got[0].Amount))
	assert.Equal(t, model.AlertTypeDailyCostThreshold, got[0].AlertType)
	assert.True(t, got[0].IsEnabled)
	assert.Equal(t, model.ScopeGlobal, got[0].Scope())

	assert.Equal(t, "rg-production", got[1].ResourceGroup)
	assert.True(t, decimal.RequireFromString("300.50").Equal(got[1].Amount))
	assert.Equal(t, model.AlertLevelCritical, got[1].AlertLevel)

	assert.False(t, got[2].IsEnabled)
	assert.Equal(t, model.AlertTypeMonthlyCostThreshold, got[2].AlertType)
}

func TestLoadFile_YAML(t *testing.T) {
	got, err := LoadFile(writeFile(t, "thresholds.yaml", sampleYAML))
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "Virtual Machines", got[0].ServiceName)
	assert.Equal(t, model.ScopeService, got[0].Scope())
	assert.Equal(t, model.AlertTypeServiceCostIncrease, got[0].AlertType)
	assert.False(t, got[1].IsEnabled)
}

func TestLoadFile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{name: "unsupported extension", file: "thresholds.json", content: "{}"},
		{name: "hcl syntax", file: "t.hcl", content: `threshold "x" {`},
		{name: "missing amount", file: "t.hcl", content: `threshold "x" {
  name = "X"
  alert_level = "Info"
}`},
		{name: "zero amount", file: "t.hcl", content: `threshold "x" {
  name = "X"
  amount = 0
  alert_level = "Info"
}`},
		{name: "non numeric amount", file: "t.yml", content: "thresholds:\n  - id: x\n    name: X\n    amount: lots\n    alert_level: Info\n"},
		{name: "unknown level", file: "t.yml", content: "thresholds:\n  - id: x\n    name: X\n    amount: \"1\"\n    alert_level: Severe\n"},
		{name: "duplicate id", file: "t.yml", content: "thresholds:\n  - id: x\n    name: X\n    amount: \"1\"\n    alert_level: Info\n  - id: x\n    name: Y\n    amount: \"2\"\n    alert_level: Info\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(writeFile(t, tt.file, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestFileProvider_ReloadsOnEveryCall(t *testing.T) {
	path := writeFile(t, "thresholds.yaml", sampleYAML)
	p, err := NewFileProvider(path, nil)
	require.NoError(t, err)

	first, err := p.ListThresholds(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 2)

	require.NoError(t, os.WriteFile(path, []byte("thresholds:\n  - id: only\n    name: Only\n    amount: \"1\"\n    alert_level: Info\n"), 0o600))

	second, err := p.ListThresholds(context.Background())
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "only", second[0].ID)
}

func TestFileProvider_SkipsInvalidEntries(t *testing.T) {
	path := writeFile(t, "thresholds.yaml", `
thresholds:
  - id: healthy
    name: Healthy
    amount: "10"
    alert_level: Warning
  - id: zero
    name: Zero
    amount: "0"
    alert_level: Warning
  - id: severe
    name: Severe
    amount: "5"
    alert_level: Severe
  - id: healthy
    name: Healthy Again
    amount: "20"
    alert_level: Info
`)
	p, err := NewFileProvider(path, nil)
	require.NoError(t, err)

	got, err := p.ListThresholds(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "healthy", got[0].ID)
	assert.True(t, decimal.NewFromInt(10).Equal(got[0].Amount))

	_, err = LoadFile(path)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestFileProvider_UnparsableFile(t *testing.T) {
	p, err := NewFileProvider(writeFile(t, "t.hcl", `threshold "x" {`), nil)
	require.NoError(t, err)

	_, err = p.ListThresholds(context.Background())
	assert.Error(t, err)
}

func TestNewFileProvider_RejectsUnknownExtension(t *testing.T) {
	_, err := NewFileProvider("thresholds.toml", nil)
	assert.Error(t, err)
}

func TestEncodeHCL_LoadsBack(t *testing.T) {
	defaults := DefaultThresholds()
	path := writeFile(t, "defaults.hcl", string(EncodeHCL(defaults)))

	got, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, got, len(defaults))
	for i := range defaults {
		assert.Equal(t, defaults[i].ID, got[i].ID)
		assert.Equal(t, defaults[i].Scope(), got[i].Scope())
		assert.True(t, defaults[i].Amount.Equal(got[i].Amount))
		assert.Equal(t, defaults[i].IsEnabled, got[i].IsEnabled)
	}
}

func TestValidate(t *testing.T) {
	valid := DefaultThresholds()[0]
	require.NoError(t, Validate(valid))
	require.NoError(t, ValidateAll(DefaultThresholds()))

	tests := []struct {
		name   string
		mutate func(*model.CostThreshold)
	}{
		{name: "missing id", mutate: func(c *model.CostThreshold) { c.ID = "" }},
		{name: "missing name", mutate: func(c *model.CostThreshold) { c.Name = "" }},
		{name: "zero amount", mutate: func(c *model.CostThreshold) { c.Amount = decimal.Zero }},
		{name: "negative amount", mutate: func(c *model.CostThreshold) { c.Amount = decimal.NewFromInt(-1) }},
		{name: "unknown level", mutate: func(c *model.CostThreshold) { c.AlertLevel = "Severe" }},
		{name: "unknown type", mutate: func(c *model.CostThreshold) { c.AlertType = "Weekly" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th := valid
			tt.mutate(&th)
			assert.ErrorIs(t, Validate(th), ErrInvalid)
		})
	}
}

func TestFromCreateRequest(t *testing.T) {
	disabled := false
	req := model.ThresholdCreateRequest{
		Name:        "Storage",
		ServiceName: "Storage",
		Amount:      decimal.NewFromInt(50),
		AlertLevel:  model.AlertLevelInfo,
		IsEnabled:   &disabled,
	}
	require.NoError(t, ValidateCreate(req))

	th := FromCreateRequest(req)
	assert.NotEmpty(t, th.ID)
	assert.Equal(t, model.AlertTypeDailyCostThreshold, th.AlertType)
	assert.False(t, th.IsEnabled)
	assert.NoError(t, Validate(th))

	req.Amount = decimal.Zero
	assert.ErrorIs(t, ValidateCreate(req), ErrInvalid)
}

func TestStaticProvider_ReturnsCopies(t *testing.T) {
	p := NewStaticProvider(DefaultThresholds())

	first, err := p.ListThresholds(context.Background())
	require.NoError(t, err)
	first[0].Name = "mutated"

	second, err := p.ListThresholds(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Daily Cost Warning", second[0].Name)

	p.Replace(nil)
	third, err := p.ListThresholds(context.Background())
	require.NoError(t, err)
	assert.Empty(t, third)
}
