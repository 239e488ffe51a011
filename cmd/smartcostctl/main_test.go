package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/smartcost/backend/internal/model"
	"github.com/smartcost/backend/internal/threshold"
)

const recordsJSON = `[
  {"subscription_id":"sub-1","date":"2024-03-05T00:00:00Z","total_cost":"80","resource_group":"rg-dev","service_name":"Storage"},
  {"subscription_id":"sub-1","date":"2024-03-06T00:00:00Z","total_cost":"80","resource_group":"rg-dev","service_name":"Storage"},
  {"subscription_id":"sub-1","date":"2024-03-07T00:00:00Z","total_cost":"400","resource_group":"rg-production","service_name":"Virtual Machines"}
]`

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &errOut
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.Run(append([]string{"smartcostctl"}, args...))
	return out.String(), err
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestEvaluate_JSON(t *testing.T) {
	path := writeTemp(t, "records.json", recordsJSON)

	out, err := runApp(t, "evaluate", "--records", path, "--format", "json")
	require.NoError(t, err)

	var result struct {
		Alerts  []model.CostAlert  `json:"alerts"`
		Summary model.AlertSummary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))

	ids := make([]string, 0, len(result.Alerts))
	for _, a := range result.Alerts {
		ids = append(ids, a.ThresholdID)
	}
	// 400 crosses the global warning, the VM service and rg-production
	// thresholds, and is more than 1.5x the 80 average.
	assert.Equal(t, []string{
		"daily-global-warning", "service-vm-warning", "rg-production-critical", model.AnomalyDetectorID,
	}, ids)
	assert.Equal(t, 4, result.Summary.TotalCount)
}

func TestEvaluate_TableAndWrappedRecords(t *testing.T) {
	path := writeTemp(t, "records.json", `{"records":`+recordsJSON+`}`)

	out, err := runApp(t, "evaluate", "--records", path)
	require.NoError(t, err)
	assert.Contains(t, out, "LEVEL")
	assert.Contains(t, out, "rg-production-critical")
	assert.Contains(t, out, "4 alerts (critical 1, warning 3, info 0)")
}

func TestEvaluate_CustomThresholdFile(t *testing.T) {
	records := writeTemp(t, "records.json", recordsJSON)
	thresholds := writeTemp(t, "thresholds.hcl", `
threshold "storage" {
  name         = "Storage"
  service_name = "Storage"
  amount       = 10
  alert_level  = "Info"
}
`)

	out, err := runApp(t, "evaluate", "-r", records, "-t", thresholds, "--spike-multiplier", "10")
	require.NoError(t, err)
	assert.Equal(t, "No alerts triggered.\n", out)
}

func TestEvaluate_FailOn(t *testing.T) {
	path := writeTemp(t, "records.json", recordsJSON)

	_, err := runApp(t, "evaluate", "--records", path, "--fail-on", "Critical")
	require.Error(t, err)
	var exit cli.ExitCoder
	require.ErrorAs(t, err, &exit)
	assert.Equal(t, 2, exit.ExitCode())

	_, err = runApp(t, "evaluate", "--records", path, "--fail-on", "Severe")
	assert.Error(t, err)
}

func TestEvaluate_Errors(t *testing.T) {
	good := writeTemp(t, "records.json", recordsJSON)

	tests := []struct {
		name string
		args []string
	}{
		{name: "missing file", args: []string{"evaluate", "--records", filepath.Join(t.TempDir(), "nope.json")}},
		{name: "bad json", args: []string{"evaluate", "--records", writeTemp(t, "bad.json", "{")}},
		{name: "bad format", args: []string{"evaluate", "--records", good, "--format", "xml"}},
		{name: "bad multiplier", args: []string{"evaluate", "--records", good, "--spike-multiplier", "-1"}},
		{name: "negative cost", args: []string{"evaluate", "--records", writeTemp(t, "neg.json",
			`[{"date":"2024-03-05T00:00:00Z","total_cost":"-1"}]`)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runApp(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestThresholdsDefaults(t *testing.T) {
	out, err := runApp(t, "thresholds", "defaults")
	require.NoError(t, err)

	var got []model.CostThreshold
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Len(t, got, len(threshold.DefaultThresholds()))

	for _, format := range []string{"hcl", "yaml"} {
		t.Run(format, func(t *testing.T) {
			out, err := runApp(t, "thresholds", "defaults", "--format", format)
			require.NoError(t, err)

			path := writeTemp(t, "defaults."+format, out)
			loaded, err := threshold.LoadFile(path)
			require.NoError(t, err)
			assert.Len(t, loaded, len(threshold.DefaultThresholds()))
		})
	}
}

func TestThresholdsValidate(t *testing.T) {
	out, err := runApp(t, "thresholds", "defaults", "--format", "yaml")
	require.NoError(t, err)
	path := writeTemp(t, "thresholds.yaml", out)

	out, err = runApp(t, "thresholds", "validate", "--file", path)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(out), "5 thresholds valid (4 enabled)"))

	bad := writeTemp(t, "bad.yaml", "thresholds:\n  - id: x\n    name: x\n    amount: \"0\"\n    alert_level: Warning\n")
	_, err = runApp(t, "thresholds", "validate", "--file", bad)
	assert.Error(t, err)
}

func TestHashKey(t *testing.T) {
	out, err := runApp(t, "hash-key", "--key", "s3cret")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(strings.TrimSpace(out)), []byte("s3cret")))
}
