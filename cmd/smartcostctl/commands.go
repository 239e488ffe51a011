package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"github.com/smartcost/backend/internal/alerting"
	"github.com/smartcost/backend/internal/auth"
	"github.com/smartcost/backend/internal/config"
	"github.com/smartcost/backend/internal/model"
	"github.com/smartcost/backend/internal/threshold"
)

// =============================================================================
// EVALUATE COMMAND
// =============================================================================

func evaluateCommand() *cli.Command {
	return &cli.Command{
		Name:  "evaluate",
		Usage: "Evaluate cost records from a JSON file against thresholds",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "records",
				Aliases:  []string{"r"},
				Usage:    "Path to a JSON array of cost records, or an object with a \"records\" array",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "thresholds",
				Aliases: []string{"t"},
				Usage:   "Threshold file (.hcl, .yaml, .yml); the built-in defaults when empty",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   "table",
				Usage:   "Output format (table, json)",
			},
			&cli.StringFlag{
				Name:  "spike-multiplier",
				Value: "1.5",
				Usage: "Spike threshold as a multiple of the trailing average",
			},
			&cli.StringFlag{
				Name:  "spike-floor",
				Value: "100",
				Usage: "Minimum daily cost for a spike alert",
			},
			&cli.StringFlag{
				Name:  "fail-on",
				Usage: "Exit with status 2 when an alert at or above this level is raised (Info, Warning, Critical)",
			},
		},
		Action: runEvaluate,
	}
}

func runEvaluate(c *cli.Context) error {
	records, err := readRecords(c.String("records"))
	if err != nil {
		return err
	}

	thresholds := threshold.DefaultThresholds()
	if path := c.String("thresholds"); path != "" {
		thresholds, err = threshold.LoadFile(path)
		if err != nil {
			return err
		}
	}

	anomaly := alerting.DefaultAnomalyConfig()
	if anomaly.SpikeMultiplier, err = decimal.NewFromString(c.String("spike-multiplier")); err != nil {
		return fmt.Errorf("invalid --spike-multiplier: %w", err)
	}
	if anomaly.MinimumCost, err = decimal.NewFromString(c.String("spike-floor")); err != nil {
		return fmt.Errorf("invalid --spike-floor: %w", err)
	}
	if err := anomaly.Validate(); err != nil {
		return err
	}

	logger := config.LoggingConfig{Level: c.String("log-level"), Format: "text"}.NewLogger(c.App.ErrWriter)
	engine := alerting.NewEngine(threshold.NewStaticProvider(thresholds), logger, alerting.WithAnomalyConfig(anomaly))

	alerts, err := engine.EvaluateAlerts(context.Background(), records)
	if err != nil {
		return err
	}

	switch c.String("format") {
	case "json":
		if err := outputJSON(c.App.Writer, alerts); err != nil {
			return err
		}
	case "table":
		outputTable(c.App.Writer, alerts)
	default:
		return fmt.Errorf("unknown format %q", c.String("format"))
	}

	if level := c.String("fail-on"); level != "" {
		if !model.AlertLevel(level).Valid() {
			return fmt.Errorf("invalid --fail-on level %q", level)
		}
		if reached(alerts, model.AlertLevel(level)) {
			return cli.Exit(fmt.Sprintf("alerts at or above %s raised", level), 2)
		}
	}
	return nil
}

func readRecords(path string) ([]model.CostRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}

	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var records []model.CostRecord
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("failed to parse records: %w", err)
		}
		return records, nil
	}

	var wrapped struct {
		Records []model.CostRecord `json:"records"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to parse records: %w", err)
	}
	return wrapped.Records, nil
}

var levelOrder = map[model.AlertLevel]int{
	model.AlertLevelInfo:     1,
	model.AlertLevelWarning:  2,
	model.AlertLevelCritical: 3,
}

func reached(alerts []model.CostAlert, floor model.AlertLevel) bool {
	for _, a := range alerts {
		if levelOrder[a.Level] >= levelOrder[floor] {
			return true
		}
	}
	return false
}

func outputJSON(w io.Writer, alerts []model.CostAlert) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Alerts  []model.CostAlert  `json:"alerts"`
		Summary model.AlertSummary `json:"summary"`
	}{alerts, alerting.Summarize(alerts)})
}

func outputTable(w io.Writer, alerts []model.CostAlert) {
	if len(alerts) == 0 {
		fmt.Fprintln(w, "No alerts triggered.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LEVEL\tTYPE\tTHRESHOLD\tSCOPE\tCURRENT\tLIMIT\tOVER")
	for _, a := range alerts {
		scope := "global"
		switch {
		case a.ServiceName != "":
			scope = "service: " + a.ServiceName
		case a.ResourceGroup != "":
			scope = "resource group: " + a.ResourceGroup
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t$%s\t$%s\t%s%%\n",
			a.Level, a.Type, a.ThresholdID, scope,
			a.CurrentCost.StringFixed(2), a.ThresholdAmount.StringFixed(2), a.PercentageOver.StringFixed(2),
		)
	}
	tw.Flush()

	s := alerting.Summarize(alerts)
	fmt.Fprintf(w, "\n%d alerts (critical %d, warning %d, info %d)\n", s.TotalCount, s.CriticalCount, s.WarningCount, s.InfoCount)
}

// =============================================================================
// THRESHOLDS COMMAND
// =============================================================================

func thresholdsCommand() *cli.Command {
	return &cli.Command{
		Name:  "thresholds",
		Usage: "Threshold file tooling",
		Subcommands: []*cli.Command{
			{
				Name:  "validate",
				Usage: "Validate a threshold file",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Required: true, Usage: "Threshold file (.hcl, .yaml, .yml)"},
				},
				Action: func(c *cli.Context) error {
					thresholds, err := threshold.LoadFile(c.String("file"))
					if err != nil {
						return err
					}
					enabled := 0
					for _, t := range thresholds {
						if t.IsEnabled {
							enabled++
						}
					}
					fmt.Fprintf(c.App.Writer, "%s: %d thresholds valid (%d enabled)\n", c.String("file"), len(thresholds), enabled)
					return nil
				},
			},
			{
				Name:  "defaults",
				Usage: "Print the built-in default thresholds",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "format", Value: "json", Usage: "Output format (json, hcl, yaml)"},
				},
				Action: func(c *cli.Context) error {
					return writeThresholds(c.App.Writer, threshold.DefaultThresholds(), c.String("format"))
				},
			},
		},
	}
}

func writeThresholds(w io.Writer, thresholds []model.CostThreshold, format string) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(thresholds)
	case "hcl":
		_, err := w.Write(threshold.EncodeHCL(thresholds))
		return err
	case "yaml", "yml":
		out, err := threshold.EncodeYAML(thresholds)
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

// =============================================================================
// HASH-KEY COMMAND
// =============================================================================

func hashKeyCommand() *cli.Command {
	return &cli.Command{
		Name:  "hash-key",
		Usage: "Print the bcrypt hash of an API key for API_KEY_HASHES",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "key", Required: true, Usage: "API key to hash", EnvVars: []string{"SMARTCOST_API_KEY"}},
		},
		Action: func(c *cli.Context) error {
			hash, err := auth.HashAPIKey(c.String("key"))
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, hash)
			return nil
		},
	}
}
