// SmartCost CLI - offline alert evaluation and threshold tooling
//
// Usage:
//
//	smartcostctl evaluate --records records.json [--thresholds thresholds.hcl]
//	smartcostctl thresholds validate --file thresholds.yaml
//	smartcostctl thresholds defaults --format hcl
//	smartcostctl hash-key --key <api key>
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

var version = "dev"

func main() {
	app := newApp()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "smartcostctl",
		Usage:   "Evaluate cost alerts and manage threshold files",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "warn",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Commands: []*cli.Command{
			evaluateCommand(),
			thresholdsCommand(),
			hashKeyCommand(),
		},
	}
}
