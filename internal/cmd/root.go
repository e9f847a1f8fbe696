// Package cmd implements the testgpt command tree (C13): the thinnest
// possible CLI front end over the core pipeline, wired together from
// config, catalog, store, pool, agent, executor, aggregator,
// orchestrator, stability, and intake (§4.13).
package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/testgpt-run/testgpt/internal/logging"
)

var (
	configPath string
	logLevel   string
	prettyLogs bool
)

var rootCmd = &cobra.Command{
	Use:   "testgpt",
	Short: "Multi-environment QA test orchestrator",
	Long: `testgpt parses a natural-language testing request into a matrix of
(flow, viewport, browser, network) cells, drives each cell through a
browser-automation subprocess with an AI model agent, and aggregates
the results into a priority-classified run report.

Examples:
  testgpt run "test the signup flow at https://example.com on mobile"
  testgpt replay last
  testgpt scenarios list
  testgpt catalog list
  testgpt intake serve`,
	RunE: requireSubcommand,
}

func requireSubcommand(cmd *cobra.Command, args []string) error {
	return cmd.Help()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.toml (defaults to built-in profiles if absent)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&prettyLogs, "pretty", false, "render logs as human-readable console output instead of JSON")
}

// Execute runs the command tree; cmd/testgpt/main.go's entire body is
// a call to this.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger() zerolog.Logger {
	return logging.New(logging.Options{Level: logLevel, Pretty: prettyLogs})
}
