package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var replayCmd = &cobra.Command{
	Use:   "replay <reference>",
	Short: `Convenience for "re-run <reference>"`,
	Long: `Replays a previously run scenario, resolved the same way a chat-surface
"re-run" message would be: by scenario_id, a substring of the scenario
name, a substring of the target URL's host, or "last" for the most recently
active scenario.

Examples:
  testgpt replay last
  testgpt replay signup`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	c, err := wireCore()
	if err != nil {
		return err
	}

	ctx := context.Background()
	orc, err := c.newOrchestrator(ctx)
	if err != nil {
		return err
	}

	artifact, err := orc.Run(ctx, fmt.Sprintf("re-run %s", args[0]))
	if err != nil {
		return err
	}

	fmt.Println(artifact.Summary)
	return nil
}
