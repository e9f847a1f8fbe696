package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/testgpt-run/testgpt/internal/domain"
	"github.com/testgpt-run/testgpt/internal/intake"
)

var runCmd = &cobra.Command{
	Use:   "run <message...>",
	Short: "Feed a natural-language testing request through the pipeline and print the result",
	Long: `Runs one natural-language testing request end to end: parses it into a
test matrix, executes every cell, aggregates the results, and prints the
emitted summary.

The message is fed through Event Intake (C9) exactly as a chat-surface
adapter would, so dedup/freshness/backpressure/validation all apply.

Examples:
  testgpt run "test the signup flow at https://example.com on mobile"
  testgpt run "re-run last"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	c, err := wireCore()
	if err != nil {
		return err
	}

	in := intake.New(c.log, c.cfg.Storage.Root+"/.intake.lock")
	ev := domain.Event{
		EventID:   uuid.NewString(),
		Timestamp: time.Now(),
		Channel:   "cli",
		User:      "local",
		Body:      "@testgpt " + strings.Join(args, " "),
	}

	release, err := in.Admit(ev)
	if err != nil {
		return fmt.Errorf("intake rejected request: %w", err)
	}
	defer release()

	ctx := context.Background()
	orc, err := c.newOrchestrator(ctx)
	if err != nil {
		return err
	}

	artifact, err := orc.Run(ctx, intake.Message(ev.Body))
	if err != nil {
		return err
	}

	fmt.Println(artifact.Summary)
	return nil
}
