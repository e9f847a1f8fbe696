package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/testgpt-run/testgpt/internal/domain"
	"github.com/testgpt-run/testgpt/internal/intake"
)

var intakeCmd = &cobra.Command{
	Use:   "intake",
	Short: "Run Event Intake as a long-lived loop",
	RunE:  requireSubcommand,
}

var intakeServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Read newline-delimited intake events from stdin and orchestrate each admitted one",
	Long: `Reads one JSON-encoded event per line from stdin:

  {"event_id":"...", "timestamp":"2026-07-31T12:00:00Z", "channel":"slack", "user":"u1", "body":"@testgpt test ..."}

Each line is passed through Admit (dedup, freshness, single-in-flight,
validation); admitted events are orchestrated and their summary is
printed to stdout. This is the minimal concrete realization of §6's
"stream of tuples" intake surface, intended for a thin adapter to pipe
into.`,
	RunE: runIntakeServe,
}

func init() {
	intakeCmd.AddCommand(intakeServeCmd)
	rootCmd.AddCommand(intakeCmd)
}

// wireEvent is the wire shape one line of `intake serve`'s stdin takes.
type wireEvent struct {
	EventID   string    `json:"event_id"`
	Timestamp time.Time `json:"timestamp"`
	Channel   string    `json:"channel"`
	User      string    `json:"user"`
	Body      string    `json:"body"`
}

func runIntakeServe(cmd *cobra.Command, args []string) error {
	c, err := wireCore()
	if err != nil {
		return err
	}
	in := intake.New(c.log, c.cfg.Storage.Root+"/.intake.lock")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var we wireEvent
		if err := json.Unmarshal(line, &we); err != nil {
			c.log.Warn().Err(err).Msg("dropping malformed intake line")
			continue
		}
		ev := domain.Event{EventID: we.EventID, Timestamp: we.Timestamp, Channel: we.Channel, User: we.User, Body: we.Body}

		release, err := in.Admit(ev)
		if err != nil {
			c.log.Info().Str("event_id", ev.EventID).Err(err).Msg("event not admitted")
			continue
		}

		func() {
			defer release()
			ctx := context.Background()
			orc, err := c.newOrchestrator(ctx)
			if err != nil {
				c.log.Error().Err(err).Msg("failed to wire orchestrator")
				return
			}
			artifact, err := orc.Run(ctx, intake.Message(ev.Body))
			if err != nil {
				c.log.Error().Err(err).Str("event_id", ev.EventID).Msg("orchestration failed")
				return
			}
			fmt.Println(artifact.Summary)
		}()
	}
	return scanner.Err()
}
