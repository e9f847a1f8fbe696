package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "Read-only Scenario Store inspection",
	RunE:  requireSubcommand,
}

var scenariosListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every persisted scenario",
	RunE:  runScenariosList,
}

var scenariosShowCmd = &cobra.Command{
	Use:   "show <scenario_id>",
	Short: "Print one persisted scenario as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runScenariosShow,
}

func init() {
	scenariosCmd.AddCommand(scenariosListCmd)
	scenariosCmd.AddCommand(scenariosShowCmd)
	rootCmd.AddCommand(scenariosCmd)
}

func runScenariosList(cmd *cobra.Command, args []string) error {
	c, err := wireCore()
	if err != nil {
		return err
	}

	summaries, err := c.store.ListAllScenarios()
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Println("no scenarios recorded yet")
		return nil
	}
	for _, s := range summaries {
		quarantined := ""
		if c.stability.IsQuarantined(s.ScenarioID) {
			quarantined = " [quarantined]"
		}
		fmt.Printf("%s  %-30s  %-40s  last run %s%s\n",
			s.ScenarioID, s.ScenarioName, s.TargetURL, s.LastRunAt.Format("2006-01-02 15:04:05"), quarantined)
	}
	return nil
}

func runScenariosShow(cmd *cobra.Command, args []string) error {
	c, err := wireCore()
	if err != nil {
		return err
	}

	def, err := c.store.FindScenario(args[0])
	if err != nil {
		return fmt.Errorf("finding scenario %q: %w", args[0], err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(def)
}
