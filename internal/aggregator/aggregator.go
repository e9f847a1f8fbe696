// Package aggregator rolls up a slice of CellResults into a single
// RunArtifact (C7): priority grouping, per-dimension pass-rate
// rollups, and a human-readable summary (§4.7).
package aggregator

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/testgpt-run/testgpt/internal/domain"
)

// Aggregate builds the RunArtifact for one orchestration run, per the
// rollup shape §3/§4.7 specify. matrixCells supplies the (viewport,
// browser, network) profile names each result's cell_id ran under,
// since CellResult itself does not carry them.
func Aggregate(runID, scenarioID, scenarioName string, started, completed time.Time, matrixCells []domain.MatrixCell, results []domain.CellResult) domain.RunArtifact {
	artifact := domain.RunArtifact{
		RunID:              runID,
		ScenarioID:         scenarioID,
		StartedAt:          started,
		CompletedAt:        completed,
		TotalCells:         len(results),
		CellResults:        results,
		FailuresByPriority: map[domain.FailurePriority][]string{domain.PriorityP0: {}, domain.PriorityP1: {}, domain.PriorityP2: {}},
	}

	for _, cell := range results {
		if cell.Status == domain.CellPass {
			artifact.PassedCells++
		} else {
			artifact.FailedCells++
			if cell.FailurePriority != "" {
				artifact.FailuresByPriority[cell.FailurePriority] = append(
					artifact.FailuresByPriority[cell.FailurePriority], cell.CellID)
			}
		}
	}

	artifact.ByViewport, artifact.ByBrowser, artifact.ByNetwork = RollupByCells(matrixCells, results)
	artifact.OverallStatus = classifyOverall(artifact.PassedCells, artifact.FailedCells)
	artifact.Summary = buildSummary(scenarioID, scenarioName, runID, artifact)
	return artifact
}

func classifyOverall(passed, failed int) domain.OverallStatus {
	switch {
	case failed == 0:
		return domain.OverallPass
	case passed == 0:
		return domain.OverallFail
	default:
		return domain.OverallPartial
	}
}

// RollupByCells computes by_viewport/by_browser/by_network dimension
// counts. Takes the originating MatrixCells alongside their results
// since CellResult itself does not carry profile names (§3).
func RollupByCells(cells []domain.MatrixCell, results []domain.CellResult) (byViewport, byBrowser, byNetwork map[string]domain.DimensionCount) {
	byViewport = map[string]domain.DimensionCount{}
	byBrowser = map[string]domain.DimensionCount{}
	byNetwork = map[string]domain.DimensionCount{}

	resultByID := make(map[string]domain.CellResult, len(results))
	for _, r := range results {
		resultByID[r.CellID] = r
	}

	bump := func(m map[string]domain.DimensionCount, key string, pass bool) {
		c := m[key]
		c.Total++
		if pass {
			c.Pass++
		}
		m[key] = c
	}

	for _, cell := range cells {
		r, ok := resultByID[cell.CellID]
		pass := ok && r.Status == domain.CellPass
		bump(byViewport, cell.Viewport.Name, pass)
		bump(byBrowser, cell.Browser.Name, pass)
		bump(byNetwork, cell.Network.Name, pass)
	}
	return byViewport, byBrowser, byNetwork
}

// buildSummary renders the human-readable block §4.7 specifies: header,
// P0→P1→P2 critical-failures block, environment breakdown, and an
// actionable next-steps block with the verbatim re-run invocation
// string (§4.7's final bullet).
func buildSummary(scenarioID, scenarioName, runID string, artifact domain.RunArtifact) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Scenario: %s (%s)\nRun: %s\nOverall: %s (%d/%d cells passed)\n\n",
		scenarioName, scenarioID, runID, artifact.OverallStatus, artifact.PassedCells, artifact.TotalCells)

	wroteFailures := false
	for _, priority := range []domain.FailurePriority{domain.PriorityP0, domain.PriorityP1, domain.PriorityP2} {
		ids := artifact.FailuresByPriority[priority]
		if len(ids) == 0 {
			continue
		}
		if !wroteFailures {
			sb.WriteString("Critical failures:\n")
			wroteFailures = true
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Fprintf(&sb, "  [%s] %s\n", priority, id)
		}
	}
	if wroteFailures {
		sb.WriteString("\n")
	}

	if len(artifact.ByViewport) > 0 || len(artifact.ByBrowser) > 0 || len(artifact.ByNetwork) > 0 {
		sb.WriteString("Environment breakdown:\n")
		writeDimension(&sb, "viewport", artifact.ByViewport)
		writeDimension(&sb, "browser", artifact.ByBrowser)
		writeDimension(&sb, "network", artifact.ByNetwork)
		sb.WriteString("\n")
	}

	sb.WriteString("Next steps:\n")
	if artifact.FailedCells == 0 {
		fmt.Fprintf(&sb, "  All cells passed; no action needed. To run it again: re-run %s\n", scenarioName)
	} else {
		fmt.Fprintf(&sb, "  Investigate the failures above, then re-run %s to verify a fix.\n", scenarioName)
	}

	return sb.String()
}

func writeDimension(sb *strings.Builder, label string, counts map[string]domain.DimensionCount) {
	if len(counts) == 0 {
		return
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := counts[name]
		fmt.Fprintf(sb, "  %s %s: %d/%d passed\n", label, name, c.Pass, c.Total)
	}
}
