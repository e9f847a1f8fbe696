package aggregator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/testgpt-run/testgpt/internal/domain"
)

func cellFor(id, viewport, browser, network string, status domain.CellStatus, priority domain.FailurePriority) (domain.MatrixCell, domain.CellResult) {
	mc := domain.MatrixCell{
		CellID:   id,
		Viewport: domain.ViewportProfile{Name: viewport},
		Browser:  domain.BrowserProfile{Name: browser},
		Network:  domain.NetworkProfile{Name: network},
	}
	cr := domain.CellResult{CellID: id, Status: status, FailurePriority: priority}
	return mc, cr
}

func TestAggregateOverallPassWhenNoFailures(t *testing.T) {
	mc1, cr1 := cellFor("c1", "desktop-standard", "chromium-desktop", domain.NormalNetwork, domain.CellPass, "")
	artifact := Aggregate("run1", "sc1", "Landing", time.Now(), time.Now(), []domain.MatrixCell{mc1}, []domain.CellResult{cr1})
	require.Equal(t, domain.OverallPass, artifact.OverallStatus)
	require.Equal(t, 1, artifact.PassedCells)
	require.Equal(t, 0, artifact.FailedCells)
}

func TestAggregateOverallFailWhenAllFail(t *testing.T) {
	mc1, cr1 := cellFor("c1", "desktop-standard", "chromium-desktop", domain.NormalNetwork, domain.CellFail, domain.PriorityP0)
	artifact := Aggregate("run1", "sc1", "Landing", time.Now(), time.Now(), []domain.MatrixCell{mc1}, []domain.CellResult{cr1})
	require.Equal(t, domain.OverallFail, artifact.OverallStatus)
}

func TestAggregatePartialWhenMixed(t *testing.T) {
	mc1, cr1 := cellFor("c1", "desktop-standard", "chromium-desktop", domain.NormalNetwork, domain.CellPass, "")
	mc2, cr2 := cellFor("c2", "iphone-13-pro", "webkit-ios", "slow-3g", domain.CellFail, domain.PriorityP1)
	artifact := Aggregate("run1", "sc1", "Landing", time.Now(), time.Now(),
		[]domain.MatrixCell{mc1, mc2}, []domain.CellResult{cr1, cr2})
	require.Equal(t, domain.OverallPartial, artifact.OverallStatus)
	require.Equal(t, []string{"c2"}, artifact.FailuresByPriority[domain.PriorityP1])
}

func TestAggregatePriorityOrderingSafariP0ThenP1(t *testing.T) {
	mc1, cr1 := cellFor("c1", "desktop-standard", "webkit-desktop", domain.NormalNetwork, domain.CellFail, domain.PriorityP0)
	mc2, cr2 := cellFor("c2", "iphone-13-pro", "webkit-ios", "slow-3g", domain.CellFail, domain.PriorityP1)
	artifact := Aggregate("run1", "sc1", "Landing", time.Now(), time.Now(),
		[]domain.MatrixCell{mc1, mc2}, []domain.CellResult{cr1, cr2})

	require.Equal(t, []string{"c1"}, artifact.FailuresByPriority[domain.PriorityP0])
	require.Equal(t, []string{"c2"}, artifact.FailuresByPriority[domain.PriorityP1])
}

func TestAggregateSummaryContainsReRunInvocation(t *testing.T) {
	mc1, cr1 := cellFor("c1", "desktop-standard", "chromium-desktop", domain.NormalNetwork, domain.CellFail, domain.PriorityP0)
	artifact := Aggregate("run1", "sc1", "Pointblank Signup", time.Now(), time.Now(), []domain.MatrixCell{mc1}, []domain.CellResult{cr1})
	require.Contains(t, artifact.Summary, "re-run Pointblank Signup")
}

func TestRollupByCellsCountsPassTotal(t *testing.T) {
	mc1, cr1 := cellFor("c1", "desktop-standard", "chromium-desktop", domain.NormalNetwork, domain.CellPass, "")
	mc2, cr2 := cellFor("c2", "desktop-standard", "webkit-desktop", domain.NormalNetwork, domain.CellFail, domain.PriorityP0)
	byViewport, byBrowser, byNetwork := RollupByCells([]domain.MatrixCell{mc1, mc2}, []domain.CellResult{cr1, cr2})

	require.Equal(t, domain.DimensionCount{Pass: 1, Total: 2}, byViewport["desktop-standard"])
	require.Equal(t, domain.DimensionCount{Pass: 1, Total: 1}, byBrowser["chromium-desktop"])
	require.Equal(t, domain.DimensionCount{Pass: 1, Total: 2}, byNetwork[domain.NormalNetwork])
}
