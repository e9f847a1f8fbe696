package stability

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/testgpt-run/testgpt/internal/domain"
)

func newTracker(t *testing.T, cfg Config) *Tracker {
	t.Helper()
	tr, err := New(zerolog.Nop(), filepath.Join(t.TempDir(), "stability.json"), cfg)
	require.NoError(t, err)
	return tr
}

func TestRecordComputesFlakeRate(t *testing.T) {
	tr := newTracker(t, Config{WindowSize: 10, MinRuns: 2})

	tr.Record("sc1", domain.StabilityPass, "run1")
	metrics := tr.Record("sc1", domain.StabilityFail, "run2")

	require.Equal(t, 1, metrics.PassCount)
	require.Equal(t, 1, metrics.FailCount)
	require.InDelta(t, 0.5, metrics.FlakeRate, 0.0001)
}

func TestAutoQuarantineOnConsecutiveFailures(t *testing.T) {
	tr := newTracker(t, Config{WindowSize: 10, MinRuns: 10, AutoQuarantine: true, ConsecutiveFailuresThreshold: 3})

	tr.Record("sc1", domain.StabilityFail, "run1")
	tr.Record("sc1", domain.StabilityFail, "run2")
	require.False(t, tr.IsQuarantined("sc1"))

	tr.Record("sc1", domain.StabilityFail, "run3")
	require.True(t, tr.IsQuarantined("sc1"))
}

func TestAutoQuarantineOnFlakeRateThreshold(t *testing.T) {
	tr := newTracker(t, Config{WindowSize: 10, MinRuns: 3, FlakeThreshold: 0.3, AutoQuarantine: true})

	tr.Record("sc1", domain.StabilityPass, "run1")
	tr.Record("sc1", domain.StabilityFail, "run2")
	metrics := tr.Record("sc1", domain.StabilityFail, "run3")

	require.True(t, tr.IsQuarantined("sc1"))
	require.GreaterOrEqual(t, metrics.FlakeRate, 0.3)
}

func TestAutoUnquarantineRequiresAutoQuarantinedOrigin(t *testing.T) {
	tr := newTracker(t, Config{WindowSize: 10, MinRuns: 1, UnquarantineThreshold: 0.5, AutoUnquarantine: true})

	require.NoError(t, tr.Quarantine("sc1", "manual review"))
	tr.Record("sc1", domain.StabilityPass, "run1")

	require.True(t, tr.IsQuarantined("sc1"), "manual quarantine must not auto-lift")
}

func TestAutoUnquarantineOnRecoveredStability(t *testing.T) {
	tr := newTracker(t, Config{
		WindowSize: 10, MinRuns: 3, FlakeThreshold: 0.3, AutoQuarantine: true,
		UnquarantineThreshold: 0.9, AutoUnquarantine: true,
	})

	tr.Record("sc1", domain.StabilityFail, "run1")
	tr.Record("sc1", domain.StabilityFail, "run2")
	tr.Record("sc1", domain.StabilityFail, "run3")
	require.True(t, tr.IsQuarantined("sc1"))

	for i := 0; i < 10; i++ {
		tr.Record("sc1", domain.StabilityPass, "run-recover")
	}
	require.False(t, tr.IsQuarantined("sc1"))
}

func TestManualQuarantineAndUnquarantine(t *testing.T) {
	tr := newTracker(t, Config{})

	require.NoError(t, tr.Quarantine("sc1", "investigating a regression"))
	require.True(t, tr.IsQuarantined("sc1"))

	require.NoError(t, tr.Unquarantine("sc1"))
	require.False(t, tr.IsQuarantined("sc1"))
}

func TestPersistenceSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stability.json")

	tr1, err := New(zerolog.Nop(), path, Config{})
	require.NoError(t, err)
	tr1.Record("sc1", domain.StabilityPass, "run1")
	require.NoError(t, tr1.Quarantine("sc2", "manual"))

	tr2, err := New(zerolog.Nop(), path, Config{})
	require.NoError(t, err)
	require.Equal(t, 1, tr2.Metrics("sc1").PassCount)
	require.True(t, tr2.IsQuarantined("sc2"))
}
