package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/testgpt-run/testgpt/internal/domain"
)

func testScenario(id, name, url string) domain.ScenarioDefinition {
	return domain.ScenarioDefinition{
		ScenarioID:   id,
		ScenarioName: name,
		TargetURL:    url,
		CreatedAt:    time.Now(),
		LastRunAt:    time.Now(),
	}
}

func TestSaveLoadScenarioRoundTrip(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	def := testScenario("abc", "Example Landing", "example.com")
	require.NoError(t, s.SaveScenario(def))

	loaded, err := s.LoadScenario("abc")
	require.NoError(t, err)
	require.Equal(t, def.ScenarioName, loaded.ScenarioName)
}

func TestSaveScenarioPreservesCreatedAt(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	first := testScenario("abc", "Example", "example.com")
	first.CreatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, s.SaveScenario(first))

	second := first
	second.LastRunAt = time.Now()
	require.NoError(t, s.SaveScenario(second))

	loaded, err := s.LoadScenario("abc")
	require.NoError(t, err)
	require.True(t, loaded.CreatedAt.Equal(first.CreatedAt))
	require.True(t, loaded.LastRunAt.After(first.CreatedAt))
}

func TestFindScenarioResolutionOrder(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.SaveScenario(testScenario("sc1", "Pointblank Signup", "pointblank.club")))

	found, err := s.FindScenario("pointblank")
	require.NoError(t, err)
	require.Equal(t, "sc1", found.ScenarioID)

	_, err = s.FindScenario("does-not-exist")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFindScenarioAmbiguous(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.SaveScenario(testScenario("sc1", "Alpha Signup", "alpha.example")))
	require.NoError(t, s.SaveScenario(testScenario("sc2", "Alpha Pricing", "alpha-two.example")))

	_, err = s.FindScenario("alpha")
	require.ErrorIs(t, err, ErrAmbiguous)
}

func TestResolveLastReturnsMostRecent(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	older := testScenario("sc1", "Older", "a.example")
	older.LastRunAt = time.Now().Add(-time.Hour)
	newer := testScenario("sc2", "Newer", "b.example")
	newer.LastRunAt = time.Now()

	require.NoError(t, s.SaveScenario(older))
	require.NoError(t, s.SaveScenario(newer))

	resolved, err := s.ResolveLast()
	require.NoError(t, err)
	require.Equal(t, "sc2", resolved.ScenarioID)
}

func TestResolveLastNoHistory(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	_, err = s.ResolveLast()
	require.ErrorIs(t, err, ErrNoHistory)
}

func TestSaveRunArtifactWriteOnce(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	artifact := domain.RunArtifact{RunID: "run-1", ScenarioID: "sc1"}
	require.NoError(t, s.SaveRunArtifact(artifact))

	err = s.SaveRunArtifact(artifact)
	require.ErrorIs(t, err, ErrDuplicate)

	loaded, err := s.LoadRunArtifact("run-1")
	require.NoError(t, err)
	require.Equal(t, "sc1", loaded.ScenarioID)
}
