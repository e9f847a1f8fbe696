package orchestrator

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/testgpt-run/testgpt/internal/agent"
	"github.com/testgpt-run/testgpt/internal/browsertool"
	"github.com/testgpt-run/testgpt/internal/catalog"
	"github.com/testgpt-run/testgpt/internal/domain"
	"github.com/testgpt-run/testgpt/internal/executor"
	"github.com/testgpt-run/testgpt/internal/parser"
	"github.com/testgpt-run/testgpt/internal/planbuilder"
	"github.com/testgpt-run/testgpt/internal/stability"
	"github.com/testgpt-run/testgpt/internal/store"
)

func testCatalog() *catalog.Catalog {
	return catalog.New(
		[]domain.ViewportProfile{
			{Name: "desktop-standard", DisplayName: "Desktop", Width: 1440, Height: 900},
		},
		[]domain.BrowserProfile{
			{Name: "chromium-desktop", DisplayName: "Chromium", Engine: domain.EngineChromium, Platform: domain.PlatformDesktop},
		},
		[]domain.NetworkProfile{
			{Name: domain.NormalNetwork, DisplayName: "Normal"},
		},
		nil,
	)
}

type fakeToolHandle struct{ pairID string }

func (f *fakeToolHandle) Navigate(ctx context.Context, url string) error { return nil }
func (f *fakeToolHandle) Click(ctx context.Context, selector string, timeout time.Duration) error {
	return nil
}
func (f *fakeToolHandle) Fill(ctx context.Context, selector, value string, timeout time.Duration) error {
	return nil
}
func (f *fakeToolHandle) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	return nil
}
func (f *fakeToolHandle) AssertVisible(ctx context.Context, selector string, timeout time.Duration) (bool, error) {
	return true, nil
}
func (f *fakeToolHandle) Screenshot(ctx context.Context, path string) error { return nil }
func (f *fakeToolHandle) ConsoleMessages() []browsertool.ConsoleMessage     { return nil }
func (f *fakeToolHandle) PairID() string                                   { return f.pairID }

type fakePool struct {
	shutdownCalled bool
}

func (f *fakePool) Acquire(ctx context.Context, vp domain.ViewportProfile, br domain.BrowserProfile, np domain.NetworkProfile) (executor.ToolHandle, error) {
	return &fakeToolHandle{pairID: vp.Name + "|" + br.Name}, nil
}
func (f *fakePool) Release(executor.ToolHandle)                          {}
func (f *fakePool) Evict(domain.ViewportProfile, domain.BrowserProfile) {}
func (f *fakePool) Shutdown()                                            { f.shutdownCalled = true }

type fakeAgent struct{}

func (fakeAgent) Run(ctx context.Context, prompt string, exec agent.ToolExecutor) (string, error) {
	return "test status: PASS", nil
}

func TestRunEndToEndPersistsScenarioAndArtifact(t *testing.T) {
	cat := testCatalog()
	p := parser.New(cat)
	b := planbuilder.New(cat)
	st, err := store.New(t.TempDir())
	require.NoError(t, err)
	pool := &fakePool{}

	orc := New(zerolog.Nop(), cat, p, b, st, pool, fakeAgent{}, time.Second, 1, nil)

	artifact, err := orc.Run(context.Background(), "test the landing page at https://example.com on desktop")
	require.NoError(t, err)
	require.Equal(t, domain.OverallPass, artifact.OverallStatus)
	require.True(t, pool.shutdownCalled)

	scenarios, err := st.ListAllScenarios()
	require.NoError(t, err)
	require.Len(t, scenarios, 1)

	loaded, err := st.LoadRunArtifact(artifact.RunID)
	require.NoError(t, err)
	require.Equal(t, artifact.ScenarioID, loaded.ScenarioID)
}

func TestRunRerunResolvesLastScenario(t *testing.T) {
	cat := testCatalog()
	p := parser.New(cat)
	b := planbuilder.New(cat)
	st, err := store.New(t.TempDir())
	require.NoError(t, err)
	pool := &fakePool{}
	orc := New(zerolog.Nop(), cat, p, b, st, pool, fakeAgent{}, time.Second, 1, nil)

	_, err = orc.Run(context.Background(), "test the landing page at https://example.com on desktop")
	require.NoError(t, err)

	artifact, err := orc.Run(context.Background(), "re-run last")
	require.NoError(t, err)
	require.Equal(t, domain.OverallPass, artifact.OverallStatus)
}

func TestRunRerunResolvesOtherSpecialReferences(t *testing.T) {
	for _, phrase := range []string{"re-run latest", "re-run most recent", "re-run last test"} {
		cat := testCatalog()
		p := parser.New(cat)
		b := planbuilder.New(cat)
		st, err := store.New(t.TempDir())
		require.NoError(t, err)
		pool := &fakePool{}
		orc := New(zerolog.Nop(), cat, p, b, st, pool, fakeAgent{}, time.Second, 1, nil)

		_, err = orc.Run(context.Background(), "test the landing page at https://example.com on desktop")
		require.NoError(t, err)

		artifact, err := orc.Run(context.Background(), phrase)
		require.NoError(t, err, "phrase %q should resolve via ResolveLast", phrase)
		require.Equal(t, domain.OverallPass, artifact.OverallStatus)
	}
}

type failingAgent struct{}

func (failingAgent) Run(ctx context.Context, prompt string, exec agent.ToolExecutor) (string, error) {
	return "test status: FAIL - broken", nil
}

func TestRunAnnotatesSummaryWhenScenarioQuarantined(t *testing.T) {
	cat := testCatalog()
	p := parser.New(cat)
	b := planbuilder.New(cat)
	st, err := store.New(t.TempDir())
	require.NoError(t, err)

	tracker, err := stability.New(zerolog.Nop(), filepath.Join(t.TempDir(), "stability.json"), stability.Config{
		WindowSize: 10, MinRuns: 1, AutoQuarantine: true, ConsecutiveFailuresThreshold: 2,
	})
	require.NoError(t, err)

	message := "test the landing page at https://example.com on desktop"
	for i := 0; i < 2; i++ {
		pool := &fakePool{}
		orc := New(zerolog.Nop(), cat, p, b, st, pool, failingAgent{}, time.Second, 1, tracker)
		artifact, err := orc.Run(context.Background(), message)
		require.NoError(t, err)
		if i == 1 {
			require.Contains(t, artifact.Summary, "Stability:")
			require.Contains(t, artifact.Summary, "quarantined=true")
		}
	}
}
