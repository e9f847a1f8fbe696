package executor

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/testgpt-run/testgpt/internal/agent"
	"github.com/testgpt-run/testgpt/internal/browsertool"
	"github.com/testgpt-run/testgpt/internal/domain"
)

func testCell(viewportName, networkName string) domain.MatrixCell {
	return domain.MatrixCell{
		CellID:   "cell-1",
		Viewport: domain.ViewportProfile{Name: viewportName, DisplayName: viewportName, Width: 390, Height: 844},
		Browser:  domain.BrowserProfile{Name: "chromium-desktop", DisplayName: "Chromium"},
		Network:  domain.NetworkProfile{Name: networkName, DisplayName: networkName},
		Flow: domain.TestFlow{
			FlowName: "landing",
			Steps: []domain.TestStep{
				{StepNumber: 1, Action: domain.ActionNavigate, ExpectedOutcome: "page loads"},
			},
		},
	}
}

type fakeToolHandle struct {
	pairID string
}

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

type fakeHandler struct {
	acquireErr error
	evicted    bool
	released   bool
}

func (f *fakeHandler) Acquire(ctx context.Context, vp domain.ViewportProfile, br domain.BrowserProfile, np domain.NetworkProfile) (ToolHandle, error) {
	if f.acquireErr != nil {
		return nil, f.acquireErr
	}
	return &fakeToolHandle{pairID: vp.Name + "|" + br.Name}, nil
}
func (f *fakeHandler) Release(ToolHandle)                                   { f.released = true }
func (f *fakeHandler) Evict(domain.ViewportProfile, domain.BrowserProfile)  { f.evicted = true }

type fakeAgent struct {
	text string
	err  error
}

func (a *fakeAgent) Run(ctx context.Context, prompt string, exec agent.ToolExecutor) (string, error) {
	return a.text, a.err
}

func TestExecutePassOnBaselineReleasesHandle(t *testing.T) {
	h := &fakeHandler{}
	e := New(zerolog.Nop(), h, &fakeAgent{text: "test status: PASS"}, time.Second)

	result := e.Execute(context.Background(), testCell("desktop-standard", domain.NormalNetwork), "check the landing page")
	require.Equal(t, domain.CellPass, result.Status)
	require.True(t, h.released)
}

func TestExecuteClassifiesP1OnNetworkInduced(t *testing.T) {
	h := &fakeHandler{}
	e := New(zerolog.Nop(), h, &fakeAgent{text: "test status: FAIL - timed out"}, time.Second)

	result := e.Execute(context.Background(), testCell("desktop-standard", "slow-3g"), "check the landing page")
	require.Equal(t, domain.CellFail, result.Status)
	require.Equal(t, domain.PriorityP1, result.FailurePriority)
}

func TestExecuteClassifiesP2OnEdgeViewport(t *testing.T) {
	h := &fakeHandler{}
	e := New(zerolog.Nop(), h, &fakeAgent{text: "test status: FAIL"}, time.Second)

	result := e.Execute(context.Background(), testCell("android-medium", domain.NormalNetwork), "check the landing page")
	require.Equal(t, domain.PriorityP2, result.FailurePriority)
}

func TestExecuteLaunchFailureIsP0(t *testing.T) {
	h := &fakeHandler{acquireErr: errLaunchFailed{}}
	e := New(zerolog.Nop(), h, &fakeAgent{text: "test status: PASS"}, time.Second)

	result := e.Execute(context.Background(), testCell("desktop-standard", domain.NormalNetwork), "check")
	require.Equal(t, domain.CellFail, result.Status)
	require.Equal(t, domain.PriorityP0, result.FailurePriority)
	require.Equal(t, "subprocess launch failed", result.FailureSummary)
}

type errLaunchFailed struct{}

func (errLaunchFailed) Error() string { return "launch failed" }
