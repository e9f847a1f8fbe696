// Package executor implements the Cell Executor (C6): acquiring a
// subprocess handle for one MatrixCell, driving the Model Agent
// through it, extracting a verdict, and producing a CellResult
// (§4.6).
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"text/template"
	"time"

	"github.com/rs/zerolog"

	"github.com/testgpt-run/testgpt/internal/agent"
	"github.com/testgpt-run/testgpt/internal/browsertool"
	"github.com/testgpt-run/testgpt/internal/domain"
	"github.com/testgpt-run/testgpt/internal/verdict"
)

// baselineViewports are the viewports §4.6 point 6 treats as
// "standard" for P0 classification purposes.
var baselineViewports = map[string]bool{
	"iphone-13-pro":    true,
	"ipad-air":         true,
	"desktop-standard": true,
}

// ToolHandle is the fixed tool-protocol surface executor drives.
// *browsertool.Handle satisfies this; tests use a lightweight fake
// instead of standing up a real browser subprocess.
type ToolHandle interface {
	Navigate(ctx context.Context, url string) error
	Click(ctx context.Context, selector string, timeout time.Duration) error
	Fill(ctx context.Context, selector, value string, timeout time.Duration) error
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error
	AssertVisible(ctx context.Context, selector string, timeout time.Duration) (bool, error)
	Screenshot(ctx context.Context, path string) error
	ConsoleMessages() []browsertool.ConsoleMessage
	PairID() string
}

// Handler launches subprocesses and returns ready-to-use tool
// handles. internal/orchestrator adapts internal/pool.Pool to this
// interface so executor only depends on the narrow surface it
// actually uses.
type Handler interface {
	Acquire(ctx context.Context, vp domain.ViewportProfile, br domain.BrowserProfile, np domain.NetworkProfile) (ToolHandle, error)
	Release(ToolHandle)
	Evict(vp domain.ViewportProfile, br domain.BrowserProfile)
}

// Executor runs one MatrixCell end to end.
type Executor struct {
	log       zerolog.Logger
	pool      Handler
	model     agent.Agent
	toolTimeout time.Duration
}

// New constructs an Executor.
func New(log zerolog.Logger, pool Handler, model agent.Agent, toolTimeout time.Duration) *Executor {
	return &Executor{log: log, pool: pool, model: model, toolTimeout: toolTimeout}
}

// promptTemplate composes the agent prompt per §4.6 point 2: the
// environment the cell targets, an explicit "do not resize" assertion
// structurally backed by the fixed tool catalog, the verbatim original
// user message, and the numbered steps.
var promptTemplate = template.Must(template.New("cell-prompt").Delims("{{", "}}").Parse(
	`You are operating a real browser already configured for this environment:
  viewport: {{.Viewport.DisplayName}} ({{.Viewport.Width}}x{{.Viewport.Height}})
  browser:  {{.Browser.DisplayName}}
  network:  {{.Network.DisplayName}}

The viewport and network conditions are fixed for this session. Do not
attempt to resize the window or change network conditions — no tool
exists for that, and any such attempt will be ignored.

The user's original testing request was:
"{{.UserMessage}}"

Carry out the following steps in order, using the available tools.
After the last step, state your final verdict starting with exactly
one line "test status: PASS" or "test status: FAIL", followed by a
short explanation of what you observed.

{{range .Steps}}{{.StepNumber}}. {{.ExpectedOutcome}}{{if .Target}} (target: {{.Target}}){{end}}{{if .Value}} (value: {{.Value}}){{end}}
{{end}}`))

type promptData struct {
	Viewport    domain.ViewportProfile
	Browser     domain.BrowserProfile
	Network     domain.NetworkProfile
	UserMessage string
	Steps       []domain.TestStep
}

func buildPrompt(cell domain.MatrixCell, userMessage string) (string, error) {
	var buf bytes.Buffer
	data := promptData{
		Viewport:    cell.Viewport,
		Browser:     cell.Browser,
		Network:     cell.Network,
		UserMessage: userMessage,
		Steps:       cell.Flow.Steps,
	}
	if err := promptTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering cell prompt: %w", err)
	}
	return buf.String(), nil
}

// handleExecutor adapts a browsertool.Handle to agent.ToolExecutor,
// recording every call so Execute can list the screenshots taken, and
// remembering the first protocol error a tool returned so Execute can
// evict the pair even when the agent folds that error into its reply.
type handleExecutor struct {
	handle      ToolHandle
	toolTimeout time.Duration
	calls       []agent.ToolCall
	protocolErr error
}

func (h *handleExecutor) ExecuteTool(ctx context.Context, call agent.ToolCall) (result agent.ToolResult, err error) {
	h.calls = append(h.calls, call)
	defer func() {
		var protoErr *browsertool.ErrProtocol
		if h.protocolErr == nil && errors.As(err, &protoErr) {
			h.protocolErr = err
		}
	}()
	toolCtx, cancel := context.WithTimeout(ctx, h.toolTimeout)
	defer cancel()

	switch call.Name {
	case "navigate":
		if err := h.handle.Navigate(toolCtx, call.Args["url"]); err != nil {
			return agent.ToolResult{}, err
		}
		return agent.ToolResult{Name: call.Name, Content: "navigated"}, nil
	case "click":
		if err := h.handle.Click(toolCtx, call.Args["selector"], h.toolTimeout); err != nil {
			return agent.ToolResult{}, err
		}
		return agent.ToolResult{Name: call.Name, Content: "clicked"}, nil
	case "fill":
		if err := h.handle.Fill(toolCtx, call.Args["selector"], call.Args["value"], h.toolTimeout); err != nil {
			return agent.ToolResult{}, err
		}
		return agent.ToolResult{Name: call.Name, Content: "filled"}, nil
	case "wait_for_selector":
		if err := h.handle.WaitForSelector(toolCtx, call.Args["selector"], h.toolTimeout); err != nil {
			return agent.ToolResult{}, err
		}
		return agent.ToolResult{Name: call.Name, Content: "appeared"}, nil
	case "assert_visible":
		visible, err := h.handle.AssertVisible(toolCtx, call.Args["selector"], h.toolTimeout)
		if err != nil {
			return agent.ToolResult{}, err
		}
		return agent.ToolResult{Name: call.Name, Content: strconv.FormatBool(visible)}, nil
	case "screenshot":
		name := call.Args["name"]
		if name == "" {
			name = "screenshot"
		}
		path := name + ".png"
		if err := h.handle.Screenshot(toolCtx, path); err != nil {
			return agent.ToolResult{}, err
		}
		return agent.ToolResult{Name: call.Name, Content: path}, nil
	case "console_messages":
		msgs := h.handle.ConsoleMessages()
		return agent.ToolResult{Name: call.Name, Content: fmt.Sprintf("%d messages captured", len(msgs))}, nil
	default:
		return agent.ToolResult{}, fmt.Errorf("unknown tool: %s", call.Name)
	}
}

func (h *handleExecutor) screenshots() []string {
	var out []string
	for _, c := range h.calls {
		if c.Name == "screenshot" {
			name := c.Args["name"]
			if name == "" {
				name = "screenshot"
			}
			out = append(out, name+".png")
		}
	}
	return out
}

func classifyPriority(network domain.NetworkProfile, viewport domain.ViewportProfile) domain.FailurePriority {
	if network.Name == domain.NormalNetwork && baselineViewports[viewport.Name] {
		return domain.PriorityP0
	}
	if network.Name != domain.NormalNetwork {
		return domain.PriorityP1
	}
	return domain.PriorityP2
}

// Execute runs one MatrixCell: acquire → prompt → agent loop → verdict
// → CellResult → release (or evict, on a protocol error), per §4.6 and
// §4.5's pool failure-semantics.
func (e *Executor) Execute(ctx context.Context, cell domain.MatrixCell, userMessage string) domain.CellResult {
	start := time.Now()

	handle, err := e.pool.Acquire(ctx, cell.Viewport, cell.Browser, cell.Network)
	if err != nil {
		e.log.Warn().Str("cell_id", cell.CellID).Err(err).Msg("subprocess launch failed")
		return domain.CellResult{
			CellID:          cell.CellID,
			Status:          domain.CellFail,
			DurationMs:      time.Since(start).Milliseconds(),
			FailureSummary:  "subprocess launch failed",
			FailurePriority: domain.PriorityP0,
		}
	}

	prompt, err := buildPrompt(cell, userMessage)
	if err != nil {
		e.pool.Release(handle)
		return domain.CellResult{
			CellID:          cell.CellID,
			Status:          domain.CellFail,
			DurationMs:      time.Since(start).Milliseconds(),
			FailureSummary:  err.Error(),
			FailurePriority: classifyPriority(cell.Network, cell.Viewport),
		}
	}

	exec := &handleExecutor{handle: handle, toolTimeout: e.toolTimeout}
	responseText, runErr := e.model.Run(ctx, prompt, exec)

	var protoErr *browsertool.ErrProtocol
	if errors.As(runErr, &protoErr) || exec.protocolErr != nil {
		e.pool.Evict(cell.Viewport, cell.Browser)
	} else {
		e.pool.Release(handle)
	}

	result := domain.CellResult{
		CellID:      cell.CellID,
		DurationMs:  time.Since(start).Milliseconds(),
		Screenshots: exec.screenshots(),
	}
	result.ConsoleErrors = consoleErrorStrings(handle.ConsoleMessages())

	if runErr != nil {
		result.Status = domain.CellFail
		result.FailureSummary = runErr.Error()
		result.FailurePriority = classifyPriority(cell.Network, cell.Viewport)
		return result
	}

	v := verdict.Extract(responseText)
	result.AgentResponseSummary = responseText
	result.StepResults = syntheticStepResults(cell.Flow.Steps, v, time.Since(start))

	if v == verdict.Pass {
		result.Status = domain.CellPass
	} else {
		result.Status = domain.CellFail
		result.FailureSummary = responseText
		result.FailurePriority = classifyPriority(cell.Network, cell.Viewport)
	}
	return result
}

// syntheticStepResults builds one StepResult per declared step when
// the agent's tool calls cannot be reliably attributed to individual
// steps, carrying the overall verdict down to each (§4.6 point 3).
func syntheticStepResults(steps []domain.TestStep, v verdict.Verdict, elapsed time.Duration) []domain.StepResult {
	status := domain.StepPass
	if v != verdict.Pass {
		status = domain.StepFail
	}
	perStep := elapsed.Milliseconds()
	if len(steps) > 0 {
		perStep /= int64(len(steps))
	}
	out := make([]domain.StepResult, 0, len(steps))
	for _, s := range steps {
		out = append(out, domain.StepResult{
			StepNumber:    s.StepNumber,
			Status:        status,
			ActualOutcome: s.ExpectedOutcome,
			DurationMs:    perStep,
		})
	}
	return out
}

func consoleErrorStrings(msgs []browsertool.ConsoleMessage) []string {
	var out []string
	for _, m := range msgs {
		if m.Level == "error" {
			out = append(out, m.Text)
		}
	}
	return out
}

