package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// scriptedAgent is a fake Agent used to exercise code that depends on
// the Agent interface without making a live genai call.
type scriptedAgent struct {
	calls []ToolCall
	final string
	err   error
}

func (s *scriptedAgent) Run(ctx context.Context, prompt string, exec ToolExecutor) (string, error) {
	for _, call := range s.calls {
		if _, err := exec.ExecuteTool(ctx, call); err != nil {
			return "", err
		}
	}
	return s.final, s.err
}

type recordingExecutor struct {
	executed []ToolCall
}

func (r *recordingExecutor) ExecuteTool(ctx context.Context, call ToolCall) (ToolResult, error) {
	r.executed = append(r.executed, call)
	return ToolResult{Name: call.Name, Content: "ok"}, nil
}

func TestAgentInterfaceDrivesToolExecutor(t *testing.T) {
	var a Agent = &scriptedAgent{
		calls: []ToolCall{{Name: "navigate", Args: map[string]string{"url": "https://example.com"}}},
		final: "test status: PASS",
	}
	exec := &recordingExecutor{}

	out, err := a.Run(context.Background(), "do the thing", exec)
	require.NoError(t, err)
	require.Equal(t, "test status: PASS", out)
	require.Len(t, exec.executed, 1)
	require.Equal(t, "navigate", exec.executed[0].Name)
}

func TestErrTurnLimitExceededMessage(t *testing.T) {
	err := &ErrTurnLimitExceeded{MaxTurns: 12}
	require.Contains(t, err.Error(), "12")
}
