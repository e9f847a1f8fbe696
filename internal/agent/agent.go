// Package agent implements the Model Agent (C11): an autonomous
// tool-calling loop over the fixed browsertool catalog, backed by
// google.golang.org/genai's function-calling support (§4.11, §6).
package agent

import (
	"context"
	"fmt"
	"time"
)

// ToolCall is one invocation the model requested: a tool name plus its
// string-keyed arguments, as decoded from the provider's function-call
// response.
type ToolCall struct {
	Name string
	Args map[string]string
}

// ToolResult is what a Runner reports back to the model after
// executing a ToolCall.
type ToolResult struct {
	Name    string
	Content string
}

// ToolExecutor performs one ToolCall against a live browsertool.Handle
// and returns its result as text the model can read. Implemented by
// internal/executor so this package stays free of a browsertool import
// cycle; agent only knows about tool names and string results.
type ToolExecutor interface {
	ExecuteTool(ctx context.Context, call ToolCall) (ToolResult, error)
}

// Agent drives one bounded conversation: given a prompt, it calls
// tools through exec until the model stops requesting them or the
// turn/time budget is exhausted, then returns the model's final text.
type Agent interface {
	Run(ctx context.Context, prompt string, exec ToolExecutor) (string, error)
}

// ErrTurnLimitExceeded is returned when the model keeps requesting
// tool calls past MaxTurns without producing a final answer (§4.11,
// §7's AgentTimeout family).
type ErrTurnLimitExceeded struct {
	MaxTurns int
}

func (e *ErrTurnLimitExceeded) Error() string {
	return fmt.Sprintf("model agent exceeded %d turns without a final answer", e.MaxTurns)
}

// Budget bounds one Agent.Run call, per §4.11/§7's AgentTimeout and
// turn-limit rules.
type Budget struct {
	MaxTurns    int
	TurnTimeout time.Duration
	WallClock   time.Duration
}
