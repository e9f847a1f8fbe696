package agent

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// toolCatalog declares the fixed browsertool protocol (§6) to the
// model as genai function declarations. This is the only place the
// catalog is enumerated for the model; browsertool.Handle's method set
// is the only place it is enumerated for execution — keeping the two
// lists in sync is this file's responsibility.
func toolCatalog() []*genai.FunctionDeclaration {
	str := func(desc string) *genai.Schema { return &genai.Schema{Type: genai.TypeString, Description: desc} }

	return []*genai.FunctionDeclaration{
		{
			Name:        "navigate",
			Description: "Navigate the browser to a URL and wait for the page to finish loading.",
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: map[string]*genai.Schema{"url": str("absolute or relative URL to load")},
				Required:   []string{"url"},
			},
		},
		{
			Name:        "click",
			Description: "Click the first element matching a CSS selector.",
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: map[string]*genai.Schema{"selector": str("CSS selector of the element to click")},
				Required:   []string{"selector"},
			},
		},
		{
			Name:        "fill",
			Description: "Type a value into the first form field matching a CSS selector.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"selector": str("CSS selector of the field to fill"),
					"value":    str("text to type into the field"),
				},
				Required: []string{"selector", "value"},
			},
		},
		{
			Name:        "wait_for_selector",
			Description: "Wait until an element matching a CSS selector appears.",
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: map[string]*genai.Schema{"selector": str("CSS selector to wait for")},
				Required:   []string{"selector"},
			},
		},
		{
			Name:        "assert_visible",
			Description: "Check whether an element matching a CSS selector is currently visible; does not fail the call if it is not.",
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: map[string]*genai.Schema{"selector": str("CSS selector to check")},
				Required:   []string{"selector"},
			},
		},
		{
			Name:        "screenshot",
			Description: "Capture a screenshot of the current page and save it under the given name.",
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: map[string]*genai.Schema{"name": str("file name (without path) for the screenshot")},
				Required:   []string{"name"},
			},
		},
		{
			Name:        "console_messages",
			Description: "Return browser console messages captured since the page was opened.",
			Parameters:  &genai.Schema{Type: genai.TypeObject},
		},
	}
}

// GenaiAgent drives the tool-calling loop against a Gemini model.
type GenaiAgent struct {
	client *genai.Client
	model  string
	budget Budget
}

// NewGenaiAgent constructs a GenaiAgent. apiKey is read by the caller
// from the environment variable named in Config.Model.APIKeyEnvVar
// (§4.14: the credential value itself is never part of the persisted
// config document).
func NewGenaiAgent(ctx context.Context, apiKey, model string, budget Budget) (*GenaiAgent, error) {
	if model == "" {
		model = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return &GenaiAgent{client: client, model: model, budget: budget}, nil
}

// Run implements Agent: it sends prompt, executes every function call
// the model requests via exec, feeds the results back, and repeats
// until the model returns plain text or the turn/time budget is spent
// (§4.11, §7).
func (a *GenaiAgent) Run(ctx context.Context, prompt string, exec ToolExecutor) (string, error) {
	wallCtx := ctx
	var cancel context.CancelFunc
	if a.budget.WallClock > 0 {
		wallCtx, cancel = context.WithTimeout(ctx, a.budget.WallClock)
		defer cancel()
	}

	config := &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{FunctionDeclarations: toolCatalog()}},
	}
	contents := []*genai.Content{
		{Role: "user", Parts: []*genai.Part{genai.NewPartFromText(prompt)}},
	}

	maxTurns := a.budget.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 12
	}

	for turn := 0; turn < maxTurns; turn++ {
		turnCtx := wallCtx
		if a.budget.TurnTimeout > 0 {
			var turnCancel context.CancelFunc
			turnCtx, turnCancel = context.WithTimeout(wallCtx, a.budget.TurnTimeout)
			defer turnCancel()
		}

		resp, err := a.client.Models.GenerateContent(turnCtx, a.model, contents, config)
		if err != nil {
			return "", fmt.Errorf("model agent turn %d: %w", turn, err)
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			return "", fmt.Errorf("model agent turn %d: empty response", turn)
		}

		calls := functionCalls(resp)
		if len(calls) == 0 {
			return resp.Text(), nil
		}

		contents = append(contents, resp.Candidates[0].Content)
		responseParts := make([]*genai.Part, 0, len(calls))
		for _, call := range calls {
			result, err := exec.ExecuteTool(turnCtx, call)
			text := result.Content
			if err != nil {
				text = fmt.Sprintf("error: %v", err)
			}
			responseParts = append(responseParts, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{
					Name:     call.Name,
					Response: map[string]any{"result": text},
				},
			})
		}
		contents = append(contents, &genai.Content{Role: "function", Parts: responseParts})
	}

	return "", &ErrTurnLimitExceeded{MaxTurns: maxTurns}
}

func functionCalls(resp *genai.GenerateContentResponse) []ToolCall {
	var calls []ToolCall
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.FunctionCall == nil {
			continue
		}
		args := make(map[string]string, len(part.FunctionCall.Args))
		for k, v := range part.FunctionCall.Args {
			args[k] = fmt.Sprintf("%v", v)
		}
		calls = append(calls, ToolCall{Name: part.FunctionCall.Name, Args: args})
	}
	return calls
}
