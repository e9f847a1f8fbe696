package planbuilder

import (
	"strings"

	"github.com/testgpt-run/testgpt/internal/domain"
)

// FlowTemplate is a hand-authored flow definition loaded from a YAML
// document (§11 domain stack: yaml.v3 reused for this authoring
// format, distinct from the JSON persistence format §6 mandates).
type FlowTemplate struct {
	FlowName string             `yaml:"flow_name"`
	Steps    []StepTemplate     `yaml:"steps"`
}

// StepTemplate is one step within a FlowTemplate, with placeholder
// tokens ({{email}}, {{phone}}) substituted by Render.
type StepTemplate struct {
	Action          domain.StepAction `yaml:"action"`
	Target          string            `yaml:"target,omitempty"`
	Value           string            `yaml:"value,omitempty"`
	ExpectedOutcome string            `yaml:"expected_outcome"`
	TimeoutSeconds  int               `yaml:"timeout_seconds"`
}

// defaultTemplates is the built-in set used when no on-disk flow
// template document is supplied, matching the three flow names the
// Request Parser can produce (§4.2).
func defaultTemplates() map[string]FlowTemplate {
	return map[string]FlowTemplate{
		"landing": {
			FlowName: "landing",
			Steps: []StepTemplate{
				{Action: domain.ActionNavigate, Target: "{{target_url}}", ExpectedOutcome: "within 10 seconds, the page has loaded and the main heading is visible", TimeoutSeconds: 10},
				{Action: domain.ActionAssertVisible, Target: "body", ExpectedOutcome: "within 5 seconds, the page body is visible with no blocking error overlay", TimeoutSeconds: 5},
			},
		},
		"signup": {
			FlowName: "signup",
			Steps: []StepTemplate{
				{Action: domain.ActionNavigate, Target: "{{target_url}}", ExpectedOutcome: "within 10 seconds, the page has loaded", TimeoutSeconds: 10},
				{Action: domain.ActionClick, Target: "a[href*=signup], a[href*=register]", ExpectedOutcome: "within 5 seconds, a signup or registration form is visible", TimeoutSeconds: 5},
				{Action: domain.ActionFill, Target: "input[type=email]", Value: "{{email}}", ExpectedOutcome: "the email field contains the supplied value", TimeoutSeconds: 5},
				{Action: domain.ActionClick, Target: "button[type=submit]", ExpectedOutcome: "within 10 seconds, a confirmation or next-step indicator is visible", TimeoutSeconds: 10},
			},
		},
		"pricing": {
			FlowName: "pricing",
			Steps: []StepTemplate{
				{Action: domain.ActionNavigate, Target: "{{target_url}}", ExpectedOutcome: "within 10 seconds, the page has loaded", TimeoutSeconds: 10},
				{Action: domain.ActionClick, Target: "a[href*=pricing], a[href*=plans]", ExpectedOutcome: "within 5 seconds, a pricing or plans section is visible", TimeoutSeconds: 5},
				{Action: domain.ActionAssertVisible, Target: "[class*=price], [class*=plan]", ExpectedOutcome: "within 5 seconds, at least one plan or price is visible", TimeoutSeconds: 5},
			},
		},
	}
}

// Render substitutes extracted literals and the target URL into a
// FlowTemplate's step values and returns a domain.TestFlow with
// step_number assigned in order.
func Render(tpl FlowTemplate, targetURL, email, phone string) domain.TestFlow {
	steps := make([]domain.TestStep, 0, len(tpl.Steps))
	for i, s := range tpl.Steps {
		steps = append(steps, domain.TestStep{
			StepNumber:      i + 1,
			Action:          s.Action,
			Target:          substitute(s.Target, targetURL, email, phone),
			Value:           substitute(s.Value, targetURL, email, phone),
			ExpectedOutcome: s.ExpectedOutcome,
			TimeoutSeconds:  s.TimeoutSeconds,
		})
	}
	return domain.TestFlow{FlowName: tpl.FlowName, Steps: steps}
}

func substitute(s, targetURL, email, phone string) string {
	if s == "" {
		return s
	}
	s = strings.ReplaceAll(s, "{{target_url}}", ensureScheme(targetURL))
	s = strings.ReplaceAll(s, "{{email}}", email)
	s = strings.ReplaceAll(s, "{{phone}}", phone)
	return s
}

func ensureScheme(url string) string {
	if url == "" {
		return url
	}
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		return url
	}
	return "https://" + url
}
