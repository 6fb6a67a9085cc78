// Package pi builds and parses invocations of the pi CLI agent.
package pi

import (
	"encoding/json"
	"strings"

	"github.com/conductor-run/conductor/plan"
	"github.com/conductor-run/conductor/supervisor"
)

func init() {
	supervisor.Register("pi", builder{})
}

type builder struct{}

func (builder) Binary() string { return "pi" }

func (builder) Build(spec plan.AgentSpec) []string {
	args := []string{"--non-interactive", "--json-output"}
	if spec.Model != "" {
		args = append(args, "--model", spec.Model)
	}
	if spec.Session != "" {
		args = append(args, "--continue", spec.Session)
	}
	args = append(args, spec.Prompt)
	return args
}

type piLine struct {
	Event string `json:"event"`
	Text  string `json:"text"`
}

func (builder) ParseLine(line []byte) []supervisor.Event {
	trimmed := strings.TrimSpace(string(line))
	if trimmed == "" {
		return nil
	}
	var l piLine
	if err := json.Unmarshal(line, &l); err != nil {
		return []supervisor.Event{{Type: supervisor.EventRaw, Text: trimmed}}
	}
	switch l.Event {
	case "message":
		return []supervisor.Event{{Type: supervisor.EventAssistantText, Text: l.Text}}
	case "tool":
		return []supervisor.Event{{Type: supervisor.EventToolUse, Text: l.Text}}
	case "done":
		return []supervisor.Event{{Type: supervisor.EventResult, Text: l.Text}}
	default:
		return []supervisor.Event{{Type: supervisor.EventRaw, Text: trimmed}}
	}
}

func (builder) ClassifyExit(exitCode int, stderr string) error {
	lower := strings.ToLower(stderr)
	switch {
	case strings.Contains(lower, "auth") || strings.Contains(lower, "token"):
		return &supervisor.AuthError{Kind: "pi", Detail: stderr}
	case strings.Contains(lower, "rate limit"):
		return &supervisor.RateLimitedError{Kind: "pi", Detail: stderr}
	case exitCode != 0:
		return &supervisor.ExitError{Kind: "pi", ExitCode: exitCode, Stderr: stderr}
	}
	return nil
}
