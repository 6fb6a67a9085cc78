// Package codex builds and parses invocations of the OpenAI Codex CLI.
package codex

import (
	"encoding/json"
	"strings"

	"github.com/conductor-run/conductor/plan"
	"github.com/conductor-run/conductor/supervisor"
)

func init() {
	supervisor.Register("codex", builder{})
}

type builder struct{}

func (builder) Binary() string { return "codex" }

// Build constructs argv for `codex exec`, the CLI's non-interactive
// single-shot mode, requesting JSON lines on stdout.
func (builder) Build(spec plan.AgentSpec) []string {
	args := []string{"exec", "--json", "--full-auto"}
	if spec.Model != "" {
		args = append(args, "--model", spec.Model)
	}
	if spec.Session != "" {
		args = append(args, "--resume", spec.Session)
	}
	args = append(args, spec.Prompt)
	return args
}

type codexLine struct {
	Type string `json:"type"`
	Item struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"item"`
}

func (builder) ParseLine(line []byte) []supervisor.Event {
	trimmed := strings.TrimSpace(string(line))
	if trimmed == "" {
		return nil
	}
	var l codexLine
	if err := json.Unmarshal(line, &l); err != nil {
		return []supervisor.Event{{Type: supervisor.EventRaw, Text: trimmed}}
	}
	switch l.Type {
	case "item.completed":
		if l.Item.Type == "agent_message" {
			return []supervisor.Event{{Type: supervisor.EventAssistantText, Text: l.Item.Text}}
		}
		return []supervisor.Event{{Type: supervisor.EventToolResult, Text: l.Item.Text}}
	case "turn.completed":
		return []supervisor.Event{{Type: supervisor.EventResult, Text: trimmed}}
	default:
		return []supervisor.Event{{Type: supervisor.EventRaw, Text: trimmed}}
	}
}

func (builder) ClassifyExit(exitCode int, stderr string) error {
	lower := strings.ToLower(stderr)
	switch {
	case strings.Contains(lower, "unauthorized") || strings.Contains(lower, "login"):
		return &supervisor.AuthError{Kind: "codex", Detail: stderr}
	case strings.Contains(lower, "rate_limit") || strings.Contains(lower, "429"):
		return &supervisor.RateLimitedError{Kind: "codex", Detail: stderr}
	case exitCode != 0:
		return &supervisor.ExitError{Kind: "codex", ExitCode: exitCode, Stderr: stderr}
	}
	return nil
}
