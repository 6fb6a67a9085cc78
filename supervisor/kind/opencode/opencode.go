// Package opencode builds and parses invocations of the OpenCode CLI.
package opencode

import (
	"encoding/json"
	"strings"

	"github.com/conductor-run/conductor/plan"
	"github.com/conductor-run/conductor/supervisor"
)

func init() {
	supervisor.Register("opencode", builder{})
}

type builder struct{}

func (builder) Binary() string { return "opencode" }

// Build constructs argv for `opencode run`, its scripted single-shot mode.
func (builder) Build(spec plan.AgentSpec) []string {
	args := []string{"run", "--print-logs", "--format", "json"}
	if spec.Model != "" {
		args = append(args, "--model", spec.Model)
	}
	if spec.Session != "" {
		args = append(args, "--session", spec.Session)
	}
	args = append(args, spec.Prompt)
	return args
}

type opencodeLine struct {
	Type string `json:"type"`
	Part struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"part"`
}

func (builder) ParseLine(line []byte) []supervisor.Event {
	trimmed := strings.TrimSpace(string(line))
	if trimmed == "" {
		return nil
	}
	var l opencodeLine
	if err := json.Unmarshal(line, &l); err != nil {
		return []supervisor.Event{{Type: supervisor.EventRaw, Text: trimmed}}
	}
	switch l.Type {
	case "message.part.updated":
		if l.Part.Type == "text" {
			return []supervisor.Event{{Type: supervisor.EventAssistantText, Text: l.Part.Text}}
		}
		return []supervisor.Event{{Type: supervisor.EventToolResult, Text: l.Part.Text}}
	case "session.idle":
		return []supervisor.Event{{Type: supervisor.EventResult, Text: trimmed}}
	default:
		return []supervisor.Event{{Type: supervisor.EventRaw, Text: trimmed}}
	}
}

func (builder) ClassifyExit(exitCode int, stderr string) error {
	lower := strings.ToLower(stderr)
	switch {
	case strings.Contains(lower, "unauthorized") || strings.Contains(lower, "auth"):
		return &supervisor.AuthError{Kind: "opencode", Detail: stderr}
	case strings.Contains(lower, "rate limit") || strings.Contains(lower, "429"):
		return &supervisor.RateLimitedError{Kind: "opencode", Detail: stderr}
	case exitCode != 0:
		return &supervisor.ExitError{Kind: "opencode", ExitCode: exitCode, Stderr: stderr}
	}
	return nil
}
