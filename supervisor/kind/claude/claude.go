// Package claude builds and parses invocations of the Claude Code CLI.
package claude

import (
	"encoding/json"
	"strings"

	"github.com/conductor-run/conductor/plan"
	"github.com/conductor-run/conductor/supervisor"
)

func init() {
	supervisor.Register("claude", builder{})
}

type builder struct{}

func (builder) Binary() string { return "claude" }

// Build constructs argv for `claude`. --print runs non-interactively;
// --output-format stream-json emits line-delimited JSON events;
// --dangerously-skip-permissions is required for unattended operation, the
// same posture the pack's other CLI-agent supervisors take.
func (builder) Build(spec plan.AgentSpec) []string {
	args := []string{"--print", "--output-format", "stream-json", "--dangerously-skip-permissions"}
	if spec.Model != "" {
		args = append(args, "--model", spec.Model)
	}
	if spec.Session != "" {
		args = append(args, "--resume", spec.Session)
	}
	args = append(args, spec.Prompt)
	return args
}

type claudeLine struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype,omitempty"`
	Message struct {
		Role    string `json:"role"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"message"`
	Result    string `json:"result,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Usage     struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (builder) ParseLine(line []byte) []supervisor.Event {
	trimmed := strings.TrimSpace(string(line))
	if trimmed == "" {
		return nil
	}
	var l claudeLine
	if err := json.Unmarshal(line, &l); err != nil {
		return []supervisor.Event{{Type: supervisor.EventRaw, Text: trimmed}}
	}
	switch l.Type {
	case "assistant":
		var events []supervisor.Event
		for _, c := range l.Message.Content {
			if c.Type == "text" && c.Text != "" {
				events = append(events, supervisor.Event{Type: supervisor.EventAssistantText, Text: c.Text})
			}
		}
		return events
	case "result":
		return []supervisor.Event{{
			Type:      supervisor.EventResult,
			Text:      l.Result,
			Payload:   map[string]any{"input_tokens": l.Usage.InputTokens, "output_tokens": l.Usage.OutputTokens},
			SessionID: l.SessionID,
		}}
	default:
		return []supervisor.Event{{Type: supervisor.EventRaw, Text: trimmed}}
	}
}

func (builder) ClassifyExit(exitCode int, stderr string) error {
	lower := strings.ToLower(stderr)
	switch {
	case strings.Contains(lower, "not authenticated") || strings.Contains(lower, "invalid api key"):
		return &supervisor.AuthError{Kind: "claude", Detail: stderr}
	case strings.Contains(lower, "rate limit"):
		return &supervisor.RateLimitedError{Kind: "claude", Detail: stderr}
	case exitCode != 0:
		return &supervisor.ExitError{Kind: "claude", ExitCode: exitCode, Stderr: stderr}
	}
	return nil
}
