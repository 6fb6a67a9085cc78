// Package amp builds and parses invocations of the Sourcegraph Amp CLI,
// grounded directly on the --stream-json format documented in the pack's
// reference executor.
package amp

import (
	"encoding/json"
	"strings"

	"github.com/conductor-run/conductor/plan"
	"github.com/conductor-run/conductor/supervisor"
)

func init() {
	supervisor.Register("amp", builder{})
}

type builder struct{}

func (builder) Binary() string { return "amp" }

func (builder) Build(spec plan.AgentSpec) []string {
	args := []string{"--dangerously-allow-all", "--execute", spec.Prompt, "--stream-json"}
	if spec.Model != "" {
		args = append(args, "--model", spec.Model)
	}
	if spec.Session != "" {
		args = append(args, "--thread", spec.Session)
	}
	return args
}

type ampMessageContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	Name string `json:"name,omitempty"`
}

type ampLine struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype,omitempty"`
	Thread  string `json:"thread_id,omitempty"`
	Message struct {
		Role    string              `json:"role"`
		Content []ampMessageContent `json:"content"`
	} `json:"message"`
}

func (builder) ParseLine(line []byte) []supervisor.Event {
	trimmed := strings.TrimSpace(string(line))
	if trimmed == "" {
		return nil
	}
	var l ampLine
	if err := json.Unmarshal(line, &l); err != nil {
		return []supervisor.Event{{Type: supervisor.EventRaw, Text: trimmed}}
	}
	switch l.Type {
	case "assistant":
		var events []supervisor.Event
		for _, c := range l.Message.Content {
			switch c.Type {
			case "text":
				events = append(events, supervisor.Event{Type: supervisor.EventAssistantText, Text: c.Text})
			case "tool_use":
				events = append(events, supervisor.Event{Type: supervisor.EventToolUse, Text: c.Name})
			}
		}
		return events
	case "result":
		return []supervisor.Event{{Type: supervisor.EventResult, Text: trimmed, SessionID: l.Thread}}
	default:
		return []supervisor.Event{{Type: supervisor.EventRaw, Text: trimmed}}
	}
}

func (builder) ClassifyExit(exitCode int, stderr string) error {
	lower := strings.ToLower(stderr)
	switch {
	case strings.Contains(lower, "unauthenticated") || strings.Contains(lower, "sign in"):
		return &supervisor.AuthError{Kind: "amp", Detail: stderr}
	case strings.Contains(lower, "rate limit"):
		return &supervisor.RateLimitedError{Kind: "amp", Detail: stderr}
	case exitCode != 0:
		return &supervisor.ExitError{Kind: "amp", ExitCode: exitCode, Stderr: stderr}
	}
	return nil
}
