package supervisor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/conductor-run/conductor/jsonextract"
	"github.com/conductor-run/conductor/plan"
)

// validateAgainstSchema compiles schemaDoc and validates candidate (a raw
// JSON string) against it, returning nil when candidate satisfies the
// schema.
func validateAgainstSchema(candidate string, schemaDoc map[string]any) error {
	var payload any
	if err := json.Unmarshal([]byte(candidate), &payload); err != nil {
		return fmt.Errorf("unmarshal candidate: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", schemaDoc); err != nil {
		return fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := c.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	return schema.Validate(payload)
}

// ExtractAndValidate pulls the last balanced JSON value out of text and
// validates it against schema. It tries every candidate found, in reverse
// order (agents often restate the final answer after exploratory text), and
// returns the first one that satisfies the schema.
func ExtractAndValidate(text string, schema map[string]any) (string, error) {
	candidates := jsonextract.ExtractAll(text)
	if len(candidates) == 0 {
		return "", fmt.Errorf("supervisor: no JSON value found in output")
	}
	var lastErr error
	for i := len(candidates) - 1; i >= 0; i-- {
		if err := validateAgainstSchema(candidates[i], schema); err != nil {
			lastErr = err
			continue
		}
		return candidates[i], nil
	}
	return "", fmt.Errorf("supervisor: no candidate satisfied schema: %w", lastErr)
}

// RunWithSchemaRetry runs spec through s.Run, and if spec.Schema is set and
// the output does not validate, resubmits a corrective prompt (referencing
// the prior session so the agent can see its own output) up to
// spec.MaxRetries times before giving up with SchemaValidationError. This
// is the bounded-retry contract described for structured-output agent
// invocations.
func (s *Supervisor) RunWithSchemaRetry(ctx context.Context, spec plan.AgentSpec, onEvent func(Event)) (Result, string, error) {
	if spec.Schema == nil {
		result, err := s.Run(ctx, spec, onEvent)
		return result, "", err
	}

	attempt := spec
	var lastResult Result
	var lastErr error

	maxRetries := spec.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	for i := 0; i <= maxRetries; i++ {
		result, err := s.Run(ctx, attempt, onEvent)
		lastResult = result
		if err != nil {
			lastErr = err
			if i == maxRetries || !isRetryable(err) {
				return result, "", err
			}
			continue
		}

		text := concatAssistantText(result.Events)
		valid, validateErr := ExtractAndValidate(text, spec.Schema)
		if validateErr == nil {
			return result, valid, nil
		}
		lastErr = validateErr

		if i == maxRetries {
			break
		}
		attempt.Session = sessionFromResult(attempt, result)
		if attempt.Session != "" {
			attempt.Prompt = correctivePrompt("", validateErr)
		} else {
			attempt.Prompt = correctivePrompt(text, validateErr)
		}
	}

	detail := ""
	if lastErr != nil {
		detail = lastErr.Error()
	}
	return lastResult, "", &SchemaValidationError{Kind: spec.AgentKind, Attempts: maxRetries + 1, LastDetail: detail}
}

func isRetryable(err error) bool {
	switch err.(type) {
	case *TimeoutError, *StopConditionError:
		return false
	default:
		return true
	}
}

func concatAssistantText(events []Event) string {
	out := ""
	for _, ev := range events {
		if ev.Type == EventAssistantText {
			out += ev.Text + "\n"
		}
	}
	return out
}

// correctivePromptOutputLimit bounds how much of the previous output is
// echoed back into a no-session corrective prompt.
const correctivePromptOutputLimit = 1000

// sessionFromResult preserves the session id across a retry so the
// corrective prompt is dispatched as a resume of the same conversation
// rather than a fresh one. It prefers a vendor session id freshly observed
// in the invocation's own output (a kind's result line may report one even
// when the dispatch started without one) and falls back to spec.Session.
func sessionFromResult(spec plan.AgentSpec, result Result) string {
	for i := len(result.Events) - 1; i >= 0; i-- {
		if id := result.Events[i].SessionID; id != "" {
			return id
		}
	}
	return spec.Session
}

// correctivePrompt builds the retry instruction for a schema-validation
// failure. With a session to resume, the agent already has the prior
// output in context, so the prompt is just the validation error.
// Otherwise it echoes the previous output (truncated) alongside the error,
// since the retry starts a fresh conversation with no other memory of it.
func correctivePrompt(previousOutput string, validateErr error) string {
	if previousOutput == "" {
		return fmt.Sprintf("Your previous response did not match the required schema: %s. Respond again with only a JSON value that satisfies the schema.", validateErr.Error())
	}
	truncated := previousOutput
	if len(truncated) > correctivePromptOutputLimit {
		truncated = truncated[:correctivePromptOutputLimit]
	}
	return fmt.Sprintf("Your previous response did not match the required schema: %s.\n\nYour previous output was:\n%s\n\nRespond again with only a JSON value that satisfies the schema.", validateErr.Error(), truncated)
}
