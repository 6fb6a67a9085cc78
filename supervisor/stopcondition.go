package supervisor

import (
	"regexp"
	"time"

	"github.com/conductor-run/conductor/plan"
)

// evaluateStopConditions checks every condition in stops against the
// events just parsed from the current line plus the running turn/elapsed
// counters, returning the first one that fires.
func evaluateStopConditions(stops []plan.StopCondition, events []Event, turns int, elapsed time.Duration) (reason string, fire bool) {
	for _, sc := range stops {
		switch sc.Kind {
		case plan.StopOnTurnLimit:
			if sc.Limit > 0 && turns >= sc.Limit {
				return "turn_limit", true
			}
		case plan.StopOnTimeLimit:
			if sc.Elapsed > 0 && elapsed >= time.Duration(sc.Elapsed)*time.Millisecond {
				return "time_limit", true
			}
		case plan.StopOnOutputMatches:
			if sc.Pattern == "" {
				continue
			}
			re, err := regexp.Compile(sc.Pattern)
			if err != nil {
				continue
			}
			for _, ev := range events {
				if ev.Type == EventAssistantText && re.MatchString(ev.Text) {
					return "output_matches", true
				}
			}
		case plan.StopOnTokenLimit:
			// Token counts are reported in EventResult payloads, not every
			// line; the caller checks the accumulated usage via
			// checkTokenLimit once a result event arrives.
		case plan.StopOnCustom:
			if sc.Predict == nil {
				continue
			}
			for _, ev := range events {
				if sc.Predict(ev.Text) {
					return "custom", true
				}
			}
		}
	}
	return "", false
}

// EvaluateStopConditions exposes evaluateStopConditions for callers outside
// this package that need the same taxonomy at a different scope than a
// single invocation's stdout (the engine applies it to the execution's
// accumulated events for its global stop conditions).
func EvaluateStopConditions(stops []plan.StopCondition, events []Event, turns int, elapsed time.Duration) (reason string, fire bool) {
	return evaluateStopConditions(stops, events, turns, elapsed)
}

// checkTokenLimit is invoked when an EventResult arrives; it is split out
// from evaluateStopConditions because token usage is only known once the
// agent reports it, not per assistant-text line.
func checkTokenLimit(stops []plan.StopCondition, totalTokens int) bool {
	for _, sc := range stops {
		if sc.Kind == plan.StopOnTokenLimit && sc.Limit > 0 && totalTokens >= sc.Limit {
			return true
		}
	}
	return false
}
