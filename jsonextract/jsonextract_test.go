package jsonextract

import (
	"encoding/json"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
)

func TestExtractPlainObject(t *testing.T) {
	got, err := Extract(`{"a": 1, "b": [1,2,3]}`)
	require.NoError(t, err)
	require.JSONEq(t, `{"a": 1, "b": [1,2,3]}`, got)
}

func TestExtractWithSurroundingProse(t *testing.T) {
	got, err := Extract("Sure, here is the result:\n```json\n{\"ok\": true}\n```\nLet me know if you need more.")
	require.NoError(t, err)
	require.JSONEq(t, `{"ok": true}`, got)
}

func TestExtractIgnoresBracesInStrings(t *testing.T) {
	got, err := Extract(`prefix {"msg": "a { b } c"} suffix`)
	require.NoError(t, err)
	require.JSONEq(t, `{"msg": "a { b } c"}`, got)
}

func TestExtractNotFound(t *testing.T) {
	_, err := Extract("no json here at all")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestExtractAllReturnsEachTopLevelValue(t *testing.T) {
	got := ExtractAll(`{"a":1} some text [1,2,3]`)
	require.Len(t, got, 2)
	require.JSONEq(t, `{"a":1}`, got[0])
	require.JSONEq(t, `[1,2,3]`, got[1])
}

// TestExtractionRobustnessProperty checks that wrapping any valid JSON
// object in arbitrary non-brace prose never prevents it from being
// recovered intact.
func TestExtractionRobustnessProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("wrapped JSON object round-trips through Extract", prop.ForAll(
		func(key, value, prefix, suffix string) bool {
			obj := map[string]string{key: value}
			raw, err := json.Marshal(obj)
			if err != nil {
				return true
			}
			wrapped := prefix + string(raw) + suffix
			got, err := Extract(wrapped)
			if err != nil {
				return false
			}
			var roundTripped map[string]string
			if err := json.Unmarshal([]byte(got), &roundTripped); err != nil {
				return false
			}
			return roundTripped[key] == value
		},
		genNoBrace(),
		genNoBrace(),
		genNoBrace(),
		genNoBrace(),
	))

	properties.TestingRun(t)
}

func genNoBrace() gopter.Gen {
	return gen.RegexMatch(`[a-zA-Z0-9 .,!?]{0,12}`)
}
