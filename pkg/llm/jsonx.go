package llm

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrNoJSON indicates no parseable JSON object was found in the text.
var ErrNoJSON = errors.New("no JSON object found in response")

// thinkBlockRegex matches <think>...</think> reasoning blocks some models
// emit before their actual answer.
var thinkBlockRegex = regexp.MustCompile(`(?s)<think>.*?</think>`)

// codeFenceRegex matches markdown code fences around JSON payloads.
var codeFenceRegex = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// ExtractJSONObject finds the first balanced {...} substring in text after
// stripping <think> blocks and unwrapping code fences. Returns ErrNoJSON when
// no balanced object exists.
func ExtractJSONObject(text string) (string, error) {
	text = thinkBlockRegex.ReplaceAllString(text, "")

	if m := codeFenceRegex.FindStringSubmatch(text); m != nil {
		if candidate := firstBalancedObject(m[1]); candidate != "" {
			return candidate, nil
		}
	}

	if candidate := firstBalancedObject(text); candidate != "" {
		return candidate, nil
	}
	return "", ErrNoJSON
}

// DecodeJSON extracts the first balanced JSON object from an LLM response and
// unmarshals it into target. This is the single tolerant-parsing routine used
// by every agent; callers fall back to default skeletons on error.
func DecodeJSON(text string, target any) error {
	obj, err := ExtractJSONObject(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(obj), target); err != nil {
		return errors.Join(ErrNoJSON, err)
	}
	return nil
}

// firstBalancedObject scans for the first top-level balanced {...} substring,
// honoring JSON string literals and escapes. Returns "" when none is found.
func firstBalancedObject(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}
