package prompt

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// Vars holds the substitution values for one rendering.
type Vars map[string]string

// Render expands $name placeholders in the template text. Placeholders with
// no binding expand to the empty string so a partially filled template never
// leaks "$name" literals into an LLM prompt.
func Render(text string, vars Vars) string {
	return os.Expand(text, func(name string) string {
		return vars[name]
	})
}

// FormatKV renders a map as sorted "key: value" lines for embedding in a
// prompt. Deterministic ordering keeps cache keys stable.
func FormatKV(m map[string]string) string {
	if len(m) == 0 {
		return "(none)"
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\n", k, m[k])
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatList renders a string slice as a comma-separated list, "(none)" when
// empty.
func FormatList(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	return strings.Join(items, ", ")
}
