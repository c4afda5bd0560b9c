// Package rules loads and applies context rules: named associations of
// "important" and "ignore" substrings to a domain tag, used to pre-filter
// traces before LLM relevance scoring.
package rules

import "strings"

// ContextRule associates important and ignore patterns with a context tag.
type ContextRule struct {
	ID          string
	ContextTag  string
	Important   []string
	Ignore      []string
	Description string
}

// Matches reports whether the rule applies to the given domain or query
// keys: case-insensitive substring containment in either direction.
func (r *ContextRule) Matches(domain string, queryKeys []string) bool {
	tag := strings.ToLower(r.ContextTag)
	if tag == "" {
		return false
	}
	if containsEither(tag, strings.ToLower(domain)) {
		return true
	}
	for _, key := range queryKeys {
		if containsEither(tag, strings.ToLower(key)) {
			return true
		}
	}
	return false
}

func containsEither(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// Select returns the rules applicable to the given domain and query keys.
func Select(all []ContextRule, domain string, queryKeys []string) []ContextRule {
	var selected []ContextRule
	for _, r := range all {
		if r.Matches(domain, queryKeys) {
			selected = append(selected, r)
		}
	}
	return selected
}

// SaturatedIgnore returns the first ignore pattern whose case-insensitive
// occurrence count reaches the given fraction of the body's line count.
// This is a coarse saturation test: a trace drowning in a known-noise
// pattern is classified ignored without an LLM call.
func SaturatedIgnore(body string, selected []ContextRule, threshold float64) (pattern string, ok bool) {
	lines := strings.Count(body, "\n") + 1
	if lines == 0 || threshold <= 0 {
		return "", false
	}
	lowerBody := strings.ToLower(body)

	for _, rule := range selected {
		for _, ignore := range rule.Ignore {
			if ignore == "" {
				continue
			}
			count := strings.Count(lowerBody, strings.ToLower(ignore))
			if float64(count) >= threshold*float64(lines) {
				return ignore, true
			}
		}
	}
	return "", false
}

// IgnorePatterns returns the union of ignore patterns across rules.
func IgnorePatterns(selected []ContextRule) []string {
	var out []string
	seen := make(map[string]bool)
	for _, r := range selected {
		for _, p := range r.Ignore {
			if p == "" || seen[p] {
				continue
			}
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

// ImportantPatterns returns the union of important patterns across rules.
func ImportantPatterns(selected []ContextRule) []string {
	var out []string
	seen := make(map[string]bool)
	for _, r := range selected {
		for _, p := range r.Important {
			if p == "" || seen[p] {
				continue
			}
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

// RuleIDs returns the IDs of the selected rules.
func RuleIDs(selected []ContextRule) []string {
	ids := make([]string, 0, len(selected))
	for _, r := range selected {
		ids = append(ids, r.ID)
	}
	return ids
}
