// Package models defines the shared data types that flow through the
// analysis pipeline: search parameters, log entries, trace bundles,
// relevance results, analysis results, and plans.
package models

import "strings"

// SearchParameters holds the structured search terms extracted from a
// natural-language dispute prompt. Immutable after construction.
type SearchParameters struct {
	// TimeFrame is a single ISO calendar date (YYYY-MM-DD), never a range.
	// Empty string means no date could be extracted.
	TimeFrame string `json:"time_frame"`

	// Domain is the business domain the prompt refers to (e.g. "BKASH").
	Domain string `json:"domain"`

	// QueryKeys are lowercase snake_case search tokens drawn from the
	// configured allow-list.
	QueryKeys []string `json:"query_keys"`
}

// CanProceed reports whether the pipeline may run with these parameters.
// Both a time frame and at least one query key are required.
func (p *SearchParameters) CanProceed() bool {
	return p.TimeFrame != "" && len(p.QueryKeys) > 0
}

// HasQueryKey reports whether key is present (case-insensitive).
func (p *SearchParameters) HasQueryKey(key string) bool {
	for _, k := range p.QueryKeys {
		if strings.EqualFold(k, key) {
			return true
		}
	}
	return false
}

// LogSourceKind selects how logs are acquired for a project.
type LogSourceKind string

const (
	LogSourceFile   LogSourceKind = "file"
	LogSourceRemote LogSourceKind = "remote"
)

// EnvDescriptor describes one environment of a project. Exactly one of
// LogRoot (file-based) or Namespace (remote) is meaningful, selected by the
// project's LogSourceKind.
type EnvDescriptor struct {
	// LogRoot is the filesystem root holding log files (file-based projects).
	LogRoot string `json:"log_root,omitempty" yaml:"log_root,omitempty"`

	// Namespace is the service namespace label used in remote selectors.
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty"`
}

// ProjectDescriptor describes a named project and its environments.
type ProjectDescriptor struct {
	Code          string                   `json:"code" yaml:"code"`
	Name          string                   `json:"name" yaml:"name"`
	LogSourceKind LogSourceKind            `json:"log_source_kind" yaml:"log_source_kind"`
	Environments  map[string]EnvDescriptor `json:"environments" yaml:"environments"`
}

// Environment returns the descriptor for the given environment code.
func (p *ProjectDescriptor) Environment(code string) (EnvDescriptor, bool) {
	env, ok := p.Environments[code]
	return env, ok
}
