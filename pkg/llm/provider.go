// Package llm provides a unified chat interface over multiple LLM providers:
// a local inference daemon and a remote OpenAI-compatible gateway. Providers
// translate wire formats into a uniform response envelope.
package llm

import (
	"context"
	"errors"
	"time"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrProviderUnavailable indicates the provider endpoint could not be reached
// or returned a non-2xx response.
var ErrProviderUnavailable = errors.New("llm provider unavailable")

// Message is one turn of a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options tunes a single chat call. Timeout is consumed by the provider and
// must never participate in cache key derivation.
type Options struct {
	Timeout     time.Duration `json:"timeout,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
}

// ChatResponse is the uniform response envelope all providers produce.
type ChatResponse struct {
	Message Message `json:"message"`
}

// Provider is the unified chat interface. Implementations are safe for
// concurrent use.
type Provider interface {
	// Chat sends the conversation to the model and returns its reply.
	Chat(ctx context.Context, modelID string, messages []Message, opts *Options) (*ChatResponse, error)

	// IsAvailable performs a cheap health probe against the provider.
	IsAvailable(ctx context.Context) bool

	// Name returns a stable provider identifier for logs and diagnostics.
	Name() string
}

// callTimeout resolves the effective timeout for one call.
func callTimeout(opts *Options, fallback time.Duration) time.Duration {
	if opts != nil && opts.Timeout > 0 {
		return opts.Timeout
	}
	if fallback > 0 {
		return fallback
	}
	return 120 * time.Second
}
