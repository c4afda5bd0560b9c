package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// LocalProvider talks to a local inference daemon (Ollama-compatible chat API).
type LocalProvider struct {
	endpoint       string
	httpClient     *http.Client
	defaultTimeout time.Duration
}

// NewLocalProvider creates a provider for the local inference daemon.
func NewLocalProvider(endpoint string, defaultTimeout time.Duration) *LocalProvider {
	return &LocalProvider{
		endpoint:       endpoint,
		httpClient:     &http.Client{},
		defaultTimeout: defaultTimeout,
	}
}

// Name implements Provider.
func (p *LocalProvider) Name() string { return "local" }

type localChatRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type localChatResponse struct {
	Message Message `json:"message"`
	Error   string  `json:"error,omitempty"`
}

// Chat implements Provider.
func (p *LocalProvider) Chat(ctx context.Context, modelID string, messages []Message, opts *Options) (*ChatResponse, error) {
	reqBody := localChatRequest{
		Model:    modelID,
		Messages: messages,
		Stream:   false,
	}
	if opts != nil {
		options := make(map[string]any)
		if opts.Temperature != nil {
			options["temperature"] = *opts.Temperature
		}
		if opts.MaxTokens != nil {
			options["num_predict"] = *opts.MaxTokens
		}
		if len(options) > 0 {
			reqBody.Options = options
		}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to encode chat request: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, callTimeout(opts, p.defaultTimeout))
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read chat response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d: %s", ErrProviderUnavailable, resp.StatusCode, truncate(string(body), 200))
	}

	var decoded localChatResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode chat response: %w", err)
	}
	if decoded.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrProviderUnavailable, decoded.Error)
	}
	if decoded.Message.Role == "" {
		decoded.Message.Role = RoleAssistant
	}

	return &ChatResponse{Message: decoded.Message}, nil
}

// IsAvailable implements Provider with a short GET against the daemon root.
func (p *LocalProvider) IsAvailable(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	// The chat endpoint is .../api/chat; the daemon root answers GET /.
	base := p.endpoint
	if idx := strings.Index(base, "/api/"); idx > 0 {
		base = base[:idx]
	}

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, base, nil)
	if err != nil {
		return false
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode < 500
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
