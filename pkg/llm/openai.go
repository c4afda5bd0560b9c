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

// OpenAIProvider talks to a remote OpenAI-compatible gateway using bearer
// authentication and an optional routing header.
type OpenAIProvider struct {
	endpoint       string
	apiKey         string
	routeTag       string
	httpClient     *http.Client
	defaultTimeout time.Duration
}

// NewOpenAIProvider creates a provider for a remote OpenAI-compatible gateway.
// routeTag, when non-empty, is sent as the X-Route-Tag header so the gateway
// can pin requests to a model pool.
func NewOpenAIProvider(endpoint, apiKey, routeTag string, defaultTimeout time.Duration) *OpenAIProvider {
	return &OpenAIProvider{
		endpoint:       endpoint,
		apiKey:         apiKey,
		routeTag:       routeTag,
		httpClient:     &http.Client{},
		defaultTimeout: defaultTimeout,
	}
}

// Name implements Provider.
func (p *OpenAIProvider) Name() string { return "openai" }

type openAIChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Chat implements Provider.
func (p *OpenAIProvider) Chat(ctx context.Context, modelID string, messages []Message, opts *Options) (*ChatResponse, error) {
	reqBody := openAIChatRequest{
		Model:    modelID,
		Messages: messages,
	}
	if opts != nil {
		reqBody.Temperature = opts.Temperature
		reqBody.MaxTokens = opts.MaxTokens
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
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	if p.routeTag != "" {
		req.Header.Set("X-Route-Tag", p.routeTag)
	}

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

	var decoded openAIChatResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode chat response: %w", err)
	}
	if decoded.Error != nil {
		return nil, fmt.Errorf("%w: %s", ErrProviderUnavailable, decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty choices", ErrProviderUnavailable)
	}

	msg := decoded.Choices[0].Message
	if msg.Role == "" {
		msg.Role = RoleAssistant
	}
	return &ChatResponse{Message: msg}, nil
}

// IsAvailable implements Provider with a short HEAD against the models path.
func (p *OpenAIProvider) IsAvailable(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	probeURL := strings.TrimSuffix(p.endpoint, "/chat/completions") + "/models"
	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, probeURL, nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode < 500
}
