package agent

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/logsleuth/sleuth/pkg/agent/prompt"
	"github.com/logsleuth/sleuth/pkg/llm"
	"github.com/logsleuth/sleuth/pkg/llmcache"
)

// scriptedProvider replies with a canned response selected by prompt content:
// the first marker contained in the prompt wins, else the fallback.
type scriptedProvider struct {
	mu        sync.Mutex
	calls     int
	err       error
	responses map[string]string
	fallback  string
}

func (p *scriptedProvider) Chat(_ context.Context, _ string, messages []llm.Message, _ *llm.Options) (*llm.ChatResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	content := messages[len(messages)-1].Content
	for marker, reply := range p.responses {
		if strings.Contains(content, marker) {
			return &llm.ChatResponse{Message: llm.Message{Role: llm.RoleAssistant, Content: reply}}, nil
		}
	}
	return &llm.ChatResponse{Message: llm.Message{Role: llm.RoleAssistant, Content: p.fallback}}, nil
}

func (p *scriptedProvider) IsAvailable(context.Context) bool { return true }

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// newAgentDeps builds a built-in-only prompt store and a disabled cache
// gateway, so every test call goes straight to the provider.
func newAgentDeps(t *testing.T) (*prompt.Store, *llmcache.Gateway) {
	t.Helper()
	store, err := prompt.NewStore(context.Background(), "", "", 0)
	require.NoError(t, err)
	gateway, err := llmcache.New(llmcache.Config{Enabled: false}, "", false)
	require.NoError(t, err)
	return store, gateway
}
