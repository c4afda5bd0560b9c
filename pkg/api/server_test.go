package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logsleuth/sleuth/pkg/agent"
	"github.com/logsleuth/sleuth/pkg/agent/prompt"
	"github.com/logsleuth/sleuth/pkg/config"
	"github.com/logsleuth/sleuth/pkg/llm"
	"github.com/logsleuth/sleuth/pkg/llmcache"
	"github.com/logsleuth/sleuth/pkg/loki"
	"github.com/logsleuth/sleuth/pkg/models"
	"github.com/logsleuth/sleuth/pkg/pipeline"
	"github.com/logsleuth/sleuth/pkg/report"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubProvider always replies with the same canned content.
type stubProvider struct {
	reply string
}

func (p *stubProvider) Chat(context.Context, string, []llm.Message, *llm.Options) (*llm.ChatResponse, error) {
	return &llm.ChatResponse{Message: llm.Message{Role: llm.RoleAssistant, Content: p.reply}}, nil
}

func (p *stubProvider) IsAvailable(context.Context) bool { return true }

func (p *stubProvider) Name() string { return "stub" }

const testLogContent = `<log-row>
  <request-id>trace-a</request-id>
  <timestamp>2025-07-24 10:15:30</timestamp>
  <level>error</level>
  <message>TRANSACTION FAILED trx=900112233</message>
</log-row>`

func newTestServer(t *testing.T) *Server {
	t.Helper()

	logRoot := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(logRoot, "app.log"), []byte(testLogContent), 0o644))

	cfg := &config.Config{
		Analysis: &config.AnalysisConfig{Workers: 1, BatchSize: 10},
		Projects: map[string]models.ProjectDescriptor{
			"ABL": {
				Code:          "ABL",
				LogSourceKind: models.LogSourceFile,
				Environments:  map[string]models.EnvDescriptor{"prod": {LogRoot: logRoot}},
			},
		},
	}

	store, err := prompt.NewStore(context.Background(), "", "", 0)
	require.NoError(t, err)
	gateway, err := llmcache.New(llmcache.Config{Enabled: false}, "", false)
	require.NoError(t, err)

	provider := &stubProvider{
		reply: `{"time_frame":"2025-07-24","domain":"MFS","query_keys":["900112233"],
			"relevance_score":85,"confidence_score":80,"transaction_outcome":"FAILED"}`,
	}
	paramAgent := agent.NewParameterAgent(provider, "test-model", store, gateway,
		[]string{"trx_id"}, []string{"mfs"}, time.Second)
	analyzer := agent.NewAnalyzer(provider, "test-model", store, gateway, time.Second)
	relevance := agent.NewRelevanceAnalyzer(provider, "test-model", store, gateway,
		agent.RelevanceConfig{}, time.Second)

	lokiClient, err := loki.NewClient(loki.ClientConfig{
		Endpoint: "http://127.0.0.1:1",
		CacheDir: t.TempDir(),
	})
	require.NoError(t, err)

	writer, err := report.NewWriter(t.TempDir())
	require.NoError(t, err)

	orchestrator := pipeline.NewOrchestrator(cfg, paramAgent, analyzer, relevance, lokiClient, writer)
	return NewServer(cfg, orchestrator, paramAgent, gateway, lokiClient, provider)
}

func doJSON(t *testing.T, router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestSubmitChatReturnsStreamURL(t *testing.T) {
	router := newTestServer(t).Router()

	rec := doJSON(t, router, http.MethodPost, "/api/v1/chat",
		`{"prompt":"dispute trx 900112233","project":"ABL","env":"prod"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, strings.HasPrefix(body["streamUrl"], "/api/v1/stream/"))
}

func TestSubmitChatValidation(t *testing.T) {
	router := newTestServer(t).Router()

	rec := doJSON(t, router, http.MethodPost, "/api/v1/chat", `{"prompt":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/chat",
		`{"prompt":"x","project":"NOPE","env":"prod"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStreamEventsFullRun(t *testing.T) {
	router := newTestServer(t).Router()

	rec := doJSON(t, router, http.MethodPost, "/api/v1/chat",
		`{"prompt":"dispute trx 900112233 on 2025-07-24","project":"ABL","env":"prod"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var submit map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &submit))

	stream := doJSON(t, router, http.MethodGet, submit["streamUrl"], "")
	require.Equal(t, http.StatusOK, stream.Code)
	assert.Contains(t, stream.Header().Get("Content-Type"), "text/event-stream")

	body := stream.Body.String()
	assert.Contains(t, body, "Extracted Parameters")
	assert.Contains(t, body, "Found relevant files")
	assert.Contains(t, body, "Found trace id(s)")
	assert.Contains(t, body, "Compiled Request Traces")
	assert.Contains(t, body, "Compiled Summary")
	assert.Contains(t, body, "Verification Results")
	assert.Contains(t, body, "event:done")
}

func TestSubmitChatDomainReachesPipeline(t *testing.T) {
	router := newTestServer(t).Router()

	rec := doJSON(t, router, http.MethodPost, "/api/v1/chat",
		`{"prompt":"dispute trx 900112233 on 2025-07-24","project":"ABL","env":"prod","domain":"npsb"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var submit map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &submit))

	stream := doJSON(t, router, http.MethodGet, submit["streamUrl"], "")
	require.Equal(t, http.StatusOK, stream.Code)
	assert.Contains(t, stream.Body.String(), "NPSB,MFS",
		"request domain leads, extracted domain kept")
}

func TestStreamEventsSingleConsumer(t *testing.T) {
	router := newTestServer(t).Router()

	rec := doJSON(t, router, http.MethodPost, "/api/v1/chat",
		`{"prompt":"dispute trx 900112233 on 2025-07-24","project":"ABL","env":"prod"}`)
	var submit map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &submit))

	first := doJSON(t, router, http.MethodGet, submit["streamUrl"], "")
	require.Equal(t, http.StatusOK, first.Code)

	second := doJSON(t, router, http.MethodGet, submit["streamUrl"], "")
	assert.Equal(t, http.StatusNotFound, second.Code)
}

func TestStreamEventsUnknownID(t *testing.T) {
	router := newTestServer(t).Router()
	rec := doJSON(t, router, http.MethodGet, "/api/v1/stream/bogus-id", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPreviewPlan(t *testing.T) {
	router := newTestServer(t).Router()

	rec := doJSON(t, router, http.MethodPost, "/api/v1/plan",
		`{"prompt":"dispute trx 900112233 on 2025-07-24","project":"ABL","env":"prod"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "parameters")
	assert.Contains(t, body, "plan")
}

func TestPreviewPlanAppliesDomainHint(t *testing.T) {
	router := newTestServer(t).Router()

	rec := doJSON(t, router, http.MethodPost, "/api/v1/plan",
		`{"prompt":"dispute trx 900112233 on 2025-07-24","project":"ABL","env":"prod","domain":"npsb"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "NPSB,MFS")
}

func TestHealth(t *testing.T) {
	router := newTestServer(t).Router()

	rec := doJSON(t, router, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])

	// No L2 configured: reported unhealthy but the service itself stays up.
	l2, ok := body["cache_l2"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, false, l2["healthy"])
}

func TestCacheEndpoints(t *testing.T) {
	router := newTestServer(t).Router()

	rec := doJSON(t, router, http.MethodGet, "/api/v1/cache/ping", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "no L2 configured")

	rec = doJSON(t, router, http.MethodGet, "/api/v1/cache/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Contains(t, stats, "gateway")
	assert.Contains(t, stats, "loki")

	rec = doJSON(t, router, http.MethodPost, "/api/v1/cache/delete", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/cache/delete", `{"key":"abc"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/cache/clear-l1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
