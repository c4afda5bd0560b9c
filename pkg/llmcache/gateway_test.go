package llmcache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logsleuth/sleuth/pkg/llm"
)

func newTestGateway(t *testing.T, l2URL string) *Gateway {
	t.Helper()
	g, err := New(Config{
		Enabled:        true,
		Namespace:      "test",
		L1Size:         64,
		L1TTL:          time.Minute,
		GatewayVersion: "v1",
		PromptVersion:  "v1",
	}, l2URL, true)
	require.NoError(t, err)
	return g
}

func testInput(content string, policy *Policy, compute ComputeFunc) CachedInput {
	return CachedInput{
		CacheType: "trace_analysis",
		ModelID:   "test-model",
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: content}},
		Policy:    policy,
		Compute:   compute,
	}
}

func countingCompute(counter *atomic.Int64, value string) ComputeFunc {
	return func(context.Context) (string, bool, error) {
		counter.Add(1)
		return value, true, nil
	}
}

func TestCachedMissThenHit(t *testing.T) {
	g := newTestGateway(t, "")
	var computes atomic.Int64

	value, diag, err := g.Cached(context.Background(),
		testInput("analyze", nil, countingCompute(&computes, "result")))
	require.NoError(t, err)
	assert.Equal(t, "result", value)
	assert.Equal(t, StatusMiss, diag.Status)

	value, diag, err = g.Cached(context.Background(),
		testInput("analyze", nil, countingCompute(&computes, "other")))
	require.NoError(t, err)
	assert.Equal(t, "result", value)
	assert.Equal(t, StatusHitL1, diag.Status)
	assert.Equal(t, int64(1), computes.Load())
}

func TestCachedNilCompute(t *testing.T) {
	g := newTestGateway(t, "")
	_, _, err := g.Cached(context.Background(), testInput("x", nil, nil))
	assert.ErrorIs(t, err, ErrNilCompute)
}

func TestCachedBypassWhenDisabled(t *testing.T) {
	g, err := New(Config{Enabled: false}, "", false)
	require.NoError(t, err)

	var computes atomic.Int64
	for i := 0; i < 2; i++ {
		value, diag, callErr := g.Cached(context.Background(),
			testInput("x", nil, countingCompute(&computes, "fresh")))
		require.NoError(t, callErr)
		assert.Equal(t, "fresh", value)
		assert.Equal(t, StatusBypass, diag.Status)
	}
	assert.Equal(t, int64(2), computes.Load())
}

func TestCachedPolicyDisabled(t *testing.T) {
	g := newTestGateway(t, "")
	enabled := false

	var computes atomic.Int64
	_, diag, err := g.Cached(context.Background(),
		testInput("x", &Policy{Enabled: &enabled}, countingCompute(&computes, "v")))
	require.NoError(t, err)
	assert.Equal(t, StatusBypass, diag.Status)
}

func TestCachedTTLExpiry(t *testing.T) {
	g := newTestGateway(t, "")
	var computes atomic.Int64

	in := testInput("expiring", nil, countingCompute(&computes, "v"))
	in.DefaultTTL = 50 * time.Millisecond

	_, diag, err := g.Cached(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, StatusMiss, diag.Status)

	_, diag, err = g.Cached(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, StatusHitL1, diag.Status)

	time.Sleep(80 * time.Millisecond)
	_, diag, err = g.Cached(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, StatusMiss, diag.Status)
	assert.Equal(t, int64(2), computes.Load())
}

func TestCachedNoCacheForcesRevalidation(t *testing.T) {
	g := newTestGateway(t, "")
	var computes atomic.Int64

	_, _, err := g.Cached(context.Background(),
		testInput("x", nil, countingCompute(&computes, "v1")))
	require.NoError(t, err)

	// no_cache skips the read path but still stores the fresh value.
	value, diag, err := g.Cached(context.Background(),
		testInput("x", &Policy{NoCache: true}, countingCompute(&computes, "v2")))
	require.NoError(t, err)
	assert.Equal(t, "v2", value)
	assert.Equal(t, StatusMiss, diag.Status)

	value, diag, err = g.Cached(context.Background(),
		testInput("x", nil, countingCompute(&computes, "v3")))
	require.NoError(t, err)
	assert.Equal(t, "v2", value)
	assert.Equal(t, StatusHitL1, diag.Status)
}

func TestCachedNoStoreForbidsWrite(t *testing.T) {
	g := newTestGateway(t, "")
	var computes atomic.Int64

	for i := 0; i < 2; i++ {
		_, diag, err := g.Cached(context.Background(),
			testInput("x", &Policy{NoStore: true}, countingCompute(&computes, "v")))
		require.NoError(t, err)
		assert.Equal(t, StatusMiss, diag.Status)
	}
	assert.Equal(t, int64(2), computes.Load())
}

func TestCachedSMaxAgeRejectsStaleHit(t *testing.T) {
	g := newTestGateway(t, "")
	var computes atomic.Int64

	_, _, err := g.Cached(context.Background(),
		testInput("x", nil, countingCompute(&computes, "v")))
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)
	zero := 0
	_, diag, err := g.Cached(context.Background(),
		testInput("x", &Policy{SMaxAgeSeconds: &zero}, countingCompute(&computes, "v")))
	require.NoError(t, err)
	assert.Equal(t, StatusMiss, diag.Status)
	assert.Equal(t, int64(2), computes.Load())
}

func TestCachedSingleFlight(t *testing.T) {
	g := newTestGateway(t, "")

	var computes atomic.Int64
	release := make(chan struct{})
	compute := func(context.Context) (string, bool, error) {
		computes.Add(1)
		<-release
		return "shared", true, nil
	}

	const callers = 5
	var wg sync.WaitGroup
	statuses := make([]Status, callers)
	values := make([]string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			value, diag, err := g.Cached(context.Background(),
				testInput("contended", &Policy{NoCache: true}, compute))
			assert.NoError(t, err)
			values[i] = value
			statuses[i] = diag.Status
		}()
	}

	// Let every caller reach the single-flight group before the leader
	// finishes computing.
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int64(1), computes.Load())
	misses, coalesced := 0, 0
	for i := 0; i < callers; i++ {
		assert.Equal(t, "shared", values[i])
		switch statuses[i] {
		case StatusMiss:
			misses++
		case StatusCoalesced:
			coalesced++
		}
	}
	assert.Equal(t, 1, misses)
	assert.GreaterOrEqual(t, coalesced, 1)
}

func TestCachedNotCacheableResult(t *testing.T) {
	g := newTestGateway(t, "")
	var computes atomic.Int64

	compute := func(context.Context) (string, bool, error) {
		computes.Add(1)
		return "volatile", false, nil
	}
	for i := 0; i < 2; i++ {
		_, diag, err := g.Cached(context.Background(), testInput("x", nil, compute))
		require.NoError(t, err)
		assert.Equal(t, StatusMiss, diag.Status)
	}
	assert.Equal(t, int64(2), computes.Load())
}

func TestCachedL2HitAndBackfill(t *testing.T) {
	mr := miniredis.RunT(t)
	url := "redis://" + mr.Addr()

	first := newTestGateway(t, url)
	var computes atomic.Int64
	_, diag, err := first.Cached(context.Background(),
		testInput("shared across processes", nil, countingCompute(&computes, "v")))
	require.NoError(t, err)
	assert.Equal(t, StatusMiss, diag.Status)

	// A fresh gateway with an empty L1 simulates a sibling process.
	second := newTestGateway(t, url)
	value, diag, err := second.Cached(context.Background(),
		testInput("shared across processes", nil, countingCompute(&computes, "other")))
	require.NoError(t, err)
	assert.Equal(t, "v", value)
	assert.Equal(t, StatusHitL2, diag.Status)

	// The L2 hit was backfilled into the sibling's L1.
	_, diag, err = second.Cached(context.Background(),
		testInput("shared across processes", nil, countingCompute(&computes, "other")))
	require.NoError(t, err)
	assert.Equal(t, StatusHitL1, diag.Status)
	assert.Equal(t, int64(1), computes.Load())
}

func TestBackfillL1KeepsCanonicalDeadline(t *testing.T) {
	g := newTestGateway(t, "")

	now := time.Now()
	createdAt := now.Add(-20 * time.Second)
	in := testInput("aged entry", nil, nil)
	in.DefaultTTL = time.Minute

	g.backfillL1("llm:trace_analysis:aged", &l2Entry{CreatedAt: createdAt, Value: "v"}, in, now)

	entry, ok := g.l1.get("llm:trace_analysis:aged", now)
	require.True(t, ok)
	assert.Equal(t, createdAt, entry.CreatedAt)
	assert.Equal(t, createdAt.Add(time.Minute), entry.ExpiresAt,
		"deadline stays anchored at creation, not at the backfill moment")

	// An entry already past its canonical deadline is not backfilled.
	stale := &l2Entry{CreatedAt: now.Add(-2 * time.Minute), Value: "v"}
	g.backfillL1("llm:trace_analysis:stale", stale, in, now)
	_, ok = g.l1.get("llm:trace_analysis:stale", now)
	assert.False(t, ok)
}

func TestDeleteRemovesBothTiers(t *testing.T) {
	mr := miniredis.RunT(t)
	g := newTestGateway(t, "redis://"+mr.Addr())

	var computes atomic.Int64
	in := testInput("deletable", nil, countingCompute(&computes, "v"))
	_, _, err := g.Cached(context.Background(), in)
	require.NoError(t, err)

	key := BuildKey(in.CacheType, "test", in.ModelID, in.Messages, in.Options, "v1", "v1")
	g.Delete(context.Background(), key)

	_, diag, err := g.Cached(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, StatusMiss, diag.Status)
	assert.Equal(t, int64(2), computes.Load())
}

func TestClearL1KeepsL2(t *testing.T) {
	mr := miniredis.RunT(t)
	g := newTestGateway(t, "redis://"+mr.Addr())

	var computes atomic.Int64
	in := testInput("survives in l2", nil, countingCompute(&computes, "v"))
	_, _, err := g.Cached(context.Background(), in)
	require.NoError(t, err)

	g.ClearL1()
	_, diag, err := g.Cached(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, StatusHitL2, diag.Status)
	assert.Equal(t, int64(1), computes.Load())
}

func TestSnapshotCounters(t *testing.T) {
	g := newTestGateway(t, "")
	var computes atomic.Int64

	_, _, err := g.Cached(context.Background(), testInput("x", nil, countingCompute(&computes, "v")))
	require.NoError(t, err)
	_, _, err = g.Cached(context.Background(), testInput("x", nil, countingCompute(&computes, "v")))
	require.NoError(t, err)

	s := g.Snapshot(context.Background())
	assert.True(t, s.Enabled)
	assert.False(t, s.L2Enabled)
	assert.Equal(t, int64(1), s.L1.Hits)
	assert.Equal(t, int64(1), s.L1.Misses)
	assert.Equal(t, int64(1), s.L1.Sets)
	assert.Equal(t, int64(1), s.Computes)
	assert.Equal(t, 1, s.L1Entries)
}
