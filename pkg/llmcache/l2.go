package llmcache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// l2OpTimeout bounds every Redis operation so a stalled L2 never stalls the
// request path.
const l2OpTimeout = 500 * time.Millisecond

// l2LockTTL bounds how long a cross-process compute lock may be held.
const l2LockTTL = 60 * time.Second

// l2WaitBudget is how long a non-leader polls L2 for the leader's result
// before computing independently.
const l2WaitBudget = 5 * time.Second

// l2PollInterval is the poll cadence while waiting on the L2 lock holder.
const l2PollInterval = 200 * time.Millisecond

// l2Entry is the JSON envelope stored in Redis.
type l2Entry struct {
	CreatedAt time.Time `json:"created_at"`
	Value     string    `json:"value"`
}

// l2Store wraps the shared Redis tier. All failures downgrade to L1-only and
// never propagate to callers; the last error is retained for diagnostics.
type l2Store struct {
	client    *redis.Client
	autoProbe bool

	probeOnce sync.Once
	available bool

	mu        sync.Mutex
	lastError string
}

func newL2Store(url string, autoProbe bool) (*l2Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	opts.DialTimeout = l2OpTimeout
	opts.ReadTimeout = l2OpTimeout
	opts.WriteTimeout = l2OpTimeout
	return &l2Store{client: redis.NewClient(opts), autoProbe: autoProbe}, nil
}

// ensureAvailable performs the one-time availability probe. When auto-probe
// is disabled the store is assumed available and individual operations fail
// soft instead.
func (s *l2Store) ensureAvailable(ctx context.Context) bool {
	s.probeOnce.Do(func() {
		if !s.autoProbe {
			s.available = true
			return
		}
		probeCtx, cancel := context.WithTimeout(ctx, l2OpTimeout)
		defer cancel()
		if err := s.client.Ping(probeCtx).Err(); err != nil {
			s.recordError(err)
			slog.Warn("L2 cache unavailable, continuing L1-only", "error", err)
			return
		}
		s.available = true
		slog.Info("L2 cache available")
	})
	return s.available
}

func (s *l2Store) recordError(err error) {
	s.mu.Lock()
	s.lastError = err.Error()
	s.mu.Unlock()
}

// LastError returns the most recent L2 failure, if any.
func (s *l2Store) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// get reads an entry. Misses and I/O failures both return ok=false.
func (s *l2Store) get(ctx context.Context, key string) (*l2Entry, bool) {
	opCtx, cancel := context.WithTimeout(ctx, l2OpTimeout)
	defer cancel()

	raw, err := s.client.Get(opCtx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.recordError(err)
		}
		return nil, false
	}

	var entry l2Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		s.recordError(err)
		return nil, false
	}
	return &entry, true
}

// set writes an entry with TTL. Failures are recorded and suppressed.
func (s *l2Store) set(ctx context.Context, key, value string, ttl time.Duration, now time.Time) {
	raw, err := json.Marshal(l2Entry{CreatedAt: now, Value: value})
	if err != nil {
		s.recordError(err)
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, l2OpTimeout)
	defer cancel()
	if err := s.client.Set(opCtx, key, raw, ttl).Err(); err != nil {
		s.recordError(err)
	}
}

// delete removes an entry. Failures are recorded and suppressed.
func (s *l2Store) delete(ctx context.Context, key string) {
	opCtx, cancel := context.WithTimeout(ctx, l2OpTimeout)
	defer cancel()
	if err := s.client.Del(opCtx, key).Err(); err != nil {
		s.recordError(err)
	}
}

// acquireLock attempts the cross-process single-flight lock (atomic
// set-if-absent with TTL). Returns true when this process is the leader.
func (s *l2Store) acquireLock(ctx context.Context, key string) bool {
	opCtx, cancel := context.WithTimeout(ctx, l2OpTimeout)
	defer cancel()

	ok, err := s.client.SetNX(opCtx, key+":lock", "1", l2LockTTL).Result()
	if err != nil {
		s.recordError(err)
		// Lock state unknown: compute locally rather than stall.
		return true
	}
	return ok
}

// releaseLock drops the compute lock.
func (s *l2Store) releaseLock(ctx context.Context, key string) {
	opCtx, cancel := context.WithTimeout(ctx, l2OpTimeout)
	defer cancel()
	if err := s.client.Del(opCtx, key+":lock").Err(); err != nil {
		s.recordError(err)
	}
}

// waitForResult polls L2 for the lock holder's result until the wait budget
// elapses. Returns ok=false when the budget runs out.
func (s *l2Store) waitForResult(ctx context.Context, key string) (*l2Entry, bool) {
	deadline := time.Now().Add(l2WaitBudget)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return nil, false
		case <-time.After(l2PollInterval):
		}
		if entry, ok := s.get(ctx, key); ok {
			return entry, true
		}
	}
	return nil, false
}

// ping checks L2 reachability for the admin endpoint.
func (s *l2Store) ping(ctx context.Context) error {
	opCtx, cancel := context.WithTimeout(ctx, l2OpTimeout)
	defer cancel()
	if err := s.client.Ping(opCtx).Err(); err != nil {
		s.recordError(err)
		return err
	}
	return nil
}
