package api

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/logsleuth/sleuth/pkg/pipeline"
)

// pendingTTL bounds how long a submitted request waits for its stream to be
// consumed before it is dropped.
const pendingTTL = 10 * time.Minute

type pendingStream struct {
	req       pipeline.Request
	createdAt time.Time
}

// streamRegistry holds submitted requests between POST /chat and the client's
// GET on the stream URL. A stream is single-consumer: claiming removes it.
type streamRegistry struct {
	mu      sync.Mutex
	pending map[string]pendingStream
}

func newStreamRegistry() *streamRegistry {
	return &streamRegistry{pending: make(map[string]pendingStream)}
}

// add registers a request and returns its stream ID.
func (r *streamRegistry) add(req pipeline.Request) string {
	id := uuid.NewString()
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()
	for key, p := range r.pending {
		if now.Sub(p.createdAt) > pendingTTL {
			delete(r.pending, key)
		}
	}
	r.pending[id] = pendingStream{req: req, createdAt: now}
	return id
}

// claim removes and returns the request for id.
func (r *streamRegistry) claim(id string) (pipeline.Request, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pending[id]
	if !ok || time.Since(p.createdAt) > pendingTTL {
		delete(r.pending, id)
		return pipeline.Request{}, false
	}
	delete(r.pending, id)
	return p.req, true
}
