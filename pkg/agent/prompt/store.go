package prompt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// defaultResolveTimeout bounds one database lookup; a slow or down database
// must not stall a pipeline run.
const defaultResolveTimeout = 2 * time.Second

// ErrUnknownTemplate indicates a template name with no built-in definition.
var ErrUnknownTemplate = errors.New("prompt: unknown template")

type cachedTemplate struct {
	text      string
	fetchedAt time.Time
}

// Store resolves prompt templates: database overrides first (when configured),
// built-in templates as the fallback. Resolved overrides are cached with a
// TTL so the hot path stays off the database.
type Store struct {
	pool  *pgxpool.Pool // nil when no database is configured
	table string
	ttl   time.Duration

	mu    sync.Mutex
	cache map[string]cachedTemplate
}

// NewStore creates a template store. url is the PostgreSQL DSN; empty
// disables overrides and every Resolve serves the built-in text. The pool
// connects lazily, so a down database surfaces per-lookup, not at startup.
func NewStore(ctx context.Context, url, schema string, ttl time.Duration) (*Store, error) {
	s := &Store{
		table: qualifiedTable(schema),
		ttl:   ttl,
		cache: make(map[string]cachedTemplate),
	}
	if s.ttl <= 0 {
		s.ttl = 5 * time.Minute
	}
	if url == "" {
		return s, nil
	}

	poolCfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("invalid prompt store DSN: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create prompt store pool: %w", err)
	}
	s.pool = pool
	return s, nil
}

func qualifiedTable(schema string) string {
	if schema == "" {
		return "prompt_templates"
	}
	return schema + ".prompt_templates"
}

// Close releases the database pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Resolve returns the template text for name. Lookup order: fresh cached
// override, database override, built-in. Database failures degrade to the
// built-in text with a warning.
func (s *Store) Resolve(ctx context.Context, name string) (string, error) {
	builtin, known := builtins[name]
	if !known {
		return "", fmt.Errorf("%w: %s", ErrUnknownTemplate, name)
	}
	if s.pool == nil {
		return builtin, nil
	}

	now := time.Now()
	s.mu.Lock()
	entry, ok := s.cache[name]
	s.mu.Unlock()
	if ok && now.Sub(entry.fetchedAt) < s.ttl {
		return entry.text, nil
	}

	text, err := s.fetch(ctx, name)
	switch {
	case err == nil:
		// Cache the override, or the built-in when no row exists, so the
		// miss is not re-queried every call.
		if text == "" {
			text = builtin
		}
		s.mu.Lock()
		s.cache[name] = cachedTemplate{text: text, fetchedAt: now}
		s.mu.Unlock()
		return text, nil
	case ok:
		// Stale cache beats a failing database.
		slog.Warn("Prompt store lookup failed, serving stale template", "name", name, "error", err)
		return entry.text, nil
	default:
		slog.Warn("Prompt store lookup failed, serving built-in template", "name", name, "error", err)
		return builtin, nil
	}
}

// fetch reads one override row. Returns "" with nil error when no row exists.
func (s *Store) fetch(ctx context.Context, name string) (string, error) {
	opCtx, cancel := context.WithTimeout(ctx, defaultResolveTimeout)
	defer cancel()

	var text string
	query := fmt.Sprintf("SELECT template FROM %s WHERE name = $1 AND enabled", s.table)
	err := s.pool.QueryRow(opCtx, query, name).Scan(&text)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return text, nil
}
