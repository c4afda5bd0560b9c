package trace

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/logsleuth/sleuth/pkg/models"
)

// LokiStream is one stream of a Loki query response: a label map plus
// [nanosecond-epoch, message] value pairs.
type LokiStream struct {
	Stream map[string]string `json:"stream"`
	Values [][2]string       `json:"values"`
}

// LokiResponse is the structured remote log query response.
type LokiResponse struct {
	Status string `json:"status"`
	Data   struct {
		ResultType string       `json:"resultType"`
		Result     []LokiStream `json:"result"`
	} `json:"data"`
}

// ParseLokiResponse decodes a raw Loki query response body.
func ParseLokiResponse(data []byte) (*LokiResponse, error) {
	var resp LokiResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse log stream response: %w", err)
	}
	return &resp, nil
}

// IsEmpty reports whether the response carries no result streams.
func (r *LokiResponse) IsEmpty() bool {
	return len(r.Data.Result) == 0
}

// EntryCount returns the total number of log lines across all streams.
func (r *LokiResponse) EntryCount() int {
	n := 0
	for _, s := range r.Data.Result {
		n += len(s.Values)
	}
	return n
}

// TraceIDs lifts the distinct trace identifiers from the stream label maps,
// first-seen order.
func (r *LokiResponse) TraceIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, s := range r.Data.Result {
		id := s.Stream["trace_id"]
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

// Entries converts the response into log entries. Nanosecond epochs are
// divided down to seconds; unparseable timestamps are retained as nil and
// sort earliest.
func (r *LokiResponse) Entries(sourceName string) []models.LogEntry {
	var entries []models.LogEntry
	for _, s := range r.Data.Result {
		traceID := s.Stream["trace_id"]
		level := s.Stream["level"]
		service := s.Stream["service_name"]
		if service == "" {
			service = s.Stream["service"]
		}
		for _, v := range s.Values {
			entries = append(entries, models.LogEntry{
				Timestamp:  parseNanosEpoch(v[0]),
				TraceID:    traceID,
				Level:      level,
				Service:    service,
				Message:    v[1],
				Raw:        v[1],
				SourceFile: sourceName,
			})
		}
	}
	return entries
}

// parseNanosEpoch converts a nanosecond epoch string to a timestamp.
func parseNanosEpoch(s string) *time.Time {
	nanos, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	ts := time.Unix(nanos/1e9, nanos%1e9).UTC()
	return &ts
}
