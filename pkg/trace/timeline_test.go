package trace

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOperationSummary(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    string
	}{
		{"http call", `calling POST /api/v1/transfer with payload`, "POST /api/v1/transfer"},
		{"exception class", "caught java.net.SocketTimeoutException: read timed out", "SocketTimeoutException"},
		{"method invocation", "entering processSettlement(batch=42)", "processSettlement()"},
		{"short message verbatim", "connection closed", "connection closed"},
		{"empty message", "", "(empty message)"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, OperationSummary(tc.message))
		})
	}
}

func TestOperationSummaryTruncatesLongMessages(t *testing.T) {
	long := strings.Repeat("y ", 100)
	got := OperationSummary(long)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.LessOrEqual(t, len(got), 83)
}
