package trace

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logsleuth/sleuth/pkg/models"
)

func ts(t *testing.T, value string) *time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	require.NoError(t, err)
	parsed = parsed.UTC()
	return &parsed
}

func TestParseXMLRecords(t *testing.T) {
	doc := `<log-row>
  <request-id>req-1</request-id>
  <timestamp>2025-07-24 10:15:30</timestamp>
  <level>error</level>
  <service>payment-gw</service>
  <message>TRANSACTION FAILED for bkash</message>
</log-row>
<log-row>
  <request-id>req-2</request-id>
  <message>no metadata</message>
</log-row>`

	entries := ParseXMLRecords(doc, "app.log")
	require.Len(t, entries, 2)

	assert.Equal(t, "req-1", entries[0].TraceID)
	assert.Equal(t, "ERROR", entries[0].Level)
	assert.Equal(t, "payment-gw", entries[0].Service)
	assert.Equal(t, "TRANSACTION FAILED for bkash", entries[0].Message)
	assert.Equal(t, "app.log", entries[0].SourceFile)
	require.NotNil(t, entries[0].Timestamp)
	assert.Equal(t, 2025, entries[0].Timestamp.Year())

	// Missing fields fall back: INFO level, nil timestamp.
	assert.Equal(t, "req-2", entries[1].TraceID)
	assert.Equal(t, "INFO", entries[1].Level)
	assert.Nil(t, entries[1].Timestamp)
}

func TestParseTimestampDayFirst(t *testing.T) {
	parsed := ParseTimestamp("24.07.2025 10:15:30")
	require.NotNil(t, parsed)
	assert.Equal(t, time.July, parsed.Month())
	assert.Equal(t, 24, parsed.Day())

	assert.Nil(t, ParseTimestamp(""))
	assert.Nil(t, ParseTimestamp("not a date"))
}

func TestCompileGroupsAcrossSources(t *testing.T) {
	sources := []Source{
		{
			Name: "a.log",
			Entries: []models.LogEntry{
				{TraceID: "t1", Message: "late", Timestamp: ts(t, "2025-07-24T12:00:00Z"), SourceFile: "a.log"},
				{TraceID: "t2", Message: "other trace", Timestamp: ts(t, "2025-07-24T09:00:00Z"), SourceFile: "a.log"},
			},
		},
		{
			Name: "b.log",
			Entries: []models.LogEntry{
				{TraceID: "t1", Message: "early", Timestamp: ts(t, "2025-07-24T08:00:00Z"), SourceFile: "b.log"},
				{TraceID: "t1", Message: "no timestamp", SourceFile: "b.log"},
			},
		},
	}

	bundles := Compile([]string{"t1", "t2", "t-missing"}, sources)
	require.Len(t, bundles, 2, "trace with no entries must not materialize a bundle")

	t1 := bundles[0]
	assert.Equal(t, "t1", t1.TraceID)
	assert.Equal(t, 3, t1.TotalEntries)
	assert.Equal(t, []string{"a.log", "b.log"}, t1.SourceFiles)

	// Nil timestamps sort first, then chronological order.
	assert.Equal(t, "no timestamp", t1.Entries[0].Message)
	assert.Equal(t, "early", t1.Entries[1].Message)
	assert.Equal(t, "late", t1.Entries[2].Message)

	// Every entry belongs to the bundle's trace.
	for _, e := range t1.Entries {
		assert.Equal(t, "t1", e.TraceID)
	}

	// Timeline seq follows the sorted order.
	require.Len(t, t1.Timeline, 3)
	for i, ev := range t1.Timeline {
		assert.Equal(t, i+1, ev.Seq)
	}
}

func TestCompileStableOnTimestampTies(t *testing.T) {
	same := ts(t, "2025-07-24T10:00:00Z")
	sources := []Source{{
		Name: "a.log",
		Entries: []models.LogEntry{
			{TraceID: "t1", Message: "first inserted", Timestamp: same},
			{TraceID: "t1", Message: "second inserted", Timestamp: same},
		},
	}}

	bundles := Compile([]string{"t1"}, sources)
	require.Len(t, bundles, 1)
	assert.Equal(t, "first inserted", bundles[0].Entries[0].Message)
	assert.Equal(t, "second inserted", bundles[0].Entries[1].Message)
}

func TestFiveRecordsTwoTraces(t *testing.T) {
	doc := logRow("alpha", "one") + logRow("beta", "two") + logRow("alpha", "three") +
		logRow("beta", "four") + logRow("alpha", "five")

	entries := ParseXMLRecords(doc, "x.log")
	require.Len(t, entries, 5)

	ids := Unique(ExtractAll(doc))
	bundles := Compile(ids, []Source{{Name: "x.log", Entries: entries}})
	require.Len(t, bundles, 2)
	assert.Equal(t, 5, bundles[0].TotalEntries+bundles[1].TotalEntries)
}
