package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tsPtr(value time.Time) *time.Time { return &value }

func TestLogEntryBeforeNilOrdering(t *testing.T) {
	early := tsPtr(time.Date(2025, 7, 24, 8, 0, 0, 0, time.UTC))
	late := tsPtr(time.Date(2025, 7, 24, 9, 0, 0, 0, time.UTC))

	withNil := &LogEntry{}
	withEarly := &LogEntry{Timestamp: early}
	withLate := &LogEntry{Timestamp: late}

	assert.True(t, withNil.Before(withEarly), "nil timestamp sorts earliest")
	assert.False(t, withEarly.Before(withNil))
	assert.False(t, withNil.Before(&LogEntry{}), "two nils compare equal")
	assert.True(t, withEarly.Before(withLate))
	assert.False(t, withLate.Before(withEarly))
}

func TestTraceBundleTimeSpan(t *testing.T) {
	first := time.Date(2025, 7, 24, 8, 0, 0, 0, time.UTC)
	last := time.Date(2025, 7, 24, 11, 0, 0, 0, time.UTC)
	bundle := &TraceBundle{Entries: []LogEntry{
		{Timestamp: tsPtr(last)},
		{},
		{Timestamp: tsPtr(first)},
	}}

	gotFirst, gotLast, ok := bundle.TimeSpan()
	require.True(t, ok)
	assert.Equal(t, first, gotFirst)
	assert.Equal(t, last, gotLast)

	_, _, ok = (&TraceBundle{Entries: []LogEntry{{}, {}}}).TimeSpan()
	assert.False(t, ok)
}

func TestTraceBundleLevels(t *testing.T) {
	bundle := &TraceBundle{Entries: []LogEntry{
		{Level: "INFO"}, {Level: "ERROR"}, {Level: "INFO"}, {Level: ""},
	}}
	assert.Equal(t, []string{"INFO", "ERROR"}, bundle.Levels())
}

func TestSearchParametersCanProceed(t *testing.T) {
	assert.False(t, (&SearchParameters{}).CanProceed())
	assert.False(t, (&SearchParameters{TimeFrame: "2025-07-24"}).CanProceed())
	assert.False(t, (&SearchParameters{QueryKeys: []string{"x"}}).CanProceed())
	assert.True(t, (&SearchParameters{TimeFrame: "2025-07-24", QueryKeys: []string{"x"}}).CanProceed())
}

func TestSearchParametersHasQueryKey(t *testing.T) {
	p := &SearchParameters{QueryKeys: []string{"trx_id"}}
	assert.True(t, p.HasQueryKey("TRX_ID"))
	assert.False(t, p.HasQueryKey("account_no"))
}
