package prompt

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	got := Render("Dispute: $user_prompt on $date", Vars{
		"user_prompt": "transfer failed",
		"date":        "2025-07-24",
	})
	assert.Equal(t, "Dispute: transfer failed on 2025-07-24", got)
}

func TestRenderMissingVarExpandsEmpty(t *testing.T) {
	got := Render("before $missing after", Vars{})
	assert.Equal(t, "before  after", got)
}

func TestFormatKV(t *testing.T) {
	got := FormatKV(map[string]string{"b": "2", "a": "1"})
	assert.Equal(t, "a: 1\nb: 2", got, "keys render in sorted order")
	assert.Equal(t, "(none)", FormatKV(nil))
}

func TestFormatList(t *testing.T) {
	assert.Equal(t, "x, y", FormatList([]string{"x", "y"}))
	assert.Equal(t, "(none)", FormatList(nil))
}

func TestResolveBuiltins(t *testing.T) {
	store, err := NewStore(context.Background(), "", "", 0)
	require.NoError(t, err)
	defer store.Close()

	for _, name := range []string{
		NameParameterExtraction,
		NameTraceAnalysis,
		NameTraceEntriesAnalysis,
		NameQualityAssessment,
		NameRelevanceScoring,
		NameMasterSummary,
	} {
		text, err := store.Resolve(context.Background(), name)
		require.NoError(t, err, name)
		assert.NotEmpty(t, text, name)
		assert.Contains(t, text, "$user_prompt", name)
	}
}

func TestResolveUnknownTemplate(t *testing.T) {
	store, err := NewStore(context.Background(), "", "", 0)
	require.NoError(t, err)

	_, err = store.Resolve(context.Background(), "no_such_template")
	assert.ErrorIs(t, err, ErrUnknownTemplate)
}

func TestBuiltinTemplatesRenderCleanly(t *testing.T) {
	rendered := Render(builtins[NameParameterExtraction], Vars{
		"user_prompt":     "transfer failed",
		"allowed_keys":    "trx_id",
		"domain_keywords": "MFS",
	})
	assert.NotContains(t, rendered, "$user_prompt")
	assert.Contains(t, rendered, "transfer failed")
	assert.Contains(t, rendered, "trx_id")
	// JSON braces in the shape description survive expansion.
	assert.True(t, strings.Contains(rendered, "{") && strings.Contains(rendered, "}"))
}
