package journal

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatTradeOrg(t *testing.T) {
	rec, err := NewRecord(confirmed, "BUY", 950.12, 950.5, "filled")
	require.NoError(t, err)

	out := FormatTradeOrg(rec)
	assert.True(t, strings.HasPrefix(out, "** Trade: BUY 950.5 ("+rec.ID[:8]+")\n"))
	assert.Contains(t, out, ":ID: "+rec.ID+"\n")
	assert.Contains(t, out, ":TIME: 2026-01-12T14:30:00Z\n")
	assert.Contains(t, out, ":LAG: 0.38\n")
	assert.Contains(t, out, ":OUTCOME: filled\n")
	assert.Contains(t, out, "*** Review\n")
}

func TestFormatTradesOrg(t *testing.T) {
	a, err := NewRecord(confirmed, "BUY", 950, 951, "")
	require.NoError(t, err)
	b := a
	b.ID = ""

	out := FormatTradesOrg([]TradeRecord{a, b})
	assert.Equal(t, 2, strings.Count(out, "** Trade:"))
	assert.Contains(t, out, "- \n\n\n** Trade: BUY 951 (-)")
	assert.NotContains(t, strings.SplitAfter(out, "(-)")[1], ":ID:")
	assert.Empty(t, FormatTradesOrg(nil))
}
