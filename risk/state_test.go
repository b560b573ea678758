package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateKillSwitch(t *testing.T) {
	t.Parallel()

	s := NewState(500000, 0.02, "2024-01-02")
	assert.Equal(t, Armed, s.Mode())
	assert.InDelta(t, 10000, s.Limit(), 1e-9)

	s.Record(-4000)
	s.Record(1500)
	assert.Equal(t, Armed, s.Mode())
	assert.InDelta(t, 2500, s.Loss(), 1e-9)

	s.Record(-7500)
	assert.Equal(t, Killed, s.Mode())
	assert.Contains(t, s.KillReason, "session loss")

	// sticky even after the session recovers
	s.Record(50000)
	assert.True(t, s.Killed)
	assert.Zero(t, s.Loss())

	s.Reset("2024-01-03")
	assert.Equal(t, Armed, s.Mode())
	assert.Zero(t, s.SessionPnL)
	assert.Equal(t, "2024-01-03", s.Day)
	assert.Empty(t, s.KillReason)
}

func TestStateMarkBalance(t *testing.T) {
	t.Parallel()

	s := NewState(500000, 0.02, "")
	s.MarkBalance(491000)
	assert.False(t, s.Killed)
	assert.InDelta(t, 491000, s.Equity(), 1e-9)

	s.MarkBalance(490000)
	assert.True(t, s.Killed, "loss equal to the limit kills")
}

func TestStateFailsSafe(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		apply func(s *State)
	}{
		{"nan pnl", func(s *State) { s.Record(math.NaN()) }},
		{"inf pnl", func(s *State) { s.Record(math.Inf(-1)) }},
		{"nan balance", func(s *State) { s.MarkBalance(math.NaN()) }},
		{"zero limit", func(s *State) { s.MaxDailyLoss = 0; s.Record(-1) }},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := NewState(500000, 0.02, "")
			tt.apply(&s)
			assert.Equal(t, Killed, s.Mode())
		})
	}
}
