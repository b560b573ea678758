package risk

import (
	"fmt"
	"math"
)

// Mode is the kill switch position.
type Mode string

const (
	Armed  Mode = "ARMED"
	Killed Mode = "KILLED"
)

// State is the session's risk state. It is a plain value threaded through
// each cycle; callers serialize access.
type State struct {
	StartingCapital float64 `json:"starting_capital"`
	MaxDailyLoss    float64 `json:"max_daily_loss"` // fraction of starting capital
	SessionPnL      float64 `json:"session_pnl"`
	Day             string  `json:"day"`
	Killed          bool    `json:"killed"`
	KillReason      string  `json:"kill_reason,omitempty"`
}

func NewState(capital, maxDailyLoss float64, day string) State {
	return State{StartingCapital: capital, MaxDailyLoss: maxDailyLoss, Day: day}
}

func (s State) Mode() Mode {
	if s.Killed {
		return Killed
	}
	return Armed
}

// Loss is the cumulative session loss, 0 when the session is up.
func (s State) Loss() float64 {
	if s.SessionPnL >= 0 {
		return 0
	}
	return -s.SessionPnL
}

// Limit is the loss that engages the kill switch.
func (s State) Limit() float64 {
	return s.MaxDailyLoss * s.StartingCapital
}

// Equity is starting capital plus session P/L.
func (s State) Equity() float64 {
	return s.StartingCapital + s.SessionPnL
}

// Record adds a realized P/L (negative for a loss).
func (s *State) Record(pnl float64) {
	if !finite(pnl) {
		s.kill(fmt.Sprintf("invalid pnl %v", pnl))
		return
	}
	s.SessionPnL += pnl
	s.check()
}

// MarkBalance sets session P/L from the current account balance.
func (s *State) MarkBalance(balance float64) {
	if !finite(balance) {
		s.kill(fmt.Sprintf("invalid balance %v", balance))
		return
	}
	s.SessionPnL = balance - s.StartingCapital
	s.check()
}

// Reset re-arms the switch for a new session. It is the only way out of
// KILLED.
func (s *State) Reset(day string) {
	s.SessionPnL = 0
	s.Killed = false
	s.KillReason = ""
	s.Day = day
}

func (s *State) check() {
	if s.Killed {
		return
	}
	limit := s.Limit()
	if !finite(limit) || limit <= 0 {
		s.kill("invalid loss limit")
		return
	}
	if s.Loss() >= limit {
		s.kill(fmt.Sprintf("session loss %.2f >= limit %.2f", s.Loss(), limit))
	}
}

func (s *State) kill(reason string) {
	s.Killed = true
	s.KillReason = reason
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
