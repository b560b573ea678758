// Package risk is the final gate between the signal engine and the
// operator: the session kill switch, the event blackout calendar and the
// target/stop levels of an actionable verdict.
package risk

import (
	"fmt"
	"math"
	"time"

	"github.com/rustyeddy/hedger/signal"
)

// Policy holds the account and level settings the governor applies.
type Policy struct {
	Leverage     float64
	Volume       float64 // units per trade
	RiskPerTrade float64 // fraction of equity for suggested sizing; 0 disables
	PipLocation  int

	TargetOffset     float64
	StopOffset       float64
	SpreadMultiplier float64
	EstimatedSpread  float64 // used when the quote has no bid/ask
}

func (p Policy) validate() error {
	if p.StopOffset <= 0 {
		return fmt.Errorf("stop offset must be positive")
	}
	if p.TargetOffset <= p.StopOffset {
		return fmt.Errorf("target offset %.4f must exceed stop offset %.4f", p.TargetOffset, p.StopOffset)
	}
	if p.SpreadMultiplier < 1 {
		return fmt.Errorf("spread multiplier must be at least 1")
	}
	if p.Volume <= 0 {
		return fmt.Errorf("volume must be positive")
	}
	return nil
}

type Governor struct {
	policy Policy
	cal    Calendar
}

func NewGovernor(p Policy, cal Calendar) (*Governor, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &Governor{policy: p, cal: cal}, nil
}

func (g *Governor) Calendar() Calendar { return g.cal }

// Levels are the exits for a position opened at Entry.
type Levels struct {
	Entry  float64
	Target float64
	Stop   float64
	Spread float64
}

// Levels computes target and stop. The stop is never closer than
// spread * SpreadMultiplier.
func (g *Governor) Levels(buy bool, entry, spread float64) Levels {
	p := g.policy
	if spread <= 0 {
		spread = p.EstimatedSpread
	}
	stopDist := math.Max(p.StopOffset, spread*p.SpreadMultiplier)

	sign := 1.0
	if !buy {
		sign = -1
	}
	return Levels{
		Entry:  entry,
		Target: entry + sign*p.TargetOffset,
		Stop:   entry - sign*stopDist,
		Spread: spread,
	}
}

// Apply gates v with the kill switch and blackout calendar, then attaches
// levels and projections to an actionable verdict.
func (g *Governor) Apply(v signal.Verdict, s State, now time.Time) signal.Verdict {
	if s.Killed {
		return v.Neutralize(signal.ReasonKillSwitch)
	}
	if g.cal.Blackout(now) {
		return v.Neutralize(signal.ReasonEventBlackout)
	}
	if !v.Actionable() {
		return v
	}

	p := g.policy
	lv := g.Levels(v.State == signal.Buy, v.Entry, v.Spread)
	v.Target, v.Stop, v.Spread = lv.Target, lv.Stop, lv.Spread
	v.RewardRisk = RR(lv.Entry, lv.Stop, lv.Target)
	v.Volume = p.Volume
	v.ProjectedNet = ProjectedNet(lv.Entry, lv.Target, lv.Spread, p.Volume)
	v.MarginRequired = MarginRequired(lv.Entry, p.Volume, p.Leverage)
	v.PlannedRisk = PlannedRisk(p.Volume, lv.Entry, lv.Stop, 1)

	if p.RiskPerTrade > 0 {
		v.SuggestedUnits = Calculate(Inputs{
			Equity:         s.Equity(),
			RiskPct:        p.RiskPerTrade,
			EntryPrice:     lv.Entry,
			StopPrice:      lv.Stop,
			PipLocation:    p.PipLocation,
			QuoteToAccount: 1,
		}).Units
	}
	return v
}
