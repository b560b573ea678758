// Package signal turns aggregated prices into a Verdict.
//
// Evaluate is a pure function of the snapshot and the history buffers. It
// never returns an error: missing or degenerate data shows up as a
// CALIBRATING or NEUTRAL verdict with a reason and low-confidence flags.
//
// Reference correlations pair each primary point with the reference value
// in force at its time, so gaps in one series do not shift the other.
//
// Rules, first match wins:
//
//  1. primary unavailable this cycle: NEUTRAL / NO_DATA
//  2. primary or any hedge reference below MinSamples: CALIBRATING
//  3. a hedge reference unavailable this cycle: NEUTRAL / REFERENCE_UNAVAILABLE
//  4. any confident hedge correlation at or above StressCorrelation: STRESS
//  5. a hedge correlation at or below SignalCorrelation with a reference
//     trend of at least MinReferenceTrend, confirmed by the primary's own
//     trend (and by z when ZEntry is set): BUY when the reference falls,
//     SELL when it rises
//  6. the strength reference correlated at or above StrengthCorrelation
//     with a trend of at least MinStrengthTrend: direction follows its
//     trend. Skipped when a hedge correlation was degenerate.
//  7. NEUTRAL / NO_SETUP, or LOW_CONFIDENCE when a hedge correlation was
//     degenerate
package signal

import (
	"math"
	"time"

	"github.com/rustyeddy/hedger/aggregator"
	"github.com/rustyeddy/hedger/indicators"
	"github.com/rustyeddy/hedger/market"
)

type Params struct {
	Correlation int // W
	Trend       int // K, shorter than W
	MinSamples  int

	Skew   time.Duration // quotes this close count as simultaneous
	MaxLag time.Duration // oldest reference value carried forward; 0 is unlimited

	StressCorrelation   float64
	SignalCorrelation   float64
	MinReferenceTrend   float64
	ZEntry              float64 // 0 disables the z gate
	StrengthCorrelation float64
	MinStrengthTrend    float64
	BandGreen           float64
	BandAmber           float64
}

// Input is everything one evaluation looks at.
type Input struct {
	Snapshot aggregator.Snapshot
	Buffers  map[string]*market.HistoryBuffer
	Advisory *float64
}

type Engine struct {
	p           Params
	instruments []market.Instrument
}

// NewEngine evaluates the given instruments; references are reported in
// the order given.
func NewEngine(p Params, instruments []market.Instrument) *Engine {
	return &Engine{p: p, instruments: instruments}
}

func (e *Engine) Evaluate(in Input) Verdict {
	snap := in.Snapshot
	v := Verdict{
		Time:             snap.Time,
		State:            Neutral,
		Advisory:         in.Advisory,
		DegradedSources:  append([]string{}, snap.DegradedSources...),
		SecondarySources: snap.SecondarySources,
		UnhealthySources: snap.Unhealthy,
		Correlations:     []Correlation{},
	}

	if !snap.PrimaryAvailable {
		v.Reason = ReasonNoData
		return v
	}
	primary := snap.Primary()
	v.Entry = primary.Point.Price
	v.Spread = primary.Point.Spread()

	pbuf := in.Buffers[snap.PrimaryID]
	if pbuf == nil || pbuf.Len() < e.p.MinSamples {
		v.State, v.Reason = Calibrating, ReasonWarmingUp
		return v
	}
	for _, inst := range e.instruments {
		if !inst.Hedge() {
			continue
		}
		if b := in.Buffers[inst.ID]; b == nil || b.Len() < e.p.MinSamples {
			v.State, v.Reason = Calibrating, ReasonWarmingUp
			return v
		}
	}

	ppts := pbuf.LastPoints(e.p.Correlation)
	pvals := pbuf.LastN(e.p.Correlation)
	z := indicators.ZScore(v.Entry, pvals, e.p.MinSamples)
	v.Z, v.ZLowConfidence = z.V, z.LowConfidence
	ptrend := indicators.TrendDelta(pvals, e.p.Trend, e.p.MinSamples)
	v.PrimaryTrend = ptrend.V

	var strength *Correlation
	hedgeUnavailable := false
	for _, inst := range e.instruments {
		if inst.IsPrimary() {
			continue
		}
		c := e.correlate(inst, ppts, in.Buffers[inst.ID])
		c.Available = snap.Available(inst.ID)
		v.Correlations = append(v.Correlations, c)
		if inst.Hedge() && !c.Available {
			hedgeUnavailable = true
		}
	}
	for i := range v.Correlations {
		if v.Correlations[i].Strength {
			strength = &v.Correlations[i]
		}
	}
	if h, ok := v.Hedge(); ok {
		v.Band = e.band(h)
	}

	if hedgeUnavailable {
		v.Reason = ReasonReferenceUnavailable
		return v
	}

	lowConf := false
	for _, c := range v.Correlations {
		if c.Strength {
			continue
		}
		if c.LowConfidence {
			lowConf = true
			continue
		}
		if c.Value >= e.p.StressCorrelation {
			v.State, v.Reason = Stress, ReasonStressCorrelation
			return v
		}
	}

	for _, c := range v.Correlations {
		if c.Strength || c.LowConfidence || c.TrendLow {
			continue
		}
		if c.Value > e.p.SignalCorrelation || c.Trend == 0 || math.Abs(c.Trend) < e.p.MinReferenceTrend {
			continue
		}
		// negative relation: a falling reference implies a rising primary
		state := Buy
		if c.Trend > 0 {
			state = Sell
		}
		if !e.confirmed(state, ptrend, z) {
			continue
		}
		v.State, v.Reason = state, ReasonHedgeConfirmed
		return v
	}

	// a degenerate hedge leaves the stress gate unevaluated
	if s := strength; !lowConf && s != nil && s.Available && !s.LowConfidence && !s.TrendLow {
		if s.Value >= e.p.StrengthCorrelation && s.Trend != 0 && math.Abs(s.Trend) >= e.p.MinStrengthTrend {
			v.State, v.Reason = Buy, ReasonStrengthConfirmed
			if s.Trend < 0 {
				v.State = Sell
			}
			return v
		}
	}

	v.Reason = ReasonNoSetup
	if lowConf {
		v.Reason = ReasonLowConfidence
	}
	return v
}

func (e *Engine) correlate(inst market.Instrument, ppts []market.PricePoint, buf *market.HistoryBuffer) Correlation {
	c := Correlation{Instrument: inst.ID, Strength: inst.Strength}
	if buf == nil {
		c.LowConfidence, c.TrendLow = true, true
		return c
	}
	x, y := market.AlignAsOf(ppts, buf.Points(), e.p.Skew, e.p.MaxLag)
	r := indicators.Pearson(x, y, e.p.MinSamples)
	rvals := buf.LastN(e.p.Correlation)
	t := indicators.TrendDelta(rvals, e.p.Trend, e.p.MinSamples)
	c.Value, c.LowConfidence = r.V, r.LowConfidence
	c.Trend, c.TrendLow = t.V, t.LowConfidence
	return c
}

// confirmed checks the primary agrees with the proposed direction.
func (e *Engine) confirmed(state State, trend, z indicators.Value) bool {
	if trend.LowConfidence {
		return false
	}
	sign := 1.0
	if state == Sell {
		sign = -1
	}
	if trend.V*sign <= 0 {
		return false
	}
	if e.p.ZEntry > 0 {
		if z.LowConfidence || z.V*sign < e.p.ZEntry {
			return false
		}
	}
	return true
}

func (e *Engine) band(c Correlation) Band {
	switch {
	case c.LowConfidence:
		return ""
	case c.Value > e.p.BandAmber:
		return Red
	case c.Value >= e.p.BandGreen:
		return Amber
	default:
		return Green
	}
}
