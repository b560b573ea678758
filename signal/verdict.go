package signal

import "time"

type State string

const (
	Calibrating State = "CALIBRATING"
	Neutral     State = "NEUTRAL"
	Stress      State = "STRESS"
	Buy         State = "SIGNAL_BUY"
	Sell        State = "SIGNAL_SELL"
)

// Reason explains the state of a Verdict.
type Reason string

const (
	ReasonWarmingUp            Reason = "WARMING_UP"
	ReasonNoData               Reason = "NO_DATA"
	ReasonReferenceUnavailable Reason = "REFERENCE_UNAVAILABLE"
	ReasonStressCorrelation    Reason = "STRESS_CORRELATION"
	ReasonHedgeConfirmed       Reason = "HEDGE_CONFIRMED"
	ReasonStrengthConfirmed    Reason = "STRENGTH_CONFIRMED"
	ReasonNoSetup              Reason = "NO_SETUP"
	ReasonLowConfidence        Reason = "LOW_CONFIDENCE"

	// set by the risk governor
	ReasonKillSwitch    Reason = "KILL_SWITCH"
	ReasonEventBlackout Reason = "EVENT_BLACKOUT"
)

// Band is the traffic light shown to the operator for the hedge
// correlation.
type Band string

const (
	Green Band = "GREEN"
	Amber Band = "AMBER"
	Red   Band = "RED"
)

// Correlation is the primary's relation to one reference.
type Correlation struct {
	Instrument    string  `json:"instrument"`
	Strength      bool    `json:"strength,omitempty"`
	Value         float64 `json:"value"`
	LowConfidence bool    `json:"low_confidence"`
	Trend         float64 `json:"trend"`
	TrendLow      bool    `json:"trend_low_confidence"`
	Available     bool    `json:"available"`
}

// Verdict is the engine's output for one cycle. It is a plain value.
type Verdict struct {
	Time   time.Time `json:"time"`
	Cycle  uint64    `json:"cycle"`
	State  State     `json:"state"`
	Reason Reason    `json:"reason"`

	Z              float64       `json:"z"`
	ZLowConfidence bool          `json:"z_low_confidence"`
	PrimaryTrend   float64       `json:"primary_trend"`
	Correlations   []Correlation `json:"correlations"`
	Band           Band          `json:"band,omitempty"`

	Entry          float64 `json:"entry"`
	Target         float64 `json:"target,omitempty"`
	Stop           float64 `json:"stop,omitempty"`
	Spread         float64 `json:"spread"`
	RewardRisk     float64 `json:"reward_risk,omitempty"`
	Volume         float64 `json:"volume,omitempty"`
	ProjectedNet   float64 `json:"projected_net,omitempty"`
	MarginRequired float64 `json:"margin_required,omitempty"`
	PlannedRisk    float64 `json:"planned_risk,omitempty"`
	SuggestedUnits float64 `json:"suggested_units,omitempty"`

	Advisory *float64 `json:"advisory,omitempty"`

	DegradedSources  []string `json:"degraded_sources"`
	SecondarySources []string `json:"secondary_sources,omitempty"`
	UnhealthySources []string `json:"unhealthy_sources,omitempty"`
}

// Actionable reports whether the verdict recommends a trade.
func (v Verdict) Actionable() bool {
	return v.State == Buy || v.State == Sell
}

// Direction returns "BUY", "SELL" or "".
func (v Verdict) Direction() string {
	switch v.State {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	}
	return ""
}

// Neutralize drops any recommendation and records why.
func (v Verdict) Neutralize(r Reason) Verdict {
	v.State = Neutral
	v.Reason = r
	v.Target, v.Stop = 0, 0
	v.RewardRisk, v.Volume, v.ProjectedNet, v.MarginRequired = 0, 0, 0, 0
	v.PlannedRisk, v.SuggestedUnits = 0, 0
	return v
}

// Hedge returns the first non-strength correlation, if any.
func (v Verdict) Hedge() (Correlation, bool) {
	for _, c := range v.Correlations {
		if !c.Strength {
			return c, true
		}
	}
	return Correlation{}, false
}
