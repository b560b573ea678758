// Package indicators provides the rolling statistics behind the signal engine.
//
// Every function is deterministic and never returns NaN or Inf. When an input
// is too short or degenerate (zero variance), the value collapses to 0 and the
// result is flagged LowConfidence so callers can surface it instead of acting
// on it.
package indicators

// Value is a statistic plus a flag telling whether it can be trusted.
type Value struct {
	V             float64
	LowConfidence bool
}

func confident(v float64) Value { return Value{V: v} }

func degenerate() Value { return Value{LowConfidence: true} }
