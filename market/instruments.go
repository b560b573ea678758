// market/instruments.go
package market

import (
	"fmt"
	"strings"
)

// Role tells the engine how an instrument participates in a decision.
type Role string

const (
	Primary   Role = "PRIMARY"
	Reference Role = "REFERENCE"
)

// ParseRole accepts the config spelling of a role, case-insensitive.
func ParseRole(s string) (Role, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(Primary):
		return Primary, nil
	case string(Reference):
		return Reference, nil
	default:
		return "", fmt.Errorf("unknown role %q (want primary|reference)", s)
	}
}

// Instrument is fixed for the lifetime of the process.
type Instrument struct {
	ID   string
	Role Role

	// Strength marks a broad market-strength reference. It never drives
	// the stress gate; it only feeds the secondary signal branch.
	Strength bool
}

func (i Instrument) IsPrimary() bool {
	return i.Role == Primary
}

// Hedge reports whether the instrument is a reference whose
// correlation with the primary validates a signal.
func (i Instrument) Hedge() bool {
	return i.Role == Reference && !i.Strength
}

func (i Instrument) String() string {
	if i.Strength {
		return fmt.Sprintf("%s(%s,strength)", i.ID, i.Role)
	}
	return fmt.Sprintf("%s(%s)", i.ID, i.Role)
}
