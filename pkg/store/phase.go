package store

import (
	"fmt"
	"strings"
)

// Phase is the point in an exchange at which a write takes effect.
type Phase int

const (
	// PhaseRequestReceived writes immediately.
	PhaseRequestReceived Phase = iota
	// PhaseResponseSent defers the write until the response has been sent.
	PhaseResponseSent
)

func (p Phase) String() string {
	switch p {
	case PhaseRequestReceived:
		return "REQUEST_RECEIVED"
	case PhaseResponseSent:
		return "RESPONSE_SENT"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// ParsePhase parses a configured phase name. The empty string is
// PhaseRequestReceived.
func ParsePhase(s string) (Phase, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "REQUEST_RECEIVED":
		return PhaseRequestReceived, nil
	case "RESPONSE_SENT":
		return PhaseResponseSent, nil
	default:
		return 0, fmt.Errorf("%w %q (valid: REQUEST_RECEIVED, RESPONSE_SENT)", ErrUnsupportedPhase, s)
	}
}
