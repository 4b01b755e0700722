package trafficlight

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidPhase = errors.New("invalid phase")

type Phase int32

const (
	PhaseRed Phase = iota
	PhaseGreen
)

func (p Phase) String() string {
	switch p {
	case PhaseRed:
		return "red"
	case PhaseGreen:
		return "green"
	default:
		return fmt.Sprintf("Phase(%d)", int32(p))
	}
}

// Next returns the phase that follows p in the cycle.
func (p Phase) Next() Phase {
	if p == PhaseGreen {
		return PhaseRed
	}
	return PhaseGreen
}

func ParsePhase(s string) (Phase, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "red":
		return PhaseRed, nil
	case "green":
		return PhaseGreen, nil
	default:
		return PhaseRed, fmt.Errorf("%w: %q", ErrInvalidPhase, s)
	}
}
