package engine

import "fmt"

type Phase int

const (
	PhaseRegistration Phase = iota
	PhaseGameStarting
	PhaseBuild
	PhaseAllocation
	PhaseWater
	PhaseRevenue
	PhaseGameEnded
	PhaseGameResetting
)

func (p Phase) String() string {
	switch p {
	case PhaseRegistration:
		return "Registration"
	case PhaseGameStarting:
		return "GameStarting"
	case PhaseBuild:
		return "Build"
	case PhaseAllocation:
		return "Allocation"
	case PhaseWater:
		return "Water"
	case PhaseRevenue:
		return "Revenue"
	case PhaseGameEnded:
		return "GameEnded"
	case PhaseGameResetting:
		return "GameResetting"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// ParsePhase is the inverse of String.
func ParsePhase(s string) (Phase, error) {
	for p := PhaseRegistration; p <= PhaseGameResetting; p++ {
		if p.String() == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown phase %q", s)
}

// Interactive phases wait for every player to end their turn.
func (p Phase) Interactive() bool { return p == PhaseBuild || p == PhaseWater }
