package style

import "github.com/younwookim/surftimer/internal/application/system"

const (
	ShortNameLowGrav = "lg"
	LongNameLowGrav  = "lowgrav"

	lowGravScale = 0.5
)

// LowGrav halves the player's gravity
type LowGrav struct {
	Base
	player Player
}

// NewLowGrav is the Factory of the low gravity style
func NewLowGrav(p Player) Service {
	return &LowGrav{player: p}
}

func (s *LowGrav) Name() string      { return LongNameLowGrav }
func (s *LowGrav) ShortName() string { return ShortNameLowGrav }

// OnProcessMovement sets the scale every tick, since trigger updates reset
// it to 1.
func (s *LowGrav) OnProcessMovement(*system.Move) {
	if pawn := s.player.Pawn(); pawn != nil && pawn.GravityScale != lowGravScale {
		pawn.GravityScale = lowGravScale
	}
}

// Cleanup restores normal gravity
func (s *LowGrav) Cleanup() {
	if pawn := s.player.Pawn(); pawn != nil {
		pawn.GravityScale = 1
	}
}
