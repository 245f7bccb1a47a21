package system

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/younwookim/surftimer/internal/domain/entity"
)

// TurnRate is how fast the turn keys rotate the view, in degrees per tick
const TurnRate = 3.0

// InputSystem maps the keyboard onto movement commands
type InputSystem struct {
	yaw float64
}

// NewInputSystem creates a new input system facing yaw
func NewInputSystem(yaw float64) *InputSystem {
	return &InputSystem{yaw: yaw}
}

// InputState holds the current input state
type InputState struct {
	Forward   bool
	Back      bool
	Left      bool
	Right     bool
	Jump      bool
	Duck      bool
	Use       bool
	TurnLeft  bool
	TurnRight bool

	// One-shot actions, not part of the movement command
	Restart     bool
	TogglePause bool
}

// GetInput reads the current input state
func (s *InputSystem) GetInput() InputState {
	return InputState{
		Forward:     ebiten.IsKeyPressed(ebiten.KeyW),
		Back:        ebiten.IsKeyPressed(ebiten.KeyS),
		Left:        ebiten.IsKeyPressed(ebiten.KeyA),
		Right:       ebiten.IsKeyPressed(ebiten.KeyD),
		Jump:        ebiten.IsKeyPressed(ebiten.KeySpace),
		Duck:        ebiten.IsKeyPressed(ebiten.KeyControlLeft),
		Use:         ebiten.IsKeyPressed(ebiten.KeyE),
		TurnLeft:    ebiten.IsKeyPressed(ebiten.KeyArrowLeft),
		TurnRight:   ebiten.IsKeyPressed(ebiten.KeyArrowRight),
		Restart:     inpututil.IsKeyJustPressed(ebiten.KeyR),
		TogglePause: inpututil.IsKeyJustPressed(ebiten.KeyP),
	}
}

// Yaw returns the current view yaw
func (s *InputSystem) Yaw() float64 {
	return s.yaw
}

// SetYaw points the view at yaw, e.g. after a teleport reorients the player
func (s *InputSystem) SetYaw(yaw float64) {
	s.yaw = yaw
}

// Command turns the view and builds this tick's movement command
func (s *InputSystem) Command(input InputState) Command {
	if input.TurnLeft {
		s.yaw += TurnRate
	}
	if input.TurnRight {
		s.yaw -= TurnRate
	}
	return CommandFromButtons(input.Buttons(), s.yaw)
}

// Buttons packs the held keys into a button mask
func (in InputState) Buttons() entity.Buttons {
	var b entity.Buttons
	set := func(on bool, button entity.Buttons) {
		if on {
			b |= button
		}
	}
	set(in.Forward, entity.ButtonForward)
	set(in.Back, entity.ButtonBack)
	set(in.Left, entity.ButtonMoveLeft)
	set(in.Right, entity.ButtonMoveRight)
	set(in.Jump, entity.ButtonJump)
	set(in.Duck, entity.ButtonDuck)
	set(in.Use, entity.ButtonUse)
	return b
}
