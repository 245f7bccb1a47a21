package system

import "github.com/younwookim/surftimer/internal/domain/entity"

// Command is one tick of player input: what the player intends to do
type Command struct {
	Buttons     entity.Buttons
	ForwardMove float64 // -1 back .. 1 forward
	SideMove    float64 // -1 left .. 1 right
	Yaw         float64
}

// Has reports whether button b is held
func (c Command) Has(b entity.Buttons) bool {
	return c.Buttons&b != 0
}

// CommandFromButtons derives the move axes from the movement buttons
func CommandFromButtons(buttons entity.Buttons, yaw float64) Command {
	c := Command{Buttons: buttons, Yaw: yaw}
	if c.Has(entity.ButtonForward) {
		c.ForwardMove++
	}
	if c.Has(entity.ButtonBack) {
		c.ForwardMove--
	}
	if c.Has(entity.ButtonMoveRight) {
		c.SideMove++
	}
	if c.Has(entity.ButtonMoveLeft) {
		c.SideMove--
	}
	return c
}
