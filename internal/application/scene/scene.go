// Package scene defines the Scene interface for viewer screens.
package scene

import "github.com/hajimehoshi/ebiten/v2"

// Scene is one viewer screen. The game loop delegates Update and Draw to
// the current scene, and a scene hands over by returning another from
// Update.
type Scene interface {
	// Update advances the scene by one simulation tick of dt seconds.
	// Returns the next scene, or nil to stay. An error ends the game;
	// ebiten.Termination ends it cleanly.
	Update(dt float64) (next Scene, err error)

	// Draw renders the scene to the screen.
	Draw(screen *ebiten.Image)

	// OnEnter is called when entering this scene.
	OnEnter()

	// OnExit is called when leaving this scene or when the game closes.
	// Scenes flush recordings here.
	OnExit()
}
