// Package game runs the viewer loop: it implements ebiten.Game on top of
// the current Scene and steps it at the simulation tick rate.
package game

import (
	"errors"
	"sync/atomic"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/younwookim/surftimer/internal/application/scene"
)

// DefaultTickRate is used when the configured tick rate is not positive
const DefaultTickRate = 64

// Game implements ebiten.Game and manages Scene transitions.
type Game struct {
	current  scene.Scene
	screenW  int
	screenH  int
	tickRate int
	dt       float64
	ticks    int
	closed   bool
	stop     atomic.Bool
}

// New creates a new Game stepping the initial scene tickRate times per
// second. The initial scene's OnEnter is called immediately.
func New(initialScene scene.Scene, screenW, screenH, tickRate int) *Game {
	if tickRate <= 0 {
		tickRate = DefaultTickRate
	}
	g := &Game{
		current:  initialScene,
		screenW:  screenW,
		screenH:  screenH,
		tickRate: tickRate,
		dt:       1.0 / float64(tickRate),
	}
	g.current.OnEnter()
	return g
}

// Update steps the current scene and handles scene transitions.
// Escape or Stop ends the game. Implements ebiten.Game interface.
func (g *Game) Update() error {
	if g.stop.Load() || inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		g.Close()
		return ebiten.Termination
	}

	next, err := g.current.Update(g.dt)
	if err != nil {
		if errors.Is(err, ebiten.Termination) {
			g.Close()
		}
		return err
	}
	g.ticks++

	// Handle scene transition
	if next != nil {
		g.current.OnExit()
		g.current = next
		g.current.OnEnter()
	}

	return nil
}

// Stop makes the next Update end the game. Safe from any goroutine.
func (g *Game) Stop() {
	g.stop.Store(true)
}

// Close exits the current scene once. Call it after ebiten.RunGame
// returns so scenes can flush their state.
func (g *Game) Close() {
	if g.closed {
		return
	}
	g.closed = true
	g.current.OnExit()
}

// Draw renders the current scene.
// Implements ebiten.Game interface.
func (g *Game) Draw(screen *ebiten.Image) {
	g.current.Draw(screen)
}

// Layout returns the game's logical screen dimensions.
// Implements ebiten.Game interface.
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.screenW, g.screenH
}

// TickRate returns the updates per second, for ebiten.SetTPS
func (g *Game) TickRate() int { return g.tickRate }

// Ticks returns how many updates reached a scene
func (g *Game) Ticks() int { return g.ticks }

// Scene returns the current scene
func (g *Game) Scene() scene.Scene { return g.current }
