package entity

import "math"

// TickInterval is the fixed simulation step (64 ticks per second)
const TickInterval = 1.0 / 64.0

// Globals is the server clock shared by every player service
type Globals struct {
	CurTime   float64
	FrameTime float64
	TickCount int
}

// NewGlobals returns a clock at tick zero
func NewGlobals() *Globals {
	return &Globals{FrameTime: TickInterval}
}

// Advance moves the clock forward by one tick
func (g *Globals) Advance() {
	g.TickCount++
	g.CurTime = float64(g.TickCount) * TickInterval
	g.FrameTime = TickInterval
}

// SubtickFraction returns how far CurTime is from the nearest tick boundary,
// in ticks.
func (g *Globals) SubtickFraction() float64 {
	ticks := g.CurTime / TickInterval
	return math.Abs(math.Round(ticks) - ticks)
}
