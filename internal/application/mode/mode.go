// Package mode holds the movement modes a player can run under. Exactly one
// mode is active per player; it sets the convar baseline and hooks into every
// movement step.
package mode

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/younwookim/surftimer/internal/application/system"
	"github.com/younwookim/surftimer/internal/application/trigger"
	"github.com/younwookim/surftimer/internal/domain/entity"
	"github.com/younwookim/surftimer/internal/domain/geom"
	"github.com/younwookim/surftimer/internal/ecs"
)

// Default is the mode new players start in
const Default = ShortName64t

var (
	ErrAlreadyRegistered = errors.New("mode already registered")
	ErrInvalidName       = errors.New("mode names must not be empty")
)

// Player is what a mode service reads and moves
type Player interface {
	Pawn() *entity.Pawn
	Globals() *entity.Globals
	// CurrentMove is the move being processed, nil outside movement
	CurrentMove() *system.Move
	Trace(start, end geom.Vector, bounds geom.BBox) ecs.TraceResult
	Cvar(name string) float64

	LandingOrigin() geom.Vector
	LandingVelocity() geom.Vector
	SetLandingVelocity(v geom.Vector)
	GroundPosition() float64

	IsTimerZone(id ecs.EntityID) bool
	TouchTriggersAlongPath(start, end geom.Vector, bounds geom.BBox)
	UpdateTriggerTouchList()
}

// Service is one player's instance of a mode
type Service interface {
	system.Hooks
	trigger.Hooks

	Name() string
	ShortName() string
	// ConVarValues is the convar baseline of the mode
	ConVarValues() map[string]float64

	Init()
	Reset()
	Cleanup()

	OnStartTouchGround()
	OnStopTouchGround()
	// OnTeleport sees teleports before they are written to the pawn. nil
	// means that part is unchanged.
	OnTeleport(origin, velocity *geom.Vector)
}

// Factory creates a mode service for a player
type Factory func(p Player) Service

// Info describes a registered mode
type Info struct {
	ID        uint32
	ShortName string
	LongName  string
	// Checksum identifies the convar baseline, so records set under
	// different physics never compare.
	Checksum string
	// DatabaseID is -1 until the store knows the mode
	DatabaseID int64
	ConVars    map[string]float64
	Factory    Factory
}

// Registry is the set of modes players can pick from
type Registry struct {
	mu     sync.RWMutex
	modes  []*Info
	nextID uint32
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{nextID: 1}
}

// NewDefaultRegistry creates a registry holding the built-in modes
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	if err := r.Register(ShortName64t, LongName64t, ConVars64t(), New64t); err != nil {
		panic(err)
	}
	return r
}

// Register adds a mode. Names are matched case-insensitively.
func (r *Registry) Register(shortName, longName string, convars map[string]float64, factory Factory) error {
	if shortName == "" || longName == "" || factory == nil {
		return ErrInvalidName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range r.modes {
		if strings.EqualFold(m.ShortName, shortName) || strings.EqualFold(m.LongName, longName) {
			return fmt.Errorf("failed to register mode %s: %w", shortName, ErrAlreadyRegistered)
		}
	}

	r.modes = append(r.modes, &Info{
		ID:         r.nextID,
		ShortName:  shortName,
		LongName:   longName,
		Checksum:   Checksum(convars),
		DatabaseID: -1,
		ConVars:    convars,
		Factory:    factory,
	})
	r.nextID++
	return nil
}

// Unregister removes a mode by either name
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.modes = slices.DeleteFunc(r.modes, func(m *Info) bool { return m.matches(name) })
}

// Info returns a copy of the mode's description
func (r *Registry) Info(name string) (Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.modes {
		if m.matches(name) {
			return *m, true
		}
	}
	return Info{}, false
}

// InfoByID returns the mode with the given registry ID
func (r *Registry) InfoByID(id uint32) (Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.modes {
		if m.ID == id {
			return *m, true
		}
	}
	return Info{}, false
}

// Infos lists every mode in registration order
func (r *Registry) Infos() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Info, 0, len(r.modes))
	for _, m := range r.modes {
		out = append(out, *m)
	}
	return out
}

// SetDatabaseID records the ID the store assigned to a mode
func (r *Registry) SetDatabaseID(name string, id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range r.modes {
		if m.matches(name) {
			m.DatabaseID = id
			return
		}
	}
}

// Create builds a service of the named mode for p
func (r *Registry) Create(name string, p Player) (Service, Info, bool) {
	info, ok := r.Info(name)
	if !ok {
		return nil, Info{}, false
	}
	return info.Factory(p), info, true
}

func (m *Info) matches(name string) bool {
	return strings.EqualFold(m.ShortName, name) || strings.EqualFold(m.LongName, name)
}

// Checksum hashes a convar baseline in name order
func Checksum(convars map[string]float64) string {
	names := make([]string, 0, len(convars))
	for name := range convars {
		names = append(names, name)
	}
	slices.Sort(names)

	h := sha256.New()
	for _, name := range names {
		fmt.Fprintf(h, "%s=%g\n", name, convars[name])
	}
	return hex.EncodeToString(h.Sum(nil))[:32]
}
