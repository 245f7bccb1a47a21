// Package style holds the optional modifiers a player can stack on top of
// their mode. Styles run after the mode in every hook, in the order they
// were added.
package style

import (
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

var (
	ErrAlreadyRegistered = errors.New("style already registered")
	ErrInvalidName       = errors.New("style names must not be empty")
)

// Player is what a style service reads and changes
type Player interface {
	Pawn() *entity.Pawn
}

// Service is one player's instance of a style
type Service interface {
	system.Hooks
	trigger.Hooks

	Name() string
	ShortName() string

	Init()
	Cleanup()

	// IsCompatibleWithStyle reports whether the style may run alongside
	// the named one.
	IsCompatibleWithStyle(name string) bool
	// TweakedConVar returns the style's own value for a movement convar
	TweakedConVar(name string) (float64, bool)

	OnStartTouchGround()
	OnStopTouchGround()
	OnTeleport(origin, velocity *geom.Vector)
}

// Base implements every optional Service method as a no-op
type Base struct {
	system.BaseHooks
}

func (Base) Init()                                 {}
func (Base) Cleanup()                              {}
func (Base) IsCompatibleWithStyle(string) bool     { return true }
func (Base) TweakedConVar(string) (float64, bool)  { return 0, false }
func (Base) OnStartTouchGround()                   {}
func (Base) OnStopTouchGround()                    {}
func (Base) OnTeleport(*geom.Vector, *geom.Vector) {}
func (Base) OnTriggerStartTouch(ecs.EntityID) bool { return true }
func (Base) OnTriggerTouch(ecs.EntityID) bool      { return true }
func (Base) OnTriggerEndTouch(ecs.EntityID) bool   { return true }

// Factory creates a style service for a player
type Factory func(p Player) Service

// Info describes a registered style
type Info struct {
	ID        uint32
	ShortName string
	LongName  string
	// DatabaseID is -1 until the store knows the style
	DatabaseID   int64
	Incompatible []string
	Factory      Factory
}

// Matches reports whether name is either of the style's names
func (i Info) Matches(name string) bool {
	return strings.EqualFold(i.ShortName, name) || strings.EqualFold(i.LongName, name)
}

// lists reports whether name is on the style's incompatibility list
func (i Info) lists(name string) bool {
	for _, n := range i.Incompatible {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}

// Registry is the set of styles players can pick from
type Registry struct {
	mu     sync.RWMutex
	styles []*Info
	nextID uint32
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{nextID: 1}
}

// NewDefaultRegistry creates a registry holding the built-in styles
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	if err := r.Register(ShortNameLowGrav, LongNameLowGrav, NewLowGrav); err != nil {
		panic(err)
	}
	return r
}

// Register adds a style. Names are matched case-insensitively; incompatible
// names the styles that can't be active together with this one.
func (r *Registry) Register(shortName, longName string, factory Factory, incompatible ...string) error {
	if shortName == "" || longName == "" || factory == nil {
		return ErrInvalidName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.styles {
		if strings.EqualFold(s.ShortName, shortName) || strings.EqualFold(s.LongName, longName) {
			return fmt.Errorf("failed to register style %s: %w", shortName, ErrAlreadyRegistered)
		}
	}

	r.styles = append(r.styles, &Info{
		ID:           r.nextID,
		ShortName:    shortName,
		LongName:     longName,
		DatabaseID:   -1,
		Incompatible: slices.Clone(incompatible),
		Factory:      factory,
	})
	r.nextID++
	return nil
}

// Unregister removes a style by either name
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.styles = slices.DeleteFunc(r.styles, func(s *Info) bool { return s.Matches(name) })
}

// Info returns a copy of the style's description
func (r *Registry) Info(name string) (Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.styles {
		if s.Matches(name) {
			return *s, true
		}
	}
	return Info{}, false
}

// Infos lists every style in registration order
func (r *Registry) Infos() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Info, 0, len(r.styles))
	for _, s := range r.styles {
		out = append(out, *s)
	}
	return out
}

// SetDatabaseID records the ID the store assigned to a style
func (r *Registry) SetDatabaseID(name string, id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.styles {
		if s.Matches(name) {
			s.DatabaseID = id
			return
		}
	}
}
