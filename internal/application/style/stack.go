package style

import (
	"errors"
	"strings"
)

var (
	ErrUsage         = errors.New("no style given")
	ErrAlreadyActive = errors.New("style already active")
	ErrNotAvailable  = errors.New("style not available")
	ErrConflict      = errors.New("style conflicts with an active style")
	ErrNotActive     = errors.New("style not active")
)

// Owner is the player a Stack belongs to
type Owner interface {
	Player
	TimerStop()
	PrintChat(format string, args ...any)
}

// Stack is one player's active styles, in the order they were added
type Stack struct {
	registry *Registry
	owner    Owner
	active   []Service
}

// NewStack creates an empty stack for owner
func NewStack(registry *Registry, owner Owner) *Stack {
	return &Stack{registry: registry, owner: owner}
}

// Services returns the active styles in order
func (s *Stack) Services() []Service {
	return s.active
}

// Len returns the number of active styles
func (s *Stack) Len() int {
	return len(s.active)
}

// String joins the long names of the active styles with commas
func (s *Stack) String() string {
	names := make([]string, 0, len(s.active))
	for _, st := range s.active {
		names = append(names, st.Name())
	}
	return strings.Join(names, ",")
}

// TweakedConVar returns the value of the last active style that tweaks name
func (s *Stack) TweakedConVar(name string) (float64, bool) {
	for i := len(s.active) - 1; i >= 0; i-- {
		if v, ok := s.active[i].TweakedConVar(name); ok {
			return v, true
		}
	}
	return 0, false
}

func (s *Stack) find(name string) int {
	for i, st := range s.active {
		if strings.EqualFold(st.Name(), name) || strings.EqualFold(st.ShortName(), name) {
			return i
		}
	}
	return -1
}

// conflicts checks both styles' incompatibility lists, and whether the
// active style refuses the new one
func (s *Stack) conflicts(info Info, active Service) bool {
	if info.lists(active.Name()) || info.lists(active.ShortName()) {
		return true
	}
	if other, ok := s.registry.Info(active.Name()); ok && (other.lists(info.ShortName) || other.lists(info.LongName)) {
		return true
	}
	return !active.IsCompatibleWithStyle(info.ShortName) || !active.IsCompatibleWithStyle(info.LongName)
}

// Add activates a style and stops the running timer
func (s *Stack) Add(name string, silent bool) error {
	if name == "" {
		s.owner.PrintChat("Usage: !addstyle <style>")
		s.PrintAll()
		return ErrUsage
	}
	if s.find(name) >= 0 {
		s.owner.PrintChat("Style %s is already active.", name)
		return ErrAlreadyActive
	}

	info, ok := s.registry.Info(name)
	if !ok || info.Factory == nil {
		if !silent {
			s.owner.PrintChat("Style %s is not available.", name)
		}
		return ErrNotAvailable
	}

	for _, st := range s.active {
		if s.conflicts(info, st) {
			s.owner.PrintChat("Style %s conflicts with %s.", name, st.Name())
			return ErrConflict
		}
	}

	st := info.Factory(s.owner)
	s.active = append(s.active, st)
	s.owner.TimerStop()
	st.Init()
	if !silent {
		s.owner.PrintChat("Style %s added.", info.LongName)
	}
	return nil
}

// Remove deactivates a style and stops the running timer
func (s *Stack) Remove(name string, silent bool) error {
	if name == "" {
		s.owner.PrintChat("Usage: !removestyle <style>")
		return ErrUsage
	}

	i := s.find(name)
	if i < 0 {
		if !silent {
			s.owner.PrintChat("Style %s is not active.", name)
		}
		return ErrNotActive
	}

	st := s.active[i]
	st.Cleanup()
	s.active = append(s.active[:i], s.active[i+1:]...)
	s.owner.TimerStop()
	if !silent {
		s.owner.PrintChat("Style %s removed.", st.Name())
	}
	return nil
}

// Toggle removes an active style or adds an inactive one
func (s *Stack) Toggle(name string, silent bool) error {
	if name == "" {
		s.owner.PrintChat("Usage: !style <style>")
		s.PrintAll()
		return ErrUsage
	}
	if s.find(name) >= 0 {
		return s.Remove(name, silent)
	}
	return s.Add(name, silent)
}

// Clear deactivates every style
func (s *Stack) Clear(silent bool) {
	for _, st := range s.active {
		st.Cleanup()
	}
	s.active = nil
	if !silent {
		s.owner.PrintChat("Styles cleared.")
	}
}

// Refresh recreates every active style, dropping those that are no
// longer registered.
func (s *Stack) Refresh() {
	names := make([]string, 0, len(s.active))
	for _, st := range s.active {
		names = append(names, st.Name())
	}
	s.Clear(true)
	for _, name := range names {
		_ = s.Add(name, true)
	}
}

// Command runs a style command argument: "+name" adds, "-name" removes
// and a bare name toggles.
func (s *Stack) Command(arg string) error {
	switch {
	case strings.HasPrefix(arg, "+"):
		return s.Add(arg[1:], false)
	case strings.HasPrefix(arg, "-"):
		return s.Remove(arg[1:], false)
	default:
		return s.Toggle(arg, false)
	}
}

// Apply replaces the active styles with a comma separated list, as stored
// in the defaultStyles setting.
func (s *Stack) Apply(list string) {
	s.Clear(true)
	for _, name := range strings.Split(list, ",") {
		if name = strings.TrimSpace(name); name != "" {
			_ = s.Add(name, false)
		}
	}
}

// PrintActive lists the active styles
func (s *Stack) PrintActive() {
	s.owner.PrintChat("Current styles:")
	for _, st := range s.active {
		s.owner.PrintChat("%s (%s)", st.Name(), st.ShortName())
	}
}

// PrintAll lists every registered style
func (s *Stack) PrintAll() {
	s.owner.PrintChat("Possible styles:")
	for _, info := range s.registry.Infos() {
		s.owner.PrintChat("%s (%s)", info.LongName, info.ShortName)
	}
}
