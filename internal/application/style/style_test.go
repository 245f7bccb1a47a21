package style

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/younwookim/surftimer/internal/application/system"
	"github.com/younwookim/surftimer/internal/domain/entity"
	"github.com/younwookim/surftimer/internal/domain/geom"
	"github.com/younwookim/surftimer/internal/ecs"
)

type testOwner struct {
	pawn     *entity.Pawn
	stops    int
	messages []string
}

func newTestOwner() *testOwner {
	return &testOwner{pawn: entity.NewPawn(geom.Vector{})}
}

func (o *testOwner) Pawn() *entity.Pawn { return o.pawn }
func (o *testOwner) TimerStop()         { o.stops++ }

func (o *testOwner) PrintChat(format string, args ...any) {
	o.messages = append(o.messages, fmt.Sprintf(format, args...))
}

// testStyle records its lifecycle and can refuse other styles
type testStyle struct {
	Base
	short, long string
	refuses     string
	tweaks      map[string]float64

	inits, cleanups int
}

func (s *testStyle) Name() string      { return s.long }
func (s *testStyle) ShortName() string { return s.short }
func (s *testStyle) Init()             { s.inits++ }
func (s *testStyle) Cleanup()          { s.cleanups++ }

func (s *testStyle) IsCompatibleWithStyle(name string) bool {
	return name != s.refuses
}

func (s *testStyle) TweakedConVar(name string) (float64, bool) {
	v, ok := s.tweaks[name]
	return v, ok
}

func createTestRegistry(t *testing.T) (*Registry, map[string]*testStyle) {
	t.Helper()
	created := make(map[string]*testStyle)
	factory := func(short, long, refuses string, tweaks map[string]float64) Factory {
		return func(Player) Service {
			s := &testStyle{short: short, long: long, refuses: refuses, tweaks: tweaks}
			created[short] = s
			return s
		}
	}

	r := NewDefaultRegistry()
	require.NoError(t, r.Register("hsw", "halfsideways", factory("hsw", "halfsideways", "", map[string]float64{entity.CvarAirAccelerate: 100})))
	require.NoError(t, r.Register("sw", "sideways", factory("sw", "sideways", "", map[string]float64{entity.CvarAirAccelerate: 50}), "hsw"))
	require.NoError(t, r.Register("picky", "picky", factory("picky", "picky", "lowgrav", nil)))
	return r, created
}

func TestRegistry(t *testing.T) {
	r, _ := createTestRegistry(t)

	info, ok := r.Info("LG")
	require.True(t, ok)
	assert.Equal(t, uint32(1), info.ID)
	assert.Equal(t, "lowgrav", info.LongName)
	assert.Equal(t, int64(-1), info.DatabaseID)

	err := r.Register("SW", "another", NewLowGrav)
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
	err = r.Register("x", "Sideways", NewLowGrav)
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
	assert.ErrorIs(t, r.Register("", "empty", NewLowGrav), ErrInvalidName)
	assert.ErrorIs(t, r.Register("nf", "nofactory", nil), ErrInvalidName)

	sw, _ := r.Info("sw")
	assert.Equal(t, []string{"hsw"}, sw.Incompatible)

	r.SetDatabaseID("sideways", 4)
	sw, _ = r.Info("sw")
	assert.Equal(t, int64(4), sw.DatabaseID)

	r.Unregister("picky")
	_, ok = r.Info("picky")
	assert.False(t, ok)
	assert.Len(t, r.Infos(), 3)
}

func TestStackAdd(t *testing.T) {
	tests := []struct {
		name    string
		active  []string
		add     string
		wantErr error
		wantLen int
	}{
		{"adds style", nil, "lg", nil, 1},
		{"by long name", nil, "LowGrav", nil, 1},
		{"already active", []string{"lg"}, "lowgrav", ErrAlreadyActive, 1},
		{"unknown style", nil, "backwards", ErrNotAvailable, 0},
		{"empty name", nil, "", ErrUsage, 0},
		{"listed as incompatible", []string{"hsw"}, "sw", ErrConflict, 1},
		{"listed by the other side", []string{"sw"}, "hsw", ErrConflict, 1},
		{"active style refuses", []string{"picky"}, "lg", ErrConflict, 1},
		{"compatible styles stack", []string{"hsw"}, "lg", nil, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := createTestRegistry(t)
			owner := newTestOwner()
			s := NewStack(r, owner)
			for _, name := range tt.active {
				require.NoError(t, s.Add(name, true))
			}
			owner.stops = 0

			err := s.Add(tt.add, false)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Zero(t, owner.stops)
			} else {
				require.NoError(t, err)
				assert.Equal(t, 1, owner.stops)
			}
			assert.Equal(t, tt.wantLen, s.Len())
		})
	}
}

func TestStackAddInitsAfterTimerStop(t *testing.T) {
	r, created := createTestRegistry(t)
	owner := newTestOwner()
	s := NewStack(r, owner)

	require.NoError(t, s.Add("hsw", false))
	assert.Equal(t, 1, created["hsw"].inits)
	assert.Equal(t, 1, owner.stops)
	assert.Contains(t, owner.messages, "Style halfsideways added.")
}

func TestStackRemove(t *testing.T) {
	r, created := createTestRegistry(t)
	owner := newTestOwner()
	s := NewStack(r, owner)
	require.NoError(t, s.Add("hsw", true))
	require.NoError(t, s.Add("lg", true))
	owner.stops = 0

	require.NoError(t, s.Remove("HalfSideways", false))
	assert.Equal(t, 1, created["hsw"].cleanups)
	assert.Equal(t, 1, owner.stops)
	assert.Equal(t, "lowgrav", s.String())

	assert.ErrorIs(t, s.Remove("hsw", false), ErrNotActive)
	assert.ErrorIs(t, s.Remove("", false), ErrUsage)
	assert.Equal(t, 1, owner.stops)
}

func TestStackToggle(t *testing.T) {
	r, _ := createTestRegistry(t)
	s := NewStack(r, newTestOwner())

	require.NoError(t, s.Toggle("lg", true))
	assert.Equal(t, 1, s.Len())
	require.NoError(t, s.Toggle("lg", true))
	assert.Zero(t, s.Len())
	assert.ErrorIs(t, s.Toggle("", true), ErrUsage)
}

func TestStackCommand(t *testing.T) {
	r, _ := createTestRegistry(t)
	s := NewStack(r, newTestOwner())

	require.NoError(t, s.Command("+lg"))
	assert.ErrorIs(t, s.Command("+lg"), ErrAlreadyActive)
	require.NoError(t, s.Command("hsw"))
	assert.Equal(t, "lowgrav,halfsideways", s.String())
	require.NoError(t, s.Command("-lg"))
	assert.ErrorIs(t, s.Command("-lg"), ErrNotActive)
	require.NoError(t, s.Command("hsw"))
	assert.Zero(t, s.Len())
}

func TestStackClearAndApply(t *testing.T) {
	r, created := createTestRegistry(t)
	owner := newTestOwner()
	s := NewStack(r, owner)

	s.Apply("hsw, lg,,unknown")
	assert.Equal(t, "halfsideways,lowgrav", s.String())
	assert.Contains(t, owner.messages, "Style unknown is not available.")

	hsw := created["hsw"]
	s.Clear(false)
	assert.Zero(t, s.Len())
	assert.Equal(t, 1, hsw.cleanups)
	assert.Equal(t, "Styles cleared.", owner.messages[len(owner.messages)-1])
	assert.Equal(t, 1.0, owner.pawn.GravityScale)
}

func TestStackRefresh(t *testing.T) {
	r, created := createTestRegistry(t)
	s := NewStack(r, newTestOwner())
	require.NoError(t, s.Add("hsw", true))
	require.NoError(t, s.Add("lg", true))
	before := created["hsw"]

	r.Unregister("lg")
	s.Refresh()

	assert.Equal(t, "halfsideways", s.String())
	assert.Equal(t, 1, before.cleanups)
	assert.NotSame(t, before, created["hsw"])
}

func TestStackTweakedConVar(t *testing.T) {
	r, _ := createTestRegistry(t)
	s := NewStack(r, newTestOwner())

	_, ok := s.TweakedConVar(entity.CvarAirAccelerate)
	assert.False(t, ok)

	require.NoError(t, s.Add("hsw", true))
	v, ok := s.TweakedConVar(entity.CvarAirAccelerate)
	require.True(t, ok)
	assert.Equal(t, 100.0, v)

	require.NoError(t, s.Add("lg", true))
	v, _ = s.TweakedConVar(entity.CvarAirAccelerate)
	assert.Equal(t, 100.0, v)

	_, ok = s.TweakedConVar(entity.CvarGravity)
	assert.False(t, ok)
}

func TestLowGrav(t *testing.T) {
	owner := newTestOwner()
	lg := NewLowGrav(owner)

	assert.Equal(t, "lowgrav", lg.Name())
	assert.Equal(t, "lg", lg.ShortName())
	_, tweaked := lg.TweakedConVar(entity.CvarGravity)
	assert.False(t, tweaked)

	m := system.NewMove(owner.pawn, system.Command{})
	lg.OnProcessMovement(m)
	assert.Equal(t, 0.5, owner.pawn.GravityScale)

	lg.Cleanup()
	assert.Equal(t, 1.0, owner.pawn.GravityScale)
}

func TestLowGravSlowsFall(t *testing.T) {
	w := createEmptyWorld()
	owner := newTestOwner()
	lg := NewLowGrav(owner)
	settings := fallSettings{entity.CvarGravity: 800}

	fall := func(hooks system.Hooks) float64 {
		p := entity.NewPawn(geom.Vec(0, 0, 1000))
		owner.pawn = p
		g := entity.NewGlobals()
		sys := system.NewPhysicsSystem(w, g)
		for range 32 {
			g.Advance()
			m := system.NewMove(p, system.Command{})
			sys.ProcessMovement(p, m, settings, hooks)
			m.Finish(p)
		}
		return p.Velocity.Z
	}

	normal := fall(system.BaseHooks{})
	low := fall(lg)
	assert.InDelta(t, normal/2, low, 1e-6)
}

type fallSettings map[string]float64

func (s fallSettings) Cvar(name string) float64 { return s[name] }

func createEmptyWorld() *ecs.World {
	return ecs.NewWorld()
}
