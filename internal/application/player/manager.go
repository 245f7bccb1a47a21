package player

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/younwookim/surftimer/internal/application/announce"
	"github.com/younwookim/surftimer/internal/application/mode"
	"github.com/younwookim/surftimer/internal/application/style"
	"github.com/younwookim/surftimer/internal/application/system"
	"github.com/younwookim/surftimer/internal/application/timer"
	"github.com/younwookim/surftimer/internal/domain/entity"
	"github.com/younwookim/surftimer/internal/domain/geom"
	"github.com/younwookim/surftimer/internal/domain/mapping"
	"github.com/younwookim/surftimer/internal/ecs"
	"github.com/younwookim/surftimer/internal/infrastructure/callback"
	"github.com/younwookim/surftimer/internal/infrastructure/db"
	"github.com/younwookim/surftimer/internal/infrastructure/global"
)

var ErrNoSuchPlayer = errors.New("no such player")

// Store is the local persistence the manager sets up and reads PBs from
type Store interface {
	announce.Store
	SetupModes(names []string, onSuccess func(ids map[string]int64), onFailure db.FailureFunc)
	SetupStyles(names []string, onSuccess func(ids map[string]int64), onFailure db.FailureFunc)
	SetupCourses(mapName string, courses []string, onSuccess func(ids map[string]int64), onFailure db.FailureFunc)
	QueryAllPBs(playerID uint64, modeID int64, onSuccess func([]db.Time), onFailure db.FailureFunc)
	QueryAllRecords(onSuccess func([]db.Time), onFailure db.FailureFunc)
}

// Global is the global API connection as the manager uses it
type Global interface {
	announce.Global
	MapChange(name string, cb func(*global.MapInfo)) error
	PlayerJoin(p global.Player, cb func(global.PlayerJoinAck)) error
	PlayerLeave(p global.Player) error
	WantPersonalBest(req global.WantPersonalBest, cb func(global.PersonalBest)) error
	WantWorldRecords(mapID int64, cb func(global.WorldRecords)) error
}

// ChatSink delivers chat lines to a player's screen
type ChatSink interface {
	Chat(p *Player, msg string)
}

// logSink writes chat to the log when nothing renders it
type logSink struct{ logger *log.Logger }

func (s logSink) Chat(p *Player, msg string) {
	s.logger.Info(msg, "player", p.Name())
}

// Options are the shared services every player runs against. Store,
// Global, Sounds and Chat may be nil.
type Options struct {
	World   *ecs.World
	Catalog *mapping.Catalog
	Globals *entity.Globals
	Modes   *mode.Registry
	Styles  *style.Registry
	Records *timer.RecordCache
	Queue   *callback.Queue
	Store   Store
	Global  Global
	Sounds  timer.SoundSink
	Chat    ChatSink

	// Spawn is where connecting players appear
	Spawn         geom.Vector
	Map           string
	DefaultMode   string
	DefaultStyles []string
	Logger        *log.Logger
}

// Manager owns the connected players and the services they share
type Manager struct {
	world     *ecs.World
	catalog   *mapping.Catalog
	globals   *entity.Globals
	modes     *mode.Registry
	styles    *style.Registry
	records   *timer.RecordCache
	queue     *callback.Queue
	store     Store
	global    Global
	sounds    timer.SoundSink
	chat      ChatSink
	logger    *log.Logger
	physics   *system.PhysicsSystem
	listeners *timer.Listeners
	announcer *announce.Service

	spawn         geom.Vector
	mapName       string
	defaultMode   string
	defaultStyles []string

	players []*Player
	nextID  int
}

// NewManager creates a manager and registers the modes and styles with the
// store
func NewManager(opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Globals == nil {
		opts.Globals = entity.NewGlobals()
	}
	if opts.Modes == nil {
		opts.Modes = mode.NewDefaultRegistry()
	}
	if opts.Styles == nil {
		opts.Styles = style.NewDefaultRegistry()
	}
	if opts.Records == nil {
		opts.Records = timer.NewRecordCache()
	}
	if opts.Queue == nil {
		opts.Queue = callback.NewQueue()
	}
	if opts.Catalog == nil {
		opts.Catalog = mapping.NewCatalog(opts.World, opts.Logger)
	}

	m := &Manager{
		world:         opts.World,
		catalog:       opts.Catalog,
		globals:       opts.Globals,
		modes:         opts.Modes,
		styles:        opts.Styles,
		records:       opts.Records,
		queue:         opts.Queue,
		store:         opts.Store,
		global:        opts.Global,
		sounds:        opts.Sounds,
		chat:          opts.Chat,
		logger:        opts.Logger.WithPrefix("player"),
		physics:       system.NewPhysicsSystem(opts.World, opts.Globals),
		listeners:     &timer.Listeners{},
		spawn:         opts.Spawn,
		mapName:       opts.Map,
		defaultMode:   opts.DefaultMode,
		defaultStyles: opts.DefaultStyles,
		nextID:        1,
	}
	if m.chat == nil {
		m.chat = logSink{logger: m.logger}
	}
	m.listeners.Register(pauseGuard{})
	m.announcer = announce.New(announce.Options{
		Store:   m.store,
		Global:  m.global,
		Catalog: m.catalog,
		Records: m.records,
		Players: m,
		Globals: m.globals,
		Logger:  opts.Logger,
	})
	m.setupStore()
	return m
}

func (m *Manager) setupStore() {
	if m.store == nil {
		return
	}
	var modeNames []string
	for _, info := range m.modes.Infos() {
		modeNames = append(modeNames, info.LongName)
	}
	m.store.SetupModes(modeNames, func(ids map[string]int64) {
		for name, id := range ids {
			m.modes.SetDatabaseID(name, id)
		}
	}, m.failure("set up modes"))

	var styleNames []string
	for _, info := range m.styles.Infos() {
		styleNames = append(styleNames, info.LongName)
	}
	m.store.SetupStyles(styleNames, func(ids map[string]int64) {
		for name, id := range ids {
			m.styles.SetDatabaseID(name, id)
		}
	}, m.failure("set up styles"))
}

func (m *Manager) failure(what string) db.FailureFunc {
	return func(err error) {
		m.logger.Error("database operation failed", "op", what, "err", err)
	}
}

// Announcer returns the record announcer
func (m *Manager) Announcer() *announce.Service { return m.announcer }

// Catalog returns the map catalog
func (m *Manager) Catalog() *mapping.Catalog { return m.catalog }

// Globals returns the server clock
func (m *Manager) Globals() *entity.Globals { return m.globals }

// Listeners returns the timer listeners shared by every player
func (m *Manager) Listeners() *timer.Listeners { return m.listeners }

// MapName returns the name of the loaded map
func (m *Manager) MapName() string { return m.mapName }

// Connect adds a player at the spawn point in the default mode and styles
func (m *Manager) Connect(name string, accountID uint64, bot bool) (*Player, error) {
	p := newPlayer(m, m.nextID, name, accountID, m.spawn)
	p.pawn.Bot = bot

	modeName := m.defaultMode
	if modeName == "" {
		modeName = mode.Default
	}
	if err := p.SetMode(modeName); err != nil {
		m.logger.Warn("default mode is not available, falling back", "mode", modeName)
		if err := p.SetMode(mode.Default); err != nil {
			p.timer.Close()
			return nil, fmt.Errorf("failed to connect %s: %w", name, err)
		}
	}
	m.nextID++
	m.players = append(m.players, p)

	if len(m.defaultStyles) > 0 {
		p.styles.Apply(strings.Join(m.defaultStyles, ","))
	}

	if m.global != nil && !bot && accountID != 0 {
		err := m.global.PlayerJoin(global.Player{ID: accountID, Name: name}, func(ack global.PlayerJoinAck) {
			if ack.IsBanned {
				m.logger.Warn("player is banned from the global API", "player", name)
			}
		})
		if err != nil {
			m.logger.Debug("player join not sent", "player", name, "err", err)
		}
	}

	m.loadPBs(p)
	m.logger.Info("player connected", "player", name, "id", p.id)
	return p, nil
}

// Disconnect removes a player
func (m *Manager) Disconnect(id int) error {
	i := slices.IndexFunc(m.players, func(p *Player) bool { return p.id == id })
	if i < 0 {
		return fmt.Errorf("failed to disconnect player %d: %w", id, ErrNoSuchPlayer)
	}
	p := m.players[i]

	p.timer.OnClientDisconnect()
	p.triggers.EndTouchAll()
	p.styles.Clear(true)
	p.mode.Cleanup()
	p.timer.Close()
	m.players = slices.Delete(m.players, i, i+1)

	if m.global != nil && !p.Bot() && p.accountID != 0 {
		if err := m.global.PlayerLeave(global.Player{ID: p.accountID, Name: p.name}); err != nil {
			m.logger.Debug("player leave not sent", "player", p.name, "err", err)
		}
	}
	m.logger.Info("player disconnected", "player", p.name, "id", id)
	return nil
}

// Player returns the connected player with id
func (m *Manager) Player(id int) (*Player, bool) {
	for _, p := range m.players {
		if p.id == id {
			return p, true
		}
	}
	return nil, false
}

// Lookup finds a player for the announcer
func (m *Manager) Lookup(id int) (announce.Player, bool) {
	p, ok := m.Player(id)
	if !ok {
		return nil, false
	}
	return p, true
}

// Players returns every connected player
func (m *Manager) Players() []*Player {
	return m.players
}

// PrintChatAll shows a chat line to every player
func (m *Manager) PrintChatAll(msg string) {
	for _, p := range m.players {
		p.print(msg)
	}
}

// TimerStopAll stops every running timer
func (m *Manager) TimerStopAll() {
	for _, p := range m.players {
		p.timer.TimerStop(false)
	}
}

// StartRound loads the map entities into the catalog and starts a round:
// zones are classified, courses validated and registered with the store
// and the global API, and the record caches refilled.
func (m *Manager) StartRound(entities []ecs.EntityID) {
	m.catalog.LoadSpawnGroup(m.world.Worldspawn, entities)
	m.catalog.RoundPreStart()

	m.records.Clear()
	m.TimerStopAll()
	m.announcer.Clear()
	for _, p := range m.players {
		p.triggers.Reset()
		p.ResetCheckpoints()
	}

	m.catalog.OnSpawn(entities)
	m.catalog.RoundStart(m.setupCourses)

	if m.global != nil {
		if err := m.global.MapChange(m.mapName, m.onGlobalMap); err != nil {
			m.logger.Debug("map change not sent", "map", m.mapName, "err", err)
		}
	}
}

func (m *Manager) setupCourses(courses []*mapping.Course) {
	if m.store == nil || len(courses) == 0 {
		return
	}
	names := make([]string, 0, len(courses))
	for _, c := range courses {
		names = append(names, c.Name)
	}
	m.store.SetupCourses(m.mapName, names, func(ids map[string]int64) {
		for name, id := range ids {
			m.catalog.UpdateCourseLocalID(name, id)
		}
		m.loadServerRecords()
		for _, p := range m.players {
			m.loadLocalPBs(p)
		}
	}, m.failure("set up courses"))
}

func (m *Manager) modeByDatabaseID(id int64) (mode.Info, bool) {
	for _, info := range m.modes.Infos() {
		if info.DatabaseID == id {
			return info, true
		}
	}
	return mode.Info{}, false
}

func (m *Manager) loadServerRecords() {
	m.store.QueryAllRecords(func(times []db.Time) {
		for _, t := range times {
			course := m.catalog.CourseByLocalID(t.CourseID)
			info, ok := m.modeByDatabaseID(t.ModeID)
			if course == nil || !ok {
				continue
			}
			if err := m.records.InsertRecord(t.Time, course, info.ID, false, t.Metadata); err != nil {
				m.logger.Warn("failed to cache server record", "course", course.Name, "err", err)
			}
		}
	}, m.failure("query server records"))
}

func (m *Manager) loadPBs(p *Player) {
	m.loadLocalPBs(p)
	m.loadGlobalPBs(p)
}

func (m *Manager) loadLocalPBs(p *Player) {
	info := p.ModeInfo()
	if m.store == nil || !m.store.IsMapSetUp() || info.DatabaseID <= 0 || p.Bot() {
		return
	}
	id := p.id
	m.store.QueryAllPBs(p.accountID, info.DatabaseID, func(times []db.Time) {
		p, ok := m.Player(id)
		if !ok {
			return
		}
		for _, t := range times {
			course := m.catalog.CourseByLocalID(t.CourseID)
			if course == nil {
				continue
			}
			if err := p.timer.InsertPBToCache(t.Time, course, info.ID, false, t.Metadata, 0); err != nil {
				m.logger.Warn("failed to cache PB", "player", p.name, "course", course.Name, "err", err)
			}
		}
	}, m.failure("query PBs"))
}

func (m *Manager) loadGlobalPBs(p *Player) {
	if m.global == nil || !m.global.IsAvailable() || p.Bot() || p.accountID == 0 {
		return
	}
	info := p.ModeInfo()
	id := p.id
	for _, course := range m.catalog.Courses() {
		if course.GlobalDatabaseID <= 0 {
			continue
		}
		guid := course.GUID
		req := global.WantPersonalBest{
			PlayerID: p.accountID,
			Map:      m.mapName,
			Course:   course.Name,
			Mode:     info.ShortName,
		}
		err := m.global.WantPersonalBest(req, func(pb global.PersonalBest) {
			p, ok := m.Player(id)
			course := m.catalog.Course(guid)
			if !ok || course == nil || pb.Record == nil {
				return
			}
			if err := p.timer.InsertPBToCache(pb.Record.Time, course, info.ID, true, "", pb.Record.Points); err != nil {
				m.logger.Warn("failed to cache global PB", "player", p.name, "err", err)
			}
		})
		if err != nil {
			m.logger.Debug("global PB not requested", "course", course.Name, "err", err)
		}
	}
}

// onGlobalMap records the global course IDs and loads world records
func (m *Manager) onGlobalMap(info *global.MapInfo) {
	if info == nil {
		return
	}
	for _, c := range info.Courses {
		m.catalog.UpdateCourseGlobalID(c.Name, c.ID)
	}

	err := m.global.WantWorldRecords(info.ID, func(wrs global.WorldRecords) {
		for _, r := range wrs.Records {
			course := m.catalog.CourseByGlobalID(r.CourseID)
			mi, ok := m.modes.Info(r.Mode)
			if course == nil || !ok {
				continue
			}
			if err := m.records.InsertRecord(r.Time, course, mi.ID, true, ""); err != nil {
				m.logger.Warn("failed to cache world record", "course", course.Name, "err", err)
			}
		}
	})
	if err != nil {
		m.logger.Debug("world records not requested", "err", err)
	}
	for _, p := range m.players {
		m.loadGlobalPBs(p)
	}
}

// Tick advances the clock, runs async results and simulates every player.
// input returns the command of a player for this tick.
func (m *Manager) Tick(input func(p *Player) system.Command) {
	m.globals.Advance()
	m.queue.Drain()

	for _, p := range slices.Clone(m.players) {
		var cmd system.Command
		if input != nil {
			cmd = input(p)
		}
		p.Tick(cmd)
	}

	m.announcer.Tick()
	m.catalog.Tick(m.globals.CurTime, m)
}
