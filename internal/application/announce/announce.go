// Package announce submits finished runs to the local store and the global
// API and tells everyone how they placed. Each announcement is tracked by a
// UID; async replies look it up again instead of holding on to it.
package announce

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/younwookim/surftimer/internal/application/mode"
	"github.com/younwookim/surftimer/internal/application/style"
	"github.com/younwookim/surftimer/internal/application/timer"
	"github.com/younwookim/surftimer/internal/domain/entity"
	"github.com/younwookim/surftimer/internal/domain/mapping"
	"github.com/younwookim/surftimer/internal/infrastructure/db"
	"github.com/younwookim/surftimer/internal/infrastructure/global"
)

const (
	// DefaultTimeout is how long an announcement waits for replies before
	// printing what it has, in seconds
	DefaultTimeout = 10.0
	// ratingScale converts the API's player rating to the shown value
	ratingScale = 0.1
)

// Player is the finisher as seen by an announcement
type Player interface {
	ID() int
	AccountID() uint64
	Name() string
	Timer() *timer.Timer
	ModeInfo() mode.Info
	StyleInfos() []style.Info
}

// Directory finds players again by ID and reaches all of them
type Directory interface {
	Lookup(id int) (Player, bool)
	PrintChatAll(msg string)
}

// Store is the local persistence an announcement saves to
type Store interface {
	IsReady() bool
	IsMapSetUp() bool
	SaveTime(t db.Time, onSuccess func(db.SaveTimeResult), onFailure db.FailureFunc)
}

// Global is the global API an announcement submits to
type Global interface {
	IsAvailable() bool
	CurrentMap() *global.MapInfo
	SubmitRecord(rec global.NewRecord, cb func(global.NewRecordAck)) global.SubmitRecordResult
}

// Options are the collaborators of a Service. Store and Global may be nil.
type Options struct {
	Store   Store
	Global  Global
	Catalog *mapping.Catalog
	Records *timer.RecordCache
	Players Directory
	Globals *entity.Globals
	Logger  *log.Logger
	Timeout float64
}

// LocalResponse is what the store said about a run
type LocalResponse struct {
	Received  bool
	FirstTime bool
	PBDiff    float64
	Rank      int
	MaxRank   int
}

// GlobalResponse is what the API said about a run
type GlobalResponse struct {
	Received     bool
	RecordID     int64
	PlayerRating float64
	Rank         int
	Points       float64
	MaxRank      int
}

// StyleRef names a style a run was set with
type StyleRef struct {
	Name     string
	Checksum string
}

// Record is one announcement in flight
type Record struct {
	UID       uint32
	Created   float64
	PlayerID  int
	AccountID uint64
	Name      string

	CourseGUID    uint32
	CourseName    string
	CourseLocalID int64
	FilterID      int64

	ModeID       uint32
	ModeName     string
	ModeChecksum string
	ModeLocalID  int64
	Styles       []StyleRef
	StyleIDs     uint64

	Time     float64
	Metadata string

	// Local and Global say whether each side is still expected to answer
	Local  bool
	Global bool

	OldGPBTime   float64
	OldGPBPoints float64

	LocalResponse  LocalResponse
	GlobalResponse GlobalResponse
}

// finished reports whether every expected reply is in
func (r *Record) finished() bool {
	return (!r.Local || r.LocalResponse.Received) && (!r.Global || r.GlobalResponse.Received)
}

// Service owns the announcements in flight
type Service struct {
	store   Store
	global  Global
	catalog *mapping.Catalog
	records *timer.RecordCache
	players Directory
	globals *entity.Globals
	logger  *log.Logger
	timeout float64

	nextUID uint32
	active  map[uint32]*Record
	order   []uint32
}

// New creates an announce service
func New(opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Globals == nil {
		opts.Globals = entity.NewGlobals()
	}
	return &Service{
		store:   opts.Store,
		global:  opts.Global,
		catalog: opts.Catalog,
		records: opts.Records,
		players: opts.Players,
		globals: opts.Globals,
		logger:  opts.Logger.WithPrefix("announce"),
		timeout: opts.Timeout,
		active:  make(map[uint32]*Record),
	}
}

// Get returns the announcement with uid, or nil once it is gone
func (s *Service) Get(uid uint32) *Record { return s.active[uid] }

// Len returns how many announcements are in flight
func (s *Service) Len() int { return len(s.active) }

// Announce starts announcing p's run on the course with courseGUID
func (s *Service) Announce(p Player, courseGUID uint32, time float64) *Record {
	t := p.Timer()
	course := t.Course()
	if course == nil || course.GUID != courseGUID {
		course = s.course(courseGUID)
	}
	if course == nil {
		s.logger.Warn("can't announce a run on an unknown course", "course", courseGUID, "player", p.Name())
		return nil
	}

	s.nextUID++
	m := p.ModeInfo()
	rec := &Record{
		UID:           s.nextUID,
		Created:       s.globals.CurTime,
		PlayerID:      p.ID(),
		AccountID:     p.AccountID(),
		Name:          p.Name(),
		CourseGUID:    course.GUID,
		CourseName:    course.Name,
		CourseLocalID: course.LocalDatabaseID,
		ModeID:        m.ID,
		ModeName:      m.ShortName,
		ModeChecksum:  m.Checksum,
		ModeLocalID:   m.DatabaseID,
		Time:          time,
		Metadata:      t.RunMetadata(),
	}
	rec.Local = s.store != nil && s.store.IsReady() && s.store.IsMapSetUp() &&
		rec.ModeLocalID > 0 && rec.CourseLocalID > 0
	for _, info := range p.StyleInfos() {
		rec.Styles = append(rec.Styles, StyleRef{Name: info.ShortName})
		if info.DatabaseID < 0 || info.DatabaseID >= 64 {
			rec.Local = false
			continue
		}
		rec.StyleIDs |= 1 << uint(info.DatabaseID)
	}
	rec.Global = s.global != nil && s.global.IsAvailable() && len(rec.Styles) == 0 && rec.AccountID != 0
	if rec.Global {
		rec.Global = s.resolveFilter(rec)
	}
	if pb := t.GlobalCachedPB(course, rec.ModeID); pb != nil {
		rec.OldGPBTime = pb.Time
		rec.OldGPBPoints = pb.Points
	}

	s.active[rec.UID] = rec
	s.order = append(s.order, rec.UID)

	if rec.Local {
		s.submitLocal(rec)
	}
	if rec.Global {
		s.submitGlobal(rec)
	}
	s.logger.Debug("announcing run", "uid", rec.UID, "player", rec.Name, "course", rec.CourseName,
		"time", rec.Time, "local", rec.Local, "global", rec.Global)
	return rec
}

func (s *Service) course(guid uint32) *mapping.Course {
	if s.catalog == nil {
		return nil
	}
	return s.catalog.Course(guid)
}

// resolveFilter finds the global leaderboard of the run's course
func (s *Service) resolveFilter(rec *Record) bool {
	m := s.global.CurrentMap()
	if m == nil {
		s.logger.Debug("map is not global, not submitting", "uid", rec.UID)
		return false
	}
	c := m.Course(rec.CourseName)
	if c == nil {
		s.logger.Debug("course not found on global map, not submitting", "uid", rec.UID, "course", rec.CourseName, "map", m.Name)
		return false
	}
	rec.FilterID = c.FilterID
	return true
}

// player resolves the finisher again, if they are still the same player
func (s *Service) player(rec *Record) (Player, bool) {
	if s.players == nil {
		return nil, false
	}
	p, ok := s.players.Lookup(rec.PlayerID)
	if !ok || p.AccountID() != rec.AccountID {
		return nil, false
	}
	return p, true
}

func (s *Service) submitLocal(rec *Record) {
	uid := rec.UID
	s.store.SaveTime(db.Time{
		PlayerID:   rec.AccountID,
		PlayerName: rec.Name,
		CourseID:   rec.CourseLocalID,
		ModeID:     rec.ModeLocalID,
		StyleIDs:   rec.StyleIDs,
		Time:       rec.Time,
		Metadata:   rec.Metadata,
	}, func(res db.SaveTimeResult) {
		r := s.Get(uid)
		if r == nil {
			return
		}
		r.LocalResponse = LocalResponse{
			Received:  true,
			FirstTime: res.FirstTime,
			PBDiff:    res.PBDiff,
			Rank:      res.Rank,
			MaxRank:   res.MaxRank,
		}
		s.updateLocalCache(r)
	}, func(err error) {
		s.logger.Warn("failed to save time", "uid", uid, "err", err)
		if r := s.Get(uid); r != nil {
			r.Local = false
		}
	})
}

// updateLocalCache refreshes the finisher's PB and the server record.
// Styled runs have their own leaderboards and stay out of both caches.
func (s *Service) updateLocalCache(rec *Record) {
	if rec.StyleIDs != 0 || len(rec.Styles) > 0 {
		return
	}
	course := s.course(rec.CourseGUID)
	if course == nil {
		return
	}
	res := rec.LocalResponse
	if p, ok := s.player(rec); ok && (res.FirstTime || res.PBDiff < 0) {
		if err := p.Timer().InsertPBToCache(rec.Time, course, rec.ModeID, false, rec.Metadata, 0); err != nil {
			s.logger.Warn("failed to cache PB", "uid", rec.UID, "err", err)
		}
	}
	if res.Rank == 1 && s.records != nil {
		if err := s.records.InsertRecord(rec.Time, course, rec.ModeID, false, rec.Metadata); err != nil {
			s.logger.Warn("failed to cache server record", "uid", rec.UID, "err", err)
		}
	}
}

func (s *Service) submitGlobal(rec *Record) {
	uid := rec.UID
	styles := make([]global.StyleInfo, 0, len(rec.Styles))
	for _, st := range rec.Styles {
		styles = append(styles, global.StyleInfo{Name: st.Name, Checksum: st.Checksum})
	}
	result := s.global.SubmitRecord(global.NewRecord{
		PlayerID:     rec.AccountID,
		FilterID:     rec.FilterID,
		ModeChecksum: rec.ModeChecksum,
		Styles:       styles,
		Time:         rec.Time,
		Metadata:     rec.Metadata,
	}, func(ack global.NewRecordAck) {
		r := s.Get(uid)
		if r == nil {
			return
		}
		s.logger.Info("record submitted", "uid", uid, "recordId", ack.RecordID)
		r.GlobalResponse = GlobalResponse{
			Received:     true,
			RecordID:     ack.RecordID,
			PlayerRating: ack.PlayerRating * ratingScale,
			Rank:         ack.Overall.Rank,
			Points:       ack.Overall.Points,
			MaxRank:      ack.Overall.LeaderboardSize,
		}
		if len(r.Styles) == 0 {
			s.updateGlobalCache(r)
		}
	})

	s.logger.Debug("global submission", "uid", uid, "result", result)
	rec.Global = result == global.SubmitSubmitted
}

// updateGlobalCache refreshes the finisher's global PB and the world
// record
func (s *Service) updateGlobalCache(rec *Record) {
	course := s.course(rec.CourseGUID)
	if course == nil {
		return
	}
	res := rec.GlobalResponse
	if p, ok := s.player(rec); ok && (rec.OldGPBTime <= 0 || rec.Time < rec.OldGPBTime) {
		if err := p.Timer().InsertPBToCache(rec.Time, course, rec.ModeID, true, rec.Metadata, res.Points); err != nil {
			s.logger.Warn("failed to cache global PB", "uid", rec.UID, "err", err)
		}
	}
	if res.Rank == 1 && s.records != nil {
		if err := s.records.InsertRecord(rec.Time, course, rec.ModeID, true, rec.Metadata); err != nil {
			s.logger.Warn("failed to cache world record", "uid", rec.UID, "err", err)
		}
	}
}

// Tick prints every announcement whose replies are in, or that waited too
// long, and forgets it
func (s *Service) Tick() {
	now := s.globals.CurTime
	kept := s.order[:0]
	for _, uid := range s.order {
		rec := s.active[uid]
		if rec == nil {
			continue
		}
		if !rec.finished() && now-rec.Created < s.timeout {
			kept = append(kept, uid)
			continue
		}
		s.print(rec)
		delete(s.active, uid)
	}
	s.order = kept
}

// Clear drops every announcement in flight, as on map change
func (s *Service) Clear() {
	clear(s.active)
	s.order = nil
}

func (s *Service) print(rec *Record) {
	if s.players == nil {
		return
	}
	for _, line := range Lines(rec) {
		s.players.PrintChatAll(line)
	}
}

// Lines renders the chat lines of a finished announcement
func Lines(rec *Record) []string {
	var tags strings.Builder
	fmt.Fprintf(&tags, "{purple}%s{grey}", rec.ModeName)
	for _, st := range rec.Styles {
		fmt.Fprintf(&tags, " +{grey2}%s{grey}", st.Name)
	}

	lines := []string{fmt.Sprintf("{lime}%s {grey}finished \"{default}%s{grey}\" in {gold}%s {grey}[%s]",
		timer.SanitizeMessage(rec.Name), timer.SanitizeMessage(rec.CourseName), timer.FormatTime(rec.Time, true), tags.String())}

	if local := rec.LocalResponse; local.Received {
		diff := ""
		if !local.FirstTime {
			diff = diffText(local.PBDiff)
		}
		lines = append(lines, fmt.Sprintf("{grey}Server rank: {default}#%d{grey}/%d%s", local.Rank, local.MaxRank, diff))
	}

	if g := rec.GlobalResponse; g.Received {
		diff := ""
		if rec.OldGPBTime > 0 {
			diff = diffText(rec.Time - rec.OldGPBTime)
		}
		gained := max(g.Points-rec.OldGPBPoints, 0)
		lines = append(lines,
			fmt.Sprintf("{grey}Global rank: {default}#%d{grey}/%d%s", g.Rank, g.MaxRank, diff),
			fmt.Sprintf("{grey}Points: {default}%.0f {grey}(+%.0f) Rating: {default}%.2f", g.Points, gained, g.PlayerRating))
	}
	return lines
}

func diffText(diff float64) string {
	colour := "{red}"
	if diff < 0 {
		colour = "{green}"
	}
	return fmt.Sprintf(" {grey}(%s%s{grey})", colour, timer.FormatDiffTime(diff, true))
}
