// Package db is the local record store. Every operation runs on the store's
// worker goroutine; results come back through a callback queue so they are
// handled on the simulation goroutine.
package db

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/younwookim/surftimer/internal/infrastructure/callback"
)

// pbEpsilon is how close a saved time has to be to the best time to count
// as the new PB
const pbEpsilon = 1e-4

var (
	ErrNotFound  = errors.New("record not found")
	ErrClosed    = errors.New("store is closed")
	ErrQueueFull = errors.New("store queue is full")
	ErrNoMap     = errors.New("no map set up")
	ErrEmptyName = errors.New("empty name")
)

// FailureFunc receives the error of a failed operation
type FailureFunc func(err error)

// Options configure a Store
type Options struct {
	QueueSize int
	Logger    *log.Logger
}

// Store is an in-memory record store with an asynchronous interface
type Store struct {
	queue  *callback.Queue
	logger *log.Logger

	jobs   chan func()
	done   chan struct{}
	wg     sync.WaitGroup
	closed atomic.Bool
	mapSet atomic.Bool

	// owned by the worker goroutine
	mapName string
	courses map[string]int64
	modes   map[string]int64
	styles  map[string]int64
	times   []Time
	nextID  int64
}

// NewStore starts a store whose results are posted to queue
func NewStore(queue *callback.Queue, opts Options) *Store {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	s := &Store{
		queue:   queue,
		logger:  opts.Logger.WithPrefix("db"),
		jobs:    make(chan func(), opts.QueueSize),
		done:    make(chan struct{}),
		courses: make(map[string]int64),
		modes:   make(map[string]int64),
		styles:  make(map[string]int64),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

func (s *Store) run() {
	defer s.wg.Done()
	for {
		select {
		case job := <-s.jobs:
			job()
		case <-s.done:
			return
		}
	}
}

// Close stops the worker. Queued jobs that haven't started are dropped.
func (s *Store) Close() {
	if s.closed.Swap(true) {
		return
	}
	close(s.done)
	s.wg.Wait()
}

// IsReady reports whether the store accepts work
func (s *Store) IsReady() bool {
	return !s.closed.Load()
}

// IsMapSetUp reports whether SetupCourses has completed for a map
func (s *Store) IsMapSetUp() bool {
	return s.mapSet.Load()
}

// submit runs work on the worker. work returns the function to run on the
// simulation goroutine, or an error for onFailure.
func (s *Store) submit(work func() (func(), error), onFailure FailureFunc) {
	fail := func(err error) {
		if onFailure != nil {
			s.queue.Post(func() { onFailure(err) })
		}
	}
	if s.closed.Load() {
		fail(ErrClosed)
		return
	}
	job := func() {
		result, err := work()
		if err != nil {
			s.logger.Debug("operation failed", "err", err)
			fail(err)
			return
		}
		s.queue.Post(result)
	}
	select {
	case s.jobs <- job:
	default:
		s.logger.Warn("queue full, dropping operation")
		fail(ErrQueueFull)
	}
}

// idFor returns the ID of name in table, creating it on first use
func (s *Store) idFor(table map[string]int64, name string) int64 {
	key := strings.ToLower(name)
	if id, ok := table[key]; ok {
		return id
	}
	id := int64(len(table) + 1)
	table[key] = id
	return id
}

// SetupModes assigns database IDs to mode names
func (s *Store) SetupModes(names []string, onSuccess func(ids map[string]int64), onFailure FailureFunc) {
	s.setupNames(s.modes, names, onSuccess, onFailure)
}

// SetupStyles assigns database IDs to style names. Style IDs are bit
// positions in a run's style mask, so they start at 0.
func (s *Store) SetupStyles(names []string, onSuccess func(ids map[string]int64), onFailure FailureFunc) {
	s.setupNames(s.styles, names, func(ids map[string]int64) {
		for name := range ids {
			ids[name]--
		}
		if onSuccess != nil {
			onSuccess(ids)
		}
	}, onFailure)
}

func (s *Store) setupNames(table map[string]int64, names []string, onSuccess func(map[string]int64), onFailure FailureFunc) {
	names = append([]string(nil), names...)
	s.submit(func() (func(), error) {
		ids := make(map[string]int64, len(names))
		for _, name := range names {
			if name == "" {
				return nil, fmt.Errorf("failed to set up names: %w", ErrEmptyName)
			}
			ids[name] = s.idFor(table, name)
		}
		return func() {
			if onSuccess != nil {
				onSuccess(ids)
			}
		}, nil
	}, onFailure)
}

// SetupCourses registers the courses of mapName and returns their local
// IDs by course name
func (s *Store) SetupCourses(mapName string, courses []string, onSuccess func(ids map[string]int64), onFailure FailureFunc) {
	courses = append([]string(nil), courses...)
	s.submit(func() (func(), error) {
		if mapName == "" {
			return nil, fmt.Errorf("failed to set up courses: %w", ErrNoMap)
		}
		s.mapName = strings.ToLower(mapName)
		ids := make(map[string]int64, len(courses))
		for _, name := range courses {
			ids[name] = s.idFor(s.courses, s.mapName+"/"+name)
		}
		s.mapSet.Store(true)
		return func() {
			if onSuccess != nil {
				onSuccess(ids)
			}
		}, nil
	}, onFailure)
}

// SaveTime stores a finished run and ranks it against the course
// leaderboard of the same mode and styles
func (s *Store) SaveTime(t Time, onSuccess func(SaveTimeResult), onFailure FailureFunc) {
	s.submit(func() (func(), error) {
		if !s.mapSet.Load() {
			return nil, fmt.Errorf("failed to save time: %w", ErrNoMap)
		}
		if t.Time <= 0 || math.IsNaN(t.Time) {
			return nil, fmt.Errorf("failed to save time: invalid time %v", t.Time)
		}
		s.nextID++
		t.ID = s.nextID
		if t.Created.IsZero() {
			t.Created = time.Now()
		}
		s.times = append(s.times, t)

		res := s.rank(t)
		return func() {
			if onSuccess != nil {
				onSuccess(res)
			}
		}, nil
	}, onFailure)
}

func sameBoard(a, b Time) bool {
	return a.CourseID == b.CourseID && a.ModeID == b.ModeID && a.StyleIDs == b.StyleIDs
}

// rank computes the result of a just-inserted time
func (s *Store) rank(t Time) SaveTimeResult {
	var own []float64
	for _, other := range s.times {
		if sameBoard(other, t) && other.PlayerID == t.PlayerID {
			own = append(own, other.Time)
		}
	}
	sort.Float64s(own)

	res := SaveTimeResult{FirstTime: len(own) == 1}
	if !res.FirstTime {
		if math.Abs(own[0]-t.Time) < pbEpsilon {
			res.PBDiff = t.Time - own[1]
		} else {
			res.PBDiff = t.Time - own[0]
		}
	}

	bests := s.bestPerPlayer(func(o Time) bool { return sameBoard(o, t) })
	res.MaxRank = len(bests)
	res.Rank = 1
	for _, b := range bests {
		if b.Time < own[0] {
			res.Rank++
		}
	}
	return res
}

// bestPerPlayer returns each player's best matching time, fastest first
func (s *Store) bestPerPlayer(match func(Time) bool) []Time {
	best := make(map[uint64]Time)
	for _, t := range s.times {
		if !match(t) {
			continue
		}
		if cur, ok := best[t.PlayerID]; !ok || t.Time < cur.Time {
			best[t.PlayerID] = t
		}
	}
	out := make([]Time, 0, len(best))
	for _, t := range best {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Time != out[j].Time {
			return out[i].Time < out[j].Time
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// QueryPB returns a player's best time on one course. A player without a
// time gets ErrNotFound.
func (s *Store) QueryPB(playerID uint64, courseID, modeID int64, styleIDs uint64, onSuccess func(Time), onFailure FailureFunc) {
	s.submit(func() (func(), error) {
		bests := s.bestPerPlayer(func(t Time) bool {
			return t.PlayerID == playerID && t.CourseID == courseID && t.ModeID == modeID && t.StyleIDs == styleIDs
		})
		if len(bests) == 0 {
			return nil, ErrNotFound
		}
		pb := bests[0]
		return func() {
			if onSuccess != nil {
				onSuccess(pb)
			}
		}, nil
	}, onFailure)
}

// QueryAllPBs returns a player's unstyled best on every course of the map
func (s *Store) QueryAllPBs(playerID uint64, modeID int64, onSuccess func([]Time), onFailure FailureFunc) {
	s.submit(func() (func(), error) {
		var pbs []Time
		for _, courseID := range s.mapCourseIDs() {
			bests := s.bestPerPlayer(func(t Time) bool {
				return t.PlayerID == playerID && t.CourseID == courseID && t.ModeID == modeID && t.StyleIDs == 0
			})
			pbs = append(pbs, bests...)
		}
		return func() {
			if onSuccess != nil {
				onSuccess(pbs)
			}
		}, nil
	}, onFailure)
}

// QueryAllRecords returns the unstyled server record of every course and
// mode of the map
func (s *Store) QueryAllRecords(onSuccess func([]Time), onFailure FailureFunc) {
	s.submit(func() (func(), error) {
		var records []Time
		for _, courseID := range s.mapCourseIDs() {
			for _, modeID := range sortedIDs(s.modes) {
				bests := s.bestPerPlayer(func(t Time) bool {
					return t.CourseID == courseID && t.ModeID == modeID && t.StyleIDs == 0
				})
				if len(bests) > 0 {
					records = append(records, bests[0])
				}
			}
		}
		return func() {
			if onSuccess != nil {
				onSuccess(records)
			}
		}, nil
	}, onFailure)
}

// QueryRecords returns one page of a course leaderboard, one time per
// player
func (s *Store) QueryRecords(courseID, modeID int64, count, offset int, onSuccess func([]Time), onFailure FailureFunc) {
	s.submit(func() (func(), error) {
		bests := s.bestPerPlayer(func(t Time) bool {
			return t.CourseID == courseID && t.ModeID == modeID && t.StyleIDs == 0
		})
		if offset > len(bests) {
			offset = len(bests)
		}
		end := min(offset+count, len(bests))
		page := append([]Time(nil), bests[offset:end]...)
		return func() {
			if onSuccess != nil {
				onSuccess(page)
			}
		}, nil
	}, onFailure)
}

// mapCourseIDs returns the IDs of the current map's courses in order
func (s *Store) mapCourseIDs() []int64 {
	prefix := s.mapName + "/"
	var ids []int64
	for key, id := range s.courses {
		if strings.HasPrefix(key, prefix) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func sortedIDs(table map[string]int64) []int64 {
	ids := make([]int64, 0, len(table))
	for _, id := range table {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
