package main

import (
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/younwookim/surftimer/internal/application/player"
	"github.com/younwookim/surftimer/internal/application/replay"
	"github.com/younwookim/surftimer/internal/application/scene/playing"
	"github.com/younwookim/surftimer/internal/application/system"
	"github.com/younwookim/surftimer/internal/application/timer"
	"github.com/younwookim/surftimer/internal/infrastructure/callback"
	"github.com/younwookim/surftimer/internal/infrastructure/config"
	"github.com/younwookim/surftimer/internal/infrastructure/db"
	"github.com/younwookim/surftimer/internal/infrastructure/global"
)

// sessionOptions are the command line choices a session is built from
type sessionOptions struct {
	Name       string
	AccountID  uint64
	RecordPath string
	Replay     *replay.Replayer
	Sounds     timer.SoundSink
}

// session is everything one viewer run owns
type session struct {
	queue   *callback.Queue
	store   *db.Store
	global  *global.Client
	sounds  timer.SoundSink
	manager *player.Manager
	player  *player.Player
	scene   *playing.Playing
	logger  *log.Logger
}

// newSession loads the map into a fresh world, starts the round and
// connects the local player
func newSession(cfg *config.Config, opts sessionOptions, logger *log.Logger) (*session, error) {
	server := cfg.Server
	queue := callback.NewQueue()
	store := db.NewStore(queue, db.Options{QueueSize: server.Database.QueueSize, Logger: logger})
	client := global.NewClient(global.Options{
		URL:    server.APIURL,
		Key:    server.APIKey,
		Map:    cfg.Map.Name,
		Queue:  queue,
		Logger: logger,
	})

	chat := playing.NewChatLog(playing.DefaultChatLines)
	world, ids := system.LoadWorld(cfg.Map)
	m := player.NewManager(player.Options{
		World:         world,
		Queue:         queue,
		Store:         store,
		Global:        client,
		Sounds:        opts.Sounds,
		Chat:          chat,
		Spawn:         system.SpawnPoint(cfg.Map),
		Map:           cfg.Map.Name,
		DefaultMode:   server.DefaultMode,
		DefaultStyles: server.DefaultStyles,
		Logger:        logger,
	})
	m.Catalog().SetErrorPrintInterval(server.ErrorPrintInterval)
	m.StartRound(ids)

	p, err := m.Connect(opts.Name, opts.AccountID, false)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to connect %s: %w", opts.Name, err)
	}

	s := &session{
		queue:   queue,
		store:   store,
		global:  client,
		sounds:  opts.Sounds,
		manager: m,
		player:  p,
		logger:  logger,
	}
	if opts.Replay != nil {
		if err := s.applyRecordedSetup(opts.Replay.Data()); err != nil {
			s.Close()
			return nil, err
		}
	}

	s.scene = playing.New(m, p, playing.Options{
		ScreenWidth:  server.Display.ScreenWidth,
		ScreenHeight: server.Display.ScreenHeight,
		Zoom:         server.Display.Zoom,
		TickRate:     server.TickRate,
		RecordPath:   opts.RecordPath,
		Replay:       opts.Replay,
		Chat:         chat,
		Logger:       logger,
	})
	return s, nil
}

// applyRecordedSetup puts the player in the mode and styles a replay was
// recorded with
func (s *session) applyRecordedSetup(data replay.ReplayData) error {
	if data.Mode != "" {
		if err := s.player.SetMode(data.Mode); err != nil {
			return fmt.Errorf("failed to apply replay mode: %w", err)
		}
	}
	s.player.ClearStyles()
	for _, name := range data.Styles {
		if err := s.player.AddStyle(name); err != nil {
			return fmt.Errorf("failed to apply replay style %s: %w", name, err)
		}
	}
	return nil
}

// Close disconnects the player and stops the store
func (s *session) Close() {
	if err := s.manager.Disconnect(s.player.ID()); err != nil {
		s.logger.Warn("disconnect failed", "err", err)
	}
	s.store.Close()
	if c, ok := s.sounds.(interface{ Close() }); ok {
		c.Close()
	}
}
