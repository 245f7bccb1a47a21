// Command surfview runs the surf timer against a map in a top-down window.
// One local player is driven from the keyboard or from a recorded replay.
package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/hajimehoshi/ebiten/v2"
	"golang.org/x/sync/errgroup"

	"github.com/younwookim/surftimer/internal/application/game"
	"github.com/younwookim/surftimer/internal/application/replay"
	"github.com/younwookim/surftimer/internal/infrastructure/audio"
	"github.com/younwookim/surftimer/internal/infrastructure/config"
	"github.com/younwookim/surftimer/internal/infrastructure/global"
	"github.com/younwookim/surftimer/internal/infrastructure/logging"
)

func main() {
	recordFlag := flag.String("record", "", "Record input to file (e.g., -record run.json)")
	replayFlag := flag.String("replay", "", "Play back a recorded run instead of the keyboard")
	mapFlag := flag.String("map", "", "Map to load (defaults to the map in server.json)")
	configFlag := flag.String("config", "", "Config directory (defaults to the embedded configs)")
	nameFlag := flag.String("name", "player", "Player name")
	accountFlag := flag.Uint64("account", 1, "Player account ID")
	flag.Parse()

	logger := logging.New(os.Stderr, config.GetEnv(config.EnvLogLevel, "info"))

	loader, err := newLoader(*configFlag)
	if err != nil {
		logger.Fatal("failed to open configs", "err", err)
	}
	cfg, err := loader.LoadAll(*mapFlag)
	if err != nil {
		logger.Fatal("failed to load config", "err", err)
	}
	logger.SetLevel(logging.ParseLevel(cfg.Server.LogLevel))

	var replayer *replay.Replayer
	if *replayFlag != "" {
		data, err := replay.LoadReplay(*replayFlag)
		if err != nil {
			logger.Fatal("failed to load replay", "err", err)
		}
		replayer = replay.NewReplayer(*data)
		if err := replayer.CheckMap(cfg.Map.Name); err != nil {
			logger.Fatal("replay does not fit the map", "err", err)
		}
	}

	s, err := newSession(cfg, sessionOptions{
		Name:       *nameFlag,
		AccountID:  *accountFlag,
		RecordPath: *recordFlag,
		Replay:     replayer,
		Sounds:     audio.Open(timerTones, logger),
	}, logger)
	if err != nil {
		logger.Fatal("failed to start session", "err", err)
	}
	defer s.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	display := cfg.Server.Display
	g := game.New(s.scene, display.ScreenWidth, display.ScreenHeight, cfg.Server.TickRate)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return runGlobal(egCtx, s.global, logger)
	})
	eg.Go(func() error {
		<-egCtx.Done()
		g.Stop()
		return nil
	})

	ebiten.SetWindowSize(display.ScreenWidth, display.ScreenHeight)
	ebiten.SetWindowTitle("surftimer - " + cfg.Map.Name)
	ebiten.SetTPS(g.TickRate())

	logger.Info("starting", "map", cfg.Map.Name, "tickrate", g.TickRate(), "replay", replayer != nil)
	runErr := ebiten.RunGame(g)
	g.Close()
	cancel()
	if err := eg.Wait(); err != nil {
		logger.Error("background task failed", "err", err)
	}
	if runErr != nil {
		logger.Error("viewer stopped", "err", runErr)
	}
}

// newLoader reads configs from dir, or from the binary when dir is empty
func newLoader(dir string) (*config.Loader, error) {
	if dir != "" {
		return config.NewLoader(dir), nil
	}
	fsys, err := fs.Sub(configFS, "configs")
	if err != nil {
		return nil, err
	}
	return config.NewFSLoader(fsys, "configs"), nil
}

// runGlobal keeps the global connection up until ctx ends. Losing the API
// leaves the viewer running on local records.
func runGlobal(ctx context.Context, c *global.Client, logger *log.Logger) error {
	err := c.Run(ctx)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
	case errors.Is(err, global.ErrDisabled):
		logger.Info("global API disabled, records stay local")
	default:
		logger.Warn("global API gone, continuing offline", "err", err)
	}
	return nil
}
