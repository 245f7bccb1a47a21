package main

import (
	"context"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/younwookim/surftimer/internal/application/replay"
	"github.com/younwookim/surftimer/internal/application/system"
	"github.com/younwookim/surftimer/internal/application/timer"
	"github.com/younwookim/surftimer/internal/domain/entity"
	"github.com/younwookim/surftimer/internal/infrastructure/audio"
	"github.com/younwookim/surftimer/internal/infrastructure/config"
	"github.com/younwookim/surftimer/internal/infrastructure/global"
)

func loadEmbedded(t *testing.T) *config.Config {
	t.Helper()
	loader, err := newLoader("")
	require.NoError(t, err)
	cfg, err := loader.LoadAll("")
	require.NoError(t, err)
	return cfg
}

func TestEmbeddedConfigs(t *testing.T) {
	cfg := loadEmbedded(t)

	assert.Equal(t, "surf_demo", cfg.Map.Name)
	assert.Equal(t, 64, cfg.Server.TickRate)
	assert.Empty(t, cfg.Server.APIURL, "the bundled config runs offline")
}

func TestNewSession(t *testing.T) {
	cfg := loadEmbedded(t)
	logger := log.New(io.Discard)

	s, err := newSession(cfg, sessionOptions{
		Name:      "alice",
		AccountID: 1,
		Sounds:    audio.Silent{},
	}, logger)
	require.NoError(t, err)
	defer s.Close()

	require.NotNil(t, s.manager.Catalog().FirstCourse(), "demo map has a course")
	assert.Equal(t, "surf_demo", s.manager.MapName())
	assert.Len(t, s.manager.Players(), 1)

	for range 16 {
		s.scene.Step(replay.Input{})
	}
	start := s.player.Origin()
	walk := replay.Input{Command: system.Command{Buttons: entity.ButtonForward, ForwardMove: 1}}
	for range 64 {
		s.scene.Step(walk)
	}
	assert.Greater(t, s.player.Origin().X, start.X)
}

func TestNewSession_AppliesReplaySetup(t *testing.T) {
	cfg := loadEmbedded(t)

	data := replay.CreateTestReplayData(8, system.Command{})
	data.Map = cfg.Map.Name
	data.Styles = []string{"lg"}
	replayer := replay.NewReplayer(data)

	s, err := newSession(cfg, sessionOptions{
		Name:   "bob",
		Replay: replayer,
		Sounds: audio.Silent{},
	}, log.New(io.Discard))
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, "64t", s.player.ModeInfo().ShortName)
	require.Equal(t, 1, s.player.StyleCount())
	assert.Equal(t, "lg", s.player.StyleInfos()[0].ShortName)
}

func TestNewSession_UnknownReplayStyle(t *testing.T) {
	cfg := loadEmbedded(t)

	data := replay.CreateTestReplayData(1, system.Command{})
	data.Styles = []string{"nope"}

	_, err := newSession(cfg, sessionOptions{
		Name:   "carol",
		Replay: replay.NewReplayer(data),
		Sounds: audio.Silent{},
	}, log.New(io.Discard))
	assert.Error(t, err)
}

func TestRunGlobal_Offline(t *testing.T) {
	client := global.NewClient(global.Options{Logger: log.New(io.Discard)})

	err := runGlobal(context.Background(), client, log.New(io.Discard))
	assert.NoError(t, err, "a disabled client keeps the viewer running")
}

func TestTimerTones(t *testing.T) {
	for _, name := range []string{
		timer.SoundStart,
		timer.SoundEnd,
		timer.SoundMissedZone,
		timer.SoundReachCheckpoint,
		timer.SoundReachStage,
		timer.SoundStop,
		timer.SoundMissedTime,
		timer.SoundError,
	} {
		tone, ok := timerTones[name]
		if assert.True(t, ok, name) {
			assert.Positive(t, tone.Frequency, name)
			assert.True(t, tone.Duration > 0, name)
		}
	}
}
