// Package playing provides the top-down surf viewer scene.
package playing

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/younwookim/surftimer/internal/application/player"
	"github.com/younwookim/surftimer/internal/application/replay"
	"github.com/younwookim/surftimer/internal/application/scene"
	"github.com/younwookim/surftimer/internal/application/state"
	"github.com/younwookim/surftimer/internal/application/system"
	"github.com/younwookim/surftimer/internal/application/timer"
	"github.com/younwookim/surftimer/internal/domain/geom"
	"github.com/younwookim/surftimer/internal/domain/mapping"
	"github.com/younwookim/surftimer/internal/ecs"
)

// Colors for rendering
var (
	colorBG       = color.RGBA{26, 26, 46, 255}
	colorSolid    = color.RGBA{80, 80, 100, 255}
	colorPlayer   = color.RGBA{100, 200, 100, 255}
	colorHeading  = color.RGBA{255, 255, 255, 255}
	colorDisabled = color.RGBA{60, 60, 60, 80}
	colorTrigger  = color.RGBA{150, 150, 150, 80}
)

// zoneColors maps trigger types to their fill. Types not listed use
// colorTrigger.
var zoneColors = map[mapping.TriggerType]color.RGBA{
	mapping.TriggerZoneStart:        {50, 200, 80, 110},
	mapping.TriggerZoneBonusStart:   {50, 200, 80, 70},
	mapping.TriggerZoneEnd:          {220, 60, 60, 110},
	mapping.TriggerZoneBonusEnd:     {220, 60, 60, 70},
	mapping.TriggerZoneSplit:        {230, 200, 60, 90},
	mapping.TriggerZoneCheckpoint:   {60, 160, 230, 90},
	mapping.TriggerZoneStage:        {170, 90, 220, 90},
	mapping.TriggerModifier:         {90, 220, 220, 60},
	mapping.TriggerAntiBhop:         {240, 140, 40, 70},
	mapping.TriggerTeleport:         {240, 90, 200, 70},
	mapping.TriggerMultiBhop:        {240, 90, 200, 50},
	mapping.TriggerSingleBhop:       {240, 90, 200, 50},
	mapping.TriggerSequentialBhop:   {240, 90, 200, 50},
	mapping.TriggerPush:             {250, 250, 120, 60},
	mapping.TriggerResetCheckpoints: {120, 120, 240, 50},
	mapping.TriggerSingleBhopReset:  {120, 120, 240, 50},
}

// ZoneColor returns the fill used for a trigger type
func ZoneColor(t mapping.TriggerType) color.RGBA {
	if t == mapping.TriggerDisabled {
		return colorDisabled
	}
	if c, ok := zoneColors[t]; ok {
		return c
	}
	return colorTrigger
}

// Options configure a Playing scene
type Options struct {
	ScreenWidth  int
	ScreenHeight int
	// Zoom is screen pixels per world unit
	Zoom     float64
	TickRate int

	// RecordPath enables input recording when not empty
	RecordPath string
	// Replay drives the player instead of the keyboard when set
	Replay *replay.Replayer

	Chat   *ChatLog
	Logger *log.Logger
}

// Playing is the viewer scene: it feeds one local player's input into the
// player manager every tick and draws the map from above.
type Playing struct {
	manager     *player.Manager
	player      *player.Player
	world       *ecs.World
	inputSystem *system.InputSystem
	chat        *ChatLog
	logger      *log.Logger

	screenW int
	screenH int
	zoom    float64

	// Input playback
	replayer   *replay.Replayer
	replayDone bool

	// Input recording
	recorder       *Recorder
	recordFilename string
}

// New creates a new Playing scene for the local player p
func New(m *player.Manager, p *player.Player, opts Options) *Playing {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Chat == nil {
		opts.Chat = NewChatLog(DefaultChatLines)
	}
	if opts.Zoom <= 0 {
		opts.Zoom = 0.25
	}
	if opts.TickRate <= 0 {
		opts.TickRate = 64
	}

	s := &Playing{
		manager:        m,
		player:         p,
		world:          m.Catalog().World(),
		inputSystem:    system.NewInputSystem(p.Angles().Yaw),
		chat:           opts.Chat,
		logger:         opts.Logger.WithPrefix("viewer"),
		screenW:        opts.ScreenWidth,
		screenH:        opts.ScreenHeight,
		zoom:           opts.Zoom,
		replayer:       opts.Replay,
		recordFilename: opts.RecordPath,
	}

	if opts.RecordPath != "" {
		styles := make([]string, 0, p.StyleCount())
		for _, info := range p.StyleInfos() {
			styles = append(styles, info.ShortName)
		}
		s.recorder = NewRecorder(m.MapName(), p.ModeInfo().ShortName, styles, opts.TickRate)
		s.logger.Info("recording enabled", "path", opts.RecordPath)
	}
	return s
}

// Update runs one simulation tick (implements scene.Scene)
func (s *Playing) Update(_ float64) (scene.Scene, error) {
	// F5: Save recording manually
	if inpututil.IsKeyJustPressed(ebiten.KeyF5) && s.recorder != nil {
		s.saveRecording()
	}

	input, ok := s.nextInput()
	if !ok {
		return nil, nil
	}
	s.Step(input)
	return nil, nil // nil = stay on this scene
}

// nextInput reads the keyboard, or the next replayed tick
func (s *Playing) nextInput() (replay.Input, bool) {
	if s.replayer == nil {
		in := s.inputSystem.GetInput()
		return replay.Input{
			Command:     s.inputSystem.Command(in),
			Restart:     in.Restart,
			TogglePause: in.TogglePause,
		}, true
	}

	in, ok := s.replayer.GetInput()
	if !ok && !s.replayDone {
		s.replayDone = true
		s.logger.Info("replay finished", "ticks", s.replayer.TotalFrames())
	}
	return in, ok
}

// Step applies one tick of input to the local player and advances every
// player by a tick
func (s *Playing) Step(in replay.Input) {
	if s.recorder != nil {
		s.recorder.RecordFrame(in)
	}

	if in.Restart {
		if err := s.player.Restart(); err != nil {
			s.logger.Warn("restart failed", "err", err)
		}
	}
	if in.TogglePause {
		s.player.TogglePause()
	}

	s.manager.Tick(func(p *player.Player) system.Command {
		if p == s.player {
			return in.Command
		}
		return system.Command{Yaw: p.Angles().Yaw}
	})

	// Teleports may reorient the player, the view follows
	if s.replayer == nil {
		s.inputSystem.SetYaw(s.player.Angles().Yaw)
	}
}

// ReplayDone reports whether a replay ran out of frames
func (s *Playing) ReplayDone() bool {
	return s.replayDone
}

// saveRecording saves the current recording to file
func (s *Playing) saveRecording() {
	if s.recorder == nil {
		return
	}

	filename := s.recordFilename
	if filename == "" {
		filename = GenerateFilename()
	}

	if err := s.recorder.Save(filename); err != nil {
		s.logger.Error("failed to save recording", "err", err)
	} else {
		s.logger.Info("recording saved", "path", filename, "frames", s.recorder.FrameCount())
	}
}

// camera is the world point drawn at the screen centre
func (s *Playing) camera() geom.Vector {
	return s.player.Origin()
}

// toScreen projects a world point onto the screen, looking down the Z axis
// with +X to the right and +Y up
func (s *Playing) toScreen(cam, v geom.Vector) (float64, float64) {
	x := float64(s.screenW)/2 + (v.X-cam.X)*s.zoom
	y := float64(s.screenH)/2 - (v.Y-cam.Y)*s.zoom
	return x, y
}

func (s *Playing) drawBox(screen *ebiten.Image, cam geom.Vector, box geom.BBox, c color.Color) {
	x0, y0 := s.toScreen(cam, geom.Vec(box.Mins.X, box.Maxs.Y, 0))
	x1, y1 := s.toScreen(cam, geom.Vec(box.Maxs.X, box.Mins.Y, 0))
	if x1-x0 < 1 {
		x1 = x0 + 1
	}
	if y1-y0 < 1 {
		y1 = y0 + 1
	}
	ebitenutil.DrawRect(screen, x0, y0, x1-x0, y1-y0, c)
}

// Draw renders the map, the player and the HUD
func (s *Playing) Draw(screen *ebiten.Image) {
	screen.Fill(colorBG)

	cam := s.camera()
	s.drawSolids(screen, cam)
	s.drawTriggers(screen, cam)
	s.drawPlayers(screen, cam)

	s.drawHUD(screen)
	s.drawChat(screen)

	if s.player.Timer().Paused() {
		s.drawPauseOverlay(screen)
	}
}

func (s *Playing) drawSolids(screen *ebiten.Image, cam geom.Vector) {
	for _, id := range s.world.Entities() {
		if _, ok := s.world.IsSolid[id]; !ok {
			continue
		}
		box := s.world.Collision[id].AbsBox(s.world.Origin(id))
		s.drawBox(screen, cam, box, colorSolid)
	}
}

func (s *Playing) drawTriggers(screen *ebiten.Image, cam geom.Vector) {
	for _, t := range s.manager.Catalog().Triggers() {
		if t.Type == mapping.TriggerDestination {
			continue
		}
		box := s.world.Collision[t.Entity].AbsBox(s.world.Origin(t.Entity))
		s.drawBox(screen, cam, box, ZoneColor(t.Type))
	}
}

func (s *Playing) drawPlayers(screen *ebiten.Image, cam geom.Vector) {
	for _, p := range s.manager.Players() {
		if !p.Alive() {
			continue
		}
		origin := p.Origin()
		s.drawBox(screen, cam, p.Pawn().Bounds.Abs(origin), colorPlayer)

		// Heading
		x0, y0 := s.toScreen(cam, origin)
		x1, y1 := s.toScreen(cam, origin.Add(geom.Forward(p.Angles().Yaw).Scale(48)))
		ebitenutil.DrawLine(screen, x0, y0, x1, y1, colorHeading)
	}
}

// HUDLines returns the status lines drawn in the top left corner
func (s *Playing) HUDLines() []string {
	p := s.player
	t := p.Timer()

	lines := []string{
		"WASD: Move | Space: Jump | Ctrl: Duck | Arrows: Turn | R: Restart | P: Pause | F5: Save",
		fmt.Sprintf("Time: %s [%s]", timer.FormatTime(t.Time(), true), t.State()),
		fmt.Sprintf("Speed: %.0f", p.Velocity().Length2D()),
	}

	modeLine := "Mode: " + p.ModeInfo().ShortName
	if infos := p.StyleInfos(); len(infos) > 0 {
		names := make([]string, 0, len(infos))
		for _, info := range infos {
			names = append(names, info.ShortName)
		}
		modeLine += " | Styles: " + strings.Join(names, ",")
	}
	lines = append(lines, modeLine)

	if course := t.Course(); course != nil {
		lines = append(lines, fmt.Sprintf("Course: %s | Stage: %d | CP: %d", course.Name, t.CurrentStage(), t.ReachedCheckpoints()))
		if pb := t.LocalCachedPB(course, p.ModeInfo().ID); pb != nil {
			lines = append(lines, "PB: "+timer.FormatTime(pb.Time, true))
		}
	}
	lines = append(lines, "Compare: "+t.CompareType().String())

	if s.replayer != nil {
		lines = append(lines, fmt.Sprintf("Replay: %d/%d", s.replayer.CurrentFrame(), s.replayer.TotalFrames()))
	}
	if s.recorder != nil {
		lines = append(lines, fmt.Sprintf("REC %d", s.recorder.FrameCount()))
	}
	return lines
}

func (s *Playing) drawHUD(screen *ebiten.Image) {
	ebitenutil.DebugPrint(screen, strings.Join(s.HUDLines(), "\n"))
}

func (s *Playing) drawChat(screen *ebiten.Image) {
	lines := s.chat.Lines()
	y := s.screenH - 16*len(lines) - 4
	for _, line := range lines {
		ebitenutil.DebugPrintAt(screen, line, 4, y)
		y += 16
	}
}

func (s *Playing) drawPauseOverlay(screen *ebiten.Image) {
	// Semi-transparent overlay
	overlay := color.RGBA{0, 0, 0, 128}
	ebitenutil.DrawRect(screen, 0, 0, float64(s.screenW), float64(s.screenH), overlay)

	text := "PAUSED\n\nPress P to resume"
	ebitenutil.DebugPrintAt(screen, text, s.screenW/2-50, s.screenH/2-20)
}

// RunState returns where the local player's timer is
func (s *Playing) RunState() state.RunState {
	return s.player.Timer().State()
}

// OnEnter is called when entering this scene
func (s *Playing) OnEnter() {
	// Scene is already initialized in New
}

// OnExit is called when leaving this scene
func (s *Playing) OnExit() {
	s.saveRecording()
}

// Layout returns the scene's screen dimensions
func (s *Playing) Layout(outsideWidth, outsideHeight int) (int, int) {
	return s.screenW, s.screenH
}
