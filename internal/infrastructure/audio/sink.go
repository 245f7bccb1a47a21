// Package audio plays timer sounds as short synthesized tones.
package audio

import (
	"math"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
)

const sampleRate = beep.SampleRate(44100)

// Tone is a sound rendered as a sine blip
type Tone struct {
	Frequency float64
	Duration  time.Duration
	Volume    float64
}

// Sink maps sound names to tones and mixes them into the speaker
type Sink struct {
	mu          sync.Mutex
	mixer       *beep.Mixer
	tones       map[string]Tone
	initialized bool
}

// NewSink creates a sink that knows tones. Unknown names are ignored.
func NewSink(tones map[string]Tone) *Sink {
	t := make(map[string]Tone, len(tones))
	for name, tone := range tones {
		t[name] = tone
	}
	return &Sink{mixer: &beep.Mixer{}, tones: t}
}

// Init opens the speaker
func (s *Sink) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return nil
	}
	if err := speaker.Init(sampleRate, sampleRate.N(100*time.Millisecond)); err != nil {
		return err
	}
	speaker.Play(s.mixer)
	s.initialized = true
	return nil
}

// Close silences everything still playing
func (s *Sink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return
	}
	speaker.Lock()
	s.mixer.Clear()
	speaker.Unlock()
	s.initialized = false
}

// PlaySound starts the tone registered under name
func (s *Sink) PlaySound(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tone, ok := s.tones[name]
	if !s.initialized || !ok {
		return
	}
	speaker.Lock()
	s.mixer.Add(tone.Streamer())
	speaker.Unlock()
}

// Streamer renders the tone once
func (t Tone) Streamer() beep.Streamer {
	return beep.Take(sampleRate.N(t.Duration), &toneGenerator{tone: t})
}

type toneGenerator struct {
	tone Tone
	pos  int
}

func (g *toneGenerator) Stream(samples [][2]float64) (int, bool) {
	total := float64(sampleRate.N(g.tone.Duration))
	for i := range samples {
		t := float64(g.pos) / float64(sampleRate)
		// Linear fade out to avoid a click at the end
		envelope := 1.0
		if total > 0 {
			envelope = math.Max(0, 1-float64(g.pos)/total)
		}
		v := g.tone.Volume * envelope * math.Sin(2*math.Pi*g.tone.Frequency*t)
		samples[i][0] = v
		samples[i][1] = v
		g.pos++
	}
	return len(samples), true
}

func (g *toneGenerator) Err() error { return nil }

// Silent drops every sound
type Silent struct{}

// PlaySound does nothing
func (Silent) PlaySound(string) {}

// SoundSink plays a named sound
type SoundSink interface {
	PlaySound(name string)
}

// Open returns an initialized sink, or Silent when no audio device is
// available
func Open(tones map[string]Tone, logger *log.Logger) SoundSink {
	s := NewSink(tones)
	if err := s.Init(); err != nil {
		if logger != nil {
			logger.Warn("audio unavailable, sounds disabled", "err", err)
		}
		return Silent{}
	}
	return s
}
