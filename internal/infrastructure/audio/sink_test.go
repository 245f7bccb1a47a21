package audio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestToneStreamer(t *testing.T) {
	tone := Tone{Frequency: 440, Duration: 10 * time.Millisecond, Volume: 0.3}
	s := tone.Streamer()

	want := sampleRate.N(tone.Duration)
	buf := make([][2]float64, 128)
	total := 0
	for {
		n, ok := s.Stream(buf)
		for i := range n {
			assert.LessOrEqual(t, buf[i][0], tone.Volume)
			assert.GreaterOrEqual(t, buf[i][0], -tone.Volume)
			assert.Equal(t, buf[i][0], buf[i][1])
		}
		total += n
		if !ok {
			break
		}
	}
	assert.Equal(t, want, total)
	assert.NoError(t, s.Err())
}

func TestToneFadesOut(t *testing.T) {
	g := &toneGenerator{tone: Tone{Frequency: 100, Duration: time.Millisecond, Volume: 1}}
	samples := make([][2]float64, sampleRate.N(time.Millisecond))
	g.Stream(samples)
	assert.InDelta(t, 0, samples[len(samples)-1][0], 0.05)
}

func TestSinkIgnoresSoundsBeforeInit(t *testing.T) {
	s := NewSink(map[string]Tone{"start": {Frequency: 880, Duration: time.Millisecond, Volume: 0.2}})
	s.PlaySound("start")
	s.PlaySound("unknown")
	assert.Zero(t, s.mixer.Len())
	s.Close()
}

func TestSilent(t *testing.T) {
	var sink SoundSink = Silent{}
	assert.NotPanics(t, func() { sink.PlaySound("anything") })
}
