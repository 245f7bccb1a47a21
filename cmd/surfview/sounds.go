package main

import (
	"time"

	"github.com/younwookim/surftimer/internal/application/timer"
	"github.com/younwookim/surftimer/internal/infrastructure/audio"
)

// timerTones renders each timer sound as a short blip. Sounds that share a
// name share a tone.
var timerTones = map[string]audio.Tone{
	timer.SoundStart:      {Frequency: 880, Duration: 80 * time.Millisecond, Volume: 0.3},
	timer.SoundEnd:        {Frequency: 1320, Duration: 250 * time.Millisecond, Volume: 0.3},
	timer.SoundFalseEnd:   {Frequency: 220, Duration: 200 * time.Millisecond, Volume: 0.3},
	timer.SoundReachSplit: {Frequency: 990, Duration: 90 * time.Millisecond, Volume: 0.25},
	timer.SoundReachStage: {Frequency: 1175, Duration: 120 * time.Millisecond, Volume: 0.25},
	timer.SoundStop:       {Frequency: 330, Duration: 150 * time.Millisecond, Volume: 0.3},
	timer.SoundMissedTime: {Frequency: 262, Duration: 180 * time.Millisecond, Volume: 0.25},
	timer.SoundError:      {Frequency: 150, Duration: 120 * time.Millisecond, Volume: 0.3},
}
