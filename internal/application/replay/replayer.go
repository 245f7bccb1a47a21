package replay

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/younwookim/surftimer/internal/application/system"
	"github.com/younwookim/surftimer/internal/domain/entity"
)

// ErrMapMismatch is returned when a recording was made on another map
var ErrMapMismatch = errors.New("replay was recorded on another map")

// Input is one tick of player input as the viewer applies it
type Input struct {
	Command     system.Command
	Restart     bool
	TogglePause bool
}

// Frame packs input into its recorded form
func Frame(tick int, in Input) FrameInput {
	return FrameInput{
		F:  tick,
		B:  uint32(in.Command.Buttons),
		FM: in.Command.ForwardMove,
		SM: in.Command.SideMove,
		Y:  in.Command.Yaw,
		R:  in.Restart,
		P:  in.TogglePause,
	}
}

// Input unpacks a recorded frame
func (f FrameInput) Input() Input {
	return Input{
		Command: system.Command{
			Buttons:     entity.Buttons(f.B),
			ForwardMove: f.FM,
			SideMove:    f.SM,
			Yaw:         f.Y,
		},
		Restart:     f.R,
		TogglePause: f.P,
	}
}

// Replayer handles input playback from recorded data
type Replayer struct {
	data  ReplayData
	frame int
}

// NewReplayer creates a new replayer from replay data
func NewReplayer(data ReplayData) *Replayer {
	return &Replayer{data: data}
}

// LoadReplay loads replay data from a file
func LoadReplay(filename string) (*ReplayData, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var data ReplayData
	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode replay: %w", err)
	}

	return &data, nil
}

// GetInput returns the input for the current tick and advances
func (r *Replayer) GetInput() (Input, bool) {
	if r.frame >= len(r.data.Frames) {
		return Input{}, false
	}
	fi := r.data.Frames[r.frame]
	r.frame++
	return fi.Input(), true
}

// CheckMap fails when the recording belongs to another map
func (r *Replayer) CheckMap(name string) error {
	if r.data.Map != "" && r.data.Map != name {
		return fmt.Errorf("%w: recorded on %s, running %s", ErrMapMismatch, r.data.Map, name)
	}
	return nil
}

// Data returns the replayed recording
func (r *Replayer) Data() ReplayData { return r.data }

// CurrentFrame returns the current frame number
func (r *Replayer) CurrentFrame() int { return r.frame }

// TotalFrames returns the total number of frames
func (r *Replayer) TotalFrames() int { return len(r.data.Frames) }

// Done reports whether every frame was played
func (r *Replayer) Done() bool { return r.frame >= len(r.data.Frames) }

// Reset resets the replayer to the beginning
func (r *Replayer) Reset() {
	r.frame = 0
}

// CreateTestReplayData repeats cmd for the given number of ticks
func CreateTestReplayData(frames int, cmd system.Command) ReplayData {
	data := ReplayData{
		Version:   Version,
		Map:       "test",
		Mode:      "64t",
		TickRate:  64,
		StartTime: time.Now().Format(time.RFC3339),
		Frames:    make([]FrameInput, frames),
	}
	for i := range frames {
		data.Frames[i] = Frame(i, Input{Command: cmd})
	}
	return data
}
