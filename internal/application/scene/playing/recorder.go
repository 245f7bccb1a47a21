package playing

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/younwookim/surftimer/internal/application/replay"
)

// Recorder handles input recording for replay
type Recorder struct {
	data      replay.ReplayData
	recording bool
	frame     int
}

// NewRecorder creates a recorder for a session on mapName. The mode and
// styles are the ones the player starts with.
func NewRecorder(mapName, mode string, styles []string, tickRate int) *Recorder {
	return &Recorder{
		data: replay.ReplayData{
			Version:   replay.Version,
			Map:       mapName,
			Mode:      mode,
			Styles:    styles,
			TickRate:  tickRate,
			StartTime: time.Now().Format(time.RFC3339),
			Frames:    make([]replay.FrameInput, 0, 64*60), // ~1 minute at 64 ticks
		},
		recording: true,
	}
}

// RecordFrame records a single tick's input
func (r *Recorder) RecordFrame(input replay.Input) {
	if !r.recording {
		return
	}
	r.data.Frames = append(r.data.Frames, replay.Frame(r.frame, input))
	r.frame++
}

// Save writes the replay data to a file
func (r *Recorder) Save(filename string) error {
	if len(r.data.Frames) == 0 {
		return fmt.Errorf("no frames to save")
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() { _ = file.Close() }()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(r.data); err != nil {
		return fmt.Errorf("failed to encode replay: %w", err)
	}

	return nil
}

// Stop stops recording
func (r *Recorder) Stop() {
	r.recording = false
}

// IsRecording returns whether recording is active
func (r *Recorder) IsRecording() bool {
	return r.recording
}

// FrameCount returns the number of recorded frames
func (r *Recorder) FrameCount() int {
	return len(r.data.Frames)
}

// GetData returns the replay data
func (r *Recorder) GetData() replay.ReplayData {
	return r.data
}

// GenerateFilename creates a filename based on current time
func GenerateFilename() string {
	return fmt.Sprintf("replay_%s.json", time.Now().Format("20060102_150405"))
}
