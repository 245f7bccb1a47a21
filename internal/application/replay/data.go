// Package replay stores per-tick player input so a session can be
// simulated again tick for tick.
package replay

// Version is written into every recording
const Version = "1.0"

// FrameInput records the input of a single tick
type FrameInput struct {
	F  int     `json:"f"`            // Tick number
	B  uint32  `json:"b,omitempty"`  // Buttons
	FM float64 `json:"fm,omitempty"` // ForwardMove
	SM float64 `json:"sm,omitempty"` // SideMove
	Y  float64 `json:"y"`            // Yaw
	R  bool    `json:"r,omitempty"`  // Restart
	P  bool    `json:"p,omitempty"`  // TogglePause
}

// ReplayData contains all data needed to replay a session
type ReplayData struct {
	Version   string       `json:"version"`
	Map       string       `json:"map"`
	Mode      string       `json:"mode"`
	Styles    []string     `json:"styles,omitempty"`
	TickRate  int          `json:"tickRate"`
	StartTime string       `json:"startTime"`
	Frames    []FrameInput `json:"frames"`
}
