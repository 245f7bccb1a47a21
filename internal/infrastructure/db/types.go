package db

import "time"

// Time is one stored run
type Time struct {
	ID         int64
	PlayerID   uint64
	PlayerName string
	CourseID   int64
	ModeID     int64
	// StyleIDs has bit n set for the style with database ID n
	StyleIDs uint64
	Time     float64
	Metadata string
	Created  time.Time
}

// SaveTimeResult describes where a saved run landed
type SaveTimeResult struct {
	FirstTime bool
	// PBDiff is the new time minus the previous PB, or minus the current PB
	// when the run was slower. Zero for a first time.
	PBDiff  float64
	Rank    int
	MaxRank int
}
