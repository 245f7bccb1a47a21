package global

import "encoding/json"

// Event names of the global API
const (
	EventHello           = "hello"
	EventHelloAck        = "hello-ack"
	EventMapChange       = "map-change"
	EventPlayerJoin      = "player-join"
	EventPlayerLeave     = "player-leave"
	EventNewRecord       = "new-record"
	EventWantPB          = "want-personal-best"
	EventWantWorldRecord = "want-world-records-for-cache"
)

// Message is the envelope of every frame in both directions. Replies carry
// the ID of the message they answer.
type Message struct {
	ID    uint32          `json:"id"`
	Event string          `json:"event,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Player identifies a connected player
type Player struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}

// Hello opens the handshake
type Hello struct {
	PluginChecksum string   `json:"checksum"`
	Map            string   `json:"map"`
	Players        []Player `json:"players"`
}

// HelloAck completes the handshake
type HelloAck struct {
	// HeartbeatInterval is in seconds
	HeartbeatInterval float64     `json:"heartbeatInterval"`
	Map               *MapInfo    `json:"map"`
	Modes             []ModeInfo  `json:"modes"`
	Styles            []StyleInfo `json:"styles"`
}

// MapInfo is a map the API knows about
type MapInfo struct {
	ID      int64        `json:"id"`
	Name    string       `json:"name"`
	Courses []CourseInfo `json:"courses"`
}

// Course returns the course called name, or nil
func (m *MapInfo) Course(name string) *CourseInfo {
	for i := range m.Courses {
		if m.Courses[i].Name == name {
			return &m.Courses[i]
		}
	}
	return nil
}

// CourseInfo is a global course and its record filter
type CourseInfo struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	FilterID int64  `json:"filterId"`
}

// ModeInfo is a mode the API accepts
type ModeInfo struct {
	Name     string `json:"name"`
	Checksum string `json:"checksum"`
}

// StyleInfo is a style the API accepts
type StyleInfo struct {
	Name     string `json:"name"`
	Checksum string `json:"checksum"`
}

// MapChange announces the map the server switched to
type MapChange struct {
	Name string `json:"name"`
}

// MapChangeAck carries the map if it is global
type MapChangeAck struct {
	Map *MapInfo `json:"map"`
}

// PlayerJoinAck carries what the API knows about a joining player
type PlayerJoinAck struct {
	IsBanned bool `json:"isBanned"`
}

// NewRecord submits a finished run
type NewRecord struct {
	PlayerID     uint64      `json:"playerId"`
	FilterID     int64       `json:"filterId"`
	ModeChecksum string      `json:"modeChecksum"`
	Styles       []StyleInfo `json:"styles"`
	Time         float64     `json:"time"`
	Metadata     string      `json:"metadata,omitempty"`
}

// Leaderboard is a record's place on one leaderboard
type Leaderboard struct {
	Rank            int     `json:"rank"`
	Points          float64 `json:"points"`
	LeaderboardSize int     `json:"leaderboardSize"`
}

// NewRecordAck answers a submitted record
type NewRecordAck struct {
	RecordID     int64       `json:"recordId"`
	PlayerRating float64     `json:"playerRating"`
	Overall      Leaderboard `json:"overall"`
}

// WantPersonalBest asks for a player's global PB
type WantPersonalBest struct {
	PlayerID uint64   `json:"playerId"`
	Map      string   `json:"map"`
	Course   string   `json:"course"`
	Mode     string   `json:"mode"`
	Styles   []string `json:"styles,omitempty"`
}

// Record is a global record
type Record struct {
	ID       int64   `json:"id"`
	PlayerID uint64  `json:"playerId"`
	CourseID int64   `json:"courseId"`
	Mode     string  `json:"mode"`
	Time     float64 `json:"time"`
	Points   float64 `json:"points"`
}

// PersonalBest answers WantPersonalBest. Record is nil when the player has
// no time.
type PersonalBest struct {
	Record *Record `json:"record"`
}

// WantWorldRecords asks for the world records of a map
type WantWorldRecords struct {
	MapID int64 `json:"mapId"`
}

// WorldRecords answers WantWorldRecords
type WorldRecords struct {
	Records []Record `json:"records"`
}
