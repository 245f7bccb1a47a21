package config

// ServerConfig is the root config for server.json
type ServerConfig struct {
	// Global API. An empty URL disables the global client.
	APIURL string `json:"apiUrl"`
	APIKey string `json:"apiKey"`

	Map           string   `json:"map"`
	DefaultMode   string   `json:"defaultMode"`
	DefaultStyles []string `json:"defaultStyles"`

	LogLevel string `json:"logLevel"`
	TickRate int    `json:"tickRate"`
	// Seconds between repeated mapping error prints
	ErrorPrintInterval float64 `json:"errorPrintInterval"`

	Database DatabaseConfig `json:"database"`
	Display  DisplayConfig  `json:"display"`
}

// DatabaseConfig configures the local record store
type DatabaseConfig struct {
	QueueSize int `json:"queueSize"`
}

// DisplayConfig configures the viewer window
type DisplayConfig struct {
	ScreenWidth  int     `json:"screenWidth"`
	ScreenHeight int     `json:"screenHeight"`
	Zoom         float64 `json:"zoom"` // pixels per unit
}

// DefaultServerConfig returns the values used for keys server.json omits
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Map:                "surf_demo",
		DefaultMode:        "64t",
		LogLevel:           "info",
		TickRate:           64,
		ErrorPrintInterval: 60,
		Database:           DatabaseConfig{QueueSize: 64},
		Display: DisplayConfig{
			ScreenWidth:  640,
			ScreenHeight: 480,
			Zoom:         0.25,
		},
	}
}
