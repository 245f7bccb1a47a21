// Package logging builds the structured loggers every component receives.
package logging

import (
	"io"
	"strings"

	"github.com/charmbracelet/log"
)

// Prefix tags every line the server writes
const Prefix = "surftimer"

// New returns a timestamped logger writing to w at level. Unknown levels
// fall back to info.
func New(w io.Writer, level string) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		Prefix:          Prefix,
		ReportTimestamp: true,
		Level:           ParseLevel(level),
	})
}

// ParseLevel maps debug|info|warn|error|fatal to a log level
func ParseLevel(s string) log.Level {
	level, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return log.InfoLevel
	}
	return level
}
