package logging

import (
	"bytes"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want log.Level
	}{
		{"debug", log.DebugLevel},
		{"WARN", log.WarnLevel},
		{" error ", log.ErrorLevel},
		{"", log.InfoLevel},
		{"verbose", log.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "warn")

	logger.Info("hidden")
	assert.Empty(t, buf.String())

	logger.Warn("course invalid", "course", "main")
	out := buf.String()
	assert.Contains(t, out, Prefix)
	assert.Contains(t, out, "course invalid")
	assert.Contains(t, out, "course=main")
}

func TestNewSubPrefix(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "info").WithPrefix("timer").Info("started")
	assert.Contains(t, buf.String(), "timer")
}
