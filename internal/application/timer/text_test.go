package timer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatTime(t *testing.T) {
	tests := []struct {
		in      float64
		precise bool
		want    string
	}{
		{0, true, "00:00.000"},
		{1.5, true, "00:01.500"},
		{61.25, false, "1:01"},
		{3599.9994, true, "59:59.999"},
		{3723.004, true, "1:02:03.004"},
		{3723.004, false, "1:02:03"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatTime(tt.in, tt.precise), "FormatTime(%v, %v)", tt.in, tt.precise)
	}
	assert.Equal(t, "+00:01.250", FormatDiffTime(1.25, true))
	assert.Equal(t, "-00:00.500", FormatDiffTime(-0.5, true))
}

func TestSanitizeMessage(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		// Braces go, so the tag name is left as plain text
		{"hello {red}red\x07 world\x7f", "hello redred world"},
		{"{default}", "default"},
		{"tab\there\nnewline", "tabherenewline"},
		{"gg wp ✓", "gg wp ✓"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeMessage(tt.in), "SanitizeMessage(%q)", tt.in)
	}
}

func TestParseCompareType(t *testing.T) {
	tests := []struct {
		in   string
		want CompareType
		ok   bool
	}{
		{"off", CompareNone, true},
		{" SPB ", CompareSPB, true},
		{"gpb", CompareGPB, true},
		{"wr", CompareWR, true},
		{"pb", CompareGPB, true},
		{"bogus", CompareNone, false},
	}
	for _, tt := range tests {
		got, ok := ParseCompareType(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		if ok {
			assert.Equal(t, tt.want, got, tt.in)
		}
	}
	assert.Equal(t, "Unknown", CompareType(99).String())
}

func TestPBKey(t *testing.T) {
	k := NewPBKey(7, 3)
	assert.Equal(t, uint32(7), k.ModeID())
	assert.Equal(t, uint32(3), k.CourseGUID())
	assert.NotEqual(t, k, NewPBKey(3, 7))
}
