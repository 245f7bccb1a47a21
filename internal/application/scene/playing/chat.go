package playing

import (
	"regexp"
	"sync"

	"github.com/younwookim/surftimer/internal/application/player"
)

// DefaultChatLines is how many chat lines the HUD keeps
const DefaultChatLines = 6

var colorTag = regexp.MustCompile(`\{[a-z_]+\}`)

// StripColors removes {colour} tags from a chat line
func StripColors(msg string) string {
	return colorTag.ReplaceAllString(msg, "")
}

// ChatLog keeps the newest chat lines for the HUD. It is the viewer's
// player.ChatSink.
type ChatLog struct {
	mu    sync.Mutex
	lines []string
	limit int
}

// NewChatLog creates a log holding up to limit lines
func NewChatLog(limit int) *ChatLog {
	if limit <= 0 {
		limit = DefaultChatLines
	}
	return &ChatLog{limit: limit}
}

// Chat appends msg, dropping the oldest line when full
func (c *ChatLog) Chat(p *player.Player, msg string) {
	line := StripColors(msg)
	if p != nil {
		line = "[" + p.Name() + "] " + line
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, line)
	if len(c.lines) > c.limit {
		c.lines = c.lines[len(c.lines)-c.limit:]
	}
}

// Lines returns a copy of the kept lines, oldest first
func (c *ChatLog) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}
