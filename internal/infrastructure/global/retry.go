package global

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
)

// backoff is a window a retry delay is picked from
type backoff struct {
	min, max time.Duration
}

func (b backoff) pick() time.Duration {
	if b.max <= b.min {
		return b.min
	}
	return b.min + rand.N(b.max-b.min)
}

var (
	reconnectBackoff   = backoff{time.Second, 5 * time.Second}
	rateLimitBackoff   = backoff{10 * time.Second, 30 * time.Second}
	serverErrorBackoff = backoff{10 * time.Minute, 30 * time.Minute}
)

// dialError is a failed websocket upgrade. status is 0 when no HTTP
// response arrived.
type dialError struct {
	status int
	err    error
}

func (e *dialError) Error() string {
	return fmt.Sprintf("failed to dial (status %d): %v", e.status, e.err)
}

func (e *dialError) Unwrap() error { return e.err }

// retryPolicy decides whether a lost connection is worth retrying and how
// long to wait first
func retryPolicy(err error, handshakeDone bool) (backoff, bool) {
	if err == nil || errors.Is(err, errProtocol) {
		return backoff{}, false
	}

	var de *dialError
	if errors.As(err, &de) {
		switch de.status {
		case http.StatusTooManyRequests:
			return rateLimitBackoff, true
		case http.StatusInternalServerError, http.StatusBadGateway:
			return serverErrorBackoff, true
		default:
			return backoff{}, false
		}
	}

	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway, websocket.StatusAbnormalClosure:
		return reconnectBackoff, true
	case websocket.StatusPolicyViolation:
		var ce websocket.CloseError
		if handshakeDone && errors.As(err, &ce) && strings.Contains(ce.Reason, "heartbeat") {
			return reconnectBackoff, true
		}
		return backoff{}, false
	case -1:
		// No close frame at all: the connection dropped
		return reconnectBackoff, true
	default:
		return backoff{}, false
	}
}
