// Package global is the websocket client of the global record API. The
// connection lives on its own goroutines; replies are handed to the
// simulation through a callback queue.
package global

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/younwookim/surftimer/internal/infrastructure/callback"
)

const (
	authPath         = "auth/cs2"
	heartbeatFactor  = 0.8
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 5 * time.Second
	sendBufferSize   = 64
)

var (
	ErrNotConnected   = errors.New("not connected to the global API")
	ErrDisabled       = errors.New("global API is disabled")
	ErrInvalidURL     = errors.New("API URL must start with http")
	ErrSendBufferFull = errors.New("send buffer full")
	errProtocol       = errors.New("protocol error")
)

// Options configure a Client
type Options struct {
	URL string
	Key string
	// Map is the map announced in the handshake
	Map string
	// Checksum identifies the server build
	Checksum   string
	Queue      *callback.Queue
	Logger     *log.Logger
	HTTPClient *http.Client
}

// Client is the connection to the global API
type Client struct {
	url    string
	header http.Header
	opts   Options
	queue  *callback.Queue
	logger *log.Logger

	state atomic.Int32

	mu         sync.Mutex
	nextID     uint32
	callbacks  map[uint32]func(json.RawMessage)
	pending    [][]byte
	out        chan []byte
	players    map[uint64]Player
	currentMap *MapInfo
	modes      []ModeInfo
	styles     []StyleInfo
}

// NormalizeURL turns an http(s) API URL into the websocket URL of the
// server auth endpoint
func NormalizeURL(raw string) (string, error) {
	if !strings.HasPrefix(raw, "http") {
		return "", ErrInvalidURL
	}
	u := "ws" + raw[len("http"):]
	if !strings.HasSuffix(u, "/"+authPath) {
		if !strings.HasSuffix(u, "/") {
			u += "/"
		}
		u += authPath
	}
	return u, nil
}

// NewClient creates a client. A client without a usable URL or key starts
// out disconnected and stays that way.
func NewClient(opts Options) *Client {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Queue == nil {
		opts.Queue = callback.NewQueue()
	}
	c := &Client{
		opts:      opts,
		queue:     opts.Queue,
		logger:    opts.Logger.WithPrefix("global"),
		callbacks: make(map[uint32]func(json.RawMessage)),
		players:   make(map[uint64]Player),
	}

	switch {
	case opts.URL == "":
		c.logger.Info("apiUrl is empty, global client disabled")
		c.setState(StateDisconnected)
		return c
	case opts.Key == "":
		c.logger.Warn("apiKey is empty, global client disabled")
		c.setState(StateDisconnected)
		return c
	}
	u, err := NormalizeURL(opts.URL)
	if err != nil {
		c.logger.Warn("apiUrl is invalid, global client disabled", "url", opts.URL, "err", err)
		c.setState(StateDisconnected)
		return c
	}
	c.url = u
	c.header = http.Header{"Authorization": []string{"Bearer " + opts.Key}}
	c.setState(StateInitialized)
	return c
}

func (c *Client) setState(s State) { c.state.Store(int32(s)) }

// State returns the connection state
func (c *Client) State() State { return State(c.state.Load()) }

// IsAvailable reports whether requests can be sent right now
func (c *Client) IsAvailable() bool { return c.State() == StateHandshakeCompleted }

// MayBecomeAvailable reports whether the client hasn't given up yet
func (c *Client) MayBecomeAvailable() bool { return c.State() != StateDisconnected }

// CurrentMap returns the current map if the API knows it as global
func (c *Client) CurrentMap() *MapInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentMap
}

// Modes returns the modes the API accepted in the handshake
func (c *Client) Modes() []ModeInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ModeInfo(nil), c.modes...)
}

// Styles returns the styles the API accepted in the handshake
func (c *Client) Styles() []StyleInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]StyleInfo(nil), c.styles...)
}

// Run keeps the connection up until ctx is done or the API refuses us for
// good. Lost connections are retried per retryPolicy.
func (c *Client) Run(ctx context.Context) error {
	if c.State() == StateDisconnected {
		return ErrDisabled
	}
	defer c.shutdown()

	for {
		handshakeDone, err := c.connect(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		wait, retry := retryPolicy(err, handshakeDone)
		if !retry {
			c.logger.Error("disconnected from the global API", "err", err)
			return fmt.Errorf("failed to stay connected: %w", err)
		}

		c.setState(StateDisconnectedButWorthRetrying)
		delay := wait.pick()
		c.logger.Warn("connection lost, retrying", "err", err, "delay", delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (c *Client) shutdown() {
	c.setState(StateDisconnected)
	c.mu.Lock()
	c.pending = nil
	clear(c.callbacks)
	c.mu.Unlock()
}

// connect runs one connection until it fails. handshakeDone reports
// whether it got past the handshake.
func (c *Client) connect(ctx context.Context) (handshakeDone bool, err error) {
	conn, resp, err := websocket.Dial(ctx, c.url, &websocket.DialOptions{
		HTTPClient: c.opts.HTTPClient,
		HTTPHeader: c.header,
	})
	if err != nil {
		de := &dialError{err: err}
		if resp != nil {
			de.status = resp.StatusCode
		}
		return false, de
	}
	defer conn.CloseNow()

	c.setState(StateConnected)
	c.logger.Info("connection established")

	interval, err := c.handshake(ctx, conn)
	if err != nil {
		return false, err
	}

	out := make(chan []byte, sendBufferSize)
	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	c.out = out
	c.mu.Unlock()
	defer func() {
		// Replies to anything sent on this connection can't arrive anymore
		c.mu.Lock()
		c.out = nil
		dropped := len(c.callbacks)
		clear(c.callbacks)
		c.mu.Unlock()
		if dropped > 0 {
			c.logger.Debug("dropped unanswered requests", "count", dropped)
		}
	}()
	c.setState(StateHandshakeCompleted)
	c.logger.Info("completed handshake", "heartbeat", interval, "queued", len(pending))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.readLoop(gctx, conn) })
	g.Go(func() error { return c.writeLoop(gctx, conn, pending, out) })
	if interval > 0 {
		g.Go(func() error { return c.heartbeat(gctx, conn, interval) })
	}
	return true, g.Wait()
}

// handshake sends hello and waits for hello-ack. It returns the heartbeat
// interval to use.
func (c *Client) handshake(ctx context.Context, conn *websocket.Conn) (time.Duration, error) {
	hctx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()

	c.mu.Lock()
	hello := Hello{PluginChecksum: c.opts.Checksum, Map: c.opts.Map}
	for _, p := range c.players {
		hello.Players = append(hello.Players, p)
	}
	c.mu.Unlock()

	frame, err := c.frame(EventHello, hello)
	if err != nil {
		return 0, err
	}
	if err := conn.Write(hctx, websocket.MessageText, frame); err != nil {
		return 0, fmt.Errorf("failed to send hello: %w", err)
	}
	c.setState(StateHandshakeInitiated)

	_, data, err := conn.Read(hctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read hello-ack: %w", err)
	}
	var msg Message
	var ack HelloAck
	if err := json.Unmarshal(data, &msg); err != nil || msg.Event != EventHelloAck {
		return 0, fmt.Errorf("failed to decode hello-ack: %w", errProtocol)
	}
	if err := json.Unmarshal(msg.Data, &ack); err != nil {
		return 0, fmt.Errorf("failed to decode hello-ack: %w", errors.Join(errProtocol, err))
	}

	c.mu.Lock()
	c.currentMap = ack.Map
	c.modes = ack.Modes
	c.styles = ack.Styles
	c.mu.Unlock()

	return time.Duration(ack.HeartbeatInterval * heartbeatFactor * float64(time.Second)), nil
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("message is not valid JSON", "err", err)
			continue
		}
		if msg.ID == 0 {
			c.logger.Debug("ignoring message without ID", "event", msg.Event)
			continue
		}

		c.mu.Lock()
		cb, ok := c.callbacks[msg.ID]
		delete(c.callbacks, msg.ID)
		c.mu.Unlock()
		if ok {
			c.queue.Post(func() { cb(msg.Data) })
		}
	}
}

func (c *Client) writeLoop(ctx context.Context, conn *websocket.Conn, pending [][]byte, out <-chan []byte) error {
	write := func(frame []byte) error {
		wctx, cancel := context.WithTimeout(ctx, writeTimeout)
		defer cancel()
		return conn.Write(wctx, websocket.MessageText, frame)
	}
	for _, frame := range pending {
		if err := write(frame); err != nil {
			return err
		}
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case frame := <-out:
			if err := write(frame); err != nil {
				return err
			}
		}
	}
}

func (c *Client) heartbeat(ctx context.Context, conn *websocket.Conn, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, interval)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				return fmt.Errorf("failed to send heartbeat: %w", err)
			}
			c.logger.Debug("sent heartbeat", "interval", interval)
		}
	}
}

// frame encodes one outgoing message. Callers must not hold c.mu.
func (c *Client) frame(event string, data any) ([]byte, error) {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.mu.Unlock()
	return encode(id, event, data)
}

func encode(id uint32, event string, data any) ([]byte, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", event, err)
	}
	frame, err := json.Marshal(Message{ID: id, Event: event, Data: payload})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", event, err)
	}
	return frame, nil
}

// Send sends an event. cb, if non-nil, runs on the queue with the reply.
// Before the handshake completes the event is held back and sent once it
// does.
func (c *Client) Send(event string, data any, cb func(json.RawMessage)) error {
	return c.send(event, data, cb, true)
}

func (c *Client) send(event string, data any, cb func(json.RawMessage), holdUntilReady bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID
	frame, err := encode(id, event, data)
	if err != nil {
		return err
	}

	switch {
	case c.out != nil:
		select {
		case c.out <- frame:
		default:
			c.logger.Warn("send buffer full, dropping message", "event", event)
			return ErrSendBufferFull
		}
	case holdUntilReady && c.State() != StateDisconnected:
		c.pending = append(c.pending, frame)
	default:
		return ErrNotConnected
	}
	if cb != nil {
		c.callbacks[id] = cb
	}
	return nil
}

// request sends an event and decodes the reply into T before calling cb
func request[T any](c *Client, event string, data any, cb func(T), holdUntilReady bool) error {
	var raw func(json.RawMessage)
	if cb != nil {
		raw = func(data json.RawMessage) {
			var reply T
			if err := json.Unmarshal(data, &reply); err != nil {
				c.logger.Warn("failed to decode reply", "event", event, "err", err)
				return
			}
			cb(reply)
		}
	}
	return c.send(event, data, raw, holdUntilReady)
}
