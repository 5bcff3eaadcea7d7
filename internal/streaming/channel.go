// Package streaming maintains the realtime channel to the home immer: a
// websocket connection with automatic reconnection, inbound update event
// dispatch, and the deferred-leave registration that lets the server retract
// presence when the connection drops.
package streaming

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MKhiriev/go-immers-client/internal/logger"
	"github.com/MKhiriev/go-immers-client/models"
)

// ErrNotConnected is returned when an outbound frame is attempted while the
// channel is down.
var ErrNotConnected = errors.New("realtime channel not connected")

// ErrAlreadyStarted is returned by Connect when the channel is already
// running.
var ErrAlreadyStarted = errors.New("realtime channel already started")

// Inbound event names.
const (
	eventConnect       = "connect"
	eventFriendsUpdate = "friends-update"
	eventInboxUpdate   = "inbox-update"
	eventBlockedUpdate = "blocked-update"
	eventEntered       = "entered"
)

// frame is the wire shape of every channel message.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// LeaveRegistration is the payload of the outbound entered event. The server
// delivers Leave to Outbox with Authorization if the connection drops without
// a clean exit. The zero value clears a previous registration.
type LeaveRegistration struct {
	Outbox        string          `json:"outbox,omitempty"`
	Authorization string          `json:"authorization,omitempty"`
	Leave         models.Activity `json:"leave,omitempty"`
}

// Handlers receives inbound collection-change events. Nil fields are skipped.
// Callbacks run on the channel's read goroutine and must not block.
type Handlers struct {
	FriendsUpdate func()
	InboxUpdate   func(activity models.Activity)
	BlockedUpdate func()
}

// Config carries the channel's endpoint and reconnect parameters.
type Config struct {
	// Origin is the http(s) origin of the home immer; the channel derives the
	// websocket URL from it.
	Origin string
	// Token is the bearer credential presented at dial time.
	Token string
	// ReconnectMin and ReconnectMax bound the backoff between dial attempts.
	ReconnectMin time.Duration
	ReconnectMax time.Duration
}

// Channel is the websocket realtime channel. Connect starts it; it keeps
// redialing with bounded backoff until Disconnect or context cancellation.
type Channel struct {
	cfg      Config
	dialer   *websocket.Dialer
	handlers Handlers
	logger   *logger.Logger

	mu              sync.Mutex
	conn            *websocket.Conn
	connected       bool
	connectedSignal chan struct{}
	connectHandlers map[string]func()
	cancel          context.CancelFunc
	done            chan struct{}
}

// NewChannel constructs a Channel delivering inbound events to handlers.
func NewChannel(cfg Config, handlers Handlers, log *logger.Logger) *Channel {
	if cfg.ReconnectMin <= 0 {
		cfg.ReconnectMin = time.Second
	}
	if cfg.ReconnectMax < cfg.ReconnectMin {
		cfg.ReconnectMax = 30 * time.Second
	}
	return &Channel{
		cfg:             cfg,
		dialer:          websocket.DefaultDialer,
		handlers:        handlers,
		logger:          log,
		connectedSignal: make(chan struct{}),
		connectHandlers: make(map[string]func()),
	}
}

// wsURL derives the websocket endpoint from the configured origin.
func (c *Channel) wsURL() string {
	origin := c.cfg.Origin
	switch {
	case strings.HasPrefix(origin, "https://"):
		origin = "wss://" + strings.TrimPrefix(origin, "https://")
	case strings.HasPrefix(origin, "http://"):
		origin = "ws://" + strings.TrimPrefix(origin, "http://")
	}
	return origin + "/streaming"
}

// Connect starts the dial loop. It returns immediately; use
// WaitUntilConnected to block until the first connection is up. ctx
// cancellation stops the loop permanently.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(runCtx, c.done)
	return nil
}

func (c *Channel) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	backoff := c.cfg.ReconnectMin

	for {
		if ctx.Err() != nil {
			return
		}

		header := http.Header{}
		if c.cfg.Token != "" {
			header.Set("Authorization", "Bearer "+c.cfg.Token)
		}
		conn, _, err := c.dialer.DialContext(ctx, c.wsURL(), header)
		if err != nil {
			c.logger.Warn().Err(err).Dur("retry_in", backoff).Msg("realtime dial failed")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			if backoff *= 2; backoff > c.cfg.ReconnectMax {
				backoff = c.cfg.ReconnectMax
			}
			continue
		}

		backoff = c.cfg.ReconnectMin
		c.setConnected(conn)
		c.fireConnect()

		c.readLoop(ctx, conn)
		c.setDisconnected(conn)
	}
}

func (c *Channel) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			if ctx.Err() == nil {
				c.logger.Warn().Err(err).Msg("realtime read failed, reconnecting")
			}
			return
		}
		c.dispatch(f)
	}
}

func (c *Channel) dispatch(f frame) {
	switch f.Event {
	case eventConnect:
		// Connection establishment already fired the connect notification.
	case eventFriendsUpdate:
		if c.handlers.FriendsUpdate != nil {
			c.handlers.FriendsUpdate()
		}
	case eventInboxUpdate:
		if c.handlers.InboxUpdate == nil {
			return
		}
		var activity models.Activity
		if err := json.Unmarshal(f.Data, &activity); err != nil {
			c.logger.Warn().Err(err).Msg("undecodable inbox update")
			return
		}
		c.handlers.InboxUpdate(activity)
	case eventBlockedUpdate:
		if c.handlers.BlockedUpdate != nil {
			c.handlers.BlockedUpdate()
		}
	default:
		c.logger.Debug().Str("event", f.Event).Msg("unhandled realtime event")
	}
}

func (c *Channel) setConnected(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = conn
	c.connected = true
	close(c.connectedSignal)
}

func (c *Channel) setDisconnected(conn *websocket.Conn) {
	_ = conn.Close()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == conn {
		c.conn = nil
		c.connected = false
		c.connectedSignal = make(chan struct{})
	}
}

// fireConnect runs every registered connect handler. Fired on every
// (re)connection, not only the first.
func (c *Channel) fireConnect() {
	c.mu.Lock()
	handlers := make([]func(), 0, len(c.connectHandlers))
	for _, fn := range c.connectHandlers {
		handlers = append(handlers, fn)
	}
	c.mu.Unlock()

	for _, fn := range handlers {
		fn()
	}
}

// OnConnect registers fn under id, replacing any previous handler with the
// same id. Keyed registration keeps re-registration idempotent.
func (c *Channel) OnConnect(id string, fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connectHandlers[id] = fn
}

// RemoveConnectHandler removes the handler registered under id, if any.
func (c *Channel) RemoveConnectHandler(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.connectHandlers, id)
}

// Connected reports whether the channel currently has a live connection.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// WaitUntilConnected blocks until the channel is connected or ctx is
// cancelled.
func (c *Channel) WaitUntilConnected(ctx context.Context) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return nil
	}
	signal := c.connectedSignal
	c.mu.Unlock()

	select {
	case <-signal:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PrepareLeaveOnDisconnect asks the server to deliver the given Leave if the
// connection drops without a clean exit.
func (c *Channel) PrepareLeaveOnDisconnect(reg LeaveRegistration) error {
	return c.send(eventEntered, reg)
}

// ClearLeaveOnDisconnect withdraws a previous registration. A disconnected
// channel has nothing to clear, so this is a no-op then.
func (c *Channel) ClearLeaveOnDisconnect() error {
	c.mu.Lock()
	connected := c.connected
	c.mu.Unlock()
	if !connected {
		return nil
	}
	return c.send(eventEntered, LeaveRegistration{})
}

func (c *Channel) send(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected || c.conn == nil {
		return ErrNotConnected
	}
	return c.conn.WriteJSON(frame{Event: event, Data: data})
}

// Disconnect stops the dial loop and closes any live connection. Safe to call
// repeatedly.
func (c *Channel) Disconnect() error {
	c.mu.Lock()
	cancel := c.cancel
	conn := c.conn
	done := c.done
	c.cancel = nil
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	if conn != nil {
		_ = conn.Close()
	}
	if done != nil {
		<-done
	}
	return nil
}
