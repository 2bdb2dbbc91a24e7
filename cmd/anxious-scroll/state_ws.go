package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ============================================================================
// Telemetry WebSocket: hub + per-client pumps + broadcaster
// ============================================================================
//
// This file implements:
//   - A Hub that tracks connected WebSocket clients
//   - Per-client write pumps so one slow client doesn't block others
//   - A broadcaster loop that reads transform samples and fans them out
//
// Constraints:
//   - The session goroutine owns the scroll state; telemetry only sees copies.
//   - The input path never waits on telemetry (samples are offered, not sent).
//   - Slow clients are disconnected if they can't keep up.
//
// Notes:
//   - Messages are JSON text frames with an envelope: {type, ts, data}.
//   - The initial message on connect is "state_init" with the stats snapshot.
//   - "scroll_sample" messages are coalesced (latest-wins) over a short window.
//
// ============================================================================

// wsSample is the JSON `data` payload for "scroll_sample".
type wsSample struct {
	Raw         int32    `json:"raw"`
	Out         int32    `json:"out"`
	ElapsedMS   int64    `json:"elapsed_ms"`
	Fallback    bool     `json:"fallback"`
	Velocity    *float64 `json:"velocity"` // null when saturated
	Saturated   bool     `json:"saturated"`
	Sensitivity float64  `json:"sensitivity"`
}

func toWSSample(s scrollSample) wsSample {
	return wsSample{
		Raw:         s.Raw,
		Out:         s.Out,
		ElapsedMS:   s.Elapsed.Milliseconds(),
		Fallback:    s.Fallback,
		Velocity:    finiteOrNil(s.Velocity),
		Saturated:   math.IsInf(s.Velocity, 1),
		Sensitivity: s.Sensitivity,
	}
}

// envelope is the wire format envelope for WS messages.
type envelope struct {
	Type string      `json:"type"`
	Ts   *time.Time  `json:"ts,omitempty"`
	Data interface{} `json:"data,omitempty"`
}

// ============================================================================
// Hub
// ============================================================================

type Hub struct {
	logger *slog.Logger

	// Buffered broadcast channel for already-serialized JSON frames.
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu      sync.Mutex
	clients map[*Client]struct{}

	sendBuf int
}

type HubConfig struct {
	// SendBuf is the per-client outbound queue size (default 32).
	SendBuf int

	// BroadcastBuf is the hub inbound broadcast queue size (default 128).
	BroadcastBuf int
}

// NewHub constructs a hub. Call Run(ctx) to start it.
func NewHub(logger *slog.Logger, cfg HubConfig) *Hub {
	sendBuf := cfg.SendBuf
	if sendBuf <= 0 {
		sendBuf = 32
	}
	bcastBuf := cfg.BroadcastBuf
	if bcastBuf <= 0 {
		bcastBuf = 128
	}

	return &Hub{
		logger:     logger,
		broadcast:  make(chan []byte, bcastBuf),
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		clients:    make(map[*Client]struct{}),
		sendBuf:    sendBuf,
	}
}

// Run processes hub events until ctx is canceled, then disconnects all clients.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("ws hub starting")

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("ws hub stopping (context canceled)")
			h.closeAllClients()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws client registered", "remote_addr", c.remoteAddr, "clients", n)

		case c := <-h.unregister:
			h.removeClient(c, "unregister")

		case msg := <-h.broadcast:
			// Collect slow clients first, remove them after unlocking.
			var slow []*Client

			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					slow = append(slow, c)
				}
			}
			h.mu.Unlock()

			for _, c := range slow {
				h.removeClient(c, "slow_client")
			}
		}
	}
}

// clientCount is used by /status.
func (h *Hub) clientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.conn != nil {
			_ = c.conn.Close()
		}
		safeCloseChan(c.send)
		delete(h.clients, c)
	}
}

func (h *Hub) removeClient(c *Client, reason string) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		if c.conn != nil {
			_ = c.conn.Close()
		}
		// Closing send makes writePump exit.
		safeCloseChan(c.send)

		h.logger.Info("ws client disconnected", "remote_addr", c.remoteAddr, "reason", reason, "clients", n)
	}
}

func safeCloseChan(ch chan []byte) {
	defer func() {
		_ = recover() // ignore "close of closed channel"
	}()
	close(ch)
}

// BroadcastBytes enqueues a pre-serialized JSON frame. It drops the message
// instead of blocking when the hub queue is full.
func (h *Hub) BroadcastBytes(msg []byte) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("ws hub broadcast queue full, dropping message", "bytes", len(msg))
	}
}

// ============================================================================
// Client
// ============================================================================

type Client struct {
	hub *Hub

	conn *websocket.Conn
	send chan []byte

	remoteAddr string
	logger     *slog.Logger
}

// NewClient creates a client with a buffered send channel.
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string, logger *slog.Logger) *Client {
	sendBuf := 32
	if hub != nil && hub.sendBuf > 0 {
		sendBuf = hub.sendBuf
	}
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBuf),
		remoteAddr: remoteAddr,
		logger:     logger,
	}
}

const (
	writeWait  = 5 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 20 * time.Second
)

// closeStatus extracts the websocket close code and text when possible.
func closeStatus(err error) (code int, text string, ok bool) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code, ce.Text, true
	}
	return 0, "", false
}

func (c *Client) logExit(pump, cause string, err error) {
	if errors.Is(err, websocket.ErrCloseSent) {
		return
	}
	if code, text, ok := closeStatus(err); ok {
		c.logger.Info("ws "+pump+" exiting (close)", "remote_addr", c.remoteAddr, "code", code, "reason", text)
		return
	}
	c.logger.Info("ws "+pump+" exiting ("+cause+")", "remote_addr", c.remoteAddr, "error", err)
}

// writePump writes queued messages and keepalive pings.
// It exits on write error or when send is closed.
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub is disconnecting us.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logExit("writePump", "write error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logExit("writePump", "ping error", err)
				return
			}
		}
	}
}

// readPump discards incoming messages so control frames are handled and
// disconnects are noticed. It unregisters the client on exit.
func (c *Client) readPump(ctx context.Context) {
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if ctx.Err() != nil {
			return
		}

		if _, _, err := c.conn.ReadMessage(); err != nil {
			c.logExit("readPump", "read error", err)
			if c.hub != nil {
				c.hub.unregister <- c
			}
			return
		}
	}
}

// ============================================================================
// HTTP handler
// ============================================================================

type Server struct {
	logger *slog.Logger

	hub *Hub

	// snapshot supplies the state_init payload.
	snapshot func() statsSnapshot
}

// NewServer constructs the telemetry server. Mount Handler on a router,
// start Hub().Run(ctx) and RunBroadcaster.
func NewServer(logger *slog.Logger, snapshot func() statsSnapshot, cfg HubConfig) *Server {
	return &Server{
		logger:   logger,
		hub:      NewHub(logger, cfg),
		snapshot: snapshot,
	}
}

func (s *Server) Hub() *Hub { return s.hub }

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleStateWS upgrades and registers a client with state_init queued first.
func (s *Server) handleStateWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "error", err)
		return
	}

	client := s.prepareClient(conn, r.RemoteAddr)

	// Once registered or pumping, send may be closed by the hub at any time,
	// so nothing below writes to it directly.
	s.hub.register <- client

	// The pumps outlive the handler; the request context is canceled when it returns.
	go client.writePump(context.Background())
	go client.readPump(context.Background())
}

// prepareClient builds a client and queues state_init on its empty send
// queue. The client is not yet known to the hub.
func (s *Server) prepareClient(conn *websocket.Conn, remoteAddr string) *Client {
	client := NewClient(s.hub, conn, remoteAddr, s.logger)
	if s.snapshot == nil {
		return client
	}

	now := time.Now().UTC()
	initMsg, err := json.Marshal(envelope{
		Type: "state_init",
		Ts:   &now,
		Data: s.snapshot(),
	})
	if err != nil {
		s.logger.Warn("ws state_init marshal failed", "error", err)
		return client
	}

	// The queue is fresh and buffered; this never blocks.
	client.send <- initMsg
	return client
}

// ============================================================================
// Broadcaster
// ============================================================================

// RunBroadcaster reads transform samples, coalesces them and broadcasts them
// to all hub clients. Intended to run as a single goroutine.
//
// A burst of samples yields at most one "scroll_sample" per
// wsSampleCoalesceWindow carrying the latest sample. The timer is not reset
// on each sample, so a continuous scroll still produces regular updates.
func RunBroadcaster(ctx context.Context, hub *Hub, src <-chan scrollSample, logger *slog.Logger) {
	if hub == nil || src == nil {
		return
	}

	var pending *scrollSample
	var timer *time.Timer
	var timerCh <-chan time.Time

	flush := func() {
		if pending == nil {
			return
		}

		ts := pending.At.UTC()
		if pending.At.IsZero() {
			ts = time.Now().UTC()
		}

		msg, err := json.Marshal(envelope{
			Type: "scroll_sample",
			Ts:   &ts,
			Data: toWSSample(*pending),
		})
		pending = nil
		if err != nil {
			logger.Warn("ws broadcaster marshal failed", "error", err, "type", "scroll_sample")
			return
		}
		hub.BroadcastBytes(msg)
	}

	stopTimer := func() {
		if timer != nil && !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer = nil
		timerCh = nil
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			stopTimer()
			return

		case <-timerCh:
			timer = nil
			timerCh = nil
			if pending != nil {
				flush()
				timer = time.NewTimer(wsSampleCoalesceWindow)
				timerCh = timer.C
			}

		case s, ok := <-src:
			if !ok {
				flush()
				stopTimer()
				logger.Info("ws broadcaster stopping (source ended)")
				return
			}

			smp := s
			pending = &smp
			if timer == nil {
				timer = time.NewTimer(wsSampleCoalesceWindow)
				timerCh = timer.C
			}
		}
	}
}
