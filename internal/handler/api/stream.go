package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"CryptoDash/internal/usecase/dashboard"
	xlogger "CryptoDash/pkg/logger"
)

// ViewSource is the part of the orchestrator the stream needs.
type ViewSource interface {
	Dashboard() dashboard.View
	OnChange(fn func()) (cancel func())
}

type StreamConfig struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	MaxMessageSize int64
	AllowOrigins   []string
}

type StreamOption func(*StreamConfig)

// WithStreamTimeouts sets the write deadline and the pong wait. Pings go out
// at nine tenths of the pong wait.
func WithStreamTimeouts(write, pong time.Duration) StreamOption {
	return func(c *StreamConfig) {
		c.WriteWait = write
		c.PongWait = pong
		c.PingPeriod = pong * 9 / 10
	}
}

func WithStreamOrigins(origins ...string) StreamOption {
	return func(c *StreamConfig) { c.AllowOrigins = origins }
}

// StreamHub pushes a full dashboard snapshot to every websocket client
// whenever the dashboard changes. Bursts of changes collapse into one push,
// and a slow client only ever holds the newest snapshot.
type StreamHub struct {
	src      ViewSource
	log      *xlogger.Logger
	cfg      StreamConfig
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*streamClient]struct{}
	closed  bool

	wake     chan struct{}
	done     chan struct{}
	unsub    func()
	wg       sync.WaitGroup
	stopOnce sync.Once
}

type streamClient struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (cl *streamClient) close() {
	cl.once.Do(func() { close(cl.done) })
}

// offer replaces any undelivered snapshot with msg.
func (cl *streamClient) offer(msg []byte) {
	select {
	case cl.send <- msg:
		return
	default:
	}
	select {
	case <-cl.send:
	default:
	}
	select {
	case cl.send <- msg:
	default:
	}
}

func NewStreamHub(src ViewSource, logger *xlogger.Logger, opts ...StreamOption) *StreamHub {
	cfg := StreamConfig{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     54 * time.Second,
		MaxMessageSize: 4096,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if logger == nil {
		logger = xlogger.Nop()
	}

	h := &StreamHub{
		src:     src,
		log:     logger,
		cfg:     cfg,
		clients: make(map[*streamClient]struct{}),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	h.unsub = src.OnChange(h.signal)

	h.wg.Add(1)
	go h.broadcastLoop()
	return h
}

func (h *StreamHub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.cfg.AllowOrigins) == 0 {
		return true
	}
	for _, o := range h.cfg.AllowOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

func (h *StreamHub) signal() {
	select {
	case h.wake <- struct{}{}:
	default:
	}
}

// Clients reports the number of connected clients.
func (h *StreamHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Serve upgrades the request and blocks until the client goes away.
func (h *StreamHub) Serve(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log.Warn("stream upgrade failed", xlogger.Error(err))
		return nil
	}

	cl := &streamClient{conn: conn, send: make(chan []byte, 1), done: make(chan struct{})}
	if !h.register(cl) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(h.cfg.WriteWait))
		_ = conn.Close()
		return nil
	}
	h.log.Debug("stream client connected", xlogger.String("remote", c.RealIP()))

	// The broadcast loop delivers the first snapshot so it cannot overtake a
	// newer one.
	h.signal()

	go h.writePump(cl)
	h.readPump(cl)

	h.unregister(cl)
	h.log.Debug("stream client disconnected", xlogger.String("remote", c.RealIP()))
	return nil
}

// Close disconnects every client and stops listening for changes.
func (h *StreamHub) Close() {
	h.stopOnce.Do(func() {
		h.unsub()
		close(h.done)

		h.mu.Lock()
		h.closed = true
		for cl := range h.clients {
			cl.close()
		}
		h.mu.Unlock()
		h.wg.Wait()
	})
}

func (h *StreamHub) register(cl *streamClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[cl] = struct{}{}
	return true
}

func (h *StreamHub) unregister(cl *streamClient) {
	h.mu.Lock()
	delete(h.clients, cl)
	h.mu.Unlock()
	cl.close()
}

func (h *StreamHub) render() ([]byte, error) {
	msg, err := json.Marshal(h.src.Dashboard())
	if err != nil {
		h.log.Error("stream snapshot encode failed", xlogger.Error(err))
		return nil, err
	}
	return msg, nil
}

func (h *StreamHub) broadcastLoop() {
	defer h.wg.Done()
	for {
		select {
		case <-h.done:
			return
		case <-h.wake:
		}

		h.mu.Lock()
		n := len(h.clients)
		h.mu.Unlock()
		if n == 0 {
			continue
		}

		msg, err := h.render()
		if err != nil {
			continue
		}
		h.mu.Lock()
		for cl := range h.clients {
			cl.offer(msg)
		}
		h.mu.Unlock()
	}
}

func (h *StreamHub) readPump(cl *streamClient) {
	cl.conn.SetReadLimit(h.cfg.MaxMessageSize)
	_ = cl.conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	})

	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("stream read closed", xlogger.Error(err))
			}
			return
		}
	}
}

func (h *StreamHub) writePump(cl *streamClient) {
	ticker := time.NewTicker(h.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = cl.conn.Close()
	}()

	for {
		select {
		case <-cl.done:
			_ = cl.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(h.cfg.WriteWait))
			return
		case msg := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait))
			if err := cl.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				cl.close()
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				cl.close()
				return
			}
		}
	}
}
