package wsserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeDeadline = 5 * time.Second
	// readDeadline allows about three missed pings before the client is
	// considered gone.
	readDeadline = 90 * time.Second
	pingInterval = 30 * time.Second
	// Page events are small; anything larger is malformed.
	maxReadMessageSize = 8 * 1024
)

var wsUpgrader = websocket.Upgrader{
	// The server binds to loopback only.
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 16 * 1024,
}

// HubOptions configures the preview server.
type HubOptions struct {
	// Addr is the listen address. "127.0.0.1:0" picks a free port.
	Addr string
	// Assets serves the page at "/". Nil serves only /ws.
	Assets http.Handler
	// OnMessage receives each valid page event on the connection's read
	// goroutine, so calls are serialized per connection.
	OnMessage func(PageMessage)
	// OnConnect runs after a client connection becomes current.
	OnConnect func()
}

// Hub serves one browser client. A new connection replaces the previous
// one so a page reload keeps working.
//
// Lock ordering: writeMu -> mu.
type Hub struct {
	opts HubOptions

	mu   sync.RWMutex
	conn *websocket.Conn

	// gorilla/websocket allows one concurrent writer.
	writeMu sync.Mutex

	listener net.Listener
	server   *http.Server
	baseURL  string

	closeOnce sync.Once
}

// NewHub creates a Hub. It does not listen until Start.
func NewHub(opts HubOptions) *Hub {
	if opts.Addr == "" {
		opts.Addr = "127.0.0.1:0"
	}
	return &Hub{opts: opts}
}

// Start listens on the configured address and serves in the background.
// ctx becomes the base context of every request.
func (h *Hub) Start(ctx context.Context) error {
	if h.server != nil {
		return fmt.Errorf("wsserver: already started")
	}

	ln, err := net.Listen("tcp", h.opts.Addr)
	if err != nil {
		return fmt.Errorf("wsserver: listen: %w", err)
	}
	h.listener = ln
	h.baseURL = "127.0.0.1:" + fmt.Sprint(ln.Addr().(*net.TCPAddr).Port)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.handleWS)
	if h.opts.Assets != nil {
		mux.Handle("/", h.opts.Assets)
	}

	h.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if serveErr := h.server.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("[DEBUG-WS] server error", "error", serveErr)
		}
	}()

	slog.Info("[DEBUG-WS] preview server started", "url", h.PageURL())
	return nil
}

// Stop closes the client connection and shuts the server down. It is
// idempotent; a stopped Hub cannot be restarted.
func (h *Hub) Stop() error {
	var stopErr error
	h.closeOnce.Do(func() {
		h.mu.Lock()
		conn := h.conn
		h.conn = nil
		h.mu.Unlock()

		if conn != nil {
			h.closeConn(conn, "stop")
		}

		if h.server != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := h.server.Shutdown(shutdownCtx); err != nil {
				stopErr = fmt.Errorf("wsserver: shutdown: %w", err)
			}
		}
		slog.Info("[DEBUG-WS] preview server stopped")
	})
	return stopErr
}

// URL returns the WebSocket endpoint, or "" before Start.
func (h *Hub) URL() string {
	if h.baseURL == "" {
		return ""
	}
	return "ws://" + h.baseURL + "/ws"
}

// PageURL returns the page address, or "" before Start.
func (h *Hub) PageURL() string {
	if h.baseURL == "" {
		return ""
	}
	return "http://" + h.baseURL + "/"
}

// HasActiveConnection reports whether a client is connected.
func (h *Hub) HasActiveConnection() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.conn != nil
}

// SendView pushes a rendered view to the client. Without a client the call
// is a no-op. A failed write drops the connection.
func (h *Hub) SendView(view any) {
	h.mu.RLock()
	conn := h.conn
	h.mu.RUnlock()
	if conn == nil {
		slog.Debug("[DEBUG-WS] view skipped: no connection")
		return
	}

	payload, err := EncodeView(view)
	if err != nil {
		slog.Warn("[DEBUG-WS] failed to encode view", "error", err)
		return
	}
	if err := h.write(conn, websocket.TextMessage, payload); err != nil {
		slog.Warn("[DEBUG-WS] view write failed, closing connection", "error", err)
		h.drop(conn, "write error in SendView")
	}
}

func (h *Hub) write(conn *websocket.Conn, messageType int, payload []byte) error {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	if err := conn.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	err := conn.WriteMessage(messageType, payload)
	if clearErr := conn.SetWriteDeadline(time.Time{}); clearErr != nil && err == nil {
		slog.Debug("[DEBUG-WS] clear write deadline failed (non-fatal)", "error", clearErr)
	}
	return err
}

// clearIfCurrent forgets conn unless a newer connection replaced it.
func (h *Hub) clearIfCurrent(conn *websocket.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conn != conn {
		return false
	}
	h.conn = nil
	return true
}

func (h *Hub) drop(conn *websocket.Conn, reason string) {
	h.clearIfCurrent(conn)
	h.closeConn(conn, reason)
}

func (h *Hub) closeConn(conn *websocket.Conn, reason string) {
	if err := conn.Close(); err != nil {
		slog.Debug("[DEBUG-WS] connection close", "reason", reason, "error", err)
	}
}

func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("[DEBUG-WS] upgrade failed", "error", err)
		return
	}
	conn.SetReadLimit(maxReadMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(readDeadline)); err != nil {
		slog.Warn("[DEBUG-WS] SetReadDeadline failed on new connection", "error", err)
		h.closeConn(conn, "initial SetReadDeadline failure")
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	h.mu.Lock()
	oldConn := h.conn
	h.conn = conn
	h.mu.Unlock()
	if oldConn != nil {
		h.closeConn(oldConn, "replaced by new connection")
	}
	slog.Info("[DEBUG-WS] client connected", "remoteAddr", conn.RemoteAddr())

	pingDone := make(chan struct{})
	go h.pingLoop(conn, pingDone)

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("[DEBUG-PANIC] wsserver handleWS recovered",
				"panic", rec,
				"stack", string(debug.Stack()),
			)
		}
		close(pingDone)
		h.drop(conn, "read pump exit")
		slog.Info("[DEBUG-WS] client disconnected")
	}()

	if h.opts.OnConnect != nil {
		h.opts.OnConnect()
	}

	for {
		msgType, raw, readErr := conn.ReadMessage()
		if readErr != nil {
			if websocket.IsUnexpectedCloseError(readErr, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("[DEBUG-WS] read error", "error", readErr)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		msg, err := DecodePageMessage(raw)
		if err != nil {
			slog.Debug("[DEBUG-WS] invalid page message", "error", err)
			h.sendError(conn, err.Error())
			continue
		}
		if !h.isCurrent(conn) {
			slog.Debug("[DEBUG-WS] page message from stale connection, skipping")
			continue
		}
		if h.opts.OnMessage != nil {
			h.opts.OnMessage(msg)
		}
	}
}

func (h *Hub) isCurrent(conn *websocket.Conn) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.conn == conn
}

func (h *Hub) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("[DEBUG-PANIC] wsserver pingLoop recovered",
				"panic", rec,
				"stack", string(debug.Stack()),
			)
			h.drop(conn, "pingLoop panic recovery")
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := h.write(conn, websocket.PingMessage, nil); err != nil {
				slog.Debug("[DEBUG-WS] ping failed, connection likely dead", "error", err)
				h.drop(conn, "ping failure")
				return
			}
		}
	}
}

func (h *Hub) sendError(conn *websocket.Conn, message string) {
	payload, err := json.Marshal(errorMsg{Type: typeError, Message: message})
	if err != nil {
		slog.Debug("[DEBUG-WS] failed to marshal error message", "error", err)
		return
	}
	if err := h.write(conn, websocket.TextMessage, payload); err != nil {
		slog.Debug("[DEBUG-WS] failed to send error to client", "error", err)
		h.drop(conn, "write error in sendError")
	}
}
