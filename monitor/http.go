package monitor

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/c360/infergate/codec"
	"github.com/c360/infergate/registry"
)

// wsWriteTimeout bounds every WebSocket write so a wedged peer releases
// the connection goroutine.
const wsWriteTimeout = 5 * time.Second

// Endpoints describes the monitor's routes for the gateway's registry.
func (m *Monitor) Endpoints() []registry.Endpoint {
	return []registry.Endpoint{
		{
			Method:      http.MethodGet,
			Path:        "/state",
			Handler:     http.HandlerFunc(m.handleSSE),
			Summary:     "Engine occupancy stream",
			Description: "Server-sent events: retained history, then live engine_state_event frames with heartbeat comments between.",
			Tags:        []string{"monitor"},
			Streaming:   true,
		},
		{
			Method:    http.MethodGet,
			Path:      "/state/ws",
			Handler:   http.HandlerFunc(m.handleWebSocket),
			Summary:   "Engine occupancy stream over WebSocket",
			Tags:      []string{"monitor"},
			Responses: map[string]registry.ResponseSpec{"101": {Description: "Switching Protocols"}},
		},
	}
}

// RegisterHTTPHandlers mounts the monitor's routes under prefix, for
// hosts that wire services straight onto a mux instead of through the
// endpoint registry.
func (m *Monitor) RegisterHTTPHandlers(prefix string, mux *http.ServeMux) {
	for _, ep := range m.Endpoints() {
		mux.Handle(ep.Method+" "+prefix+ep.Path, ep.Handler)
	}
}

func (m *Monitor) handleSSE(w http.ResponseWriter, r *http.Request) {
	writer, err := codec.NewSSEWriter(w)
	if err != nil {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ch, cancel := m.Subscribe()
	defer cancel()

	heartbeat := time.NewTicker(m.cfg.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-m.shutdown:
			return
		case snap, ok := <-ch:
			if !ok {
				return
			}
			if err := writer.Event("engine_state_event", snap); err != nil {
				return
			}
		case <-heartbeat.C:
			if err := writer.Comment("heartbeat"); err != nil {
				return
			}
		}
	}
}

func (m *Monitor) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already answered the request.
		m.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	m.wg.Add(1)
	go m.serveWebSocket(conn)
}

func (m *Monitor) serveWebSocket(conn *websocket.Conn) {
	defer m.wg.Done()
	defer func() { _ = conn.Close() }()

	ch, cancel := m.Subscribe()
	defer cancel()

	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	// Reader pump: subscribers send nothing meaningful, but reading
	// surfaces close frames and drives the pong handler.
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	heartbeat := time.NewTicker(m.cfg.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-m.shutdown:
			deadline := time.Now().Add(wsWriteTimeout)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), deadline)
			return
		case <-readerDone:
			return
		case snap, ok := <-ch:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(snap); err != nil {
				return
			}
		case <-heartbeat.C:
			if err := conn.WriteControl(websocket.PingMessage, nil,
				time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
		}
	}
}
