package monitor

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func monitorServer(t *testing.T, m *Monitor) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	m.RegisterHTTPHandlers("", mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// lineReader feeds response lines through a channel so reads can carry
// deadlines.
func lineReader(t *testing.T, resp *http.Response) <-chan string {
	t.Helper()
	lines := make(chan string, 64)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

func nextLine(t *testing.T, lines <-chan string) string {
	t.Helper()
	select {
	case line, ok := <-lines:
		require.True(t, ok, "stream ended early")
		return line
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a stream line")
		return ""
	}
}

func TestMonitor_SSEStreamsSnapshots(t *testing.T) {
	m := newTestMonitor(t, Config{History: 4, HeartbeatInterval: time.Minute})
	srv := monitorServer(t, m)

	// Lands in history before the subscriber attaches.
	m.Publish(Snapshot{InFlight: 1, MaxInFlight: 1})

	resp, err := http.Get(srv.URL + "/state")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := lineReader(t, resp)
	assert.Equal(t, "event: engine_state_event", nextLine(t, lines))
	replayed := nextLine(t, lines)
	assert.Contains(t, replayed, `"in_flight":1`)

	// The first event proves the subscription is live; this one arrives
	// through fanout rather than replay.
	m.Publish(Snapshot{InFlight: 0, InQueue: 2, MaxInFlight: 1})

	assert.Equal(t, "", nextLine(t, lines))
	assert.Equal(t, "event: engine_state_event", nextLine(t, lines))
	live := nextLine(t, lines)
	assert.Contains(t, live, `"in_queue":2`)
}

func TestMonitor_SSEHeartbeatKeepsIdleStreamAlive(t *testing.T) {
	m := newTestMonitor(t, Config{History: 4, HeartbeatInterval: 20 * time.Millisecond})
	srv := monitorServer(t, m)

	resp, err := http.Get(srv.URL + "/state")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	lines := lineReader(t, resp)
	deadline := time.After(2 * time.Second)
	for {
		select {
		case line := <-lines:
			if strings.HasPrefix(line, ": heartbeat") {
				return
			}
		case <-deadline:
			t.Fatal("no heartbeat on an idle stream")
		}
	}
}

func TestMonitor_SSEHandlerExitsOnDisconnect(t *testing.T) {
	m := newTestMonitor(t, Config{History: 4, HeartbeatInterval: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/state", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		m.handleSSE(rec, req)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not exit on client disconnect")
	}
}

func TestMonitor_WebSocketStreamsSnapshots(t *testing.T) {
	m := newTestMonitor(t, Config{History: 4, HeartbeatInterval: time.Minute})
	srv := monitorServer(t, m)

	m.Publish(Snapshot{InFlight: 1, MaxInFlight: 1})

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/state/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var replayed Snapshot
	require.NoError(t, conn.ReadJSON(&replayed))
	assert.Equal(t, 1, replayed.InFlight)

	m.Publish(Snapshot{InQueue: 5, MaxInFlight: 1})

	var live Snapshot
	require.NoError(t, conn.ReadJSON(&live))
	assert.Equal(t, 5, live.InQueue)
}

func TestMonitor_EndpointsDescribeRoutes(t *testing.T) {
	m := newTestMonitor(t, testConfig())

	eps := m.Endpoints()
	require.Len(t, eps, 2)
	assert.Equal(t, "/state", eps[0].Path)
	assert.True(t, eps[0].Streaming)
	assert.Equal(t, "/state/ws", eps[1].Path)
	for _, ep := range eps {
		assert.Equal(t, http.MethodGet, ep.Method)
		assert.NotNil(t, ep.Handler)
	}
}
