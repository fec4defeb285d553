package codec

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/infergate/errors"
)

// noFlushWriter hides the recorder's Flush method behind the plain
// ResponseWriter interface.
type noFlushWriter struct {
	http.ResponseWriter
}

func TestNewSSEWriter_SetsStreamHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	_, err := NewSSEWriter(rec)
	require.NoError(t, err)

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "keep-alive", rec.Header().Get("Connection"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))
}

func TestNewSSEWriter_RequiresFlusher(t *testing.T) {
	_, err := NewSSEWriter(noFlushWriter{httptest.NewRecorder()})
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
}

func TestSSEWriter_Event(t *testing.T) {
	rec := httptest.NewRecorder()
	writer, err := NewSSEWriter(rec)
	require.NoError(t, err)

	require.NoError(t, writer.Event("engine_state_event", map[string]int{"in_flight": 1}))

	assert.Equal(t, "event: engine_state_event\ndata: {\"in_flight\":1}\n\n", rec.Body.String())
	assert.True(t, rec.Flushed)
}

func TestSSEWriter_DataAndRaw(t *testing.T) {
	rec := httptest.NewRecorder()
	writer, err := NewSSEWriter(rec)
	require.NoError(t, err)

	require.NoError(t, writer.Data(map[string]string{"delta": "Hello"}))
	require.NoError(t, writer.Raw("[DONE]"))

	assert.Equal(t, "data: {\"delta\":\"Hello\"}\n\ndata: [DONE]\n\n", rec.Body.String())
}

func TestSSEWriter_Comment(t *testing.T) {
	rec := httptest.NewRecorder()
	writer, err := NewSSEWriter(rec)
	require.NoError(t, err)

	require.NoError(t, writer.Comment("heartbeat"))

	assert.Equal(t, ": heartbeat\n\n", rec.Body.String())
}
