package codec

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/c360/infergate/errors"
)

// SSEWriter frames server-sent events over an HTTP response. Every write
// flushes so chunks reach the client as they are produced rather than
// sitting in the server's buffer.
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEWriter prepares w for an event stream and returns a writer over
// it. The response writer must support flushing; without that, streamed
// chunks would only arrive when the handler returns.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.WrapFatal(errors.ErrUnsupportedFormat, "SSEWriter", "NewSSEWriter",
			"response writer does not support flushing")
	}

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	// Tells nginx-style proxies not to buffer the stream.
	header.Set("X-Accel-Buffering", "no")

	return &SSEWriter{w: w, flusher: flusher}, nil
}

// Event writes a named event whose data line is the JSON encoding of data.
func (s *SSEWriter) Event(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "SSEWriter", "Event", "payload marshal")
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return errors.WrapTransient(err, "SSEWriter", "Event", "event write")
	}
	s.flusher.Flush()
	return nil
}

// Data writes an unnamed event whose data line is the JSON encoding of data.
func (s *SSEWriter) Data(data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "SSEWriter", "Data", "payload marshal")
	}
	return s.writeData(string(payload))
}

// Raw writes a preformatted data line verbatim, for terminators such as
// the OpenAI stream's [DONE] marker.
func (s *SSEWriter) Raw(line string) error {
	return s.writeData(line)
}

// Comment writes an SSE comment line. Comments are invisible to
// EventSource consumers, which makes them the standard heartbeat.
func (s *SSEWriter) Comment(text string) error {
	if _, err := fmt.Fprintf(s.w, ": %s\n\n", text); err != nil {
		return errors.WrapTransient(err, "SSEWriter", "Comment", "comment write")
	}
	s.flusher.Flush()
	return nil
}

func (s *SSEWriter) writeData(line string) error {
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", line); err != nil {
		return errors.WrapTransient(err, "SSEWriter", "writeData", "data write")
	}
	s.flusher.Flush()
	return nil
}
