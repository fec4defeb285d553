package gateway

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/c360/infergate/backend"
	"github.com/c360/infergate/bridge"
	"github.com/c360/infergate/codec"
	"github.com/c360/infergate/errors"
	"github.com/c360/infergate/openai"
	"github.com/c360/infergate/registry"
)

// doneMarker terminates OpenAI chat completion streams.
const doneMarker = "[DONE]"

// endpoints describes every route the gateway itself serves. Monitor
// routes are appended at construction when a monitor is attached.
func (g *Gateway) endpoints() []registry.Endpoint {
	return []registry.Endpoint{
		{
			Method:      http.MethodPost,
			Path:        "/api/v1/chat/completions",
			Handler:     http.HandlerFunc(g.handleChat),
			Summary:     "Create a chat completion",
			Description: "OpenAI-compatible chat completion. Set stream=true for chat.completion.chunk server-sent events terminated by [DONE].",
			Tags:        []string{"inference"},
		},
		{
			Method:      http.MethodPost,
			Path:        "/api/v1/audio/transcriptions",
			Handler:     http.HandlerFunc(g.handleTranscription),
			Summary:     "Transcribe audio",
			Description: "OpenAI-compatible transcription over a multipart form. Set stream=true for transcript.text.delta events ending with transcript.text.done.",
			Tags:        []string{"inference"},
		},
		{
			Method:      http.MethodGet,
			Path:        "/api/v1/models",
			Handler:     http.HandlerFunc(g.handleModels),
			Summary:     "List models",
			Description: "The single model this gateway fronts, in the OpenAI list shape.",
			Tags:        []string{"inference"},
		},
		{
			Method:      http.MethodGet,
			Path:        "/health",
			Handler:     http.HandlerFunc(g.handleHealth),
			Summary:     "Aggregated component health",
			Description: "Plain OK for probes; the gateway, bridge and monitor sub-status tree with Accept: application/json. 503 when any component is unhealthy.",
			Tags:        []string{"ops"},
		},
		{
			Method:      http.MethodGet,
			Path:        "/healthz",
			Handler:     http.HandlerFunc(g.handleHealthz),
			Summary:     "Liveness probe",
			Description: "Always 200 while the process serves requests.",
			Tags:        []string{"ops"},
		},
		{
			Method:      http.MethodGet,
			Path:        "/readyz",
			Handler:     http.HandlerFunc(g.handleReadyz),
			Summary:     "Readiness probe",
			Description: "200 while the bridge accepts work, 503 once its run loop is gone.",
			Tags:        []string{"ops"},
		},
		{
			Method:      http.MethodGet,
			Path:        "/openapi.json",
			Handler:     http.HandlerFunc(g.handleOpenAPI),
			Summary:     "OpenAPI document",
			Description: "Machine-readable description of every registered route.",
			Tags:        []string{"ops"},
		},
		{
			Method:      http.MethodGet,
			Path:        "/docs",
			Handler:     http.HandlerFunc(g.handleDocs),
			Summary:     "API documentation",
			Description: "Swagger UI over /openapi.json.",
			Tags:        []string{"ops"},
		},
	}
}

// dispatch submits one unary envelope and waits out its outcome. Client
// departure cancels the correlation id through Await.
func (g *Gateway) dispatch(ctx context.Context, route string, payload any) (any, error) {
	pending, err := g.engine.Submit(bridge.NewEnvelope(route, payload))
	if err != nil {
		return nil, err
	}

	out, err := pending.Await(ctx)
	if err != nil {
		return nil, err
	}

	switch out.Kind {
	case bridge.OutcomeComplete:
		return out.Result, nil
	case bridge.OutcomeFailed:
		return nil, out.Err
	default:
		return nil, errors.WrapFatal(errors.ErrInvalidData, "Gateway", "dispatch",
			fmt.Sprintf("unary submit resolved to %s outcome", out.Kind))
	}
}

// openStream submits a streaming envelope and prepares the SSE response.
// On any failure the error response has been written and ok is false.
func (g *Gateway) openStream(w http.ResponseWriter, r *http.Request, route string, payload any) (*bridge.ChunkSource, *codec.SSEWriter, bool) {
	pending, err := g.engine.SubmitStream(bridge.NewEnvelope(route, payload))
	if err != nil {
		g.writeError(w, r, err)
		return nil, nil, false
	}

	out, err := pending.Await(r.Context())
	if err != nil {
		g.writeError(w, r, err)
		return nil, nil, false
	}
	if out.Kind == bridge.OutcomeFailed {
		g.writeError(w, r, out.Err)
		return nil, nil, false
	}
	if out.Kind != bridge.OutcomeStream || out.Stream == nil {
		g.writeError(w, r, errors.WrapFatal(errors.ErrInvalidData, "Gateway", "openStream",
			fmt.Sprintf("stream submit resolved to %s outcome", out.Kind)))
		return nil, nil, false
	}

	sse, err := codec.NewSSEWriter(w)
	if err != nil {
		out.Stream.Close()
		g.writeError(w, r, err)
		return nil, nil, false
	}

	// The stream outlives the server-wide write timeout; chunks reset no
	// clock of their own, the bridge's hard deadline bounds the task.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	return out.Stream, sse, true
}

// handleChat serves POST /api/v1/chat/completions.
func (g *Gateway) handleChat(w http.ResponseWriter, r *http.Request) {
	var req openai.ChatRequest
	if err := codec.DecodeJSON(r.Body, &req); err != nil {
		g.writeError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		g.writeError(w, r, err)
		return
	}

	if req.Stream {
		g.streamChat(w, r, &req)
		return
	}

	result, err := g.dispatch(r.Context(), backend.RouteChat, &req)
	if err != nil {
		g.writeError(w, r, err)
		return
	}
	reply, ok := result.(*backend.ChatReply)
	if !ok {
		g.writeError(w, r, errors.WrapFatal(errors.ErrInvalidData, "Gateway", "handleChat",
			fmt.Sprintf("backend returned %T for a chat task", result)))
		return
	}

	if err := codec.WriteJSON(w, http.StatusOK, openai.NewChatResponse(req.Model, reply.Content, reply.Usage)); err != nil {
		g.Logger().Warn("chat response write failed",
			"request_id", RequestIDFromContext(r.Context()), "error", err)
	}
}

// streamChat relays backend chunks as chat.completion.chunk events. A
// clean backend end produces the finish_reason chunk and the [DONE]
// marker; any other termination just stops the stream, the client sees
// the missing terminator.
func (g *Gateway) streamChat(w http.ResponseWriter, r *http.Request, req *openai.ChatRequest) {
	src, sse, ok := g.openStream(w, r, backend.RouteChat, req)
	if !ok {
		return
	}
	defer src.Close()

	id := openai.NewChatID()
	for {
		chunk, err := src.Next(r.Context())
		if err != nil {
			if stderrors.Is(err, errors.ErrStreamClosed) && src.Err() == nil {
				if err := sse.Data(openai.NewChatChunkDone(id, req.Model)); err == nil {
					_ = sse.Raw(doneMarker)
				}
				return
			}
			g.Logger().Warn("chat stream aborted",
				"request_id", RequestIDFromContext(r.Context()), "error", err)
			return
		}

		if err := sse.Data(openai.NewChatChunk(id, req.Model, chunkText(chunk))); err != nil {
			return
		}
		g.recordStreamChunk(r)
	}
}

// handleTranscription serves POST /api/v1/audio/transcriptions.
func (g *Gateway) handleTranscription(w http.ResponseWriter, r *http.Request) {
	req, err := codec.DecodeTranscriptionForm(r)
	if err != nil {
		g.writeError(w, r, err)
		return
	}

	if req.Stream {
		g.streamTranscription(w, r, req)
		return
	}

	result, err := g.dispatch(r.Context(), backend.RouteTranscription, req)
	if err != nil {
		g.writeError(w, r, err)
		return
	}
	transcript, ok := result.(*backend.Transcript)
	if !ok {
		g.writeError(w, r, errors.WrapFatal(errors.ErrInvalidData, "Gateway", "handleTranscription",
			fmt.Sprintf("backend returned %T for a transcription task", result)))
		return
	}

	switch req.ResponseFormat {
	case openai.ResponseFormatText:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if _, err := fmt.Fprint(w, transcript.Text); err != nil {
			g.Logger().Warn("transcription response write failed",
				"request_id", RequestIDFromContext(r.Context()), "error", err)
		}
	case openai.ResponseFormatVerboseJSON:
		body := openai.NewVerboseTranscription(req.Language, transcript.Duration, transcript.Text, transcript.Segments)
		_ = codec.WriteJSON(w, http.StatusOK, body)
	default:
		_ = codec.WriteJSON(w, http.StatusOK, openai.Transcription{Text: transcript.Text})
	}
}

// streamTranscription relays backend chunks as transcript.text.delta
// events and closes with transcript.text.done carrying the full text.
// Unlike chat, the transcription stream has no [DONE] marker; the done
// event is the terminator.
func (g *Gateway) streamTranscription(w http.ResponseWriter, r *http.Request, req *openai.TranscriptionRequest) {
	src, sse, ok := g.openStream(w, r, backend.RouteTranscription, req)
	if !ok {
		return
	}
	defer src.Close()

	var full strings.Builder
	for {
		chunk, err := src.Next(r.Context())
		if err != nil {
			if stderrors.Is(err, errors.ErrStreamClosed) && src.Err() == nil {
				_ = sse.Data(openai.NewTranscriptDone(full.String()))
				return
			}
			g.Logger().Warn("transcription stream aborted",
				"request_id", RequestIDFromContext(r.Context()), "error", err)
			return
		}

		text := chunkText(chunk)
		full.WriteString(text)
		if err := sse.Data(openai.NewTranscriptDelta(text)); err != nil {
			return
		}
		g.recordStreamChunk(r)
	}
}

// handleModels serves GET /api/v1/models.
func (g *Gateway) handleModels(w http.ResponseWriter, r *http.Request) {
	model := openai.Model{
		ID:      g.cfg.ModelID,
		Object:  "model",
		Created: g.created,
		OwnedBy: "infergate",
	}
	if err := codec.WriteJSON(w, http.StatusOK, openai.NewModelList(model)); err != nil {
		g.Logger().Warn("model list write failed",
			"request_id", RequestIDFromContext(r.Context()), "error", err)
	}
}

// handleHealth serves GET and HEAD /health. Plain "OK" keeps curl and
// HEAD probes trivial; the aggregated component tree is opt-in via
// Accept: application/json.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := g.Health()
	code := http.StatusOK
	if status.IsUnhealthy() {
		code = http.StatusServiceUnavailable
	}

	if !strings.Contains(r.Header.Get("Accept"), "application/json") {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(code)
		if code == http.StatusOK {
			_, _ = w.Write([]byte("OK"))
		} else {
			_, _ = w.Write([]byte("unhealthy"))
		}
		return
	}

	_ = codec.WriteJSON(w, code, status)
}

// handleHealthz serves GET /healthz: pure liveness, always 200 while the
// listener answers.
func (g *Gateway) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReadyz serves GET /readyz: readiness tracks the bridge, which is
// the only dependency that can refuse work.
func (g *Gateway) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	ready := !g.engine.Health().IsUnhealthy()
	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	_ = codec.WriteJSON(w, code, map[string]bool{"ready": ready})
}

// handleOpenAPI serves the generated document for every registered route.
func (g *Gateway) handleOpenAPI(w http.ResponseWriter, _ *http.Request) {
	_ = codec.WriteJSON(w, http.StatusOK, g.registry.Document())
}

// handleDocs serves a minimal Swagger UI over /openapi.json.
func (g *Gateway) handleDocs(w http.ResponseWriter, _ *http.Request) {
	html := `<!DOCTYPE html>
<html>
<head>
    <title>Infergate API Documentation</title>
    <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@3.52.5/swagger-ui.css" />
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@3.52.5/swagger-ui-bundle.js"></script>
    <script>
        SwaggerUIBundle({
            url: '/openapi.json',
            dom_id: '#swagger-ui',
            presets: [SwaggerUIBundle.presets.apis, SwaggerUIBundle.presets.standalone],
        });
    </script>
</body>
</html>`

	w.Header().Set("Content-Type", "text/html")
	_, _ = w.Write([]byte(html))
}

// chunkText renders a backend chunk for the wire. Adapters push strings;
// anything else is formatted rather than dropped.
func chunkText(chunk any) string {
	if s, ok := chunk.(string); ok {
		return s
	}
	return fmt.Sprint(chunk)
}

// recordStreamChunk feeds the per-route chunk counter.
func (g *Gateway) recordStreamChunk(r *http.Request) {
	if reg := g.MetricsRegistry(); reg != nil {
		reg.CoreMetrics().RecordStreamChunk(r.Pattern)
	}
}
