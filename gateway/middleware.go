package gateway

import (
	"bufio"
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/c360/infergate/errors"
)

type ctxKey int

const requestIDKey ctxKey = iota

// RequestIDFromContext returns the id the middleware assigned to this
// request, or the empty string outside the chain.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// getOrGenerateRequestID honors an incoming X-Request-ID so callers can
// trace a request end to end, and otherwise mints 16 hex characters.
func getOrGenerateRequestID(r *http.Request) string {
	if reqID := r.Header.Get("X-Request-ID"); reqID != "" {
		return reqID
	}

	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("req-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

// responseRecorder captures the status code and byte count for access
// logging while passing Flush and Hijack through, so streaming handlers
// and the websocket upgrade keep working behind the chain.
type responseRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (rr *responseRecorder) WriteHeader(status int) {
	if rr.status == 0 {
		rr.status = status
	}
	rr.ResponseWriter.WriteHeader(status)
}

func (rr *responseRecorder) Write(p []byte) (int, error) {
	if rr.status == 0 {
		rr.status = http.StatusOK
	}
	n, err := rr.ResponseWriter.Write(p)
	rr.bytes += int64(n)
	return n, err
}

func (rr *responseRecorder) Flush() {
	if f, ok := rr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rr *responseRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rr.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, stderrors.New("response writer does not support hijacking")
	}
	// After a hijack the recorder no longer sees writes; remember that a
	// response happened so the access log doesn't report 0.
	if rr.status == 0 {
		rr.status = http.StatusSwitchingProtocols
	}
	return hj.Hijack()
}

// Unwrap exposes the underlying writer so http.NewResponseController can
// adjust per-request deadlines through the recorder.
func (rr *responseRecorder) Unwrap() http.ResponseWriter {
	return rr.ResponseWriter
}

// wroteResponse reports whether any part of the response reached the wire.
func (rr *responseRecorder) wroteResponse() bool {
	return rr.status != 0
}

// chain applies middleware so the first listed wrapper runs outermost.
func chain(h http.Handler, mw ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}

// isProbe reports whether the path is a liveness/readiness probe that
// must answer without credentials or rate-limit budget. Kubelets and
// load balancers don't carry bearer tokens.
func isProbe(path string) bool {
	switch path {
	case "/health", "/healthz", "/readyz":
		return true
	}
	return false
}

// clientHost strips the port from RemoteAddr so one client maps to one
// rate-limit bucket regardless of its ephemeral source ports.
func clientHost(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

// recovery converts a handler panic into a 500 unless the response has
// already started, in which case the connection is simply abandoned.
// http.ErrAbortHandler is re-raised so the server treats a deliberate
// abort (client gone mid-stream) as such rather than as a crash.
func (g *Gateway) recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rr := &responseRecorder{ResponseWriter: w}
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			g.Logger().Error("handler panic",
				"method", r.Method,
				"path", r.URL.Path,
				"request_id", RequestIDFromContext(r.Context()),
				"panic", rec)
			if !rr.wroteResponse() {
				writeErrorStatus(rr, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(rr, r)
	})
}

// requestID stamps the request context and the response header.
func (g *Gateway) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := getOrGenerateRequestID(r)
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// accessLog emits one line per request and feeds the request metrics.
// It runs outside auth and rate limiting so rejected requests are
// visible too; for those the mux never matched, so the route label
// falls back to the raw path.
func (g *Gateway) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		elapsed := time.Since(start)

		rr, ok := w.(*responseRecorder)
		status := http.StatusOK
		var bytes int64
		if ok {
			status = rr.status
			bytes = rr.bytes
			if status == 0 {
				// Handler returned without writing; net/http sends 200.
				status = http.StatusOK
			}
		}

		route := r.Pattern
		if route == "" {
			route = r.URL.Path
		}

		g.Logger().Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", bytes,
			"duration_ms", elapsed.Milliseconds(),
			"remote", clientHost(r.RemoteAddr),
			"request_id", RequestIDFromContext(r.Context()))

		if reg := g.MetricsRegistry(); reg != nil {
			core := reg.CoreMetrics()
			core.RecordRequest(route, strconv.Itoa(status))
			core.RecordRequestDuration(route, elapsed)
		}
		g.RecordActivity()
	})
}

// securityHeaders sets the response headers every endpoint shares.
func (g *Gateway) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

// cors answers preflight requests and reflects allowed origins. Origins
// are matched exactly against the configured list; "*" allows any.
func (g *Gateway) cors(next http.Handler) http.Handler {
	allowAny := false
	allowed := make(map[string]struct{}, len(g.cfg.CORSOrigins))
	for _, origin := range g.cfg.CORSOrigins {
		if origin == "*" {
			allowAny = true
			continue
		}
		allowed[origin] = struct{}{}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			_, ok := allowed[origin]
			switch {
			case allowAny:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case ok:
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}
		}

		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
			w.Header().Set("Access-Control-Max-Age", "86400")
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// auth enforces the configured bearer token with a constant-time
// comparison. Probe paths stay open: orchestrators have no tokens.
func (g *Gateway) auth(next http.Handler) http.Handler {
	token := []byte(g.cfg.AuthToken)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(token) == 0 || isProbe(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		presented, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(presented), token) != 1 {
			w.Header().Set("WWW-Authenticate", `Bearer realm="infergate"`)
			g.writeError(w, r, errors.ErrUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// rateLimit throttles per client host. Disabled when no limiter was
// configured; probe paths are always exempt.
func (g *Gateway) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.limiter == nil || isProbe(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		if !g.limiter.allow(clientHost(r.RemoteAddr), time.Now()) {
			w.Header().Set("Retry-After", "1")
			g.writeError(w, r, errors.ErrRateLimited)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// bodyLimit caps request bodies. Reads past the cap surface as
// *http.MaxBytesError from the decoder and map to 413.
func (g *Gateway) bodyLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil && g.cfg.BodyLimit > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, g.cfg.BodyLimit)
		}
		next.ServeHTTP(w, r)
	})
}
