// Package gateway is the HTTP front end: the OpenAI-compatible surface
// over the bridge. Each accepted request becomes one envelope; the
// handler suspends on the pending outcome and the request context's
// cancellation propagates to the correlation id, so a departed client
// frees its backend slot instead of occupying the run loop.
//
// The middleware chain runs panic recovery, request ids, access
// logging, security headers, CORS, optional bearer auth, per-client
// rate limiting and a body size cap, in that order, so rejected
// requests still appear in logs and metrics. Error responses always
// carry the OpenAI error body shape with sanitized messages; the full
// error chain stays in the server log.
package gateway
