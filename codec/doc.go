// Package codec handles the gateway's wire encodings: JSON request/response
// bodies, the streamed multipart transcription form, and server-sent
// events. Decoders return classified invalid errors naming the offending
// field so handlers map them straight to 400s.
package codec
