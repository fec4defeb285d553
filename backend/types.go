package backend

import "github.com/c360/infergate/openai"

// Route names the gateway submits under and adapters dispatch on. One
// route per API family; the payload type disambiguates the rest.
const (
	// RouteChat carries *openai.ChatRequest payloads and resolves to
	// *ChatReply (single-shot) or string chunks (streaming).
	RouteChat = "chat.completions"

	// RouteTranscription carries *openai.TranscriptionRequest payloads and
	// resolves to *Transcript (single-shot) or string chunks (streaming).
	RouteTranscription = "audio.transcriptions"
)

// ChatReply is a backend's answer to a chat task. The gateway wraps it
// into the wire-level completion object.
type ChatReply struct {
	Content string
	Usage   openai.Usage
}

// Transcript is a backend's answer to a transcription task. Duration and
// segments feed the verbose_json response shape; the plainer formats use
// only Text.
type Transcript struct {
	Text     string
	Duration float64
	Segments []openai.TranscriptionSegment
}
