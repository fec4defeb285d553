package openai

import (
	"fmt"

	"github.com/c360/infergate/errors"
)

// ResponseFormat selects the transcription response rendering.
type ResponseFormat string

const (
	ResponseFormatJSON        ResponseFormat = "json"
	ResponseFormatText        ResponseFormat = "text"
	ResponseFormatVerboseJSON ResponseFormat = "verbose_json"
)

// legacyFormats are accepted by the platform API but not rendered here;
// they get a dedicated rejection naming the format.
var legacyFormats = map[string]bool{"srt": true, "vtt": true}

// ParseResponseFormat maps the form value to a ResponseFormat, defaulting
// to json when empty.
func ParseResponseFormat(s string) (ResponseFormat, error) {
	switch s {
	case "", string(ResponseFormatJSON):
		return ResponseFormatJSON, nil
	case string(ResponseFormatText):
		return ResponseFormatText, nil
	case string(ResponseFormatVerboseJSON):
		return ResponseFormatVerboseJSON, nil
	}
	if legacyFormats[s] {
		return "", errors.WrapInvalid(errors.ErrUnsupportedFormat, "TranscriptionRequest", "ParseResponseFormat",
			fmt.Sprintf("response_format %q is not supported", s))
	}
	return "", errors.WrapInvalid(errors.ErrInvalidData, "TranscriptionRequest", "ParseResponseFormat",
		fmt.Sprintf("unknown response_format %q, possible values are json, text, verbose_json", s))
}

// TranscriptionRequest is the decoded multipart form of
// POST /api/v1/audio/transcriptions.
type TranscriptionRequest struct {
	File           []byte
	ContentType    string
	Model          string
	Language       string
	Prompt         string
	Temperature    float64
	ResponseFormat ResponseFormat
	Stream         bool
}

// Validate applies the platform defaults (language "en", format json) and
// rejects missing files, unknown languages, and out-of-range temperatures.
func (r *TranscriptionRequest) Validate() error {
	if len(r.File) == 0 {
		return errors.WrapInvalid(errors.ErrMissingField, "TranscriptionRequest", "Validate",
			"required parameter 'file' was not provided")
	}
	if r.Language == "" {
		r.Language = "en"
	}
	if !SupportedLanguage(r.Language) {
		return errors.WrapInvalid(errors.ErrInvalidData, "TranscriptionRequest", "Validate",
			fmt.Sprintf("%q is not a valid ISO-639-1 language", r.Language))
	}
	if r.Temperature < 0 || r.Temperature > 2 {
		return errors.WrapInvalid(errors.ErrInvalidData, "TranscriptionRequest", "Validate",
			fmt.Sprintf("temperature %g is outside [0, 2]", r.Temperature))
	}
	if r.ResponseFormat == "" {
		r.ResponseFormat = ResponseFormatJSON
	}
	return nil
}

// Transcription is the plain json response: the transcribed text.
type Transcription struct {
	Text string `json:"text"`
}

// TranscriptionSegment is one verbose_json segment with decode diagnostics.
type TranscriptionSegment struct {
	ID               int     `json:"id"`
	Seek             int     `json:"seek"`
	Start            float64 `json:"start"`
	End              float64 `json:"end"`
	Text             string  `json:"text"`
	Tokens           []int   `json:"tokens"`
	Temperature      float64 `json:"temperature"`
	AvgLogprob       float64 `json:"avg_logprob"`
	CompressionRatio float64 `json:"compression_ratio"`
	NoSpeechProb     float64 `json:"no_speech_prob"`
}

// VerboseTranscription is the verbose_json response.
type VerboseTranscription struct {
	Task     string                 `json:"task"`
	Language string                 `json:"language"`
	Duration float64                `json:"duration"`
	Text     string                 `json:"text"`
	Segments []TranscriptionSegment `json:"segments"`
}

// NewVerboseTranscription wraps text and segments in the documented shape.
func NewVerboseTranscription(language string, duration float64, text string, segments []TranscriptionSegment) VerboseTranscription {
	if segments == nil {
		segments = []TranscriptionSegment{}
	}
	return VerboseTranscription{
		Task:     "transcribe",
		Language: language,
		Duration: duration,
		Text:     text,
		Segments: segments,
	}
}

// TranscriptDelta is the transcript.text.delta stream event.
type TranscriptDelta struct {
	Type  string `json:"type"`
	Delta string `json:"delta"`
}

// NewTranscriptDelta builds a delta event for one incremental piece of text.
func NewTranscriptDelta(delta string) TranscriptDelta {
	return TranscriptDelta{Type: "transcript.text.delta", Delta: delta}
}

// TranscriptDone is the terminal transcript.text.done stream event carrying
// the full text.
type TranscriptDone struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// NewTranscriptDone builds the terminal event.
func NewTranscriptDone(text string) TranscriptDone {
	return TranscriptDone{Type: "transcript.text.done", Text: text}
}
