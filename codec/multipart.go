package codec

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/c360/infergate/errors"
	"github.com/c360/infergate/openai"
)

// DecodeTranscriptionForm reads a multipart transcription request off the
// wire part by part. Fields arrive in client order, so the form is consumed
// as a stream rather than buffered through ParseMultipartForm. Any part
// name outside the transcription schema fails the whole request.
func DecodeTranscriptionForm(r *http.Request) (*openai.TranscriptionRequest, error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, errors.WrapInvalid(err, "Codec", "DecodeTranscriptionForm", "multipart boundary parse")
	}

	req := &openai.TranscriptionRequest{}
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.WrapInvalid(err, "Codec", "DecodeTranscriptionForm", "multipart part read")
		}

		name := part.FormName()
		switch name {
		case "file":
			req.ContentType = part.Header.Get("Content-Type")
			if req.ContentType == "" {
				req.ContentType = "unknown"
			}
			data, err := io.ReadAll(part)
			if err != nil {
				return nil, errors.WrapInvalid(err, "Codec", "DecodeTranscriptionForm", "file part read")
			}
			req.File = data
		case "model":
			if req.Model, err = partText(part); err != nil {
				return nil, err
			}
		case "language":
			if req.Language, err = partText(part); err != nil {
				return nil, err
			}
		case "prompt":
			if req.Prompt, err = partText(part); err != nil {
				return nil, err
			}
		case "temperature":
			text, err := partText(part)
			if err != nil {
				return nil, err
			}
			value, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, errors.WrapInvalid(errors.ErrInvalidData, "Codec", "DecodeTranscriptionForm",
					fmt.Sprintf("temperature %q is not a number", text))
			}
			req.Temperature = value
		case "response_format":
			text, err := partText(part)
			if err != nil {
				return nil, err
			}
			if req.ResponseFormat, err = openai.ParseResponseFormat(text); err != nil {
				return nil, err
			}
		case "stream":
			text, err := partText(part)
			if err != nil {
				return nil, err
			}
			value, err := strconv.ParseBool(text)
			if err != nil {
				return nil, errors.WrapInvalid(errors.ErrInvalidData, "Codec", "DecodeTranscriptionForm",
					fmt.Sprintf("stream %q is not a boolean", text))
			}
			req.Stream = value
		default:
			return nil, errors.WrapInvalid(errors.ErrUnknownField, "Codec", "DecodeTranscriptionForm",
				fmt.Sprintf("unknown field %q", name))
		}
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

func partText(part *multipart.Part) (string, error) {
	data, err := io.ReadAll(part)
	if err != nil {
		return "", errors.WrapInvalid(err, "Codec", "DecodeTranscriptionForm",
			fmt.Sprintf("form field %q read", part.FormName()))
	}
	return string(data), nil
}
