package codec

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/c360/infergate/errors"
)

// DecodeJSON decodes a single JSON value from r into dst. Decode failures
// are classified invalid so handlers reject them as bad requests.
func DecodeJSON(r io.Reader, dst any) error {
	if err := json.NewDecoder(r).Decode(dst); err != nil {
		return errors.WrapInvalid(err, "Codec", "DecodeJSON", "request body decode")
	}
	return nil
}

// WriteJSON writes v as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return errors.Wrap(err, "Codec", "WriteJSON", "response body encode")
	}
	return nil
}
