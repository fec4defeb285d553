package codec

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/infergate/errors"
)

func TestDecodeJSON(t *testing.T) {
	var payload struct {
		Model string `json:"model"`
	}
	err := DecodeJSON(strings.NewReader(`{"model":"loopback"}`), &payload)
	require.NoError(t, err)
	assert.Equal(t, "loopback", payload.Model)
}

func TestDecodeJSON_GarbageIsInvalid(t *testing.T) {
	var payload map[string]any
	err := DecodeJSON(strings.NewReader(`{"model":`), &payload)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	err := WriteJSON(rec, http.StatusAccepted, map[string]string{"status": "queued"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"queued"}`, rec.Body.String())
}
