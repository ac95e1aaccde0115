package eventum

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePayload(t *testing.T) {
	p, err := DecodePayload([]byte(`{"event":"echo","message":"hi","n":2}`))
	require.NoError(t, err)
	assert.Equal(t, "echo", p.Event)
	assert.Equal(t, "hi", p.String("message"))
	assert.Equal(t, "", p.String("n"))

	n, ok := p.Get("n")
	assert.True(t, ok)
	assert.Equal(t, float64(2), n)

	var v struct {
		Message string `json:"message"`
	}
	require.NoError(t, p.Bind(&v))
	assert.Equal(t, "hi", v.Message)
}

func TestDecodePayloadMissingEvent(t *testing.T) {
	p, err := DecodePayload([]byte(`{"message":"hi"}`))
	require.NoError(t, err)
	assert.Empty(t, p.Event)

	p, err = DecodePayload([]byte(`{"event":42}`))
	require.NoError(t, err)
	assert.Empty(t, p.Event)
}

func TestDecodePayloadInvalid(t *testing.T) {
	for _, data := range []string{`not json`, `[1,2]`, `"text"`, `null`, `{"a":1} trailing`, ``} {
		_, err := DecodePayload([]byte(data))
		assert.ErrorIs(t, err, ErrInvalidPayload, data)
	}
}

func TestEventMarshalJSON(t *testing.T) {
	data, err := NewEvent("chat", map[string]any{"text": "hi", "event": "ignored"}).MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"chat","text":"hi"}`, string(data))

	data, err = ValidationErrorEvent.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"validation_error","message":"Invalid data received"}`, string(data))
}

func TestNewHTTPResponse(t *testing.T) {
	r := NewHTTPResponse(http.StatusForbidden, []byte("no"), nil)
	assert.Equal(t, http.StatusForbidden, r.Status)
	assert.Equal(t, []byte("no"), r.Body)

	r = NewHTTPResponse(http.StatusFound, "", http.Header{"Location": {"/login"}})
	assert.Equal(t, "/login", r.Headers.Get("Location"))
	assert.Empty(t, r.Body)
}
