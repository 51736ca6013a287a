package encoding

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeJSON(t *testing.T) {
	out, err := EncodeJSON(map[string]string{"status": "ok"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok"}`, string(out))

	// the returned slice must not alias a pooled buffer
	again, err := EncodeJSON(map[string]string{"status": "changed"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok"}`, string(out))
	assert.JSONEq(t, `{"status":"changed"}`, string(again))
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteJSON(w, http.StatusCreated, map[string]int{"count": 2}))

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"count":2}`, w.Body.String())
}

func TestWriteJSON_EncodeFailureWritesNothing(t *testing.T) {
	w := httptest.NewRecorder()
	err := WriteJSON(w, http.StatusOK, map[string]interface{}{"bad": make(chan int)})

	require.Error(t, err)
	assert.Empty(t, w.Body.String())
	assert.Empty(t, w.Header().Get("Content-Type"))
}
