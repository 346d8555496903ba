package middleware

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestRequestIDGeneratedWhenAbsent(t *testing.T) {
	var ctxID string
	handler := RequestID(zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxID = GetRequestID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	headerID := rec.Header().Get("X-Request-ID")
	assert.NotEmpty(t, headerID)
	assert.Equal(t, headerID, ctxID, "context id and response header must agree")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRequestIDEchoesIncoming(t *testing.T) {
	var ctxID string
	handler := RequestID(zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxID = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("X-Request-ID", "probe-42")
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "probe-42", rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "probe-42", ctxID)
}

func TestRequestIDCompletionLog(t *testing.T) {
	var buf bytes.Buffer
	handler := RequestID(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	req.Header.Set("X-Request-ID", "probe-42")
	handler.ServeHTTP(rec, req)

	log := buf.String()
	assert.Contains(t, log, `"status":404`)
	assert.Contains(t, log, `"request_id":"probe-42"`)
	assert.Contains(t, log, `"path":"/missing"`)
	assert.Contains(t, log, "request handled")
}

func TestGetRequestIDWithoutMiddleware(t *testing.T) {
	assert.Empty(t, GetRequestID(context.Background()))
}
