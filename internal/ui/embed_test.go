package ui

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	h, err := Handler()
	require.NoError(t, err)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func TestHandler_Dashboard(t *testing.T) {
	w := serve(t, http.MethodGet, "/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<title>shamescroll</title>")
}

func TestHandler_FocusPage(t *testing.T) {
	w := serve(t, http.MethodGet, FocusPage)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "blocked while you focus")
}

func TestHandler_Fallbacks(t *testing.T) {
	tests := []struct {
		name   string
		method string
		target string
		code   int
	}{
		{"route falls back to dashboard", http.MethodGet, "/week", http.StatusOK},
		{"missing asset", http.MethodGet, "/app.js", http.StatusNotFound},
		{"post rejected", http.MethodPost, "/", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(t, tt.method, tt.target)
			assert.Equal(t, tt.code, w.Code)
		})
	}
}
