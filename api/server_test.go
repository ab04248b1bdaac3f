package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func healthServer(last time.Time) *Server {
	return &Server{
		lastCycle:  func() time.Time { return last },
		staleAfter: 20 * time.Minute,
	}
}

func TestHandleHealth(t *testing.T) {
	tests := []struct {
		name       string
		last       time.Time
		wantStatus int
		wantState  string
	}{
		{"recent cycle", time.Now().Add(-2 * time.Minute), http.StatusOK, "ok"},
		{"stale cycle", time.Now().Add(-45 * time.Minute), http.StatusServiceUnavailable, "stale"},
		{"no cycle yet", time.Time{}, http.StatusServiceUnavailable, "stale"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			healthServer(tt.last).handleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantState, body["status"])
		})
	}
}

func TestGetIntParam(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/deals/recent?limit=25", nil)
	assert.Equal(t, 25, getIntParam(req, "limit", 50))
	assert.Equal(t, 50, getIntParam(req, "missing", 50))

	req = httptest.NewRequest(http.MethodGet, "/api/deals/recent?limit=abc", nil)
	assert.Equal(t, 50, getIntParam(req, "limit", 50))

	req = httptest.NewRequest(http.MethodGet, "/api/deals/recent?limit=-5", nil)
	assert.Equal(t, 50, getIntParam(req, "limit", 50))
}
