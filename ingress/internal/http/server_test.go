package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aaryan126/Research-Agent/ingress/internal/hub"
	"github.com/Aaryan126/Research-Agent/ingress/internal/orchestrator"
)

type fakeRequests int

func (f fakeRequests) InFlight() int { return int(f) }

type fakeHealth struct {
	err error
}

func (f fakeHealth) Health(context.Context) (*orchestrator.HealthResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &orchestrator.HealthResponse{Status: "healthy", Version: "0.2.0"}, nil
}

func get(t *testing.T, s *Server, path string) (int, map[string]interface{}) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestHealth(t *testing.T) {
	s := NewServer(hub.NewHub(), fakeRequests(2), fakeHealth{})

	code, body := get(t, s, "/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])
	assert.EqualValues(t, 0, body["connections"])
	assert.EqualValues(t, 2, body["in_flight"])
}

func TestReady(t *testing.T) {
	code, body := get(t, NewServer(hub.NewHub(), fakeRequests(0), fakeHealth{}), "/ready")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "0.2.0", body["orchestrator_version"])

	code, body = get(t, NewServer(hub.NewHub(), fakeRequests(0), fakeHealth{err: errors.New("connection refused")}), "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "connection refused", body["error"])
}
