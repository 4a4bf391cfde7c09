package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyowl/studyowl/internal/engine"
	"github.com/studyowl/studyowl/internal/log"
)

// stubEngine returns a canned result or error.
type stubEngine struct {
	result engine.Result
	err    error

	lastUserID string
	lastQuery  string
}

func (s *stubEngine) Answer(_ context.Context, userID, query string) (engine.Result, error) {
	s.lastUserID = userID
	s.lastQuery = query
	if s.err != nil {
		return engine.Result{}, s.err
	}
	if strings.TrimSpace(query) == "" {
		return engine.Result{}, engine.ErrEmptyQuery
	}
	if strings.TrimSpace(userID) == "" {
		return engine.Result{}, engine.ErrEmptyUser
	}
	return s.result, nil
}

func newTestServer(t *testing.T, eng Answerer) *Server {
	t.Helper()
	srv, err := NewServer(ServerConfig{
		Logger:      log.NewNop(),
		Engine:      eng,
		CORSOrigins: []string{"http://localhost:5173"},
		RateBurst:   1000,
	})
	require.NoError(t, err)
	return srv
}

func postAnswer(t *testing.T, srv *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/answer", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestAnswerEndpoint(t *testing.T) {
	eng := &stubEngine{result: engine.Result{
		Answer:    "list comprehensions build lists concisely",
		Citations: []string{"docs.python.org/tutorial"},
	}}
	srv := newTestServer(t, eng)

	rec := postAnswer(t, srv, `{"user_id":"alice","query":"how do list comprehensions work?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var res engine.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "list comprehensions build lists concisely", res.Answer)
	assert.Equal(t, []string{"docs.python.org/tutorial"}, res.Citations)

	assert.Equal(t, "alice", eng.lastUserID)
	assert.Equal(t, "how do list comprehensions work?", eng.lastQuery)
}

func TestAnswerEndpointValidation(t *testing.T) {
	srv := newTestServer(t, &stubEngine{})

	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"malformed json", `{"user_id":`, "invalid_json"},
		{"empty query", `{"user_id":"alice","query":"  "}`, "empty_query"},
		{"empty user", `{"query":"a question"}`, "empty_user"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postAnswer(t, srv, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var body errorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body.Error.Code)
		})
	}
}

func TestAnswerEndpointEngineFailure(t *testing.T) {
	srv := newTestServer(t, &stubEngine{err: errors.New("synthesis exploded")})

	rec := postAnswer(t, srv, `{"user_id":"alice","query":"anything"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "answer_failed", body.Error.Code)
	// Internal details never leak to clients.
	assert.NotContains(t, rec.Body.String(), "exploded")
}

func TestAnswerEndpointMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &stubEngine{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/answer", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t, &stubEngine{})

	for _, path := range []string{"/health", "/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Contains(t, rec.Body.String(), `"ok"`, path)
	}
}

type stubStats struct{}

func (stubStats) Stats() map[string]int {
	return map[string]int{"knowledge": 12, "cache": 3}
}

func TestReadyReportsStoreSizes(t *testing.T) {
	srv, err := NewServer(ServerConfig{
		Logger: log.NewNop(),
		Engine: &stubEngine{},
		Stats:  stubStats{},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"knowledge":12`)
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, &stubEngine{})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/answer", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSUnknownOrigin(t *testing.T) {
	srv := newTestServer(t, &stubEngine{})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/answer", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	srv, err := NewServer(ServerConfig{
		Logger:    log.NewNop(),
		Engine:    &stubEngine{result: engine.Result{Answer: "ok"}},
		RateBurst: 2,
	})
	require.NoError(t, err)

	var lastCode int
	for range 4 {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/answer",
			strings.NewReader(`{"user_id":"alice","query":"q"}`))
		req.RemoteAddr = "10.0.0.1:12345"
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		lastCode = rec.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, lastCode)
}

func TestSecurityHeaders(t *testing.T) {
	srv := newTestServer(t, &stubEngine{result: engine.Result{Answer: "ok"}})

	rec := postAnswer(t, srv, `{"user_id":"alice","query":"q"}`)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestNewServerRequiresEngine(t *testing.T) {
	_, err := NewServer(ServerConfig{Logger: log.NewNop()})
	assert.Error(t, err)
}
