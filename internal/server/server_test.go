package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stackpilot/internal/analysis"
	"stackpilot/internal/project"
)

type fakeChat struct {
	lastMessage string
}

func (f *fakeChat) ProcessMessage(_ context.Context, message string) string {
	f.lastMessage = message
	return "reply to: " + message
}

type fakeSnapshot struct {
	snap project.Snapshot
}

func (f *fakeSnapshot) Snapshot() project.Snapshot { return f.snap }

type fakeSearcher struct {
	hits []analysis.SearchResult
	err  error
}

func (f *fakeSearcher) Search(_ context.Context, _ string, _ int) ([]analysis.SearchResult, error) {
	return f.hits, f.err
}

func newTestServer(snap project.Snapshot, searcher ReportSearcher) (*Server, *fakeChat) {
	chat := &fakeChat{}
	return NewServer(0, chat, &fakeSnapshot{snap: snap}, searcher), chat
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := newTestServer(project.Snapshot{}, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestChatEndpoint(t *testing.T) {
	s, chat := newTestServer(project.Snapshot{}, nil)

	payload := bytes.NewBufferString(`{"message": "create a static website"}`)
	req := httptest.NewRequest("POST", "/api/v1/chat", payload)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "create a static website", chat.lastMessage)

	var body chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.ID)
	assert.Equal(t, "reply to: create a static website", body.Reply)
}

func TestChatEndpointRejectsBadRequests(t *testing.T) {
	s, _ := newTestServer(project.Snapshot{}, nil)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", "{not json"},
		{"empty message", `{"message": ""}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/v1/chat", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestProjectEndpoint(t *testing.T) {
	now := time.Now()
	snap := project.Snapshot{
		Name:      "my-site",
		State:     project.StateDeployed,
		Outputs:   map[string]string{"originURL": "https://mysite"},
		Analyzed:  true,
		CreatedAt: &now,
	}
	s, _ := newTestServer(snap, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/project", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var got project.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "my-site", got.Name)
	assert.Equal(t, project.StateDeployed, got.State)
	assert.Equal(t, "https://mysite", got.Outputs["originURL"])
}

func TestProjectEndpointNoActiveProject(t *testing.T) {
	s, _ := newTestServer(project.Snapshot{State: project.StateUninitialized}, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/project", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnalysesSearchEndpoint(t *testing.T) {
	searcher := &fakeSearcher{hits: []analysis.SearchResult{
		{Project: "my-site", Snippet: "Use HTTPS-only storage accounts.", Similarity: 0.91},
	}}
	s, _ := newTestServer(project.Snapshot{}, searcher)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/analyses/search?q=storage+security", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Query   string                  `json:"query"`
		Results []analysis.SearchResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "storage security", body.Query)
	require.Len(t, body.Results, 1)
	assert.Equal(t, "my-site", body.Results[0].Project)
}

func TestAnalysesSearchValidation(t *testing.T) {
	s, _ := newTestServer(project.Snapshot{}, &fakeSearcher{})

	t.Run("missing query", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/analyses/search", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bad limit", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/analyses/search?q=x&limit=zero", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAnalysesSearchUnconfigured(t *testing.T) {
	s, _ := newTestServer(project.Snapshot{}, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/analyses/search?q=x", nil))

	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestCORSHeaders(t *testing.T) {
	s, _ := newTestServer(project.Snapshot{}, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("OPTIONS", "/api/v1/chat", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestWebSocketChat(t *testing.T) {
	s, _ := newTestServer(project.Snapshot{}, nil)
	httpServer := httptest.NewServer(s.Handler())
	defer httpServer.Close()

	wsURL := "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var welcome wsReply
	require.NoError(t, conn.ReadJSON(&welcome))
	assert.Equal(t, "welcome", welcome.Type)
	assert.NotEmpty(t, welcome.Session)

	require.NoError(t, conn.WriteJSON(wsMessage{Type: "chat", Message: "status"}))

	var reply wsReply
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "chat", reply.Type)
	assert.Equal(t, welcome.Session, reply.Session)
	assert.Equal(t, "reply to: status", reply.Reply)
}

func TestWebSocketPing(t *testing.T) {
	s, _ := newTestServer(project.Snapshot{}, nil)
	httpServer := httptest.NewServer(s.Handler())
	defer httpServer.Close()

	wsURL := "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var welcome wsReply
	require.NoError(t, conn.ReadJSON(&welcome))

	require.NoError(t, conn.WriteJSON(wsMessage{Type: "ping"}))

	var pong wsReply
	require.NoError(t, conn.ReadJSON(&pong))
	assert.Equal(t, "pong", pong.Type)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(time.Minute, 3)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("10.0.0.1"))
	}
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"), "other clients are unaffected")
}
