package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"stackpilot/internal/analysis"
	"stackpilot/internal/project"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// ChatService handles one chat message and returns the assistant's reply
type ChatService interface {
	ProcessMessage(ctx context.Context, message string) string
}

// SnapshotProvider exposes a read-only view of the active project
type SnapshotProvider interface {
	Snapshot() project.Snapshot
}

// ReportSearcher performs semantic search over persisted analysis reports
type ReportSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]analysis.SearchResult, error)
}

// Server represents the HTTP server
type Server struct {
	router   *mux.Router
	server   *http.Server
	chat     ChatService
	snapshot SnapshotProvider
	reports  ReportSearcher // optional
	ws       *WebSocketManager
}

// NewServer creates a new HTTP server around the chat and project surfaces.
// reports may be nil when no analysis store is configured.
func NewServer(port int, chat ChatService, snapshot SnapshotProvider, reports ReportSearcher) *Server {
	router := mux.NewRouter()

	// Create server with timeouts
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s := &Server{
		router:   router,
		server:   httpServer,
		chat:     chat,
		snapshot: snapshot,
		reports:  reports,
		ws:       NewWebSocketManager(chat),
	}

	rateLimiter := NewRateLimiter(time.Minute, 100)
	router.Use(corsMiddleware)
	router.Use(securityHeadersMiddleware)
	router.Use(rateLimitMiddleware(rateLimiter))

	s.setupRoutes()
	return s
}

// Start runs the server until it fails or is shut down
func (s *Server) Start() error {
	log.Printf("🌐 Starting StackPilot server on %s...", s.server.Addr)
	log.Printf("📊 API endpoints available under http://localhost%s/api/v1/", s.server.Addr)
	log.Printf("🔗 WebSocket chat available on ws://localhost%s/ws", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler returns the router, used by tests to drive requests directly
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", handleHealth).Methods("GET")
	s.router.HandleFunc("/ws", s.ws.HandleConnection)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/chat", s.handleChat).Methods("POST")
	api.HandleFunc("/project", s.handleProject).Methods("GET")
	api.HandleFunc("/analyses/search", s.handleAnalysesSearch).Methods("GET")
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	ID    string `json:"id"`
	Reply string `json:"reply"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		http.Error(w, "Message is required", http.StatusBadRequest)
		return
	}

	reply := s.chat.ProcessMessage(r.Context(), req.Message)
	writeJSON(w, http.StatusOK, chatResponse{
		ID:    uuid.New().String(),
		Reply: reply,
	})
}

func (s *Server) handleProject(w http.ResponseWriter, _ *http.Request) {
	snap := s.snapshot.Snapshot()
	if snap.Name == "" {
		http.Error(w, "No active project", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleAnalysesSearch(w http.ResponseWriter, r *http.Request) {
	if s.reports == nil {
		http.Error(w, "Analysis search is not configured", http.StatusNotImplemented)
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		http.Error(w, "Query parameter q is required", http.StatusBadRequest)
		return
	}

	limit := 5
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	results, err := s.reports.Search(r.Context(), query, limit)
	if err != nil {
		log.Printf("⚠️  Analysis search failed: %v", err)
		http.Error(w, "Search failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"query":   query,
		"results": results,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}
