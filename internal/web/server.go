// Package web provides the HTTP status page and read API for the habit-button daemon.
package web

import (
	"context"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/sweeney/habit-button/internal/analytics"
	"github.com/sweeney/habit-button/internal/press"
	"github.com/sweeney/habit-button/internal/status"
)

// Habits is the read side of the press log plus a way to queue a press.
// *controller.Controller satisfies it.
type Habits interface {
	Snapshot(ctx context.Context) (analytics.Snapshot, error)
	History(ctx context.Context) ([]time.Time, error)
	Press(kind press.Kind) bool
}

// Server serves the status page and the API over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	habits     Habits
}

// New creates a Server. Access logs go to accessLog; nil means stdout.
func New(addr string, tracker *status.Tracker, habits Habits, accessLog io.Writer) *Server {
	if accessLog == nil {
		accessLog = os.Stdout
	}
	s := &Server{tracker: tracker, habits: habits}

	r := mux.NewRouter()
	r.HandleFunc("/", s.handleIndex).Methods("GET")
	r.HandleFunc("/index.html", s.handleIndex).Methods("GET")
	r.HandleFunc("/index.json", s.handleJSON).Methods("GET")
	r.HandleFunc("/stats", s.handleStats).Methods("GET")
	r.HandleFunc("/logs", s.handleLogs).Methods("GET")
	r.HandleFunc("/log", s.handleLog).Methods("POST")

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           handlers.LoggingHandler(accessLog, cors(r)),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the root handler. Useful for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderHTML(w, snap); err != nil {
		log.Printf("web: render index: %v", err)
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snap, err := s.habits.Snapshot(r.Context())
	if err != nil {
		log.Printf("web: stats: %v", err)
		writeError(w, http.StatusInternalServerError, "storage unavailable")
		return
	}
	writeJSON(w, http.StatusOK, formatStats(snap))
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	history, err := s.habits.History(r.Context())
	if err != nil {
		log.Printf("web: logs: %v", err)
		writeError(w, http.StatusInternalServerError, "storage unavailable")
		return
	}
	writeJSON(w, http.StatusOK, formatLogs(history))
}

func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	if !s.habits.Press(press.ShortPress) {
		writeError(w, http.StatusServiceUnavailable, "busy, try again")
		return
	}
	writeJSON(w, http.StatusAccepted, StatusResponse{Status: "queued"})
}
