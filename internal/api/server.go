// Package api serves the read-only local status API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/bryanchriswhite/BrowserGuard/internal/journal"
	"github.com/bryanchriswhite/BrowserGuard/internal/logger"
	"github.com/bryanchriswhite/BrowserGuard/internal/status"
)

// EventSource lists recent enforcement events.
type EventSource interface {
	Recent(limit int) ([]journal.Event, error)
}

// Server represents the HTTP API server
type Server struct {
	router   *mux.Router
	hub      *status.Hub
	events   EventSource
	upgrader websocket.Upgrader
}

// NewServer creates a new API server. events may be nil when the journal is
// disabled.
func NewServer(hub *status.Hub, events EventSource) *Server {
	s := &Server{
		router: mux.NewRouter(),
		hub:    hub,
		events: events,
		upgrader: websocket.Upgrader{
			// Only loopback clients can reach the listener
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/status/stream", s.handleStatusStream)
	api.HandleFunc("/events", s.handleEvents).Methods("GET")
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves on 127.0.0.1:port until ctx is cancelled.
func (s *Server) Start(ctx context.Context, port int) error {
	log := logger.WithComponent("api")

	srv := &http.Server{
		Addr:              net.JoinHostPort("127.0.0.1", strconv.Itoa(port)),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Server shutdown error")
		}
	}()

	log.Info().Str("addr", srv.Addr).Msg("Starting status server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("status server: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	current, ok := s.hub.Current()
	if !ok {
		http.Error(w, "No tick completed yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, current)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := journal.DefaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	if s.events == nil {
		writeJSON(w, http.StatusOK, []journal.Event{})
		return
	}

	events, err := s.events.Recent(limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	log := logger.WithComponent("api")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("WebSocket upgrade error")
		return
	}
	defer conn.Close()

	updates := s.hub.Subscribe()
	defer s.hub.Unsubscribe(updates)

	// The client never sends; reading only detects it going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if current, ok := s.hub.Current(); ok {
		if err := conn.WriteJSON(current); err != nil {
			log.Debug().Err(err).Msg("WebSocket write error")
			return
		}
	}

	for {
		select {
		case <-closed:
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(snap); err != nil {
				log.Debug().Err(err).Msg("WebSocket write error")
				return
			}
		}
	}
}
