// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package observer exposes internal/stats's live feed over HTTP: a
// liveness probe, a point-in-time state dump, and a websocket that
// pushes every new snapshot as it's published. Every endpoint is
// read-only — nothing here can reach back into the scheduling loop.
package observer

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/jontk/batsched/internal/stats"
	"github.com/jontk/batsched/pkg/logging"
)

// Server serves the debug/observability HTTP surface.
type Server struct {
	feed     *stats.Feed
	log      logging.Logger
	router   *mux.Router
	upgrader websocket.Upgrader
}

// NewServer builds a Server that reads from feed. The caller still has
// to call ListenAndServe (or use Handler for a custom listener).
func NewServer(feed *stats.Feed, log logging.Logger) *Server {
	s := &Server{
		feed: feed,
		log:  log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.router = mux.NewRouter()
	s.router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	s.router.HandleFunc("/state", s.handleState).Methods(http.MethodGet)
	s.router.HandleFunc("/stream", s.handleStream).Methods(http.MethodGet)
	return s
}

// Handler returns the server's http.Handler, for embedding behind a
// custom listener or in tests via httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves the debug surface on addr until the process
// exits or the listener errors.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.feed.Latest()); err != nil {
		s.log.Error("encoding state response", "error", err)
	}
}

// handleStream upgrades to a websocket and pushes every snapshot the
// feed publishes until the client disconnects.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ch, unsubscribe := s.feed.Subscribe()
	defer unsubscribe()

	if err := conn.WriteJSON(s.feed.Latest()); err != nil {
		return
	}

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(snap); err != nil {
				s.log.Debug("websocket write failed, closing stream", "error", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
