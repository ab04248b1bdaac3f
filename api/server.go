// Package api exposes the read-only observation API: recent deals, per-deal
// history, the live config and the SSE event stream the dashboard consumes.
package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"promodeals-radar/database"
	"promodeals-radar/realtime"
)

// Server is the HTTP read API
type Server struct {
	repo       *database.DealRepository
	broker     *realtime.Broker
	lastCycle  func() time.Time
	staleAfter time.Duration
	httpServer *http.Server
}

// NewServer creates the API server. lastCycle reports when the hunter last
// completed a cycle; health goes red when that falls behind staleAfter.
func NewServer(repo *database.DealRepository, broker *realtime.Broker, lastCycle func() time.Time, staleAfter time.Duration, port int) *Server {
	s := &Server{
		repo:       repo,
		broker:     broker,
		lastCycle:  lastCycle,
		staleAfter: staleAfter,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /api/events", broker)
	mux.HandleFunc("GET /api/deals/recent", s.handleRecentDeals)
	mux.HandleFunc("GET /api/deals/{id}/history", s.handleDealHistory)
	mux.HandleFunc("GET /api/config", s.handleConfig)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // SSE connections stay open
	}
	return s
}

// Start begins listening; blocks until Shutdown
func (s *Server) Start() error {
	log.Printf("📡 API server listening on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// handleHealth reports 200 while cycles keep completing on schedule. A last
// cycle older than staleAfter (or none at all) returns 503 so the container
// orchestrator restarts the radar.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	last := s.lastCycle()
	age := time.Since(last)

	status := http.StatusOK
	state := "ok"
	if last.IsZero() || age > s.staleAfter {
		status = http.StatusServiceUnavailable
		state = "stale"
	}

	payload := map[string]interface{}{
		"status": state,
	}
	if !last.IsZero() {
		payload["last_cycle"] = last.UTC().Format(time.RFC3339)
		payload["age_seconds"] = int(age.Seconds())
	}
	respondWithJSON(w, status, payload)
}

func (s *Server) handleRecentDeals(w http.ResponseWriter, r *http.Request) {
	limit := getIntParam(r, "limit", 50)
	deals, err := s.repo.GetRecentDeals(r.Context(), limit)
	if err != nil {
		log.Printf("❌ Recent deals query failed: %v", err)
		respondWithError(w, http.StatusInternalServerError, "failed to load deals")
		return
	}
	respondWithJSON(w, http.StatusOK, deals)
}

func (s *Server) handleDealHistory(w http.ResponseWriter, r *http.Request) {
	dealID, err := getInt64PathValue(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid deal id")
		return
	}

	limit := getIntParam(r, "limit", 0)
	rows, err := s.repo.GetDealHistory(r.Context(), dealID, limit)
	if err != nil {
		log.Printf("❌ Deal history query failed for %d: %v", dealID, err)
		respondWithError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	respondWithJSON(w, http.StatusOK, rows)
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	values, err := s.repo.LoadConfigValues(r.Context())
	if err != nil {
		log.Printf("❌ Config query failed: %v", err)
		respondWithError(w, http.StatusInternalServerError, "failed to load config")
		return
	}
	respondWithJSON(w, http.StatusOK, values)
}
