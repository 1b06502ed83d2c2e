// Package server exposes the research orchestrator over HTTP. The single
// streaming endpoint writes newline-delimited JSON so clients can render
// events as they arrive.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/overthelex/secondlayer-sub006/internal/contextpack/model"
	"github.com/overthelex/secondlayer-sub006/internal/orchestrator"
	"github.com/overthelex/secondlayer-sub006/internal/store"
)

const maxRequestBody = 1 << 20 // 1 MiB

type Server struct {
	orch  *orchestrator.Orchestrator
	store *store.Store

	addr string
	srv  *http.Server
}

func New(addr string, orch *orchestrator.Orchestrator, st *store.Store) *Server {
	return &Server{orch: orch, store: st, addr: strings.TrimSpace(addr)}
}

// ListenAndServe blocks until the listener fails or Shutdown is called.
func (s *Server) ListenAndServe() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/v1/research", s.handleResearch)
	mux.HandleFunc("/v1/conversations/", s.handleHistory)

	s.srv = &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Info().Str("addr", s.addr).Msg("http server listening")
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil || s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// researchRequest is the wire form of one research invocation.
type researchRequest struct {
	ConversationID string       `json:"conversation_id"`
	Query          string       `json:"query"`
	Tier           string       `json:"tier,omitempty"`
	History        []model.Turn `json:"history,omitempty"`
}

// handleResearch streams ChatEvents as NDJSON. The request stays open for
// the lifetime of the run; client disconnect cancels the run.
func (s *Server) handleResearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	var req researchRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	conversationID := strings.TrimSpace(req.ConversationID)
	if conversationID == "" {
		conversationID = uuid.NewString()
	}
	requestID := uuid.NewString()

	history := req.History
	if len(history) == 0 && s.store != nil {
		if stored, err := s.store.History(r.Context(), conversationID, 50); err == nil {
			history = stored
		}
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Request-Id", requestID)
	w.WriteHeader(http.StatusOK)

	ctx := r.Context()
	stream := s.orch.Run(ctx, orchestrator.Request{
		RequestID:      requestID,
		ConversationID: conversationID,
		Query:          req.Query,
		Tier:           req.Tier,
		History:        history,
	})

	var seq int64
	for {
		event, open := stream.Next(ctx)
		if !open {
			return
		}
		seq++
		line, err := orchestrator.EncodeEvent(event, seq)
		if err != nil {
			log.Warn().Err(err).Str("request_id", requestID).Msg("failed to encode event")
			continue
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			// Client gone; the context cancels the run.
			return
		}
		flusher.Flush()
	}
}

// handleHistory returns the stored turns of one conversation.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}
	if s.store == nil {
		writeError(w, http.StatusNotFound, "persistence disabled")
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/v1/conversations/")
	conversationID := strings.TrimSuffix(rest, "/history")
	if conversationID == "" || strings.Contains(conversationID, "/") {
		writeError(w, http.StatusNotFound, "unknown resource")
		return
	}
	turns, err := s.store.History(r.Context(), conversationID, 200)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"conversation_id": conversationID,
		"turns":           turns,
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
