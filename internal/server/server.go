// Package server exposes the engine to a browser client over JSON HTTP
// endpoints and a websocket snapshot stream.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"chaintodo/internal/engine"
	"chaintodo/internal/journal"
	"chaintodo/internal/ledger"
	"chaintodo/internal/log"
)

const (
	maxBodySize       = 64 * 1024
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Config is the server configuration.
type Config struct {
	Addr    string
	Engine  *engine.Engine
	Journal journal.Recorder
	Logger  log.Logger
}

func (c *Config) defaults() error {
	if c.Addr == "" {
		return fmt.Errorf("addr is required")
	}
	if c.Engine == nil {
		return fmt.Errorf("engine is required")
	}
	if c.Journal == nil {
		c.Journal = journal.Noop
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "server.Server"})
	return nil
}

// Server is the local API server.
type Server struct {
	engine  *engine.Engine
	journal journal.Recorder
	logger  log.Logger
	mux     *http.ServeMux
	hub     *WSHub
	httpSrv *http.Server

	unsubscribe func()
}

// New returns a server publishing every engine snapshot to its websocket
// clients. Close releases the subscription.
func New(cfg Config) (*Server, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	s := &Server{
		engine:  cfg.Engine,
		journal: cfg.Journal,
		logger:  cfg.Logger,
		mux:     http.NewServeMux(),
		hub:     NewWSHub(cfg.Logger),
	}
	s.registerRoutes()
	s.httpSrv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	s.unsubscribe = cfg.Engine.Subscribe(s.hub.PublishSnapshot)
	return s, nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /api/state", s.handleState)
	s.mux.HandleFunc("GET /api/history", s.handleHistory)
	s.mux.HandleFunc("POST /api/connect", s.handleConnect)
	s.mux.HandleFunc("POST /api/disconnect", s.handleDisconnect)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	s.mux.HandleFunc("POST /api/tasks", s.handleCreateTask)
	s.mux.HandleFunc("POST /api/tasks/{id}/complete", s.handleCompleteTask)
	s.mux.HandleFunc("PUT /api/draft", s.handleDraft)
	s.mux.HandleFunc("GET /ws", s.hub.HandleWS)
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves until Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.logger.Infof("Listening on %s", s.httpSrv.Addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("could not serve: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.httpSrv.Shutdown(ctx)
}

// Close drops the engine subscription.
func (s *Server) Close() {
	s.unsubscribe()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondOK(w, map[string]any{"status": "ok"})
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	respondOK(w, s.engine.Snapshot())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := s.journal.List(r.Context(), limit)
	if err != nil {
		s.logger.Errorf("Could not list journal: %s", err)
		respondError(w, http.StatusInternalServerError, "JOURNAL_FAILED", err.Error())
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	respondOK(w, entries)
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	conn, err := s.engine.Connect(r.Context())
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondOK(w, map[string]any{"account": conn.Address})
}

func (s *Server) handleDisconnect(w http.ResponseWriter, _ *http.Request) {
	s.engine.Disconnect()
	respondOK(w, s.engine.Snapshot())
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Refresh(r.Context()); err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondOK(w, s.engine.Snapshot())
}

type createTaskRequest struct {
	Description string `json:"description"`
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.engine.AddTask(r.Context(), req.Description); err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondOK(w, s.engine.Snapshot())
}

func (s *Server) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_TASK_ID", "task id must be an unsigned integer")
		return
	}
	if err := s.engine.CompleteTask(r.Context(), ledger.TaskID(id)); err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondOK(w, s.engine.Snapshot())
}

type draftRequest struct {
	Draft string `json:"draft"`
}

func (s *Server) handleDraft(w http.ResponseWriter, r *http.Request) {
	var req draftRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.engine.SetDraft(req.Draft)
	respondOK(w, map[string]any{"draft": req.Draft})
}

// respondEngineError maps engine error kinds to HTTP statuses.
func (s *Server) respondEngineError(w http.ResponseWriter, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Warningf("Request failed: %s", err)
	}
	respondError(w, status, code, err.Error())
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, engine.ErrEmptyInput):
		return http.StatusBadRequest, "EMPTY_INPUT"
	case errors.Is(err, engine.ErrNoOp):
		return http.StatusConflict, "NO_OP"
	case errors.Is(err, engine.ErrOperationInProgress):
		return http.StatusConflict, "OPERATION_IN_PROGRESS"
	case errors.Is(err, engine.ErrNotConnected):
		return http.StatusConflict, "NOT_CONNECTED"
	case errors.Is(err, engine.ErrNoWalletAvailable):
		return http.StatusServiceUnavailable, "NO_WALLET_AVAILABLE"
	case errors.Is(err, engine.ErrTransactionFailed):
		return http.StatusBadGateway, "TRANSACTION_FAILED"
	case errors.Is(err, engine.ErrFetch):
		return http.StatusBadGateway, "FETCH_FAILED"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		respondError(w, http.StatusUnsupportedMediaType, "INVALID_CONTENT_TYPE", "content type must be application/json")
		return false
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "invalid json body")
		return false
	}
	return true
}

func respondOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "data": data})
}

func respondError(w http.ResponseWriter, code int, errCode string, msg string) {
	writeJSON(w, code, map[string]any{"ok": false, "error": map[string]any{"code": errCode, "message": msg}})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
