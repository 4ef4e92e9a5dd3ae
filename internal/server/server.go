// Package server exposes the latest snapshot and a few controls over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Dicklesworthstone/sysmoni/internal/container"
	"github.com/Dicklesworthstone/sysmoni/internal/logger"
	"github.com/Dicklesworthstone/sysmoni/internal/model"
)

// Store is the shared state the handlers read; *state.Store implements it.
type Store interface {
	Snapshot() model.Snapshot
	TogglePause() bool
}

// Source answers on-demand queries; *collector.Collector implements it.
type Source interface {
	SystemInfo() model.SystemInfo
	Detailed(pid int32) (*model.DetailedProcess, error)
	Logs(ctx context.Context, id string, tail int) ([]string, error)
}

type Server struct {
	addr  string
	log   logger.Logger
	store Store
	src   Source
	r     *chi.Mux

	// system info is static and read once
	infoOnce sync.Once
	info     model.SystemInfo
}

func New(addr string, log logger.Logger, store Store, src Source) *Server {
	s := &Server{
		addr:  addr,
		log:   log,
		store: store,
		src:   src,
		r:     chi.NewRouter(),
	}
	s.r.Use(middleware.RequestID)
	s.r.Use(middleware.RealIP)
	s.r.Use(newRequestLogger(log, "/healthz"))
	s.r.Use(middleware.Recoverer)
	s.r.Use(middleware.Timeout(10 * time.Second))
	s.routes()
	return s
}

func (s *Server) routes() {
	s.r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	s.r.Route("/api", func(r chi.Router) {
		r.Get("/snapshot", s.handleSnapshot)
		r.Get("/system", s.handleSystem)
		r.Get("/processes/{pid}", s.handleProcess)
		r.Get("/containers/{id}/logs", s.handleLogs)
		r.Post("/pause", s.handlePause)
	})
}

// Handler returns the router, for tests and for embedding.
func (s *Server) Handler() http.Handler { return s.r }

// Serve listens until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Snapshot())
}

func (s *Server) handleSystem(w http.ResponseWriter, r *http.Request) {
	s.infoOnce.Do(func() { s.info = s.src.SystemInfo() })
	writeJSON(w, http.StatusOK, s.info)
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	pid, err := strconv.ParseInt(chi.URLParam(r, "pid"), 10, 32)
	if err != nil || pid <= 0 {
		writeError(w, http.StatusBadRequest, "invalid pid")
		return
	}
	d, err := s.src.Detailed(int32(pid))
	if err != nil || d == nil {
		writeError(w, http.StatusNotFound, "process not found")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	tail := container.DefaultLogTail
	if v := r.URL.Query().Get("tail"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid tail")
			return
		}
		tail = n
	}
	lines, err := s.src.Logs(r.Context(), chi.URLParam(r, "id"), tail)
	if err != nil {
		writeError(w, logsStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"lines": lines})
}

func logsStatus(err error) int {
	switch {
	case errors.Is(err, container.Disabled), errors.Is(err, container.NotCompiled),
		errors.Is(err, container.RuntimeUnreachable), errors.Is(err, container.PermissionDenied):
		return http.StatusServiceUnavailable
	case errors.Is(err, container.Timeout):
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	paused := s.store.TogglePause()
	s.log.Info("collection pause toggled", "paused", paused)
	writeJSON(w, http.StatusOK, map[string]bool{"paused": paused})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
