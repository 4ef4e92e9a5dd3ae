package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/Dicklesworthstone/sysmoni/internal/logger"
)

// newRequestLogger logs one line per request through log, skipping the
// given paths (health probes poll too often to be useful).
func newRequestLogger(log logger.Logger, ignoredPaths ...string) func(next http.Handler) http.Handler {
	ignored := make(map[string]struct{}, len(ignoredPaths))
	for _, p := range ignoredPaths {
		ignored[p] = struct{}{}
	}
	return middleware.RequestLogger(&slogFormatter{log: log, ignoredPaths: ignored})
}

type slogFormatter struct {
	log          logger.Logger
	ignoredPaths map[string]struct{}
}

func (f *slogFormatter) NewLogEntry(r *http.Request) middleware.LogEntry {
	if _, ok := f.ignoredPaths[r.URL.Path]; ok {
		return noopLogEntry{}
	}
	return &slogEntry{
		log:    f.log,
		method: r.Method,
		path:   r.URL.Path,
		remote: r.RemoteAddr,
		reqID:  middleware.GetReqID(r.Context()),
	}
}

type slogEntry struct {
	log    logger.Logger
	method string
	path   string
	remote string
	reqID  string
}

func (e *slogEntry) Write(status, bytes int, _ http.Header, elapsed time.Duration, _ interface{}) {
	args := []any{
		"method", e.method,
		"path", e.path,
		"status", status,
		"bytes", bytes,
		"elapsed", elapsed,
		"remote", e.remote,
		"request_id", e.reqID,
	}
	if status >= http.StatusInternalServerError {
		e.log.Warn("request", args...)
		return
	}
	e.log.Debug("request", args...)
}

func (e *slogEntry) Panic(v interface{}, stack []byte) {
	e.log.Error("handler panic", "path", e.path, "panic", v, "stack", string(stack))
}

type noopLogEntry struct{}

func (noopLogEntry) Write(status, bytes int, header http.Header, elapsed time.Duration, extra interface{}) {
}

func (noopLogEntry) Panic(v interface{}, stack []byte) {}
