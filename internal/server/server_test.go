package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Dicklesworthstone/sysmoni/internal/container"
	"github.com/Dicklesworthstone/sysmoni/internal/logger"
	"github.com/Dicklesworthstone/sysmoni/internal/model"
)

type fakeStore struct {
	snap   model.Snapshot
	paused bool
}

func (f *fakeStore) Snapshot() model.Snapshot { return f.snap }

func (f *fakeStore) TogglePause() bool {
	f.paused = !f.paused
	return f.paused
}

type fakeSource struct {
	infoCalls int
	logsErr   error
	tail      int
}

func (f *fakeSource) SystemInfo() model.SystemInfo {
	f.infoCalls++
	return model.SystemInfo{Hostname: "box", Features: model.Features{GPU: true}}
}

func (f *fakeSource) Detailed(pid int32) (*model.DetailedProcess, error) {
	if pid == 1 {
		return &model.DetailedProcess{PID: 1, Name: "init"}, nil
	}
	return nil, errors.New("no such process")
}

func (f *fakeSource) Logs(_ context.Context, id string, tail int) ([]string, error) {
	f.tail = tail
	if f.logsErr != nil {
		return nil, f.logsErr
	}
	return []string{id + " started"}, nil
}

func newTestServer() (*Server, *fakeStore, *fakeSource) {
	st := &fakeStore{snap: model.Snapshot{Global: model.GlobalUsage{CPU: 42}, GPUError: "GPU monitoring disabled by configuration"}}
	src := &fakeSource{}
	return New(":0", logger.Discard(), st, src), st, src
}

func do(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestSnapshot(t *testing.T) {
	s, _, _ := newTestServer()
	rec := do(t, s, http.MethodGet, "/api/snapshot")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var got model.Snapshot
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Global.CPU != 42 || got.GPUError == "" {
		t.Errorf("snapshot = %+v", got.Global)
	}
}

func TestSystemReadOnce(t *testing.T) {
	s, _, src := newTestServer()
	for i := 0; i < 3; i++ {
		if rec := do(t, s, http.MethodGet, "/api/system"); rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
	}
	if src.infoCalls != 1 {
		t.Errorf("SystemInfo called %d times, want 1", src.infoCalls)
	}
}

func TestProcess(t *testing.T) {
	s, _, _ := newTestServer()
	tests := []struct {
		path string
		code int
	}{
		{"/api/processes/1", http.StatusOK},
		{"/api/processes/999", http.StatusNotFound},
		{"/api/processes/abc", http.StatusBadRequest},
		{"/api/processes/-4", http.StatusBadRequest},
	}
	for _, tt := range tests {
		if rec := do(t, s, http.MethodGet, tt.path); rec.Code != tt.code {
			t.Errorf("GET %s = %d, want %d", tt.path, rec.Code, tt.code)
		}
	}
}

func TestLogs(t *testing.T) {
	s, _, src := newTestServer()
	rec := do(t, s, http.MethodGet, "/api/containers/abc123/logs?tail=5")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "abc123 started") {
		t.Errorf("logs = %d %s", rec.Code, rec.Body.String())
	}
	if src.tail != 5 {
		t.Errorf("tail = %d, want 5", src.tail)
	}

	do(t, s, http.MethodGet, "/api/containers/abc123/logs")
	if src.tail != container.DefaultLogTail {
		t.Errorf("default tail = %d", src.tail)
	}

	if rec := do(t, s, http.MethodGet, "/api/containers/abc123/logs?tail=x"); rec.Code != http.StatusBadRequest {
		t.Errorf("bad tail status = %d", rec.Code)
	}

	src.logsErr = container.NewNull(container.Disabled, "").Err
	rec = do(t, s, http.MethodGet, "/api/containers/abc123/logs")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("disabled status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "disabled by configuration") {
		t.Errorf("body = %s", rec.Body.String())
	}

	src.logsErr = &container.Error{Kind: container.Timeout}
	if rec := do(t, s, http.MethodGet, "/api/containers/abc123/logs"); rec.Code != http.StatusGatewayTimeout {
		t.Errorf("timeout status = %d", rec.Code)
	}
}

func TestPause(t *testing.T) {
	s, st, _ := newTestServer()
	rec := do(t, s, http.MethodPost, "/api/pause")
	if rec.Code != http.StatusOK || !st.paused {
		t.Fatalf("status = %d, paused = %v", rec.Code, st.paused)
	}
	if !strings.Contains(rec.Body.String(), `"paused":true`) {
		t.Errorf("body = %s", rec.Body.String())
	}
	if rec := do(t, s, http.MethodGet, "/api/pause"); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/pause = %d", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	s, _, _ := newTestServer()
	rec := do(t, s, http.MethodGet, "/healthz")
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("healthz = %d %q", rec.Code, rec.Body.String())
	}
}
