package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/erikprat61/supreme-memory/internal/service/monitor"
)

type fakeController struct {
	status   monitor.Status
	flushed  bool
	flushErr error
	flushes  int
}

func (f *fakeController) Status() monitor.Status { return f.status }

func (f *fakeController) Flush() (bool, error) {
	f.flushes++
	return f.flushed, f.flushErr
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestRouter_Liveness(t *testing.T) {
	h := NewRouter(&fakeController{}, nil)
	rec := do(t, h, http.MethodGet, "/v1/liveness")
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("unexpected liveness response: %d %q", rec.Code, rec.Body.String())
	}
}

func TestRouter_Readiness(t *testing.T) {
	tests := []struct {
		name   string
		status monitor.Status
		want   int
	}{
		{"not started", monitor.Status{}, http.StatusServiceUnavailable},
		{"running without capture", monitor.Status{Running: true}, http.StatusServiceUnavailable},
		{"capturing", monitor.Status{Running: true, Capturing: true}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewRouter(&fakeController{status: tt.status}, nil)
			if rec := do(t, h, http.MethodGet, "/v1/readiness"); rec.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestRouter_Status(t *testing.T) {
	ctrl := &fakeController{status: monitor.Status{Mode: monitor.ModeStream, Running: true, Frames: 42}}
	rec := do(t, NewRouter(ctrl, nil), http.MethodGet, "/v1/status")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON content type, got %q", ct)
	}
	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got["mode"] != "stream" || got["frames"] != float64(42) {
		t.Errorf("unexpected status body: %v", got)
	}
}

func TestRouter_Flush(t *testing.T) {
	tests := []struct {
		name     string
		flushed  bool
		err      error
		wantCode int
		wantBody string
	}{
		{"submitted", true, nil, http.StatusOK, `"submitted":true`},
		{"empty buffer", false, nil, http.StatusOK, `"submitted":false`},
		{"record mode", false, monitor.ErrNotStreaming, http.StatusConflict, "stream mode"},
		{"stopped", false, monitor.ErrStopped, http.StatusConflict, "stopped"},
		{"unexpected", false, errors.New("boom"), http.StatusInternalServerError, "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := &fakeController{flushed: tt.flushed, flushErr: tt.err}
			rec := do(t, NewRouter(ctrl, nil), http.MethodPost, "/v1/flush")
			if rec.Code != tt.wantCode {
				t.Errorf("expected %d, got %d", tt.wantCode, rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("expected body containing %q, got %q", tt.wantBody, rec.Body.String())
			}
			if ctrl.flushes != 1 {
				t.Errorf("expected one flush call, got %d", ctrl.flushes)
			}
		})
	}
}

func TestRouter_FlushRequiresPost(t *testing.T) {
	ctrl := &fakeController{}
	rec := do(t, NewRouter(ctrl, nil), http.MethodGet, "/v1/flush")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
	if ctrl.flushes != 0 {
		t.Error("expected no flush on GET")
	}
}

func TestRouter_EventsAndMetrics(t *testing.T) {
	events := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h := NewRouter(&fakeController{}, events)

	if rec := do(t, h, http.MethodGet, "/v1/events"); rec.Code != http.StatusTeapot {
		t.Errorf("expected events handler to be mounted, got %d", rec.Code)
	}
	rec := do(t, h, http.MethodGet, "/metrics")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "supreme_memory_http_requests_total") {
		t.Errorf("expected metrics exposition, got %d", rec.Code)
	}

	without := NewRouter(&fakeController{}, nil)
	if rec := do(t, without, http.MethodGet, "/v1/events"); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 without an events handler, got %d", rec.Code)
	}
}
