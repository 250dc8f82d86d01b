package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/edirooss/camwall/internal/config"
	"github.com/edirooss/camwall/internal/domain/window"
	"github.com/edirooss/camwall/internal/infrastructure/processmgr"
	"github.com/edirooss/camwall/internal/input"
	"github.com/edirooss/camwall/internal/supervisor"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeController struct {
	mu       sync.Mutex
	windows  []supervisor.WindowStatus
	keys     []input.Key
	quality  map[int64]int
	err      error
	qualErr  error
	snapshot int
}

func (f *fakeController) Snapshot(context.Context) ([]supervisor.WindowStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshot++
	return f.windows, f.err
}

func (f *fakeController) Key(_ context.Context, k input.Key) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, k)
	return f.err
}

func (f *fakeController) SetQuality(_ context.Context, id int64, rank int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.qualErr != nil {
		return f.qualErr
	}
	f.quality[id] = rank
	return nil
}

func newTestRouter(t *testing.T, ctrl *fakeController, logs *processmgr.LogManager, reload func(context.Context) error) http.Handler {
	t.Helper()
	return NewRouter(zap.NewNop(), Options{Controller: ctrl, Logs: logs, Reload: reload})
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func sampleController() *fakeController {
	return &fakeController{
		windows: []supervisor.WindowStatus{
			{ID: 1, Key: "D01_S01_W01", Display: 1, Status: window.Playing, Rank: 1, Visible: true},
			{ID: 2, Key: "D01_S01_W02", Display: 1, Status: window.Failed, Rank: 2, Restarts: 3},
		},
		quality: make(map[int64]int),
	}
}

func TestPing(t *testing.T) {
	r := newTestRouter(t, sampleController(), processmgr.NewLogManager(), nil)
	rec := do(r, http.MethodGet, "/api/ping", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"message":"pong"}`, rec.Body.String())
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRequestIDIsEchoed(t *testing.T) {
	r := newTestRouter(t, sampleController(), processmgr.NewLogManager(), nil)
	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	req.Header.Set("X-Request-ID", strings.Repeat("x", 65))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Len(t, rec.Header().Get("X-Request-ID"), 36)
}

func TestWindowList(t *testing.T) {
	ctrl := sampleController()
	r := newTestRouter(t, ctrl, processmgr.NewLogManager(), nil)

	rec := do(r, http.MethodGet, "/api/windows", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "2", rec.Header().Get("X-Total-Count"))

	var got []supervisor.WindowStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, ctrl.windows, got)
}

func TestGetWindow(t *testing.T) {
	r := newTestRouter(t, sampleController(), processmgr.NewLogManager(), nil)

	tests := []struct {
		path string
		code int
	}{
		{"/api/windows/2", http.StatusOK},
		{"/api/windows/9", http.StatusNotFound},
		{"/api/windows/0", http.StatusBadRequest},
		{"/api/windows/abc", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := do(r, http.MethodGet, tt.path, "")
			require.Equal(t, tt.code, rec.Code)
		})
	}

	rec := do(r, http.MethodGet, "/api/windows/2", "")
	var got supervisor.WindowStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "D01_S01_W02", got.Key)
	require.Equal(t, window.Failed, got.Status)
}

func TestSnapshotAfterStop(t *testing.T) {
	ctrl := sampleController()
	ctrl.err = supervisor.ErrStopped
	r := newTestRouter(t, ctrl, processmgr.NewLogManager(), nil)

	rec := do(r, http.MethodGet, "/api/windows", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestWindowLogs(t *testing.T) {
	logs := processmgr.NewLogManager()
	buf := logs.Get(1)
	for _, l := range []string{"one", "two", "three"} {
		buf.Append(l)
	}
	r := newTestRouter(t, sampleController(), logs, nil)

	rec := do(r, http.MethodGet, "/api/windows/1/logs?lines=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "3", rec.Header().Get("X-Total-Count"))

	var got []processmgr.LogEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	require.Equal(t, "three", got[0].Line)
	require.Equal(t, "two", got[1].Line)

	rec = do(r, http.MethodGet, "/api/windows/2/logs", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(r, http.MethodGet, "/api/windows/1/logs?lines=-1", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPressKey(t *testing.T) {
	ctrl := sampleController()
	r := newTestRouter(t, ctrl, processmgr.NewLogManager(), nil)

	tests := []struct {
		key  string
		code int
		want input.Key
	}{
		{"up", http.StatusAccepted, input.KeyUp},
		{"7", http.StatusAccepted, input.Key7},
		{"escape", http.StatusAccepted, input.KeyEscape},
		{"q", http.StatusAccepted, input.KeyQuit},
		{"f12", http.StatusBadRequest, input.KeyNone},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			ctrl.keys = nil
			rec := do(r, http.MethodPost, "/api/keys/"+tt.key, "")
			require.Equal(t, tt.code, rec.Code)
			if tt.code == http.StatusAccepted {
				require.Equal(t, []input.Key{tt.want}, ctrl.keys)
			} else {
				require.Empty(t, ctrl.keys)
			}
		})
	}
}

func TestSetQuality(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		code int
	}{
		{"ok", `{"rank":2}`, nil, http.StatusNoContent},
		{"unknown field", `{"rank":2,"x":1}`, nil, http.StatusBadRequest},
		{"empty body", ``, nil, http.StatusBadRequest},
		{"unknown window", `{"rank":1}`, supervisor.ErrUnknownWindow, http.StatusNotFound},
		{"not visible", `{"rank":1}`, supervisor.ErrNotVisible, http.StatusConflict},
		{"bad rank", `{"rank":9}`, supervisor.ErrRankUnusable, http.StatusUnprocessableEntity},
		{"other", `{"rank":1}`, errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := sampleController()
			ctrl.qualErr = tt.err
			r := newTestRouter(t, ctrl, processmgr.NewLogManager(), nil)

			rec := do(r, http.MethodPost, "/api/windows/1/quality", tt.body)
			require.Equal(t, tt.code, rec.Code, rec.Body.String())
			if tt.code == http.StatusNoContent {
				require.Equal(t, map[int64]int{1: 2}, ctrl.quality)
			}
		})
	}
}

func TestReload(t *testing.T) {
	t.Run("not available", func(t *testing.T) {
		r := newTestRouter(t, sampleController(), processmgr.NewLogManager(), nil)
		rec := do(r, http.MethodPost, "/api/reload", "")
		require.Equal(t, http.StatusNotImplemented, rec.Code)
	})

	t.Run("ok", func(t *testing.T) {
		calls := 0
		r := newTestRouter(t, sampleController(), processmgr.NewLogManager(), func(context.Context) error {
			calls++
			return nil
		})
		rec := do(r, http.MethodPost, "/api/reload", "")
		require.Equal(t, http.StatusNoContent, rec.Code)
		require.Equal(t, 1, calls)
	})

	t.Run("invalid configuration", func(t *testing.T) {
		cfgErr := &config.ConfigurationError{Source: "camwall.yaml", Problems: []string{"screens: none"}}
		r := newTestRouter(t, sampleController(), processmgr.NewLogManager(), func(context.Context) error {
			return cfgErr
		})
		rec := do(r, http.MethodPost, "/api/reload", "")
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		var body struct {
			Problems []string `json:"problems"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, []string{"screens: none"}, body.Problems)
	})
}

func TestSecurityHeaders(t *testing.T) {
	r := newTestRouter(t, sampleController(), processmgr.NewLogManager(), nil)
	rec := do(r, http.MethodGet, "/api/ping", "")
	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}
