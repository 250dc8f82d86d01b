package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/edirooss/camwall/internal/infrastructure/processmgr"
	"github.com/edirooss/camwall/internal/input"
	"github.com/edirooss/camwall/internal/supervisor"
	"github.com/edirooss/camwall/pkg/jsonx"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Controller is the part of the supervisor the API drives.
type Controller interface {
	Snapshot(ctx context.Context) ([]supervisor.WindowStatus, error)
	Key(ctx context.Context, k input.Key) error
	SetQuality(ctx context.Context, id int64, rank int) error
}

// LogSource gives access to the captured player output of a window.
type LogSource interface {
	Lookup(id int64) (*processmgr.LogBuffer, bool)
}

const defaultLogLines = 100

// WindowsHandler serves the window status and control endpoints.
//
// Supported operations:
//   - GET  /windows              → List all windows
//   - GET  /windows/{id}         → Retrieve one window
//   - GET  /windows/{id}/logs    → Recent player output of a window
//   - POST /windows/{id}/quality → Pin the stream quality of a window
//   - POST /keys/{key}           → Inject a remote-control key
type WindowsHandler struct {
	log  *zap.Logger
	ctrl Controller
	logs LogSource
}

// NewWindowsHandler constructs a WindowsHandler instance.
func NewWindowsHandler(log *zap.Logger, ctrl Controller, logs LogSource) *WindowsHandler {
	return &WindowsHandler{
		log:  log.Named("windows"),
		ctrl: ctrl,
		logs: logs,
	}
}

// GetWindowList handles GET /windows.
//
// Status Codes:
//   - 200 OK → JSON array of window statuses, X-Total-Count set
//   - 503 Service Unavailable → supervisor stopped
func (h *WindowsHandler) GetWindowList(c *gin.Context) {
	ws, err := h.ctrl.Snapshot(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("X-Total-Count", strconv.Itoa(len(ws)))
	c.JSON(http.StatusOK, ws)
}

// GetWindow handles GET /windows/{id}.
func (h *WindowsHandler) GetWindow(c *gin.Context) {
	id, _ := strconv.ParseInt(c.Param("id"), 10, 64) // already validated by middleware

	ws, err := h.ctrl.Snapshot(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	for _, w := range ws {
		if w.ID == id {
			c.JSON(http.StatusOK, w)
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"message": supervisor.ErrUnknownWindow.Error()})
}

// GetWindowLogs handles GET /windows/{id}/logs?lines=N.
//
// Entries are newest first. A window that never started a player has no
// buffer and answers 404.
func (h *WindowsHandler) GetWindowLogs(c *gin.Context) {
	id, _ := strconv.ParseInt(c.Param("id"), 10, 64)

	lines := defaultLogLines
	if q := c.Query("lines"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"message": "lines must be a non-negative integer"})
			return
		}
		lines = n
	}

	buf, ok := h.logs.Lookup(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "no logs for window"})
		return
	}
	entries := buf.Read(lines)
	if entries == nil {
		entries = []processmgr.LogEntry{}
	}
	c.Header("X-Total-Count", strconv.Itoa(buf.Len()))
	c.JSON(http.StatusOK, entries)
}

type qualityRequest struct {
	Rank int `json:"rank"`
}

// SetQuality handles POST /windows/{id}/quality with body {"rank": n}.
//
// Status Codes:
//   - 204 No Content → quality pinned
//   - 400 Bad Request → malformed body
//   - 404 Not Found → unknown window
//   - 409 Conflict → window not on screen
//   - 422 Unprocessable Entity → rank not configured or not decodable
func (h *WindowsHandler) SetQuality(c *gin.Context) {
	id, _ := strconv.ParseInt(c.Param("id"), 10, 64)

	var req qualityRequest
	if err := jsonx.ParseStrictJSONBody(c.Request, &req); err != nil {
		c.Error(err)
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	if err := h.ctrl.SetQuality(c.Request.Context(), id, req.Rank); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// PressKey handles POST /keys/{key}. The key goes through the same decoder
// as the keyboard, so digits are buffered the same way.
func (h *WindowsHandler) PressKey(c *gin.Context) {
	k, err := input.ParseKey(c.Param("key"))
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	if err := h.ctrl.Key(c.Request.Context(), k); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

func (h *WindowsHandler) fail(c *gin.Context, err error) {
	c.Error(err)
	c.JSON(statusOf(err), gin.H{"message": err.Error()})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, supervisor.ErrUnknownWindow):
		return http.StatusNotFound
	case errors.Is(err, supervisor.ErrNotVisible):
		return http.StatusConflict
	case errors.Is(err, supervisor.ErrRankUnusable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, supervisor.ErrStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
