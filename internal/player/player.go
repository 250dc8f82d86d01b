// Package player drives external decoding processes that render one camera
// stream into one screen rectangle.
//
// A Backend is selected once per deployment. Every Backend offers the same
// three capabilities:
//
//   - Start spawns a player bound to a rectangle and returns its Handle.
//   - Stop terminates it; stopping twice is a no-op.
//   - PollHealth reports Starting, Playing, Stalled or Exited without
//     blocking. Probing happens in a per-player monitor goroutine.
//
// Backends never retry and never enforce decoder limits. Recovery policy and
// resource accounting belong to the caller.
package player

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/edirooss/camwall/internal/layout"
	"github.com/google/uuid"
)

var (
	ErrStreamStalled = errors.New("stream stalled")
	ErrStreamExited  = errors.New("stream exited")
	ErrUnsupported   = errors.New("unsupported by backend")
)

// StartFailure reports a player that could not be brought up: missing
// executable, unsupported codec or an immediate exit.
type StartFailure struct {
	Backend  string
	Window   string
	ExitCode int // -1 when the process never ran
	Err      error
}

func (e *StartFailure) Error() string {
	if e.ExitCode >= 0 {
		return fmt.Sprintf("%s: start %s: exited with code %d: %v", e.Backend, e.Window, e.ExitCode, e.Err)
	}
	return fmt.Sprintf("%s: start %s: %v", e.Backend, e.Window, e.Err)
}

func (e *StartFailure) Unwrap() error { return e.Err }

// State is the coarse health of a running player.
type State int

const (
	Starting State = iota
	Playing
	Stalled
	Exited
)

func (s State) String() string {
	switch s {
	case Starting:
		return "starting"
	case Playing:
		return "playing"
	case Stalled:
		return "stalled"
	case Exited:
		return "exited"
	}
	return "unknown"
}

// Health is the result of PollHealth. ExitCode is meaningful for Exited only.
type Health struct {
	State    State
	ExitCode int
}

func (h Health) String() string {
	if h.State == Exited {
		return fmt.Sprintf("exited(%d)", h.ExitCode)
	}
	return h.State.String()
}

// Err maps a failed health to ErrStreamStalled or ErrStreamExited.
func (h Health) Err() error {
	switch h.State {
	case Stalled:
		return ErrStreamStalled
	case Exited:
		return fmt.Errorf("%w with code %d", ErrStreamExited, h.ExitCode)
	}
	return nil
}

// Failed reports whether the player needs recovery.
func (h Health) Failed() bool { return h.State == Stalled || h.State == Exited }

// StartRequest describes one player instance.
type StartRequest struct {
	WindowID    int64
	WindowKey   string // stable, printable window identity, e.g. "D01_S02_W03"
	URL         string // may embed credentials; never logged
	Printable   string
	Rect        layout.Rect
	Fullscreen  bool
	CodecHint   string // "h264", "hevc", "mjpeg", ... or ""
	BufferTime  time.Duration
	PlayTimeout time.Duration
	Display     int // 1 or 2
	Layer       int
	ForceUDP    bool
	Audio       bool
	Volume      int    // percent
	Subtitle    string // optional OSD subtitle file
}

// Handle is one live player. It is owned by exactly one window.
type Handle struct {
	ID        uuid.UUID
	WindowID  int64
	WindowKey string
	Printable string
	Rect      layout.Rect
	StartedAt time.Time

	inst     instance
	stopOnce sync.Once
}

// instance is the backend-specific part of a Handle.
type instance interface {
	health(now time.Time) Health
	stop()
}

func newHandle(req StartRequest, inst instance, now time.Time) *Handle {
	return &Handle{
		ID:        uuid.New(),
		WindowID:  req.WindowID,
		WindowKey: req.WindowKey,
		Printable: req.Printable,
		Rect:      req.Rect,
		StartedAt: now,
		inst:      inst,
	}
}

func (h *Handle) stop() {
	if h == nil {
		return
	}
	h.stopOnce.Do(h.inst.stop)
}

func (h *Handle) health(now time.Time) Health {
	if h == nil {
		return Health{State: Exited, ExitCode: -1}
	}
	return h.inst.health(now)
}

// Backend is the capability set every decoding backend provides.
type Backend interface {
	Name() string
	Start(ctx context.Context, req StartRequest) (*Handle, error)
	Stop(h *Handle)
	PollHealth(h *Handle) Health
}

// Checker is implemented by backends that depend on host executables.
type Checker interface {
	Check() error
}
