package player

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Simulated is an in-process backend without decoders. It backs headless
// runs and tests; outcomes can be scripted per URL and per window.
type Simulated struct {
	log   *zap.Logger
	clock func() time.Time

	mu         sync.Mutex
	failures   map[string]int         // url -> remaining start failures
	live       map[int64]*simInstance // window id -> current player
	starts     []StartRequest
	stops      int
	violations int
	warmup     time.Duration
	startDelay time.Duration
}

// NewSimulated returns a Simulated backend. clock may be nil.
func NewSimulated(log *zap.Logger, clock func() time.Time) *Simulated {
	if clock == nil {
		clock = time.Now
	}
	return &Simulated{
		log:      log.Named("simulated"),
		clock:    clock,
		failures: make(map[string]int),
		live:     make(map[int64]*simInstance),
	}
}

type simInstance struct {
	mu       sync.Mutex
	started  time.Time
	warmup   time.Duration
	exited   bool
	exitCode int
	stalled  bool
	onStop   func()
}

func (i *simInstance) health(now time.Time) Health {
	i.mu.Lock()
	defer i.mu.Unlock()

	switch {
	case i.exited:
		return Health{State: Exited, ExitCode: i.exitCode}
	case i.stalled:
		return Health{State: Stalled}
	case now.Sub(i.started) < i.warmup:
		return Health{State: Starting}
	}
	return Health{State: Playing}
}

func (i *simInstance) stop() {
	i.mu.Lock()
	i.exited = true
	i.mu.Unlock()
	i.onStop()
}

func (s *Simulated) Name() string { return "simulated" }

func (s *Simulated) Start(ctx context.Context, req StartRequest) (*Handle, error) {
	s.mu.Lock()
	delay := s.startDelay
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, &StartFailure{Backend: s.Name(), Window: req.WindowKey, ExitCode: -1, Err: ctx.Err()}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.starts = append(s.starts, req)
	if n := s.failures[req.URL]; n > 0 {
		s.failures[req.URL] = n - 1
		return nil, &StartFailure{Backend: s.Name(), Window: req.WindowKey, ExitCode: 1, Err: errors.New("connection refused")}
	}

	if prev, ok := s.live[req.WindowID]; ok && !prev.health(s.clock()).Failed() {
		s.violations++
		s.log.Error("second live player for window", zap.Int64("window_id", req.WindowID))
	}

	inst := &simInstance{started: s.clock(), warmup: s.warmup}
	inst.onStop = func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.stops++
		if s.live[req.WindowID] == inst {
			delete(s.live, req.WindowID)
		}
	}
	s.live[req.WindowID] = inst

	s.log.Debug("player started", zap.String("window", req.WindowKey), zap.String("url", req.Printable))
	return newHandle(req, inst, s.clock()), nil
}

func (s *Simulated) Stop(h *Handle) { h.stop() }

func (s *Simulated) PollHealth(h *Handle) Health { return h.health(s.clock()) }

// FailStarts makes the next n starts of url fail.
func (s *Simulated) FailStarts(url string, n int) {
	s.mu.Lock()
	s.failures[url] = n
	s.mu.Unlock()
}

// SetWarmup makes new players report Starting for d.
func (s *Simulated) SetWarmup(d time.Duration) {
	s.mu.Lock()
	s.warmup = d
	s.mu.Unlock()
}

// SetStartDelay makes Start block for d.
func (s *Simulated) SetStartDelay(d time.Duration) {
	s.mu.Lock()
	s.startDelay = d
	s.mu.Unlock()
}

// Crash makes the window's current player exit with code.
func (s *Simulated) Crash(windowID int64, code int) bool {
	s.mu.Lock()
	inst, ok := s.live[windowID]
	s.mu.Unlock()
	if !ok {
		return false
	}
	inst.mu.Lock()
	inst.exited = true
	inst.exitCode = code
	inst.mu.Unlock()
	return true
}

// Stall makes the window's current player stop progressing.
func (s *Simulated) Stall(windowID int64) bool {
	s.mu.Lock()
	inst, ok := s.live[windowID]
	s.mu.Unlock()
	if !ok {
		return false
	}
	inst.mu.Lock()
	inst.stalled = true
	inst.mu.Unlock()
	return true
}

// Starts returns every start request seen so far, failed ones included.
func (s *Simulated) Starts() []StartRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]StartRequest, len(s.starts))
	copy(out, s.starts)
	return out
}

// Live returns the number of players not yet stopped.
func (s *Simulated) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// Violations counts starts that found another live player for the window.
func (s *Simulated) Violations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.violations
}
