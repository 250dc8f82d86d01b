// Package watchdog decides how a window recovers from a failing stream.
//
// The Supervisor sweeps every visible window once per interval and feeds
// the result of PollHealth (or the fact that the last start failed) into
// Observe / Retry. The returned Decision tells it whether to leave the
// window alone, restart it on a given rank, refresh it, or halt it until the
// slow retry cadence allows another attempt. The Watchdog itself never
// touches players.
package watchdog

import (
	"time"

	"github.com/edirooss/camwall/internal/domain/window"
	"github.com/edirooss/camwall/internal/player"
	"github.com/edirooss/camwall/internal/quality"
	"golang.org/x/time/rate"
)

type Config struct {
	Interval         time.Duration // sweep period, 0 disables the watchdog
	RefreshTime      time.Duration // proactive restart after this much play, 0 disables
	RestartThreshold int           // failures at one rank before stepping down
	RetryCeiling     int           // consecutive failures before the slow cadence
	FailedRetry      time.Duration // slow cadence period
}

const (
	DefaultRestartThreshold = 3
	DefaultRetryCeiling     = 5
	DefaultFailedRetry      = time.Minute
)

type Watchdog struct {
	cfg Config
}

func New(cfg Config) *Watchdog {
	if cfg.RestartThreshold <= 0 {
		cfg.RestartThreshold = DefaultRestartThreshold
	}
	if cfg.RetryCeiling <= 0 {
		cfg.RetryCeiling = DefaultRetryCeiling
	}
	if cfg.FailedRetry <= 0 {
		cfg.FailedRetry = DefaultFailedRetry
	}
	return &Watchdog{cfg: cfg}
}

func (w *Watchdog) Enabled() bool           { return w.cfg.Interval > 0 }
func (w *Watchdog) Interval() time.Duration { return w.cfg.Interval }
func (w *Watchdog) Config() Config          { return w.cfg }

// State is the recovery bookkeeping of one window. The zero value is ready.
type State struct {
	Restarts     int       // consecutive failures since the last success
	RankFailures int       // consecutive failures at the current rank
	PlayingSince time.Time // zero unless observed playing

	slow *rate.Limiter
}

// Reset forgets all failures, e.g. after a manual quality change.
func (s *State) Reset() {
	*s = State{}
}

// SlowCadence reports whether retries are rate limited.
func (s *State) SlowCadence() bool { return s.slow != nil }

// Target is the window as the watchdog sees it.
type Target struct {
	Rank      int // rank currently selected
	Preferred int // rank to return to on refresh
	Manual    bool
	Status    window.Status
	Selector  *quality.Selector
}

type Action int

const (
	Keep Action = iota
	Restart
	Refresh
	Halt
)

func (a Action) String() string {
	switch a {
	case Keep:
		return "keep"
	case Restart:
		return "restart"
	case Refresh:
		return "refresh"
	case Halt:
		return "halt"
	}
	return "unknown"
}

// Decision is what the Supervisor should do with a window. Status is the
// window status to record; Rank the rank to (re)start on.
type Decision struct {
	Action   Action
	Rank     int
	Degraded bool
	Status   window.Status
	Reason   error
}

// Observe evaluates the health of a window that has a live player.
func (w *Watchdog) Observe(st *State, t Target, h player.Health, now time.Time) Decision {
	switch {
	case h.Failed():
		w.fail(st, now)
		if st.slow != nil {
			return Decision{Action: Halt, Rank: t.Rank, Status: window.Failed, Reason: h.Err()}
		}
		rank, degraded := w.nextRank(st, t)
		return Decision{Action: Restart, Rank: rank, Degraded: degraded, Status: window.Starting, Reason: h.Err()}

	case h.State == player.Playing:
		if st.PlayingSince.IsZero() {
			st.Reset()
			st.PlayingSince = now
		} else if w.cfg.RefreshTime > 0 && now.Sub(st.PlayingSince) >= w.cfg.RefreshTime {
			st.Reset()
			return Decision{Action: Refresh, Rank: t.Preferred, Status: window.Starting}
		}
		status := window.Playing
		if t.Rank != t.Preferred {
			status = window.Degraded
		}
		return Decision{Action: Keep, Rank: t.Rank, Status: status}
	}

	return Decision{Action: Keep, Rank: t.Rank, Status: t.Status}
}

// StartFailed records a failed start. The retry happens on a later sweep.
func (w *Watchdog) StartFailed(st *State, now time.Time) {
	w.fail(st, now)
}

// Retry evaluates a Failed window that has no player.
func (w *Watchdog) Retry(st *State, t Target, now time.Time) Decision {
	if st.slow != nil && !st.slow.AllowN(now, 1) {
		return Decision{Action: Keep, Rank: t.Rank, Status: window.Failed}
	}
	rank, degraded := w.nextRank(st, t)
	status := window.Failed
	if degraded {
		status = window.Starting
	}
	return Decision{Action: Restart, Rank: rank, Degraded: degraded, Status: status}
}

func (w *Watchdog) fail(st *State, now time.Time) {
	st.Restarts++
	st.RankFailures++
	st.PlayingSince = time.Time{}
	if st.Restarts > w.cfg.RetryCeiling && st.slow == nil {
		st.slow = rate.NewLimiter(rate.Every(w.cfg.FailedRetry), 1)
		st.slow.AllowN(now, 1)
	}
}

// nextRank steps down once the current rank failed often enough. Manually
// selected ranks are never degraded.
func (w *Watchdog) nextRank(st *State, t Target) (int, bool) {
	if st.RankFailures < w.cfg.RestartThreshold || t.Manual || t.Selector == nil || t.Selector.Lowest(t.Rank) {
		return t.Rank, false
	}
	next := t.Selector.Down(t.Rank)
	if next == t.Rank {
		return t.Rank, false
	}
	st.RankFailures = 0
	return next, true
}
