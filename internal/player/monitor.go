package player

import (
	"context"
	"sync"
	"time"
)

// sample is one progress observation. Position is in microseconds, negative
// when the backend does not report it.
type sample struct {
	Position int64
	Playing  bool
}

// probe fetches one sample; it may block up to the context deadline.
type probe func(ctx context.Context) (sample, error)

type exitWatcher interface {
	Exited() (int, bool)
}

// monitor tracks progress of one player. observe is fed by run; health is
// read by PollHealth and never blocks.
type monitor struct {
	proc    exitWatcher
	timeout time.Duration
	started time.Time

	mu           sync.Mutex
	progressed   bool
	lastPosition int64
	lastProgress time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

func newMonitor(proc exitWatcher, timeout time.Duration, now time.Time) *monitor {
	return &monitor{
		proc:         proc,
		timeout:      timeout,
		started:      now,
		lastPosition: -1,
		done:         make(chan struct{}),
	}
}

// run polls p every interval until ctx is cancelled or the process exits.
func (m *monitor) run(ctx context.Context, p probe, interval time.Duration, clock func() time.Time, exited <-chan struct{}) {
	ctx, m.cancel = context.WithCancel(ctx)
	go func() {
		defer close(m.done)
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-exited:
				return
			case <-t.C:
			}

			pctx, cancel := context.WithTimeout(ctx, dbusTimeout)
			s, err := p(pctx)
			cancel()
			if err != nil {
				continue
			}
			m.observe(clock(), s)
		}
	}()
}

// halt cancels polling and waits for the poller to return.
func (m *monitor) halt() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
}

func (m *monitor) observe(now time.Time, s sample) {
	m.mu.Lock()
	defer m.mu.Unlock()

	advanced := false
	switch {
	case s.Position >= 0:
		advanced = s.Position > m.lastPosition && (m.lastPosition >= 0 || s.Position > 0)
		m.lastPosition = s.Position
	default:
		advanced = s.Playing
	}
	if advanced {
		m.progressed = true
		m.lastProgress = now
	}
}

func (m *monitor) health(now time.Time) Health {
	if code, exited := m.proc.Exited(); exited {
		return Health{State: Exited, ExitCode: code}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.progressed {
		if now.Sub(m.started) > m.timeout {
			return Health{State: Stalled}
		}
		return Health{State: Starting}
	}
	if now.Sub(m.lastProgress) > m.timeout {
		return Health{State: Stalled}
	}
	return Health{State: Playing}
}
