package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/edirooss/camwall/internal/player"
	"go.uber.org/zap"
)

type opKind int

const (
	opPlay opKind = iota
	opHalt
)

func (k opKind) String() string {
	if k == opHalt {
		return "halt"
	}
	return "play"
}

// op is one request to a window worker. Only the latest op of a window
// matters; gen orders them.
type op struct {
	gen  uint64
	kind opKind
	req  player.StartRequest
}

// result reports a finished op back to the event loop. Results of ops that
// were superseded while running are never sent.
type result struct {
	windowID int64
	gen      uint64
	kind     opKind
	handle   *player.Handle
	err      error
}

// worker serializes the player lifecycle of one window. It owns the only
// handle of that window and always stops it before starting the next one.
//
// The mailbox holds at most one pending op: submitting replaces whatever was
// queued and cancels a start that is still in flight for an older
// generation.
type worker struct {
	id      int64
	key     string
	log     *zap.Logger
	backend player.Backend
	budget  *budget
	results chan<- result

	mu       sync.Mutex
	next     *op
	latest   uint64
	inflight uint64
	cancel   context.CancelFunc
	closed   bool

	wake chan struct{}
	quit chan struct{}
	done chan struct{}

	cur *player.Handle // run goroutine only
}

func newWorker(log *zap.Logger, w *Window, backend player.Backend, b *budget, results chan<- result) *worker {
	return &worker{
		id:      w.ID,
		key:     w.Key,
		log:     log.With(zap.Int64("window_id", w.ID), zap.String("window", w.Key)),
		backend: backend,
		budget:  b,
		results: results,
		wake:    make(chan struct{}, 1),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// submit queues o, replacing any op not yet picked up.
func (w *worker) submit(o op) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.next = &o
	w.latest = o.gen
	if w.cancel != nil && w.inflight < o.gen {
		w.cancel()
	}
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// close makes the worker stop its player and exit. Pending ops are dropped.
func (w *worker) close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.next = nil
	if w.cancel != nil {
		w.cancel()
	}
	w.mu.Unlock()

	close(w.quit)
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// wait blocks until run returned or timeout elapsed.
func (w *worker) wait(timeout time.Duration) bool {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-w.done:
		return true
	case <-t.C:
		return false
	}
}

func (w *worker) superseded(gen uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed || w.latest > gen
}

func (w *worker) run(ctx context.Context) {
	defer close(w.done)
	defer w.stopCurrent()

	for range w.wake {
		for {
			w.mu.Lock()
			if w.closed {
				w.mu.Unlock()
				return
			}
			o := w.next
			w.next = nil
			if o == nil {
				w.mu.Unlock()
				break
			}
			opCtx, cancel := context.WithCancel(ctx)
			w.inflight = o.gen
			w.cancel = cancel
			w.mu.Unlock()

			res := w.apply(opCtx, *o)

			w.mu.Lock()
			w.cancel = nil
			w.mu.Unlock()
			cancel()

			if res != nil {
				w.emit(*res)
			}
		}
	}
}

func (w *worker) apply(ctx context.Context, o op) *result {
	res := &result{windowID: w.id, gen: o.gen, kind: o.kind}

	w.stopCurrent()
	if o.kind == opHalt {
		return res
	}
	if w.superseded(o.gen) {
		return nil
	}

	if !w.budget.tryAcquire(w.id) {
		res.err = ErrResourceExhausted
		return res
	}

	h, err := w.backend.Start(ctx, o.req)
	if err != nil {
		w.budget.release(w.id)
		if w.superseded(o.gen) {
			return nil
		}
		res.err = err
		return res
	}
	if w.superseded(o.gen) {
		w.log.Debug("discarding player of superseded start", zap.Uint64("gen", o.gen))
		w.backend.Stop(h)
		w.budget.release(w.id)
		return nil
	}

	w.cur = h
	res.handle = h
	return res
}

func (w *worker) stopCurrent() {
	if w.cur == nil {
		return
	}
	w.backend.Stop(w.cur)
	w.cur = nil
	w.budget.release(w.id)
}

func (w *worker) emit(r result) {
	select {
	case w.results <- r:
	case <-w.quit:
	}
}
