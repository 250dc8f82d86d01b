// Package supervisor owns every window of the wall and the players behind
// them.
//
// All state lives in one event loop (Run). Keys, timers, worker results,
// reloads and API requests are messages consumed in order; nothing else
// mutates a Window. Each window has a worker goroutine that serializes its
// player lifecycle, so a window never renders through two players.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/edirooss/camwall/internal/config"
	"github.com/edirooss/camwall/internal/domain/window"
	"github.com/edirooss/camwall/internal/infrastructure/processmgr"
	"github.com/edirooss/camwall/internal/input"
	"github.com/edirooss/camwall/internal/layout"
	"github.com/edirooss/camwall/internal/overlay"
	"github.com/edirooss/camwall/internal/player"
	"github.com/edirooss/camwall/internal/quality"
	"github.com/edirooss/camwall/internal/view"
	"github.com/edirooss/camwall/internal/watchdog"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrStopped       = errors.New("supervisor stopped")
	ErrUnknownWindow = errors.New("unknown window")
	ErrRankUnusable  = errors.New("rank not usable")
	ErrNotVisible    = errors.New("window not visible")
)

const (
	gridLayer       = 10
	fullscreenLayer = 20

	// statusInterval paces health polling while the watchdog is disabled.
	statusInterval = 5 * time.Second
	// controlIconTime is how long the control icon marks the display that
	// took over the keys.
	controlIconTime = 2 * time.Second
	// workerStopTimeout bounds the wait for one worker to stop its player.
	workerStopTimeout = processmgr.KillGrace + time.Second
	publishTimeout    = 2 * time.Second
)

const (
	keySweep  = "sweep"
	keyDigits = "digits"
)

func rotateKey(display int) string  { return "rotate:" + strconv.Itoa(display) }
func controlKey(display int) string { return "control:" + strconv.Itoa(display) }

// Clock is the time source of the loop. After may return nil, in which case
// timers only fire through Tick.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Publisher receives the window statuses after changes. Only the latest
// snapshot is delivered when publishing falls behind.
type Publisher interface {
	Publish(ctx context.Context, windows []WindowStatus) error
}

type Options struct {
	Log        *zap.Logger
	Backend    player.Backend
	Compositor overlay.Compositor // optional
	Publisher  Publisher          // optional
	Streams    StreamInfo         // optional
	Logs       *processmgr.LogManager

	// Subtitles returns an OSD subtitle file for a window. Used only when
	// enablevideoosd is set.
	Subtitles func(key, label string) (string, error)

	Clock      Clock
	IgnoreQuit bool
	// Quit is called when the quit key is pressed, before Run returns.
	Quit func()
}

type eventKind int

const (
	evKey eventKind = iota
	evTick
	evReload
	evSnapshot
	evQuality
)

type event struct {
	kind  eventKind
	key   input.Key
	now   time.Time
	cfg   *config.Config
	id    int64
	rank  int
	reply chan reply
}

type reply struct {
	windows []WindowStatus
	err     error
}

type Supervisor struct {
	log  *zap.Logger
	opts Options

	events  chan event
	results chan result
	stopped chan struct{}
	pub     chan []WindowStatus

	// owned by the loop
	runCtx  context.Context
	m       *model
	wd      *watchdog.Watchdog
	budget  *budget
	timers  *deadlines
	keys    input.Decoder
	focus   int
	control map[int]bool
	scenes  map[int]overlay.Scene
	subs    map[string]string
	lastID  int64
	quit    bool
}

func New(cfg *config.Config, opts Options) (*Supervisor, error) {
	if opts.Backend == nil {
		return nil, errors.New("supervisor: no player backend")
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}

	s := &Supervisor{
		log:     opts.Log.Named("supervisor"),
		opts:    opts,
		events:  make(chan event, 16),
		results: make(chan result, 16),
		stopped: make(chan struct{}),
		pub:     make(chan []WindowStatus, 1),
		budget:  newBudget(cfg.Advanced.MaxDecoders),
	}
	m, err := s.build(cfg, opts.Clock.Now())
	if err != nil {
		return nil, err
	}
	s.install(m)
	return s, nil
}

// build lays out cfg without touching the running model.
func (s *Supervisor) build(cfg *config.Config, now time.Time) (*model, error) {
	mode, err := quality.ParseMode(cfg.Advanced.StreamQuality)
	if err != nil {
		return nil, err
	}
	return buildModel(cfg, s.opts.Streams, mode, s.lastID, now)
}

// install makes m the current model and resets all per-model loop state.
// Workers are not started.
func (s *Supervisor) install(m *model) {
	if id := m.lastID(); id > s.lastID {
		s.lastID = id
	}
	adv := m.cfg.Advanced

	s.m = m
	s.wd = watchdog.New(watchdogConfig(adv))
	s.budget.setLimit(adv.MaxDecoders)
	s.timers = newDeadlines()
	s.keys = input.Decoder{IgnoreQuit: s.opts.IgnoreQuit}
	s.control = map[int]bool{}
	s.scenes = map[int]overlay.Scene{}
	s.subs = map[string]string{}
	if m.display(s.focus) == nil && len(m.displays) > 0 {
		s.focus = m.displays[0].ID
	}
}

func watchdogConfig(adv config.Advanced) watchdog.Config {
	return watchdog.Config{
		Interval:         adv.WatchdogInterval(),
		RefreshTime:      adv.RefreshDuration(),
		RestartThreshold: adv.RestartThreshold,
		RetryCeiling:     adv.RetryCeiling,
		FailedRetry:      adv.FailedRetryPeriod(),
	}
}

// Run drives the wall until ctx is done or the quit key is pressed. It
// stops every player before returning.
func (s *Supervisor) Run(ctx context.Context) error {
	defer close(s.stopped)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.runCtx = runCtx

	pubDone := make(chan struct{})
	go s.runPublisher(runCtx, pubDone)

	now := s.opts.Clock.Now()
	s.start(now)
	s.log.Info("supervisor started",
		zap.String("backend", s.opts.Backend.Name()),
		zap.Int("displays", len(s.m.displays)),
		zap.Int("windows", len(s.m.windows)),
		zap.Int("max_decoders", s.budget.capacity()))

	for !s.quit {
		var timer <-chan time.Time
		if _, when, ok := s.timers.next(); ok {
			timer = s.opts.Clock.After(max(when.Sub(s.opts.Clock.Now()), 0))
		}

		select {
		case <-ctx.Done():
			return s.shutdown(cancel, pubDone)
		case ev := <-s.events:
			r := s.handle(ev)
			if ev.kind != evSnapshot {
				s.refresh()
			}
			ev.reply <- r
			continue
		case r := <-s.results:
			s.handleResult(r)
		case <-timer:
			s.fire(s.opts.Clock.Now())
		}
		s.refresh()
	}

	err := s.shutdown(cancel, pubDone)
	if s.opts.Quit != nil {
		s.opts.Quit()
	}
	return err
}

// start launches the workers of the current model and brings the wall into
// its initial view.
func (s *Supervisor) start(now time.Time) {
	for _, w := range s.m.windows {
		if !w.Playable() {
			continue
		}
		w.worker = newWorker(s.log, w, s.opts.Backend, s.budget, s.results)
		go w.worker.run(s.runCtx)
	}
	s.reconcile(now)
	s.timers.set(keySweep, now.Add(s.sweepInterval()))
	for _, d := range s.m.displays {
		s.armRotation(d)
	}
	s.refresh()
}

// SweepInterval is how often a wall configured with adv polls its players
// and republishes every status.
func SweepInterval(adv config.Advanced) time.Duration {
	if d := adv.WatchdogInterval(); d > 0 {
		return d
	}
	return statusInterval
}

func (s *Supervisor) sweepInterval() time.Duration { return SweepInterval(s.m.cfg.Advanced) }

func (s *Supervisor) shutdown(cancel context.CancelFunc, pubDone <-chan struct{}) error {
	s.log.Info("stopping players", zap.Int("live", s.budget.inUse()))
	err := s.stopWorkers(s.m)
	cancel()
	<-pubDone
	if s.opts.Compositor != nil {
		s.opts.Compositor.Close()
	}
	if err != nil {
		s.log.Error("shutdown incomplete", zap.Error(err))
		return err
	}
	s.log.Info("supervisor stopped")
	return nil
}

// stopWorkers closes every worker of m and waits for their players to go
// away concurrently.
func (s *Supervisor) stopWorkers(m *model) error {
	var g errgroup.Group
	for _, w := range m.windows {
		wk := w.worker
		if wk == nil {
			continue
		}
		wk.close()
		g.Go(func() error {
			if !wk.wait(workerStopTimeout) {
				return fmt.Errorf("window %s: player did not stop within %s", wk.key, workerStopTimeout)
			}
			return nil
		})
	}
	return g.Wait()
}

// --- requests -----------------------------------------------------------------

func (s *Supervisor) send(ctx context.Context, ev event) (reply, error) {
	ev.reply = make(chan reply, 1)
	select {
	case s.events <- ev:
	case <-ctx.Done():
		return reply{}, ctx.Err()
	case <-s.stopped:
		return reply{}, ErrStopped
	}
	select {
	case r := <-ev.reply:
		return r, r.err
	case <-ctx.Done():
		return reply{}, ctx.Err()
	case <-s.stopped:
		select {
		case r := <-ev.reply:
			return r, r.err
		default:
			return reply{}, ErrStopped
		}
	}
}

// Key feeds one key press. Supervisor implements input.Sink.
func (s *Supervisor) Key(ctx context.Context, k input.Key) error {
	_, err := s.send(ctx, event{kind: evKey, key: k})
	return err
}

// Tick fires every timer due at now.
func (s *Supervisor) Tick(ctx context.Context, now time.Time) error {
	_, err := s.send(ctx, event{kind: evTick, now: now})
	return err
}

// Reload replaces the whole model with cfg. Every window is re-bound; the
// old players are stopped first.
func (s *Supervisor) Reload(ctx context.Context, cfg *config.Config) error {
	_, err := s.send(ctx, event{kind: evReload, cfg: cfg})
	return err
}

func (s *Supervisor) Snapshot(ctx context.Context) ([]WindowStatus, error) {
	r, err := s.send(ctx, event{kind: evSnapshot})
	return r.windows, err
}

// SetQuality pins a visible window to rank, as the up/down keys do.
func (s *Supervisor) SetQuality(ctx context.Context, id int64, rank int) error {
	_, err := s.send(ctx, event{kind: evQuality, id: id, rank: rank})
	return err
}

func (s *Supervisor) handle(ev event) reply {
	now := s.opts.Clock.Now()
	var r reply

	switch ev.kind {
	case evKey:
		if a, ok := s.keys.Key(ev.key, now); ok {
			s.act(a, now)
		}
		s.armDigits()
	case evTick:
		s.fire(ev.now)
	case evReload:
		r.err = s.reload(ev.cfg, now)
	case evSnapshot:
		r.windows = s.snapshot()
	case evQuality:
		r.err = s.setQuality(ev.id, ev.rank)
	}
	return r
}

func (s *Supervisor) reload(cfg *config.Config, now time.Time) error {
	m, err := s.build(cfg, now)
	if err != nil {
		s.log.Error("reload failed, keeping previous configuration", zap.Error(err))
		return err
	}

	// Old players are gone before any new one starts, at the cost of
	// blocking the loop for up to workerStopTimeout.
	old := s.m
	if err := s.stopWorkers(old); err != nil {
		s.log.Warn("reload: old players still stopping", zap.Error(err))
	}
	if s.opts.Logs != nil {
		for _, w := range old.windows {
			s.opts.Logs.Drop(w.ID)
		}
	}
	s.install(m)
	s.start(now)
	s.log.Info("configuration reloaded", zap.String("source", cfg.Source), zap.Int("windows", len(m.windows)))
	return nil
}

// --- timers -------------------------------------------------------------------

func (s *Supervisor) fire(now time.Time) {
	for _, key := range s.timers.popDue(now) {
		kind, arg, _ := strings.Cut(key, ":")
		switch kind {
		case keySweep:
			s.sweep(now)
			s.timers.set(keySweep, now.Add(s.sweepInterval()))
		case keyDigits:
			if a, ok := s.keys.Flush(now); ok {
				s.act(a, now)
			}
			s.armDigits()
		case "rotate":
			id, _ := strconv.Atoi(arg)
			if d := s.m.display(id); d != nil {
				if d.View.Tick(now) {
					s.log.Debug("rotate", zap.Int("display", id), zap.Stringer("view", d.View.State()))
					s.reconcile(now)
				}
				s.armRotation(d)
			}
		case "control":
			id, _ := strconv.Atoi(arg)
			delete(s.control, id)
		}
	}
}

func (s *Supervisor) armRotation(d *Display) {
	if when, ok := d.View.Deadline(); ok {
		s.timers.set(rotateKey(d.ID), when)
		return
	}
	s.timers.remove(rotateKey(d.ID))
}

func (s *Supervisor) armDigits() {
	if when, ok := s.keys.Deadline(); ok {
		s.timers.set(keyDigits, when)
		return
	}
	s.timers.remove(keyDigits)
}

// --- input --------------------------------------------------------------------

var viewEvents = map[input.ActionKind]view.EventKind{
	input.ActLeft:        view.Left,
	input.ActRight:       view.Right,
	input.ActEnter:       view.Enter,
	input.ActEscape:      view.Escape,
	input.ActTogglePause: view.TogglePause,
	input.ActNumber:      view.Number,
}

func (s *Supervisor) act(a input.Action, now time.Time) {
	d := s.m.display(s.focus)

	switch a.Kind {
	case input.ActQuit:
		s.log.Info("quit requested")
		s.quit = true
	case input.ActSwitchDisplay:
		s.switchDisplay(now)
	case input.ActQualityUp, input.ActQualityDown:
		s.stepQuality(d, a.Kind == input.ActQualityUp)
	default:
		kind, ok := viewEvents[a.Kind]
		if !ok || d == nil {
			return
		}
		if d.View.Apply(view.Event{Kind: kind, N: a.N}, now) {
			s.log.Debug("view", zap.Int("display", d.ID), zap.Stringer("state", d.View.State()))
			s.reconcile(now)
			s.armRotation(d)
		}
	}
}

func (s *Supervisor) switchDisplay(now time.Time) {
	ds := s.m.displays
	if len(ds) == 0 {
		return
	}
	next := 0
	for i, d := range ds {
		if d.ID == s.focus {
			next = (i + 1) % len(ds)
		}
	}
	s.focus = ds[next].ID
	s.control[s.focus] = true
	s.timers.set(controlKey(s.focus), now.Add(controlIconTime))
	s.log.Info("keys control display", zap.Int("display", s.focus))
}

// --- placement ----------------------------------------------------------------

// desired is where w should render for the current view of d.
func desired(d *Display, sc *Screen, st view.State, w *Window) placement {
	if sc.Index != st.Screen {
		return placement{}
	}
	if st.Mode == view.Fullscreen {
		if w.Slot != st.Window {
			return placement{}
		}
		return placement{visible: true, fullscreen: true, rect: d.Full}
	}
	return placement{visible: true, rect: sc.Rects[w.Slot]}
}

// reconcile moves every window to its desired placement. All halts are
// issued before any play so that freed decoder slots can be reused.
func (s *Supervisor) reconcile(now time.Time) {
	var plays []*Window
	for _, d := range s.m.displays {
		st := d.View.State()
		for _, sc := range d.Screens {
			for _, w := range sc.Windows {
				p := desired(d, sc, st, w)
				if p == w.placement {
					continue
				}
				prev := w.placement
				w.placement = p
				if !w.Playable() {
					continue
				}
				if prev.fullscreen && !p.fullscreen {
					s.clearManual(w)
				}
				if !p.visible {
					s.hide(w)
					continue
				}
				plays = append(plays, w)
			}
		}
	}
	for _, w := range plays {
		w.status = window.Starting
		s.play(w, w.rank)
	}
}

// hide stops the player of w and forgets everything learned while it was
// visible.
func (s *Supervisor) hide(w *Window) {
	s.clearManual(w)
	w.rank = w.preferred
	w.wd.Reset()
	w.starved = false
	w.lastErr = nil
	w.status = window.Idle
	s.halt(w)
}

func (s *Supervisor) clearManual(w *Window) {
	if !w.manual {
		return
	}
	w.manual = false
	w.preferred = w.Selector.Initial()
	w.rank = w.preferred
	w.wd.Reset()
}

func (s *Supervisor) halt(w *Window) {
	w.gen++
	w.pending = true
	w.worker.submit(op{gen: w.gen, kind: opHalt})
}

// play (re)starts w on rank in its current placement. The caller sets the
// status.
func (s *Supervisor) play(w *Window, rank int) {
	ch := w.Device.Channel(rank)
	if ch == nil {
		w.status = window.Failed
		w.lastErr = fmt.Errorf("%w: %d", ErrRankUnusable, rank)
		return
	}
	w.rank = rank
	w.gen++
	w.pending = true
	w.starved = false
	w.worker.submit(op{gen: w.gen, kind: opPlay, req: s.request(w, rank)})
}

func (s *Supervisor) request(w *Window, rank int) player.StartRequest {
	adv := s.m.cfg.Advanced
	ch := w.Device.Channel(rank)
	full := w.placement.fullscreen

	req := player.StartRequest{
		WindowID:    w.ID,
		WindowKey:   w.Key,
		URL:         ch.URL,
		Printable:   ch.PrintableURL(),
		Rect:        w.placement.rect,
		Fullscreen:  full,
		BufferTime:  adv.BufferDuration(),
		PlayTimeout: adv.PlayTimeoutDuration(),
		Display:     w.Display,
		Layer:       gridLayer,
		ForceUDP:    w.Device.ForceUDP,
		Audio:       full && adv.AudioInFullscreen(),
		Volume:      adv.AudioVolume,
	}
	if full {
		req.Layer = fullscreenLayer
	}
	if s.opts.Streams != nil {
		req.CodecHint = s.opts.Streams.CodecHint(ch)
	}
	if adv.EnableVideoOSD && s.opts.Subtitles != nil {
		req.Subtitle = s.subtitle(w)
	}
	return req
}

func (s *Supervisor) subtitle(w *Window) string {
	if path, ok := s.subs[w.Key]; ok {
		return path
	}
	path, err := s.opts.Subtitles(w.Key, w.label())
	if err != nil {
		s.log.Warn("window osd unavailable", zap.String("window", w.Key), zap.Error(err))
		return ""
	}
	s.subs[w.Key] = path
	return path
}

// --- results ------------------------------------------------------------------

func (s *Supervisor) handleResult(r result) {
	w, ok := s.m.byID[r.windowID]
	if !ok || r.gen != w.gen {
		return
	}
	now := s.opts.Clock.Now()
	log := s.log.With(zap.Int64("window_id", w.ID), zap.String("window", w.Key))
	w.pending = false

	switch {
	case r.kind == opHalt:
		w.handle = nil
		s.retryStarved()

	case errors.Is(r.err, ErrResourceExhausted):
		w.handle = nil
		w.starved = true
		w.status = window.Idle
		w.lastErr = r.err
		log.Warn("no decoder left, window stays idle", zap.Int("max_decoders", s.budget.capacity()))
		s.retryStarved()

	case r.err != nil:
		w.handle = nil
		w.lastErr = r.err
		w.status = window.Failed
		s.wd.StartFailed(&w.wd, now)
		log.Warn("player start failed",
			zap.Int("attempt", w.wd.Restarts),
			zap.Int("rank", w.rank),
			zap.Error(r.err))
		s.retryStarved()

	default:
		w.handle = r.handle
		w.lastHealth = now
		w.lastErr = nil
		w.status = window.Starting
		log.Debug("player up", zap.Int("rank", w.rank), zap.String("player_id", r.handle.ID.String()))
	}
}

// retryStarved replays windows that found no free decoder, as far as the
// budget allows.
func (s *Supervisor) retryStarved() {
	free := s.budget.capacity() - s.budget.inUse()
	for _, w := range s.m.windows {
		if free <= 0 {
			return
		}
		if !w.starved || w.pending || !w.placement.visible {
			continue
		}
		w.status = window.Starting
		s.play(w, w.rank)
		free--
	}
}

// --- watchdog -----------------------------------------------------------------

func (s *Supervisor) target(w *Window) watchdog.Target {
	return watchdog.Target{
		Rank:      w.rank,
		Preferred: w.preferred,
		Manual:    w.manual,
		Status:    w.status,
		Selector:  w.Selector,
	}
}

// sweep polls every visible window once. Hidden windows have no player and
// are skipped.
func (s *Supervisor) sweep(now time.Time) {
	for _, w := range s.m.windows {
		if !w.placement.visible || !w.Playable() || w.pending {
			continue
		}
		switch {
		case w.handle != nil:
			s.observe(w, now)
		case w.status == window.Failed && s.wd.Enabled():
			d := s.wd.Retry(&w.wd, s.target(w), now)
			if d.Action != watchdog.Restart {
				continue
			}
			s.log.Info("retrying window",
				zap.String("window", w.Key),
				zap.Int("attempt", w.wd.Restarts+1),
				zap.Int("rank", d.Rank),
				zap.Bool("degraded", d.Degraded))
			w.status = d.Status
			s.play(w, d.Rank)
		}
	}
	s.retryStarved()
}

func (s *Supervisor) observe(w *Window, now time.Time) {
	h := s.opts.Backend.PollHealth(w.handle)
	w.lastHealth = now

	if !s.wd.Enabled() {
		switch {
		case h.Failed():
			w.status = window.Failed
			w.lastErr = h.Err()
		case h.State == player.Playing && w.rank != w.preferred:
			w.status = window.Degraded
		case h.State == player.Playing:
			w.status = window.Playing
		}
		return
	}

	d := s.wd.Observe(&w.wd, s.target(w), h, now)
	log := s.log.With(zap.Int64("window_id", w.ID), zap.String("window", w.Key))
	switch d.Action {
	case watchdog.Keep:
		w.status = d.Status
	case watchdog.Restart:
		log.Warn("restarting stream",
			zap.Stringer("health", h),
			zap.Int("restarts", w.wd.Restarts),
			zap.Int("rank", d.Rank),
			zap.Bool("degraded", d.Degraded))
		w.status = d.Status
		w.lastErr = d.Reason
		s.play(w, d.Rank)
	case watchdog.Refresh:
		log.Info("refreshing stream", zap.Int("rank", d.Rank))
		w.status = d.Status
		s.play(w, d.Rank)
	case watchdog.Halt:
		log.Warn("stream keeps failing, retrying slowly",
			zap.Int("restarts", w.wd.Restarts),
			zap.Duration("every", s.wd.Config().FailedRetry),
			zap.Error(d.Reason))
		w.status = window.Failed
		w.lastErr = d.Reason
		s.halt(w)
	}
}

// --- quality ------------------------------------------------------------------

// stepQuality handles up/down: the fullscreen window, or every window of the
// active grid screen, moves one rank.
func (s *Supervisor) stepQuality(d *Display, up bool) {
	if d == nil {
		return
	}
	for _, sc := range d.Screens {
		for _, w := range sc.Windows {
			if !w.placement.visible || !w.Playable() {
				continue
			}
			next := w.Selector.Down(w.rank)
			if up {
				next = w.Selector.Up(w.rank)
			}
			if next != w.rank {
				s.pin(w, next)
			}
		}
	}
}

func (s *Supervisor) setQuality(id int64, rank int) error {
	w, ok := s.m.byID[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownWindow, id)
	}
	if !w.Playable() || !w.Selector.Has(rank) {
		return fmt.Errorf("window %s: %w: %d", w.Key, ErrRankUnusable, rank)
	}
	if !w.placement.visible {
		return fmt.Errorf("window %s: %w", w.Key, ErrNotVisible)
	}
	s.pin(w, rank)
	return nil
}

// pin makes rank the manual choice of w. The new generation cancels any
// restart the watchdog has in flight.
func (s *Supervisor) pin(w *Window, rank int) {
	s.log.Info("manual quality", zap.String("window", w.Key), zap.Int("from", w.rank), zap.Int("to", rank))
	w.manual = true
	w.preferred = rank
	w.wd.Reset()
	w.status = window.Starting
	s.play(w, rank)
}

// --- output -------------------------------------------------------------------

func (s *Supervisor) refresh() {
	s.render()
	s.publish(s.snapshot())
}

func (s *Supervisor) render() {
	if s.opts.Compositor == nil {
		return
	}
	for _, d := range s.m.displays {
		sc := s.scene(d)
		if last, ok := s.scenes[d.ID]; ok && last.Equal(sc) {
			continue
		}
		s.scenes[d.ID] = sc
		s.opts.Compositor.Render(sc)
	}
}

func (s *Supervisor) scene(d *Display) overlay.Scene {
	out := overlay.Scene{Display: d.ID}
	if len(d.Screens) == 0 {
		return out
	}
	st := d.View.State()
	sc := d.Screens[st.Screen]
	out.Layout = sc.Layout
	if st.Mode == view.Fullscreen {
		out.Layout = layout.Single
		out.Fullscreen = true
	}
	for _, w := range sc.Windows {
		if !w.placement.visible {
			continue
		}
		out.Tiles = append(out.Tiles, overlay.Tile{
			Key:    w.Key,
			Label:  w.label(),
			Rect:   w.placement.rect,
			Status: w.status,
		})
	}
	if s.m.cfg.Advanced.Icons {
		out.Icon = overlay.PickIcon(s.control[d.ID], st.Paused, out.Tiles)
	}
	return out
}

// publish hands ws to the publisher goroutine, replacing an undelivered
// snapshot.
func (s *Supervisor) publish(ws []WindowStatus) {
	if s.opts.Publisher == nil {
		return
	}
	for {
		select {
		case s.pub <- ws:
			return
		default:
		}
		select {
		case <-s.pub:
		default:
		}
	}
}

func (s *Supervisor) runPublisher(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	if s.opts.Publisher == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case ws := <-s.pub:
			pctx, cancel := context.WithTimeout(ctx, publishTimeout)
			err := s.opts.Publisher.Publish(pctx, ws)
			cancel()
			if err != nil && ctx.Err() == nil {
				s.log.Warn("publish window status failed", zap.Error(err))
			}
		}
	}
}
