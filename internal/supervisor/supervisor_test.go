package supervisor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/edirooss/camwall/internal/config"
	"github.com/edirooss/camwall/internal/domain/window"
	"github.com/edirooss/camwall/internal/input"
	"github.com/edirooss/camwall/internal/layout"
	"github.com/edirooss/camwall/internal/overlay"
	"github.com/edirooss/camwall/internal/player"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// After never fires; tests drive timers through Tick.
func (c *fakeClock) After(time.Duration) <-chan time.Time { return nil }

func (c *fakeClock) add(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

type recorder struct {
	mu     sync.Mutex
	scenes []overlay.Scene
	closed bool
}

func (r *recorder) Render(s overlay.Scene) {
	r.mu.Lock()
	r.scenes = append(r.scenes, s)
	r.mu.Unlock()
}

func (r *recorder) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}

// statuses returns the distinct consecutive statuses rendered for key.
func (r *recorder) statuses(key string) []window.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []window.Status
	for _, s := range r.scenes {
		for _, tile := range s.Tiles {
			if tile.Key == key && (len(out) == 0 || out[len(out)-1] != tile.Status) {
				out = append(out, tile.Status)
			}
		}
	}
	return out
}

func (r *recorder) last(display int) overlay.Scene {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.scenes) - 1; i >= 0; i-- {
		if r.scenes[i].Display == display {
			return r.scenes[i]
		}
	}
	return overlay.Scene{}
}

type harness struct {
	t   *testing.T
	clk *fakeClock
	sim *player.Simulated
	rec *recorder
	sup *Supervisor

	cancel context.CancelFunc
	done   chan error
}

func newHarness(t *testing.T, cfg *config.Config, opts ...func(*Options)) *harness {
	t.Helper()
	clk := &fakeClock{now: t0}
	h := &harness{
		t:    t,
		clk:  clk,
		sim:  player.NewSimulated(zap.NewNop(), clk.Now),
		rec:  &recorder{},
		done: make(chan error, 1),
	}
	o := Options{Log: zap.NewNop(), Backend: h.sim, Compositor: h.rec, Clock: clk}
	for _, fn := range opts {
		fn(&o)
	}
	sup, err := New(cfg, o)
	require.NoError(t, err)
	h.sup = sup
	return h
}

func (h *harness) run() {
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.done <- h.sup.Run(ctx) }()
	h.t.Cleanup(func() {
		cancel()
		select {
		case <-h.sup.stopped:
		case <-time.After(10 * time.Second):
			h.t.Error("supervisor did not stop")
		}
	})
}

func (h *harness) advance(d time.Duration) {
	h.t.Helper()
	require.NoError(h.t, h.sup.Tick(context.Background(), h.clk.add(d)))
}

func (h *harness) key(k input.Key) {
	h.t.Helper()
	require.NoError(h.t, h.sup.Key(context.Background(), k))
}

func (h *harness) window(key string) WindowStatus {
	ws, _ := h.sup.Snapshot(context.Background())
	for _, w := range ws {
		if w.Key == key {
			return w
		}
	}
	return WindowStatus{}
}

func (h *harness) eventually(cond func() bool, msgAndArgs ...any) {
	h.t.Helper()
	require.Eventually(h.t, cond, 3*time.Second, 5*time.Millisecond, msgAndArgs...)
}

// up waits for key to run a player other than prev and returns its id.
func (h *harness) up(key, prev string) string {
	h.t.Helper()
	var id string
	h.eventually(func() bool {
		id = h.window(key).Player
		return id != "" && id != prev
	}, "no new player for %s", key)
	return id
}

func (h *harness) urls() []string {
	var out []string
	for _, req := range h.sim.Starts() {
		out = append(out, req.URL)
	}
	return out
}

func testConfig(t *testing.T, adv func(*config.Advanced), screens ...config.ScreenEntry) *config.Config {
	t.Helper()
	a := config.DefaultAdvanced()
	a.Player = "simulated"
	a.ScreenWidth, a.ScreenHeight = 1920, 1080
	if adv != nil {
		adv(&a)
	}
	f := config.File{
		Advanced: a,
		Devices: []config.DeviceEntry{
			{ID: "d1", Name: "Front door", Channels: map[string]string{"1": "rtsp://cam1/1", "2": "rtsp://cam1/2"}},
			{ID: "d2", Channels: map[string]string{"1": "rtsp://cam2/1", "2": "rtsp://cam2/2", "3": "rtsp://cam2/3"}},
			{ID: "d3", Channels: map[string]string{"1": "rtsp://cam3/1"}},
		},
		Screens: screens,
	}
	cfg, err := config.Build("test", f, nil)
	require.NoError(t, err)
	return cfg
}

func single(device string) config.ScreenEntry {
	return config.ScreenEntry{Layout: 1, Windows: []string{device}}
}

const w1 = "D01_S01_W01"

func TestStartFailuresStepDownAfterThreshold(t *testing.T) {
	h := newHarness(t, testConfig(t, nil, single("d1")))
	h.sim.FailStarts("rtsp://cam1/1", 3)
	require.Equal(t, window.Idle, h.sup.m.windows[0].status)

	h.run()
	for attempt := 1; attempt <= 3; attempt++ {
		if attempt > 1 {
			h.advance(15 * time.Second)
		}
		h.eventually(func() bool {
			ws := h.window(w1)
			return ws.Status == window.Failed && ws.Restarts == attempt
		}, "attempt %d", attempt)
	}

	h.advance(15 * time.Second)
	h.up(w1, "")
	ws := h.window(w1)
	require.Equal(t, window.Starting, ws.Status)
	require.Equal(t, 2, ws.Rank)
	require.Equal(t, 1, ws.Preferred)
	require.Equal(t, []string{"rtsp://cam1/1", "rtsp://cam1/1", "rtsp://cam1/1", "rtsp://cam1/2"}, h.urls())
	require.Equal(t, []window.Status{window.Starting, window.Failed, window.Starting}, h.rec.statuses(w1))

	h.advance(15 * time.Second)
	ws = h.window(w1)
	require.Equal(t, window.Degraded, ws.Status)
	require.Zero(t, ws.Restarts)
}

func TestExitedPlayerRestartsWithinOneSweep(t *testing.T) {
	h := newHarness(t, testConfig(t, nil, single("d1")))
	h.run()

	first := h.up(w1, "")
	h.advance(15 * time.Second)
	require.Equal(t, window.Playing, h.window(w1).Status)

	require.True(t, h.sim.Crash(h.window(w1).ID, 1))
	h.advance(15 * time.Second)
	ws := h.window(w1)
	require.Equal(t, window.Starting, ws.Status)
	require.Equal(t, 1, ws.Restarts)
	require.Contains(t, ws.Error, "exited")

	h.up(w1, first)
	require.Equal(t, 1, h.sim.Live())
	require.Len(t, h.sim.Starts(), 2)
	require.Zero(t, h.sim.Violations())

	h.advance(15 * time.Second)
	require.Zero(t, h.window(w1).Restarts)
}

func TestRefreshAfterRefreshTime(t *testing.T) {
	h := newHarness(t, testConfig(t, nil, single("d1")))
	h.run()

	first := h.up(w1, "")
	h.advance(15 * time.Second)
	require.Equal(t, window.Playing, h.window(w1).Status)

	h.advance(time.Hour - time.Second)
	require.Equal(t, window.Playing, h.window(w1).Status)
	require.Len(t, h.sim.Starts(), 1)

	h.advance(15 * time.Second)
	ws := h.window(w1)
	require.Equal(t, window.Starting, ws.Status)
	require.Zero(t, ws.Restarts)

	h.up(w1, first)
	require.Equal(t, []string{"rtsp://cam1/1", "rtsp://cam1/1"}, h.urls())

	h.advance(15 * time.Second)
	ws = h.window(w1)
	require.Equal(t, window.Playing, ws.Status)
	require.Zero(t, ws.Restarts)
}

func TestFullscreenRoundTrip(t *testing.T) {
	cfg := testConfig(t, nil, config.ScreenEntry{Layout: 4, Windows: []string{"d1", "d2"}})
	h := newHarness(t, cfg)
	h.run()
	h.up(w1, "")
	h.up("D01_S01_W02", "")

	h.key(input.KeyEnter)
	require.True(t, h.window(w1).Fullscreen)
	require.False(t, h.window("D01_S01_W02").Visible)
	h.eventually(func() bool { return len(h.sim.Starts()) == 3 && h.sim.Live() == 1 })

	starts := h.sim.Starts()
	last := starts[len(starts)-1]
	require.Equal(t, w1, last.WindowKey)
	require.True(t, last.Fullscreen)
	require.Equal(t, fullscreenLayer, last.Layer)
	require.Equal(t, layout.Full(1920, 1080, 0), last.Rect)

	scene := h.rec.last(1)
	require.True(t, scene.Fullscreen)
	require.Equal(t, layout.Single, scene.Layout)
	require.Len(t, scene.Tiles, 1)

	h.key(input.KeyEscape)
	h.eventually(func() bool { return len(h.sim.Starts()) == 5 && h.sim.Live() == 2 })
	require.Zero(t, h.sim.Violations())

	rects, err := layout.Compute(layout.Grid2x2, 1920, 1080, 0)
	require.NoError(t, err)
	for _, req := range h.sim.Starts()[3:] {
		require.False(t, req.Fullscreen)
		require.Equal(t, gridLayer, req.Layer)
		require.Contains(t, rects[:2], req.Rect)
	}
	require.Equal(t, layout.Grid2x2, h.rec.last(1).Layout)
}

func TestFullscreenNavigationSkipsEmptySlots(t *testing.T) {
	cfg := testConfig(t, nil, config.ScreenEntry{Layout: 4, Windows: []string{"d1", "d2"}})
	h := newHarness(t, cfg)
	h.run()
	h.up(w1, "")

	h.key(input.KeyEnter)
	h.key(input.KeyRight)
	require.True(t, h.window("D01_S01_W02").Fullscreen)

	h.key(input.KeyRight)
	require.True(t, h.window(w1).Fullscreen)
	require.False(t, h.window("D01_S01_W03").Visible)

	h.key(input.KeyLeft)
	require.True(t, h.window("D01_S01_W02").Fullscreen)
}

func TestDecoderBudget(t *testing.T) {
	cfg := testConfig(t, func(a *config.Advanced) { a.MaxDecoders = 1 },
		config.ScreenEntry{Layout: 4, Windows: []string{"d1", "d2"}})
	h := newHarness(t, cfg)
	h.run()

	var starved WindowStatus
	h.eventually(func() bool {
		ws, _ := h.sup.Snapshot(context.Background())
		var playing int
		for _, w := range ws {
			switch {
			case w.Player != "":
				playing++
			case w.Device != "" && w.Status == window.Idle && w.Error != "":
				starved = w
			}
		}
		return playing == 1 && starved.Key != ""
	})
	require.Contains(t, starved.Error, ErrResourceExhausted.Error())
	require.Equal(t, 1, h.sim.Live())

	h.key(input.DigitKey(starved.Slot + 1))
	h.advance(input.MultiDigitGap)
	require.True(t, h.window(starved.Key).Fullscreen)

	h.up(starved.Key, "")
	require.Equal(t, 1, h.sim.Live())
	require.LessOrEqual(t, h.sup.budget.inUse(), 1)
	require.Zero(t, h.sim.Violations())
}

func TestManualQualityIsNeverDegraded(t *testing.T) {
	h := newHarness(t, testConfig(t, nil, single("d2")))
	h.run()
	p := h.up(w1, "")

	h.key(input.KeyDown)
	ws := h.window(w1)
	require.Equal(t, 2, ws.Rank)
	require.Equal(t, 2, ws.Preferred)
	require.True(t, ws.Manual)
	p = h.up(w1, p)

	for i := 1; i <= 4; i++ {
		require.True(t, h.sim.Crash(h.window(w1).ID, 1))
		h.advance(15 * time.Second)
		ws := h.window(w1)
		require.Equal(t, i, ws.Restarts)
		require.Equal(t, 2, ws.Rank)
		p = h.up(w1, p)
	}

	for _, u := range h.urls()[1:] {
		require.Equal(t, "rtsp://cam2/2", u)
	}
}

func TestManualQualityCancelsPendingRestart(t *testing.T) {
	h := newHarness(t, testConfig(t, nil, single("d1")))
	h.run()
	p := h.up(w1, "")

	h.sim.SetStartDelay(300 * time.Millisecond)
	require.True(t, h.sim.Crash(h.window(w1).ID, 1))
	h.advance(15 * time.Second)
	h.key(input.KeyDown)

	h.up(w1, p)
	ws := h.window(w1)
	require.Equal(t, 2, ws.Rank)
	require.True(t, ws.Manual)
	require.Zero(t, ws.Restarts)
	require.Equal(t, 1, h.sim.Live())
	require.Zero(t, h.sim.Violations())

	urls := h.urls()
	require.Equal(t, "rtsp://cam1/2", urls[len(urls)-1])
}

func TestSetQuality(t *testing.T) {
	h := newHarness(t, testConfig(t, nil, single("d2")))
	h.run()
	p := h.up(w1, "")
	id := h.window(w1).ID
	ctx := context.Background()

	require.ErrorIs(t, h.sup.SetQuality(ctx, id+100, 1), ErrUnknownWindow)
	require.ErrorIs(t, h.sup.SetQuality(ctx, id, 7), ErrRankUnusable)

	require.NoError(t, h.sup.SetQuality(ctx, id, 3))
	h.up(w1, p)
	ws := h.window(w1)
	require.Equal(t, 3, ws.Rank)
	require.True(t, ws.Manual)
	require.Equal(t, "rtsp://cam2/3", ws.URL)
}

func TestRotation(t *testing.T) {
	h := newHarness(t, testConfig(t, nil, single("d1"), single("d3")))
	h.run()
	h.up(w1, "")

	for i, want := range []string{"D01_S02_W01", w1, "D01_S02_W01"} {
		h.advance(10 * time.Second)
		h.eventually(func() bool { return len(h.sim.Starts()) == i+2 && h.sim.Live() == 1 })
		starts := h.sim.Starts()
		require.Equal(t, want, starts[len(starts)-1].WindowKey)
	}
	require.Zero(t, h.sim.Violations())
}

func TestDisplaySwitch(t *testing.T) {
	cfg := testConfig(t, nil,
		config.ScreenEntry{Layout: 1, Display: 1, Windows: []string{"d1"}},
		config.ScreenEntry{Layout: 4, Display: 2, Windows: []string{"d2", "d3"}})
	h := newHarness(t, cfg)
	h.run()

	h.key(input.KeyDisplay)
	require.Equal(t, overlay.Control, h.rec.last(2).Icon)
	require.NotEqual(t, overlay.Control, h.rec.last(1).Icon)

	h.key(input.KeyEnter)
	require.True(t, h.window("D02_S01_W01").Fullscreen)
	require.False(t, h.window("D02_S01_W02").Visible)
	require.True(t, h.window(w1).Visible)
	require.False(t, h.window(w1).Fullscreen)

	h.advance(controlIconTime)
	require.NotEqual(t, overlay.Control, h.rec.last(2).Icon)
}

func TestWatchdogDisabledOnlyReports(t *testing.T) {
	h := newHarness(t, testConfig(t, func(a *config.Advanced) { a.StreamWatchdog = 0 }, single("d1")))
	h.run()
	h.up(w1, "")

	h.advance(statusInterval)
	require.Equal(t, window.Playing, h.window(w1).Status)

	require.True(t, h.sim.Crash(h.window(w1).ID, 2))
	h.advance(statusInterval)
	h.advance(statusInterval)
	ws := h.window(w1)
	require.Equal(t, window.Failed, ws.Status)
	require.Len(t, h.sim.Starts(), 1)
}

func TestReload(t *testing.T) {
	h := newHarness(t, testConfig(t, nil, single("d1")))
	h.run()
	h.up(w1, "")
	oldID := h.window(w1).ID

	cfg := testConfig(t, nil, config.ScreenEntry{Layout: 4, Windows: []string{"d2", "", "d3"}})
	require.NoError(t, h.sup.Reload(context.Background(), cfg))

	ws, err := h.sup.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, ws, 4)
	for _, w := range ws {
		require.Greater(t, w.ID, oldID)
	}
	h.up(w1, "")
	h.up("D01_S01_W03", "")
	require.Equal(t, 2, h.sim.Live())
	require.Zero(t, h.sim.Violations())
}

func TestShutdownStopsEveryPlayer(t *testing.T) {
	cfg := testConfig(t, nil, config.ScreenEntry{Layout: 4, Windows: []string{"d1", "d2", "d3"}})
	h := newHarness(t, cfg)
	h.run()
	h.eventually(func() bool { return h.sim.Live() == 3 })

	h.cancel()
	require.NoError(t, <-h.done)
	require.Zero(t, h.sim.Live())
	require.True(t, h.rec.closed)
	require.Zero(t, h.sup.budget.inUse())

	_, err := h.sup.Snapshot(context.Background())
	require.ErrorIs(t, err, ErrStopped)
}

func TestQuitKey(t *testing.T) {
	tests := []struct {
		name       string
		ignoreQuit bool
	}{
		{"quit", false},
		{"ignored", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quit := make(chan struct{})
			h := newHarness(t, testConfig(t, nil, single("d1")), func(o *Options) {
				o.IgnoreQuit = tt.ignoreQuit
				o.Quit = func() { close(quit) }
			})
			h.run()
			h.up(w1, "")
			h.key(input.KeyQuit)

			if tt.ignoreQuit {
				require.Equal(t, 1, h.sim.Live())
				return
			}
			select {
			case <-quit:
			case <-time.After(5 * time.Second):
				t.Fatal("quit not called")
			}
			require.NoError(t, <-h.done)
			require.Zero(t, h.sim.Live())
		})
	}
}

func TestWorkerLatestOpWins(t *testing.T) {
	sim := player.NewSimulated(zap.NewNop(), nil)
	sim.SetStartDelay(100 * time.Millisecond)
	b := newBudget(1)
	results := make(chan result, 4)
	w := newWorker(zap.NewNop(), &Window{ID: 1, Key: w1}, sim, b, results)
	go w.run(context.Background())

	w.submit(op{gen: 1, kind: opPlay, req: player.StartRequest{WindowID: 1, URL: "rtsp://a"}})
	w.submit(op{gen: 2, kind: opPlay, req: player.StartRequest{WindowID: 1, URL: "rtsp://b"}})

	select {
	case r := <-results:
		require.Equal(t, uint64(2), r.gen)
		require.NoError(t, r.err)
		require.NotNil(t, r.handle)
	case <-time.After(3 * time.Second):
		t.Fatal("no result")
	}
	require.Equal(t, 1, sim.Live())
	require.True(t, b.holds(1))

	w.close()
	require.True(t, w.wait(time.Second))
	require.Zero(t, sim.Live())
	require.Zero(t, b.inUse())
	require.Empty(t, results)
}

func TestSweepInterval(t *testing.T) {
	adv := config.DefaultAdvanced()
	require.Equal(t, 15*time.Second, SweepInterval(adv))

	adv.StreamWatchdog = 0
	require.Equal(t, statusInterval, SweepInterval(adv))
}
