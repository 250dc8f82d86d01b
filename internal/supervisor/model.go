package supervisor

import (
	"fmt"
	"time"

	"github.com/edirooss/camwall/internal/config"
	"github.com/edirooss/camwall/internal/domain/camera"
	"github.com/edirooss/camwall/internal/domain/window"
	"github.com/edirooss/camwall/internal/layout"
	"github.com/edirooss/camwall/internal/player"
	"github.com/edirooss/camwall/internal/quality"
	"github.com/edirooss/camwall/internal/view"
	"github.com/edirooss/camwall/internal/watchdog"
)

// Display is one HDMI output with its own view machine.
type Display struct {
	ID      int
	Screens []*Screen
	View    *view.Machine
	Full    layout.Rect
}

// Screen is an ordered set of window slots sharing one layout.
type Screen struct {
	Index   int // within its display
	Layout  layout.Code
	Rects   []layout.Rect
	Windows []*Window
}

// placement is where a window should currently render.
type placement struct {
	visible    bool
	fullscreen bool
	rect       layout.Rect
}

// Window is one slot of a screen and the only owner of its player.
type Window struct {
	ID      int64
	Key     string // D01_S02_W03
	Display int
	Screen  int
	Slot    int

	Binding  camera.Binding
	Device   *camera.Device // nil for empty slots
	Selector *quality.Selector

	status     window.Status
	rank       int
	preferred  int
	manual     bool
	placement  placement
	handle     *player.Handle
	gen        uint64
	pending    bool
	starved    bool
	lastHealth time.Time
	lastErr    error
	wd         watchdog.State
	worker     *worker
}

// Playable reports whether the window has anything to show.
func (w *Window) Playable() bool {
	return w.Device != nil && w.Selector != nil && !w.Selector.Empty()
}

func (w *Window) label() string {
	if w.Device == nil {
		return ""
	}
	return w.Device.DisplayName()
}

func windowKey(display, screen, slot int) string {
	return fmt.Sprintf("D%02d_S%02d_W%02d", display, screen+1, slot+1)
}

// StreamInfo tells the supervisor what it knows about a channel before
// playing it. A nil StreamInfo treats every channel as usable.
type StreamInfo interface {
	CodecHint(ch *camera.Channel) string
	Usable(ch *camera.Channel) bool
}

// model is the complete runtime state built from one configuration. A reload
// replaces it wholesale.
type model struct {
	cfg      *config.Config
	displays []*Display
	windows  []*Window // in display, screen, slot order
	byID     map[int64]*Window
}

const (
	fallbackWidth  = 1920
	fallbackHeight = 1080
)

// buildModel lays out every configured screen. Window ids continue from
// firstID so that ids are never reused across reloads.
func buildModel(cfg *config.Config, streams StreamInfo, mode quality.Mode, firstID int64, now time.Time) (*model, error) {
	adv := cfg.Advanced
	width, height := adv.ScreenWidth, adv.ScreenHeight
	if width <= 0 || height <= 0 {
		width, height = fallbackWidth, fallbackHeight
	}

	m := &model{cfg: cfg, byID: map[int64]*Window{}}
	id := firstID
	for _, displayID := range cfg.Displays() {
		d := &Display{ID: displayID, Full: layout.Full(width, height, adv.ScreenDownscale)}

		var vs []view.Screen
		for _, sc := range cfg.Screens {
			if sc.Display != displayID {
				continue
			}
			rects, err := layout.Compute(sc.Layout, width, height, adv.ScreenDownscale)
			if err != nil {
				return nil, fmt.Errorf("screen %d: %w", sc.Index, err)
			}
			s := &Screen{Index: len(d.Screens), Layout: sc.Layout, Rects: rects}
			playable := make([]bool, len(sc.Windows))
			for slot, b := range sc.Windows {
				id++
				w := &Window{
					ID:      id,
					Key:     windowKey(displayID, s.Index, slot),
					Display: displayID,
					Screen:  s.Index,
					Slot:    slot,
					Binding: b,
				}
				if !b.Empty() {
					w.Device = cfg.Devices[b.DeviceID]
					w.Selector = selector(w.Device, b, streams, mode)
					w.preferred = w.Selector.Initial()
					w.rank = w.preferred
				}
				playable[slot] = w.Playable()
				s.Windows = append(s.Windows, w)
				m.windows = append(m.windows, w)
				m.byID[w.ID] = w
			}
			d.Screens = append(d.Screens, s)
			vs = append(vs, view.Screen{Windows: len(s.Windows), Dwell: sc.Dwell, Playable: playable})
		}
		d.View = view.New(vs, now)
		m.displays = append(m.displays, d)
	}
	return m, nil
}

// selector offers the ranks a window may play: the pinned one, or every
// channel the host can decode.
func selector(dev *camera.Device, b camera.Binding, streams StreamInfo, mode quality.Mode) *quality.Selector {
	if dev == nil {
		return quality.New(nil, mode)
	}
	var ranks []int
	for _, r := range dev.Ranks() {
		if b.Rank != 0 && r != b.Rank {
			continue
		}
		if streams != nil && !streams.Usable(dev.Channel(r)) {
			continue
		}
		ranks = append(ranks, r)
	}
	return quality.New(ranks, mode)
}

func (m *model) display(id int) *Display {
	for _, d := range m.displays {
		if d.ID == id {
			return d
		}
	}
	return nil
}

func (m *model) lastID() int64 {
	if len(m.windows) == 0 {
		return 0
	}
	return m.windows[len(m.windows)-1].ID
}
