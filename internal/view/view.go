// Package view is the grid/fullscreen and screen-rotation state machine of
// one display.
//
// The machine is not safe for concurrent use: the Supervisor applies
// transitions one at a time from its event loop.
package view

import (
	"fmt"
	"time"
)

type Mode int

const (
	Grid Mode = iota
	Fullscreen
)

func (m Mode) String() string {
	if m == Fullscreen {
		return "fullscreen"
	}
	return "grid"
}

// Screen is what the machine needs to know about a configured screen.
// Dwell is how long the screen stays active during rotation; 0 pins it.
// Playable marks the slots that have a stream to show; nil marks them all.
type Screen struct {
	Windows  int
	Dwell    time.Duration
	Playable []bool
}

// State is the view of one display.
type State struct {
	Mode       Mode
	Screen     int // active screen index
	Window     int // fullscreen window slot, valid in Fullscreen
	Selected   int // last navigated window slot on the active screen
	Paused     bool
	LastSwitch time.Time
}

func (s State) String() string {
	if s.Mode == Fullscreen {
		return fmt.Sprintf("Fullscreen(%d, %d)", s.Screen, s.Window)
	}
	return fmt.Sprintf("Grid(%d)", s.Screen)
}

type EventKind int

const (
	Enter EventKind = iota
	Escape
	Number
	Left
	Right
	TogglePause
)

// Event is a decoded navigation input. N is the window number for Number
// events; 0 returns to the grid.
type Event struct {
	Kind EventKind
	N    int
}

type Machine struct {
	screens []Screen
	state   State
}

// New starts in Grid(0) with rotation running.
func New(screens []Screen, now time.Time) *Machine {
	return &Machine{
		screens: screens,
		state:   State{Mode: Grid, LastSwitch: now},
	}
}

func (m *Machine) State() State { return m.state }

// Rotating reports whether the rotation timer is armed.
func (m *Machine) Rotating() bool {
	s := m.state
	return s.Mode == Grid && !s.Paused && len(m.screens) >= 2 && m.dwell(s.Screen) > 0
}

// Deadline returns when the next rotation is due.
func (m *Machine) Deadline() (time.Time, bool) {
	if !m.Rotating() {
		return time.Time{}, false
	}
	return m.state.LastSwitch.Add(m.dwell(m.state.Screen)), true
}

func (m *Machine) dwell(i int) time.Duration {
	if i < 0 || i >= len(m.screens) {
		return 0
	}
	return m.screens[i].Dwell
}

func (m *Machine) windows() int {
	if len(m.screens) == 0 {
		return 0
	}
	return m.screens[m.state.Screen].Windows
}

// Tick advances the active screen when its dwell time has elapsed.
func (m *Machine) Tick(now time.Time) bool {
	deadline, ok := m.Deadline()
	if !ok || now.Before(deadline) {
		return false
	}
	m.switchScreen(1, now)
	return true
}

// Apply runs one transition and reports whether the state changed.
func (m *Machine) Apply(ev Event, now time.Time) bool {
	before := m.state
	s := &m.state

	switch ev.Kind {
	case Enter:
		if s.Mode == Grid {
			m.fullscreen(s.Selected)
		}

	case Number:
		if ev.N == 0 {
			m.grid(now)
		} else {
			m.fullscreen(ev.N - 1)
		}

	case Escape:
		m.grid(now)

	case Left, Right:
		step := 1
		if ev.Kind == Left {
			step = -1
		}
		if s.Mode == Grid {
			m.switchScreen(step, now)
		} else if slot, ok := m.nextPlayable(s.Window, step); ok {
			s.Window = slot
			s.Selected = slot
		}

	case TogglePause:
		s.Paused = !s.Paused
		if !s.Paused {
			s.LastSwitch = now
		}
	}

	return m.state != before
}

// fullscreen shows slot full-screen if the active screen has such a window
// and more than one window at all.
func (m *Machine) fullscreen(slot int) {
	n := m.windows()
	if n <= 1 || slot < 0 || slot >= n {
		return
	}
	m.state.Mode = Fullscreen
	m.state.Window = slot
	m.state.Selected = slot
}

// nextPlayable walks from slot in direction step and returns the first other
// slot with something to show.
func (m *Machine) nextPlayable(slot, step int) (int, bool) {
	n := m.windows()
	for i := 1; i < n; i++ {
		c := ((slot+step*i)%n + n) % n
		if m.playable(c) {
			return c, true
		}
	}
	return slot, false
}

func (m *Machine) playable(slot int) bool {
	p := m.screens[m.state.Screen].Playable
	return p == nil || slot >= len(p) || p[slot]
}

func (m *Machine) grid(now time.Time) {
	if m.state.Mode != Fullscreen {
		return
	}
	m.state.Mode = Grid
	m.state.LastSwitch = now
}

func (m *Machine) switchScreen(step int, now time.Time) {
	n := len(m.screens)
	if n < 2 {
		return
	}
	m.state.Screen = (m.state.Screen + step + n) % n
	m.state.Selected = 0
	m.state.LastSwitch = now
}
