// Package overlay draws what the players do not: the background behind the
// windows of a display and a status icon in front of them.
package overlay

import (
	"fmt"
	"strings"

	"github.com/edirooss/camwall/internal/domain/window"
	"github.com/edirooss/camwall/internal/layout"
)

// BackgroundMode selects what is drawn behind the players.
type BackgroundMode int

const (
	// HideFramebuffer blanks the console without drawing an image.
	HideFramebuffer BackgroundMode = iota
	// Static shows one grid image for the whole run.
	Static
	// Dynamic follows the layout of the active screen.
	Dynamic
	Off
)

func ParseBackgroundMode(s string) (BackgroundMode, error) {
	switch strings.ToLower(s) {
	case "hide", "0":
		return HideFramebuffer, nil
	case "static", "1":
		return Static, nil
	case "dynamic", "2", "":
		return Dynamic, nil
	case "off", "3":
		return Off, nil
	}
	return Off, fmt.Errorf("unknown background mode %q", s)
}

// Icon is the status icon of a display. Only one is shown at a time.
type Icon int

const (
	NoIcon Icon = iota
	Loading
	Paused
	Control
)

func (i Icon) String() string {
	switch i {
	case Loading:
		return "loading"
	case Paused:
		return "paused"
	case Control:
		return "control"
	}
	return "none"
}

// Tile is one visible window.
type Tile struct {
	Key    string
	Label  string
	Rect   layout.Rect
	Status window.Status
}

// Scene is everything visible on one display.
type Scene struct {
	Display    int
	Layout     layout.Code // layout.Single while fullscreen
	Fullscreen bool
	Icon       Icon
	Tiles      []Tile
}

// Equal reports whether two scenes render identically.
func (s Scene) Equal(o Scene) bool {
	if s.Display != o.Display || s.Layout != o.Layout || s.Fullscreen != o.Fullscreen ||
		s.Icon != o.Icon || len(s.Tiles) != len(o.Tiles) {
		return false
	}
	for i := range s.Tiles {
		if s.Tiles[i] != o.Tiles[i] {
			return false
		}
	}
	return true
}

// PickIcon chooses the icon of a display: control while the display just
// took over the keys, loading while any tile starts, paused while rotation
// is paused.
func PickIcon(control, paused bool, tiles []Tile) Icon {
	if control {
		return Control
	}
	for _, t := range tiles {
		if t.Status == window.Starting {
			return Loading
		}
	}
	if paused {
		return Paused
	}
	return NoIcon
}

// Compositor renders scenes. Render is called from one goroutine only and
// must not block for long.
type Compositor interface {
	Render(s Scene)
	Close()
}
