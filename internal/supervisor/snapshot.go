package supervisor

import (
	"time"

	"github.com/edirooss/camwall/internal/domain/window"
)

// WindowStatus is the externally visible state of one window.
type WindowStatus struct {
	ID         int64         `json:"id"`
	Key        string        `json:"key"`
	Display    int           `json:"display"`
	Screen     int           `json:"screen"`
	Slot       int           `json:"slot"`
	Device     string        `json:"device,omitempty"`
	Name       string        `json:"name,omitempty"`
	Status     window.Status `json:"status"`
	Rank       int           `json:"rank,omitempty"`
	Preferred  int           `json:"preferred,omitempty"`
	Manual     bool          `json:"manual,omitempty"`
	Restarts   int           `json:"restarts"`
	URL        string        `json:"url,omitempty"` // credentials masked
	Visible    bool          `json:"visible"`
	Fullscreen bool          `json:"fullscreen,omitempty"`
	Player     string        `json:"player,omitempty"` // id of the live player
	LastHealth *time.Time    `json:"last_health,omitempty"`
	Error      string        `json:"error,omitempty"`
}

func (w *Window) report() WindowStatus {
	ws := WindowStatus{
		ID:         w.ID,
		Key:        w.Key,
		Display:    w.Display,
		Screen:     w.Screen,
		Slot:       w.Slot,
		Status:     w.status,
		Restarts:   w.wd.Restarts,
		Visible:    w.placement.visible,
		Fullscreen: w.placement.fullscreen,
	}
	if w.Device != nil {
		ws.Device = w.Device.ID
		ws.Name = w.Device.DisplayName()
		ws.Rank = w.rank
		ws.Preferred = w.preferred
		ws.Manual = w.manual
		if ch := w.Device.Channel(w.rank); ch != nil {
			ws.URL = ch.PrintableURL()
		}
	}
	if w.handle != nil {
		ws.Player = w.handle.ID.String()
	}
	if !w.lastHealth.IsZero() {
		t := w.lastHealth
		ws.LastHealth = &t
	}
	if w.lastErr != nil {
		ws.Error = w.lastErr.Error()
	}
	return ws
}

func (s *Supervisor) snapshot() []WindowStatus {
	out := make([]WindowStatus, 0, len(s.m.windows))
	for _, w := range s.m.windows {
		out = append(out, w.report())
	}
	return out
}
