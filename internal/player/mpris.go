package player

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
)

const (
	mprisPath   = dbus.ObjectPath("/org/mpris/MediaPlayer2")
	mprisPlayer = "org.mpris.MediaPlayer2.Player"
	dbusTimeout = time.Second
)

// bus lazily dials a D-Bus connection and redials after failures.
type bus struct {
	mu   sync.Mutex
	conn *dbus.Conn
	dial func() (*dbus.Conn, error)
}

// sessionBus connects to the user's session bus.
func sessionBus() *bus {
	return &bus{dial: func() (*dbus.Conn, error) { return dbus.ConnectSessionBus() }}
}

// fileBus connects to the bus whose address is stored in path. omxplayer
// runs its own bus and publishes the address in /tmp/omxplayerdbus.<user>.
func fileBus(path string) *bus {
	return &bus{dial: func() (*dbus.Conn, error) {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read bus address: %w", err)
		}
		addr := strings.TrimSpace(string(raw))
		if addr == "" {
			return nil, fmt.Errorf("empty bus address in %s", path)
		}
		return dbus.Connect(addr)
	}}
}

func (b *bus) get() (*dbus.Conn, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn != nil && b.conn.Connected() {
		return b.conn, nil
	}
	conn, err := b.dial()
	if err != nil {
		return nil, err
	}
	b.conn = conn
	return conn, nil
}

func (b *bus) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn != nil {
		_ = b.conn.Close()
		b.conn = nil
	}
}

// property reads one org.mpris.MediaPlayer2.Player property of dest.
func (b *bus) property(ctx context.Context, dest, name string) (dbus.Variant, error) {
	conn, err := b.get()
	if err != nil {
		return dbus.Variant{}, err
	}

	var v dbus.Variant
	err = conn.Object(dest, mprisPath).
		CallWithContext(ctx, "org.freedesktop.DBus.Properties.Get", 0, mprisPlayer, name).
		Store(&v)
	if err != nil {
		return dbus.Variant{}, fmt.Errorf("get %s on %s: %w", name, dest, err)
	}
	return v, nil
}

// positionProbe samples the MPRIS Position property.
func positionProbe(b *bus, dest string) probe {
	return func(ctx context.Context) (sample, error) {
		v, err := b.property(ctx, dest, "Position")
		if err != nil {
			return sample{}, err
		}
		pos, ok := v.Value().(int64)
		if !ok {
			return sample{}, fmt.Errorf("unexpected Position type %T", v.Value())
		}
		return sample{Position: pos, Playing: true}, nil
	}
}

// statusProbe samples PlaybackStatus and, when available, Position.
func statusProbe(b *bus, dest string) probe {
	return func(ctx context.Context) (sample, error) {
		v, err := b.property(ctx, dest, "PlaybackStatus")
		if err != nil {
			return sample{}, err
		}
		status, _ := v.Value().(string)
		s := sample{Position: -1, Playing: status == "Playing"}
		if !s.Playing {
			return s, nil
		}
		if pv, err := b.property(ctx, dest, "Position"); err == nil {
			if pos, ok := pv.Value().(int64); ok && pos > 0 {
				s.Position = pos
			}
		}
		return s, nil
	}
}
