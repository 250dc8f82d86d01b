//go:build linux

package input

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// linux/input-event-codes.h
const (
	evKey    = 0x01
	evRel    = 0x02
	relWheel = 0x08

	keyPress = 1
)

var evdevKeys = map[uint16]Key{
	1:   KeyEscape, // KEY_ESC
	174: KeyEscape, // KEY_EXIT
	28:  KeyEnter,
	96:  KeyEnter, // KEY_KPENTER
	57:  KeySpace,
	16:  KeyQuit,
	32:  KeyDisplay,
	103: KeyUp,
	105: KeyLeft,
	106: KeyRight,
	108: KeyDown,

	2: Key1, 3: Key2, 4: Key3, 5: Key4, 6: Key5, 7: Key6, 8: Key7, 9: Key8, 10: Key9, 11: Key0,

	79: Key1, 80: Key2, 81: Key3, 75: Key4, 76: Key5, 77: Key6, 71: Key7, 72: Key8, 73: Key9, 82: Key0,

	0x200: Key0, 0x201: Key1, 0x202: Key2, 0x203: Key3, 0x204: Key4,
	0x205: Key5, 0x206: Key6, 0x207: Key7, 0x208: Key8, 0x209: Key9,
}

// struct input_event on 64-bit kernels: timeval, type, code, value
type rawEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

// decodeEvent maps a key press (or a wheel notch) to a Key.
func decodeEvent(ev rawEvent) (Key, bool) {
	switch ev.Type {
	case evKey:
		if ev.Value != keyPress {
			return KeyNone, false
		}
		k, ok := evdevKeys[ev.Code]
		return k, ok
	case evRel:
		// wheel up zooms out to the grid, wheel down into fullscreen
		if ev.Code == relWheel && ev.Value > 0 {
			return KeyEscape, true
		}
		if ev.Code == relWheel && ev.Value < 0 {
			return KeyEnter, true
		}
	}
	return KeyNone, false
}

// Evdev reads key presses from every /dev/input/event* device, rescanning
// for hot-plugged keyboards and remotes.
type Evdev struct {
	log    *zap.Logger
	glob   string
	rescan time.Duration
}

func NewEvdev(log *zap.Logger) *Evdev {
	return &Evdev{log: log.Named("evdev"), glob: "/dev/input/event*", rescan: 5 * time.Second}
}

// Run blocks until ctx is done.
func (e *Evdev) Run(ctx context.Context, sink Sink) error {
	var (
		mu   sync.Mutex
		open = map[string]*os.File{}
		wg   sync.WaitGroup
	)
	defer func() {
		mu.Lock()
		for _, f := range open {
			f.Close()
		}
		mu.Unlock()
		wg.Wait()
	}()

	scan := func() {
		paths, _ := filepath.Glob(e.glob)
		for _, path := range paths {
			mu.Lock()
			_, known := open[path]
			mu.Unlock()
			if known {
				continue
			}
			f, err := os.Open(path)
			if err != nil {
				continue
			}
			mu.Lock()
			open[path] = f
			mu.Unlock()
			e.log.Debug("input device opened", zap.String("path", path))

			wg.Add(1)
			go func() {
				defer wg.Done()
				e.read(ctx, f, sink)
				mu.Lock()
				delete(open, path)
				mu.Unlock()
				f.Close()
			}()
		}
	}

	scan()
	ticker := time.NewTicker(e.rescan)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			scan()
		}
	}
}

func (e *Evdev) read(ctx context.Context, r io.Reader, sink Sink) {
	for {
		var ev rawEvent
		if err := binary.Read(r, binary.LittleEndian, &ev); err != nil {
			if !errors.Is(err, os.ErrClosed) && !errors.Is(err, io.EOF) && ctx.Err() == nil {
				e.log.Debug("input device gone", zap.Error(err))
			}
			return
		}
		k, ok := decodeEvent(ev)
		if !ok {
			continue
		}
		if err := sink.Key(ctx, k); err != nil {
			return
		}
	}
}
