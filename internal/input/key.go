// Package input turns keyboard, remote control, console and HTTP input into
// navigation actions.
package input

import (
	"context"
	"fmt"
	"strings"
)

type Key int

const (
	KeyNone Key = iota
	KeyLeft
	KeyRight
	KeyUp
	KeyDown
	KeyEnter
	KeyEscape
	KeySpace
	KeyQuit
	KeyDisplay
	Key0
	Key1
	Key2
	Key3
	Key4
	Key5
	Key6
	Key7
	Key8
	Key9
)

var keyNames = map[Key]string{
	KeyLeft:    "left",
	KeyRight:   "right",
	KeyUp:      "up",
	KeyDown:    "down",
	KeyEnter:   "enter",
	KeyEscape:  "esc",
	KeySpace:   "space",
	KeyQuit:    "q",
	KeyDisplay: "d",
}

func (k Key) String() string {
	if d, ok := k.Digit(); ok {
		return fmt.Sprint(d)
	}
	if n, ok := keyNames[k]; ok {
		return n
	}
	return "none"
}

// Digit returns the number of a digit key.
func (k Key) Digit() (int, bool) {
	if k >= Key0 && k <= Key9 {
		return int(k - Key0), true
	}
	return 0, false
}

// DigitKey returns the key of digit d (0..9).
func DigitKey(d int) Key {
	if d < 0 || d > 9 {
		return KeyNone
	}
	return Key0 + Key(d)
}

// ParseKey accepts the names used by the HTTP API and the console.
func ParseKey(s string) (Key, error) {
	if s == " " {
		return KeySpace, nil
	}
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) == 1 && s[0] >= '0' && s[0] <= '9' {
		return DigitKey(int(s[0] - '0')), nil
	}
	switch s {
	case "escape", "exit":
		return KeyEscape, nil
	case "return":
		return KeyEnter, nil
	case "quit":
		return KeyQuit, nil
	case "display":
		return KeyDisplay, nil
	}
	for k, n := range keyNames {
		if n == s {
			return k, nil
		}
	}
	return KeyNone, fmt.Errorf("unknown key %q", s)
}

// Sink receives raw keys from an input source.
type Sink interface {
	Key(ctx context.Context, k Key) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, k Key) error

func (f SinkFunc) Key(ctx context.Context, k Key) error { return f(ctx, k) }
