package input

import "time"

// ActionKind is what a key (or a completed number) asks for.
type ActionKind int

const (
	ActLeft ActionKind = iota
	ActRight
	ActQualityUp
	ActQualityDown
	ActEnter
	ActEscape
	ActTogglePause
	ActNumber
	ActSwitchDisplay
	ActQuit
)

type Action struct {
	Kind ActionKind
	N    int // ActNumber only; 0 means back to the grid
}

const (
	// MultiDigitGap is how long the decoder waits for another digit.
	MultiDigitGap = time.Second
	// DigitTimeout drops a pending number nobody flushed in time.
	DigitTimeout = 3 * time.Second
	maxDigits    = 2
)

var keyActions = map[Key]ActionKind{
	KeyLeft:    ActLeft,
	KeyRight:   ActRight,
	KeyUp:      ActQualityUp,
	KeyDown:    ActQualityDown,
	KeyEnter:   ActEnter,
	KeyEscape:  ActEscape,
	KeySpace:   ActTogglePause,
	KeyDisplay: ActSwitchDisplay,
	KeyQuit:    ActQuit,
}

// Decoder buffers digits into window numbers up to 99. It is driven by a
// single goroutine with explicit timestamps.
type Decoder struct {
	IgnoreQuit bool

	digits []int
	last   time.Time
}

// Key feeds one key press. Digits are held back until Flush; any other key
// discards pending digits.
func (d *Decoder) Key(k Key, now time.Time) (Action, bool) {
	if n, ok := k.Digit(); ok {
		d.digits = append(d.digits, n)
		if len(d.digits) > maxDigits {
			d.digits = d.digits[1:]
		}
		d.last = now
		return Action{}, false
	}

	d.digits = d.digits[:0]
	kind, ok := keyActions[k]
	if !ok || (kind == ActQuit && d.IgnoreQuit) {
		return Action{}, false
	}
	return Action{Kind: kind}, true
}

// Deadline is when Flush should be called next.
func (d *Decoder) Deadline() (time.Time, bool) {
	if len(d.digits) == 0 {
		return time.Time{}, false
	}
	return d.last.Add(MultiDigitGap), true
}

// Flush completes the pending number once no digit arrived for
// MultiDigitGap.
func (d *Decoder) Flush(now time.Time) (Action, bool) {
	if len(d.digits) == 0 {
		return Action{}, false
	}
	idle := now.Sub(d.last)
	if idle > DigitTimeout {
		d.digits = d.digits[:0]
		return Action{}, false
	}
	if idle < MultiDigitGap {
		return Action{}, false
	}

	n := 0
	for _, v := range d.digits {
		n = n*10 + v
	}
	d.digits = d.digits[:0]
	return Action{Kind: ActNumber, N: n}, true
}
