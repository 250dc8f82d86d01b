// Package hwinfo inspects the host board: model, HDMI outputs, screen size
// and which codecs its decoders can handle.
package hwinfo

import (
	"fmt"
	"io/fs"
	"strconv"
	"strings"
)

// HardwareUnsupported reports a feature the board cannot provide. It
// disables the feature rather than stopping the program.
type HardwareUnsupported struct {
	Model   string
	Feature string
}

func (e *HardwareUnsupported) Error() string {
	model := e.Model
	if model == "" {
		model = "unknown board"
	}
	return fmt.Sprintf("%s not supported on %s", e.Feature, model)
}

// Board describes the host.
type Board struct {
	Model    string // e.g. "Raspberry Pi 4 Model B Rev 1.4"
	Family   Family
	Displays int
}

type Family int

const (
	Unknown Family = iota
	Pi2
	Pi3
	Pi3Plus
	Pi4
	Pi5
	PiZero
)

func (f Family) String() string {
	switch f {
	case Pi2:
		return "pi2"
	case Pi3:
		return "pi3"
	case Pi3Plus:
		return "pi3+"
	case Pi4:
		return "pi4"
	case Pi5:
		return "pi5"
	case PiZero:
		return "pizero"
	}
	return "unknown"
}

const (
	modelPath       = "proc/device-tree/model"
	virtualSizePath = "sys/class/graphics/fb0/virtual_size"
)

// Detect reads the board model from root, normally os.DirFS("/"). An
// unreadable model yields an Unknown board with one display.
func Detect(root fs.FS) Board {
	raw, err := fs.ReadFile(root, modelPath)
	if err != nil {
		return Board{Family: Unknown, Displays: 1}
	}
	model := strings.TrimRight(strings.TrimSpace(string(raw)), "\x00")
	b := Board{Model: model, Family: family(model), Displays: 1}
	if b.Family == Pi4 || b.Family == Pi5 {
		b.Displays = 2
	}
	return b
}

func family(model string) Family {
	switch {
	case strings.Contains(model, "Pi 5"):
		return Pi5
	case strings.Contains(model, "Pi 4"), strings.Contains(model, "Pi 400"), strings.Contains(model, "Compute Module 4"):
		return Pi4
	case strings.Contains(model, "Pi 3 Model B Plus"), strings.Contains(model, "Pi 3 Model A Plus"):
		return Pi3Plus
	case strings.Contains(model, "Pi 3"):
		return Pi3
	case strings.Contains(model, "Pi 2"):
		return Pi2
	case strings.Contains(model, "Pi Zero"):
		return PiZero
	}
	return Unknown
}

// ScreenSize reads the framebuffer size ("1920,1080").
func ScreenSize(root fs.FS) (width, height int, ok bool) {
	raw, err := fs.ReadFile(root, virtualSizePath)
	if err != nil {
		return 0, 0, false
	}
	w, h, found := strings.Cut(strings.TrimSpace(string(raw)), ",")
	if !found {
		return 0, 0, false
	}
	width, err1 := strconv.Atoi(w)
	height, err2 := strconv.Atoi(h)
	if err1 != nil || err2 != nil || width <= 0 || height <= 0 {
		return 0, 0, false
	}
	return width, height, true
}
