package hwinfo

import "fmt"

// HEVCMode limits HEVC playback.
type HEVCMode int

const (
	HEVCOff HEVCMode = iota
	HEVCAuto
	HEVCFHD
	HEVCUHD
)

func ParseHEVCMode(s string) (HEVCMode, error) {
	switch s {
	case "off", "0":
		return HEVCOff, nil
	case "auto", "1", "":
		return HEVCAuto, nil
	case "fhd", "2":
		return HEVCFHD, nil
	case "uhd", "3":
		return HEVCUHD, nil
	}
	return HEVCOff, fmt.Errorf("unknown hevc mode %q", s)
}

func (m HEVCMode) String() string {
	switch m {
	case HEVCOff:
		return "off"
	case HEVCAuto:
		return "auto"
	case HEVCFHD:
		return "fhd"
	case HEVCUHD:
		return "uhd"
	}
	return "unknown"
}

// Capability decides which streams the host can decode.
type Capability struct {
	Board Board
	HEVC  HEVCMode // never HEVCAuto once resolved
	Check bool     // hardwarecheck; false accepts everything
	// HEVCBackend is set when the selected player can decode HEVC at all.
	HEVCBackend bool
}

// NewCapability resolves auto HEVC mode against the board. Forcing HEVC on
// a board without a decoder returns the capability with HEVC off and a
// HardwareUnsupported error.
func NewCapability(b Board, mode HEVCMode, check, hevcBackend bool) (Capability, error) {
	c := Capability{Board: b, HEVC: mode, Check: check, HEVCBackend: hevcBackend}
	if mode == HEVCAuto {
		switch b.Family {
		case Pi4, Pi5:
			c.HEVC = HEVCUHD
		case Pi3Plus:
			c.HEVC = HEVCFHD
		default:
			c.HEVC = HEVCOff
		}
	}
	if c.HEVC != HEVCOff && !hevcBackend {
		c.HEVC = HEVCOff
		if mode != HEVCAuto {
			return c, &HardwareUnsupported{Model: b.Model, Feature: "hevc with this player"}
		}
	}
	if check && mode == HEVCUHD && b.Family != Pi4 && b.Family != Pi5 {
		c.HEVC = HEVCFHD
		return c, &HardwareUnsupported{Model: b.Model, Feature: "uhd hevc"}
	}
	return c, nil
}

const (
	fhdWidth  = 1920
	fhdHeight = 1080
	uhdWidth  = 3840
	uhdHeight = 2160
)

// Supports reports whether a stream can be played. Unknown codecs (not
// probed yet) are given the benefit of the doubt.
func (c Capability) Supports(codec string, width, height int) bool {
	if codec == "" {
		return true
	}
	if codec == "hevc" {
		switch c.HEVC {
		case HEVCFHD:
			return width <= fhdWidth && height <= fhdHeight
		case HEVCUHD:
			return width <= uhdWidth && height <= uhdHeight
		}
		return false
	}
	if !c.Check {
		return true
	}
	fhd := width <= fhdWidth && height <= fhdHeight
	switch codec {
	case "h264", "mjpeg":
		return fhd
	case "mpeg2video":
		// the Pi 4 dropped hardware mpeg2
		return fhd && (c.Board.Family != Pi4 || c.HEVCBackend)
	}
	return false
}
