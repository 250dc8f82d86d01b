package player

import (
	"strconv"

	"github.com/edirooss/camwall/pkg/avurl"
	"github.com/edirooss/camwall/pkg/playercmd"
)

// cvlc renders through the MMAL video output and exposes MPRIS on the
// session bus as org.mpris.MediaPlayer2.vlc.instance<pid>.
type vlcFlavor struct {
	bus *bus
}

func newVLCFlavor() *vlcFlavor { return &vlcFlavor{bus: sessionBus()} }

func (f *vlcFlavor) name() string                 { return "vlc" }
func (f *vlcFlavor) binary() string               { return "cvlc" }
func (f *vlcFlavor) env() []string                { return userEnv() }
func (f *vlcFlavor) accepts(_ StartRequest) error { return nil }
func (f *vlcFlavor) close()                       { f.bus.close() }

func (f *vlcFlavor) command(req StartRequest) *playercmd.Builder {
	return vlcCommand(req)
}

func (f *vlcFlavor) probe(_ StartRequest, pid int) probe {
	return statusProbe(f.bus, "org.mpris.MediaPlayer2.vlc.instance"+strconv.Itoa(pid))
}

func vlcCommand(req StartRequest) *playercmd.Builder {
	b := playercmd.NewBuilder("cvlc").
		WithIntAssign("--network-caching", int(req.BufferTime.Milliseconds())).
		WithFlag("--no-keyboard-events").
		WithAssign("--mmal-display", "hdmi-"+strconv.Itoa(req.Display)).
		WithIntAssign("--mmal-layer", req.Layer).
		WithIntAssign("--input-timeshift-granularity", 0).
		WithAssign("--vout", "mmal_vout").
		WithAssign("--gain", vlcGain(req)).
		WithFlag("--no-video-title-show").
		WithAssign("--extraintf", "dbus")

	if req.Fullscreen {
		b.WithFlag("--fullscreen")
	} else {
		b.WithIntAssign("--video-x", req.Rect.X1).
			WithIntAssign("--video-y", req.Rect.Y1).
			WithIntAssign("--width", req.Rect.Width()).
			WithIntAssign("--height", req.Rect.Height()).
			WithFlag("--no-video-deco").
			WithFlag("--no-embedded-video")
	}
	if avurl.IsRTSP(req.URL) && !req.ForceUDP {
		b.WithFlag("--rtsp-tcp")
	}
	if !req.Audio {
		b.WithFlag("--no-audio")
	}
	if avurl.IsFile(req.URL) {
		b.WithFlag("--repeat")
	}
	if req.Subtitle != "" {
		b.WithAssign("--sub-file", req.Subtitle)
	}
	return b.WithSecret(req.URL, req.Printable)
}

func vlcGain(req StartRequest) string {
	if !req.Audio {
		return "1"
	}
	return strconv.FormatFloat(float64(req.Volume)/100, 'f', 2, 64)
}
