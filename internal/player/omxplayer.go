package player

import (
	"fmt"
	"math"
	"os"
	"os/user"
	"strconv"

	"github.com/edirooss/camwall/pkg/avurl"
	"github.com/edirooss/camwall/pkg/playercmd"
)

// omxplayer decodes on the VideoCore and renders straight into a dispmanx
// layer, so every window is a separate process with its own --win.
type omxFlavor struct {
	bus *bus
}

func newOMXFlavor() *omxFlavor {
	name := "root"
	if u, err := user.Current(); err == nil {
		name = u.Username
	}
	return &omxFlavor{bus: fileBus("/tmp/omxplayerdbus." + name)}
}

func (f *omxFlavor) name() string   { return "omxplayer" }
func (f *omxFlavor) binary() string { return "omxplayer" }
func (f *omxFlavor) env() []string  { return userEnv() }
func (f *omxFlavor) close()         { f.bus.close() }

func (f *omxFlavor) accepts(req StartRequest) error {
	switch req.CodecHint {
	case "", "h264", "mjpeg", "mpeg2video":
		return nil
	}
	return fmt.Errorf("%w: codec %s", ErrUnsupported, req.CodecHint)
}

func (f *omxFlavor) command(req StartRequest) *playercmd.Builder {
	return omxCommand(req)
}

func (f *omxFlavor) probe(req StartRequest, _ int) probe {
	return positionProbe(f.bus, omxBusName(req.WindowKey))
}

func omxBusName(windowKey string) string {
	return "org.mpris.MediaPlayer2.omxplayer_" + windowKey
}

// omxDisplay maps a logical display (1, 2) to the dispmanx device number.
func omxDisplay(display int) int {
	if display == 2 {
		return 7
	}
	return 2
}

// millibels converts a volume percentage to omxplayer's --vol unit.
func millibels(percent int) int {
	if percent <= 0 {
		return -6000
	}
	return int(math.Round(2000 * math.Log10(float64(percent)/100)))
}

func omxCommand(req StartRequest) *playercmd.Builder {
	b := playercmd.NewBuilder("omxplayer").
		WithFlag("--no-keys").
		WithFlag("--no-osd").
		WithStringFlag("--aspect-mode", "stretch").
		WithStringFlag("--dbus_name", omxBusName(req.WindowKey)).
		WithStringFlag("--threshold", strconv.FormatFloat(req.BufferTime.Seconds(), 'f', -1, 64)).
		WithIntFlag("--layer", req.Layer).
		WithIntFlag("--alpha", 255).
		WithFlag("--nodeinterlace").
		WithFlag("--nohdmiclocksync").
		WithIntFlag("--display", omxDisplay(req.Display)).
		WithIntFlag("--timeout", int(req.PlayTimeout.Seconds())).
		WithStringFlag("--win", req.Rect.String())

	if avurl.IsRTSP(req.URL) && !req.ForceUDP {
		b.WithStringFlag("--avdict", "rtsp_transport:tcp")
	}
	if avurl.IsFile(req.URL) {
		b.WithFlag("--loop")
	} else {
		b.WithFlag("--live")
	}
	if req.Audio {
		b.WithIntFlag("--vol", millibels(req.Volume))
	} else {
		b.WithIntFlag("--aidx", -1)
	}
	if req.Subtitle != "" {
		if _, err := os.Stat(req.Subtitle); err == nil {
			b.WithStringFlag("--subtitles", req.Subtitle).
				WithFlag("--no-ghost-box").
				WithIntFlag("--font-size", 30)
		}
	}
	return b.WithSecret(req.URL, req.Printable)
}

func userEnv(extra ...string) []string {
	return append(os.Environ(), extra...)
}
