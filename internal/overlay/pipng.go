//go:build linux

package overlay

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/edirooss/camwall/internal/infrastructure/processmgr"
	"github.com/edirooss/camwall/internal/layout"
	"github.com/edirooss/camwall/pkg/playercmd"
	"go.uber.org/zap"
)

const (
	backgroundLayer = -100 // above -127 so the framebuffer stays hidden
	iconLayer       = 1000 // above every player layer
	iconOffset      = 60
)

var backgroundImages = map[layout.Code]string{
	layout.Single:        "nolink_1x1.png",
	layout.Grid2x2:       "nolink_2x2.png",
	layout.OnePlusFive:   "nolink_1P5.png",
	layout.ThreePlusFour: "nolink_3P4.png",
	layout.OnePlusSeven:  "nolink_1P7.png",
	layout.Grid3x3:       "nolink_3x3.png",
	layout.TwoPlusEight:  "nolink_2P8.png",
	layout.OnePlusTwelve: "nolink_1P12.png",
	layout.Grid4x4:       "nolink_4x4.png",
}

var iconImages = []Icon{Loading, Paused, Control}

func (i Icon) file() string { return "icon_" + i.String() + ".png" }

// Pipng drives one pipng process per display and purpose. Images are
// preloaded hidden and toggled by writing their index (or "i" to hide) to
// the process's stdin.
type Pipng struct {
	log       *zap.Logger
	binary    string
	resources string
	mode      BackgroundMode
	icons     bool

	displays map[int]*pipngDisplay
	output   map[string]*processmgr.LogBuffer // process name -> output
}

type pipngDisplay struct {
	background *pipe
	icon       *pipe
	layout     layout.Code
	shownIcon  Icon
}

type pipe struct {
	name  string
	proc  *processmgr.Process
	stdin io.WriteCloser
}

// NewPipng checks for the pipng binary.
func NewPipng(log *zap.Logger, resources string, mode BackgroundMode, icons bool) (*Pipng, error) {
	bin, err := exec.LookPath("pipng")
	if err != nil {
		return nil, fmt.Errorf("pipng: %w", err)
	}
	return newPipng(log, bin, resources, mode, icons), nil
}

func newPipng(log *zap.Logger, bin, resources string, mode BackgroundMode, icons bool) *Pipng {
	return &Pipng{
		log:       log.Named("pipng"),
		binary:    bin,
		resources: resources,
		mode:      mode,
		icons:     icons,
		displays:  map[int]*pipngDisplay{},
		output:    map[string]*processmgr.LogBuffer{},
	}
}

func (p *Pipng) Render(s Scene) {
	d := p.displays[s.Display]
	if d == nil {
		d = &pipngDisplay{}
		p.displays[s.Display] = d
		d.background = p.spawn(s.Display, "background", p.backgroundCommand(s))
		if p.icons {
			d.icon = p.spawn(s.Display, "icons", p.iconCommand(s.Display))
		}
	}

	if p.mode == Dynamic && d.background != nil && d.layout != s.Layout {
		if i := indexOf(layout.Codes(), s.Layout); i >= 0 {
			d.background.write(strconv.Itoa(i))
		}
	}
	d.layout = s.Layout

	if d.icon != nil && d.shownIcon != s.Icon {
		if s.Icon == NoIcon {
			d.icon.write("i")
		} else if i := indexOf(iconImages, s.Icon); i >= 0 {
			d.icon.write(strconv.Itoa(i))
		}
		d.shownIcon = s.Icon
	}
}

func (p *Pipng) backgroundCommand(s Scene) *playercmd.Builder {
	b := playercmd.NewBuilder(p.binary)
	switch p.mode {
	case Off:
		return nil
	case HideFramebuffer:
		return b.WithStringFlag("-b", "000F").WithFlag("-n").WithIntFlag("-d", hdmiDisplay(s.Display))
	}

	b.WithStringFlag("-b", "0").
		WithIntFlag("-l", backgroundLayer).
		WithIntFlag("-d", hdmiDisplay(s.Display)).
		WithFlag("-h")
	if p.mode == Static {
		return b.WithString(p.image("backgrounds", backgroundImages[s.Layout]))
	}
	b.WithFlag("-i")
	for _, c := range layout.Codes() {
		b.WithString(p.image("backgrounds", backgroundImages[c]))
	}
	return b
}

func (p *Pipng) iconCommand(display int) *playercmd.Builder {
	b := playercmd.NewBuilder(p.binary).
		WithStringFlag("-b", "0").
		WithIntFlag("-l", iconLayer).
		WithIntFlag("-d", hdmiDisplay(display)).
		WithFlag("-i").
		WithIntFlag("-x", iconOffset).
		WithIntFlag("-y", iconOffset)
	for _, i := range iconImages {
		b.WithString(p.image("icons", i.file()))
	}
	return b
}

func (p *Pipng) image(dir, name string) string {
	return filepath.Join(p.resources, dir, name)
}

func (p *Pipng) spawn(display int, what string, cmd *playercmd.Builder) *pipe {
	if cmd == nil {
		return nil
	}
	name := fmt.Sprintf("pipng-%d-%s", display, what)
	log := p.log.With(zap.Int("display", display), zap.String("layer", what))
	log.Debug("starting pipng", zap.String("cmd", cmd.BuildString()))

	buf := p.output[name]
	if buf == nil {
		buf = new(processmgr.LogBuffer)
		p.output[name] = buf
	}
	proc, err := processmgr.NewProcess(log, buf, os.Environ(), cmd.BuildArgv())
	if err != nil {
		log.Warn("pipng unavailable", zap.Error(err))
		return nil
	}
	stdin, err := proc.StdinPipe()
	if err != nil {
		log.Warn("pipng unavailable", zap.Error(err))
		return nil
	}
	if err := proc.Start(); err != nil {
		log.Warn("pipng failed to start", zap.Error(err))
		return nil
	}
	return &pipe{name: name, proc: proc, stdin: stdin}
}

func (pp *pipe) write(cmd string) {
	if pp == nil {
		return
	}
	_, _ = io.WriteString(pp.stdin, cmd)
}

// Close asks every pipng to quit and waits for them.
func (p *Pipng) Close() {
	for _, d := range p.displays {
		for _, pp := range []*pipe{d.icon, d.background} {
			if pp == nil {
				continue
			}
			pp.write("c")
			pp.proc.Stop()
			if code, _ := pp.proc.Exited(); code != 0 && code != 128+int(syscall.SIGTERM) {
				p.log.Warn("pipng exited with error", zap.String("process", pp.name),
					zap.Int("exit_code", code), zap.Any("output", p.output[pp.name].Read(5)))
			}
		}
	}
	p.displays = map[int]*pipngDisplay{}
}

// dispmanx display numbers of HDMI 0 and HDMI 1
func hdmiDisplay(display int) int {
	if display == 2 {
		return 7
	}
	return 2
}

func indexOf[T comparable](list []T, v T) int {
	for i, x := range list {
		if x == v {
			return i
		}
	}
	return -1
}
