//go:build linux

package player

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/edirooss/camwall/internal/infrastructure/processmgr"
	"github.com/edirooss/camwall/pkg/playercmd"
	"go.uber.org/zap"
)

// flavor is what distinguishes one process backend from another.
type flavor interface {
	name() string
	binary() string
	accepts(req StartRequest) error
	command(req StartRequest) *playercmd.Builder
	probe(req StartRequest, pid int) probe
	env() []string
	close()
}

// ProcessBackend runs one external player process per Handle.
type ProcessBackend struct {
	log    *zap.Logger
	logs   *processmgr.LogManager
	flavor flavor

	startupGrace  time.Duration
	probeInterval time.Duration
	clock         func() time.Time
}

// Options tune process backends. Zero values select defaults.
type Options struct {
	Logs          *processmgr.LogManager
	StartupGrace  time.Duration
	ProbeInterval time.Duration
	Clock         func() time.Time
}

func newProcessBackend(log *zap.Logger, f flavor, opts Options) *ProcessBackend {
	if opts.Logs == nil {
		opts.Logs = processmgr.NewLogManager()
	}
	if opts.StartupGrace <= 0 {
		opts.StartupGrace = 500 * time.Millisecond
	}
	if opts.ProbeInterval <= 0 {
		opts.ProbeInterval = time.Second
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &ProcessBackend{
		log:           log.Named(f.name()),
		logs:          opts.Logs,
		flavor:        f,
		startupGrace:  opts.StartupGrace,
		probeInterval: opts.ProbeInterval,
		clock:         opts.Clock,
	}
}

func (b *ProcessBackend) Name() string { return b.flavor.name() }

// Check verifies the player executable is installed.
func (b *ProcessBackend) Check() error {
	if _, err := exec.LookPath(b.flavor.binary()); err != nil {
		return fmt.Errorf("%s: %w", b.flavor.name(), err)
	}
	return nil
}

// procInstance binds a process to its monitor.
type procInstance struct {
	proc *processmgr.Process
	mon  *monitor
}

func (i *procInstance) health(now time.Time) Health { return i.mon.health(now) }

func (i *procInstance) stop() {
	i.mon.halt()
	i.proc.Stop()
}

// Start spawns the player and waits out the startup grace. A process that
// exits within the grace is reported as a StartFailure.
func (b *ProcessBackend) Start(ctx context.Context, req StartRequest) (*Handle, error) {
	fail := func(code int, err error) error {
		return &StartFailure{Backend: b.Name(), Window: req.WindowKey, ExitCode: code, Err: err}
	}

	if err := b.flavor.accepts(req); err != nil {
		return nil, fail(-1, err)
	}
	if err := b.Check(); err != nil {
		return nil, fail(-1, err)
	}

	cmd := b.flavor.command(req)
	log := b.log.With(zap.Int64("window_id", req.WindowID), zap.String("window", req.WindowKey))
	log.Debug("starting player", zap.String("cmd", cmd.BuildString()))

	proc, err := processmgr.NewProcess(log, b.logs.Get(req.WindowID), b.flavor.env(), cmd.BuildArgv())
	if err != nil {
		return nil, fail(-1, err)
	}
	if err := proc.Start(); err != nil {
		return nil, fail(-1, err)
	}

	grace := time.NewTimer(b.startupGrace)
	defer grace.Stop()

	select {
	case <-proc.Done():
		code, _ := proc.Exited()
		return nil, fail(code, errors.New("player exited during startup"))
	case <-ctx.Done():
		proc.Stop()
		return nil, fail(-1, ctx.Err())
	case <-grace.C:
	}

	now := b.clock()
	mon := newMonitor(proc, req.PlayTimeout, now)
	mon.run(context.Background(), b.flavor.probe(req, proc.Pid()), b.probeInterval, b.clock, proc.Done())

	h := newHandle(req, &procInstance{proc: proc, mon: mon}, now)
	log.Info("player started", zap.Int("cmd_pid", proc.Pid()), zap.String("player_id", h.ID.String()))
	return h, nil
}

// Stop terminates the player and waits until it is reaped.
func (b *ProcessBackend) Stop(h *Handle) {
	h.stop()
}

func (b *ProcessBackend) PollHealth(h *Handle) Health {
	return h.health(b.clock())
}

// Close releases the backend's D-Bus connection. Players still running are
// not touched.
func (b *ProcessBackend) Close() error {
	b.flavor.close()
	return nil
}

// NewOMXPlayer returns the omxplayer backend.
func NewOMXPlayer(log *zap.Logger, opts Options) *ProcessBackend {
	return newProcessBackend(log, newOMXFlavor(), opts)
}

// NewVLC returns the cvlc backend.
func NewVLC(log *zap.Logger, opts Options) *ProcessBackend {
	return newProcessBackend(log, newVLCFlavor(), opts)
}

// New selects a backend by name: "omxplayer", "vlc" or "simulated".
func New(name string, log *zap.Logger, opts Options) (Backend, error) {
	switch name {
	case "omxplayer", "omx", "":
		return NewOMXPlayer(log, opts), nil
	case "vlc", "cvlc":
		return NewVLC(log, opts), nil
	case "simulated", "sim":
		return NewSimulated(log, opts.Clock), nil
	}
	return nil, fmt.Errorf("unknown player backend %q", name)
}
