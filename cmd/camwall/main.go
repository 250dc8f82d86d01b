package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/edirooss/camwall/internal/config"
	"github.com/edirooss/camwall/internal/console"
	"github.com/edirooss/camwall/internal/hwinfo"
	"github.com/edirooss/camwall/internal/http/server"
	"github.com/edirooss/camwall/internal/infrastructure/processmgr"
	"github.com/edirooss/camwall/internal/input"
	"github.com/edirooss/camwall/internal/overlay"
	"github.com/edirooss/camwall/internal/player"
	"github.com/edirooss/camwall/internal/probe"
	"github.com/edirooss/camwall/internal/repo"
	"github.com/edirooss/camwall/internal/supervisor"
	"github.com/edirooss/camwall/pkg/fmtt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

const defaultConfigPath = "/etc/camwall/camwall.yaml"

// players and overlays left behind by a crashed run
var strayNames = []string{"omxplayer.bin", "vlc", "pngview", "pipng"}

type flags struct {
	configPath   string
	demo         bool
	version      bool
	ignoreQuit   bool
	console      bool
	simulate     bool
	dumpConfig   bool
	rebuildCache bool
	dev          bool
}

func parseFlags() flags {
	var f flags
	flag.StringVar(&f.configPath, "c", defaultConfigPath, "configuration file")
	flag.StringVar(&f.configPath, "config", defaultConfigPath, "configuration file")
	flag.BoolVar(&f.demo, "d", false, "run the built-in demo configuration")
	flag.BoolVar(&f.demo, "demo", false, "run the built-in demo configuration")
	flag.BoolVar(&f.version, "v", false, "print version and exit")
	flag.BoolVar(&f.version, "version", false, "print version and exit")
	flag.BoolVar(&f.ignoreQuit, "ignorequit", false, "ignore the quit key")
	flag.BoolVar(&f.console, "console", false, "read keys from this terminal and show the window table")
	flag.BoolVar(&f.simulate, "simulate", false, "use the simulated player backend")
	flag.BoolVar(&f.dumpConfig, "dump-config", false, "print the loaded configuration and exit")
	flag.BoolVar(&f.rebuildCache, "rebuild-cache", false, "probe every stream again")
	flag.Parse()
	f.dev = os.Getenv("CAMWALL_ENV") == "dev"
	return f
}

func main() {
	f := parseFlags()
	if f.version {
		fmt.Printf("camwall %s (commit %s, built %s)\n", config.Version, config.GitCommit, config.BuildDate)
		os.Exit(0)
	}

	if err := run(f); err != nil {
		fmt.Fprintln(os.Stderr, "camwall failed:")
		fmtt.PrintErrChain(os.Stderr, err)
		os.Exit(1)
	}
}

func run(f flags) error {
	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}
	if f.simulate {
		cfg.Advanced.Player = "simulated"
	}
	if f.dumpConfig {
		fmtt.Dump(os.Stdout, cfg)
		return nil
	}

	level, err := cfg.Advanced.Level()
	if err != nil {
		return err
	}
	var logFile string
	if f.console {
		// the console owns the terminal
		logFile = filepath.Join(os.TempDir(), "camwall.log")
	}
	log := buildLogger(level, logFile)
	defer log.Sync()
	log = log.Named("main")
	for _, w := range cfg.Warnings {
		log.Warn("configuration", zap.String("warning", w))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- host ---
	board := hwinfo.Detect(os.DirFS("/"))
	log.Info("host", zap.String("model", board.Model), zap.Stringer("family", board.Family), zap.Int("displays", board.Displays))
	host := hostSettings{board: board, simulate: f.simulate}
	host.apply(log, cfg)

	logs := processmgr.NewLogManager()
	backend, err := player.New(cfg.Advanced.Player, log, player.Options{Logs: logs})
	if err != nil {
		return err
	}
	if c, ok := backend.(player.Checker); ok {
		if err := c.Check(); err != nil {
			return fmt.Errorf("player backend %s: %w", backend.Name(), err)
		}
	}
	if c, ok := backend.(io.Closer); ok {
		defer c.Close()
	}
	if !f.simulate {
		if n := processmgr.KillStray(log, processmgr.KillGrace, strayNames...); n > 0 {
			log.Info("stray processes terminated", zap.Int("count", n))
		}
		defer processmgr.KillStray(log, processmgr.KillGrace, strayNames...)
	}

	// --- stream catalog ---
	catalog, err := buildCatalog(log, cfg, board, backend)
	if err != nil {
		return err
	}
	if !f.simulate {
		if err := catalog.Refresh(ctx, cfg.Devices, f.rebuildCache); err != nil {
			return fmt.Errorf("probe streams: %w", err)
		}
	}

	// --- overlay ---
	var compositor overlay.Compositor = overlay.NewLogger(log)
	if !f.simulate {
		mode, err := overlay.ParseBackgroundMode(cfg.Advanced.BackgroundMode)
		if err != nil {
			return err
		}
		if p, err := overlay.NewPipng(log, cfg.Advanced.Resources, mode, cfg.Advanced.Icons); err != nil {
			log.Warn("overlay disabled", zap.Error(err))
		} else {
			compositor = p
		}
	}

	// --- status store ---
	var publisher supervisor.Publisher
	var statuses *repo.WindowRepository
	if addr := cfg.Advanced.RedisAddr; addr != "" {
		r := repo.NewRepository(log, addr, cfg.Advanced.RedisDB)
		defer r.Close()
		if err := r.Client().Ping(ctx); err != nil {
			log.Warn("publishing statuses anyway; Redis may come up later", zap.Error(err))
		}
		statuses = r.Windows
		statuses.SetPublishInterval(supervisor.SweepInterval(cfg.Advanced))
		publisher = statuses
		log.Info("publishing window statuses",
			zap.String("instance", statuses.Instance()), zap.Duration("ttl", statuses.TTL()))
	}

	osd := overlay.Subtitles{Dir: filepath.Join(os.TempDir(), "camwall-osd")}
	sup, err := supervisor.New(cfg, supervisor.Options{
		Log:        log,
		Backend:    backend,
		Compositor: compositor,
		Publisher:  publisher,
		Streams:    catalog,
		Logs:       logs,
		Subtitles:  osd.Path,
		IgnoreQuit: f.ignoreQuit,
		Quit:       func() { log.Info("quit key pressed") },
	})
	if err != nil {
		return err
	}

	var reload func(ctx context.Context) error
	if !f.demo {
		reload = func(ctx context.Context) error {
			next, err := config.Load(f.configPath)
			if err != nil {
				return err
			}
			if f.simulate {
				next.Advanced.Player = "simulated"
			}
			if next.Advanced.Player != cfg.Advanced.Player {
				log.Warn("player backend changes need a restart",
					zap.String("running", cfg.Advanced.Player), zap.String("configured", next.Advanced.Player))
			}
			host.apply(log, next)
			if !f.simulate {
				if err := catalog.Refresh(ctx, next.Devices, false); err != nil {
					return fmt.Errorf("probe streams: %w", err)
				}
			}
			if err := sup.Reload(ctx, next); err != nil {
				return err
			}
			if statuses != nil {
				statuses.SetPublishInterval(supervisor.SweepInterval(next.Advanced))
			}
			return nil
		}
	}

	// --- run ---
	g, gctx := errgroup.WithContext(ctx)
	runCtx, cancel := context.WithCancel(gctx)
	defer cancel()

	g.Go(func() error {
		defer cancel() // quit key or fatal loop error ends everything else
		return sup.Run(runCtx)
	})

	if !f.simulate {
		g.Go(func() error {
			return input.NewEvdev(log).Run(runCtx, sup)
		})
	}

	if f.console {
		g.Go(func() error {
			return console.New(log, sup, sup).Run(runCtx)
		})
	}

	if addr := cfg.Advanced.HTTPAddr; addr != "" {
		srv := server.New(log, server.Options{
			Addr:        addr,
			CORSOrigins: cfg.Advanced.HTTPCORS,
			Dev:         f.dev,
			Controller:  sup,
			Logs:        logs,
			Reload:      reload,
		})
		g.Go(func() error {
			return srv.Run(runCtx)
		})
	}

	if reload != nil {
		g.Go(func() error {
			return reloadOnHangup(runCtx, log, reload)
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	log.Info("camwall stopped")
	return err
}

func loadConfig(f flags) (*config.Config, error) {
	if f.demo {
		return config.Demo("")
	}
	return config.Load(f.configPath)
}

// hostSettings fills in what the configuration leaves to the host.
type hostSettings struct {
	board    hwinfo.Board
	simulate bool
}

func (h hostSettings) apply(log *zap.Logger, cfg *config.Config) {
	adv := &cfg.Advanced
	if adv.ScreenWidth <= 0 || adv.ScreenHeight <= 0 {
		if w, hh, ok := hwinfo.ScreenSize(os.DirFS("/")); ok {
			adv.ScreenWidth, adv.ScreenHeight = w, hh
		}
	}
	if h.simulate {
		return
	}
	for _, d := range cfg.Displays() {
		if d > h.board.Displays {
			log.Warn("screens configured for a display the board does not have",
				zap.Int("display", d), zap.Int("board_displays", h.board.Displays))
		}
	}
}

func buildCatalog(log *zap.Logger, cfg *config.Config, board hwinfo.Board, backend player.Backend) (*probe.Catalog, error) {
	mode, err := hwinfo.ParseHEVCMode(cfg.Advanced.EnableHEVC)
	if err != nil {
		return nil, err
	}
	// omxplayer has no HEVC decoder
	capability, err := hwinfo.NewCapability(board, mode, cfg.Advanced.HardwareCheck, backend.Name() != "omxplayer")
	if err != nil {
		var hw *hwinfo.HardwareUnsupported
		if !errors.As(err, &hw) {
			return nil, err
		}
		log.Warn("HEVC disabled", zap.Error(err))
	}

	cache, err := probe.OpenCache(cfg.Advanced.CacheFile)
	if err != nil {
		log.Warn("stream info cache unreadable, starting empty", zap.Error(err))
		cache, err = probe.OpenCache("")
		if err != nil {
			return nil, err
		}
	}
	return probe.NewCatalog(log, cache, probe.FFProbe{}, capability), nil
}

func reloadOnHangup(ctx context.Context, log *zap.Logger, reload func(context.Context) error) error {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-hup:
			log.Info("SIGHUP received, reloading configuration")
			if err := reload(ctx); err != nil {
				log.Error("reload failed", zap.Error(err))
			}
		}
	}
}

func buildLogger(level zapcore.Level, file string) *zap.Logger {
	logConfig := zap.NewDevelopmentConfig()
	logConfig.EncoderConfig.TimeKey = ""
	logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if file != "" {
		logConfig.OutputPaths = []string{file}
		logConfig.ErrorOutputPaths = []string{file}
		logConfig.EncoderConfig.TimeKey = "T"
		logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	logConfig.DisableStacktrace = true
	logConfig.DisableCaller = true
	logConfig.Level.SetLevel(level)
	return zap.Must(logConfig.Build())
}
