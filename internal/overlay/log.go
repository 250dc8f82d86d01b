package overlay

import (
	"go.uber.org/zap"
)

// Logger is a Compositor that only logs scene changes, for hosts without
// pipng and for headless runs.
type Logger struct {
	log  *zap.Logger
	last map[int]Scene
}

func NewLogger(log *zap.Logger) *Logger {
	return &Logger{log: log.Named("overlay"), last: map[int]Scene{}}
}

func (l *Logger) Render(s Scene) {
	if prev, ok := l.last[s.Display]; ok && prev.Equal(s) {
		return
	}
	l.last[s.Display] = s

	playing := 0
	for _, t := range s.Tiles {
		if t.Status.Active() {
			playing++
		}
	}
	l.log.Debug("scene",
		zap.Int("display", s.Display),
		zap.Int("layout", int(s.Layout)),
		zap.Bool("fullscreen", s.Fullscreen),
		zap.Stringer("icon", s.Icon),
		zap.Int("tiles", len(s.Tiles)),
		zap.Int("active", playing))
}

func (l *Logger) Close() {}
