package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/edirooss/camwall/pkg/hostutil"
	"go.uber.org/zap/zapcore"
)

// Advanced holds the tunables of the [advanced] section.
type Advanced struct {
	LogLevel         string   `mapstructure:"loglevel" yaml:"loglevel"`
	Player           string   `mapstructure:"player" yaml:"player"`
	ScreenWidth      int      `mapstructure:"screenwidth" yaml:"screenwidth"`
	ScreenHeight     int      `mapstructure:"screenheight" yaml:"screenheight"`
	BufferTime       int      `mapstructure:"buffertime" yaml:"buffertime"` // ms
	HardwareCheck    bool     `mapstructure:"hardwarecheck" yaml:"hardwarecheck"`
	ShowTime         int      `mapstructure:"showtime" yaml:"showtime"` // s
	BackgroundMode   string   `mapstructure:"backgroundmode" yaml:"backgroundmode"`
	Icons            bool     `mapstructure:"icons" yaml:"icons"`
	StreamWatchdog   int      `mapstructure:"streamwatchdog" yaml:"streamwatchdog"` // s
	PlayTimeout      int      `mapstructure:"playtimeout" yaml:"playtimeout"`       // s
	StreamQuality    string   `mapstructure:"streamquality" yaml:"streamquality"`
	RefreshTime      int      `mapstructure:"refreshtime" yaml:"refreshtime"` // min
	EnableHEVC       string   `mapstructure:"enablehevc" yaml:"enablehevc"`
	EnableAudio      string   `mapstructure:"enableaudio" yaml:"enableaudio"`
	AudioVolume      int      `mapstructure:"audiovolume" yaml:"audiovolume"`
	ScreenDownscale  int      `mapstructure:"screendownscale" yaml:"screendownscale"`
	EnableVideoOSD   bool     `mapstructure:"enablevideoosd" yaml:"enablevideoosd"`
	MaxDecoders      int      `mapstructure:"maxdecoders" yaml:"maxdecoders"`
	RestartThreshold int      `mapstructure:"restartthreshold" yaml:"restartthreshold"`
	RetryCeiling     int      `mapstructure:"retryceiling" yaml:"retryceiling"`
	FailedRetry      int      `mapstructure:"failedretry" yaml:"failedretry"` // s
	HTTPAddr         string   `mapstructure:"httpaddr" yaml:"httpaddr"`
	HTTPCORS         []string `mapstructure:"httpcors" yaml:"httpcors"`
	RedisAddr        string   `mapstructure:"redisaddr" yaml:"redisaddr"`
	RedisDB          int      `mapstructure:"redisdb" yaml:"redisdb"`
	CacheFile        string   `mapstructure:"cachefile" yaml:"cachefile"`
	Resources        string   `mapstructure:"resources" yaml:"resources"`
}

// subtitle based OSD cannot outlive 99 hours
const osdRefreshTime = 99 * 60

var defaults = map[string]any{
	"loglevel":         "debug",
	"player":           "omxplayer",
	"screenwidth":      0,
	"screenheight":     0,
	"buffertime":       500,
	"hardwarecheck":    true,
	"showtime":         10,
	"backgroundmode":   "dynamic",
	"icons":            true,
	"streamwatchdog":   15,
	"playtimeout":      10,
	"streamquality":    "auto",
	"refreshtime":      60,
	"enablehevc":       "auto",
	"enableaudio":      "off",
	"audiovolume":      100,
	"screendownscale":  0,
	"enablevideoosd":   false,
	"maxdecoders":      16,
	"restartthreshold": 3,
	"retryceiling":     5,
	"failedretry":      60,
	"httpaddr":         "",
	"httpcors":         []string{},
	"redisaddr":        "",
	"redisdb":          0,
	"cachefile":        "/tmp/camwall-streaminfo.yaml",
	"resources":        "/usr/local/share/camwall",
}

// DefaultAdvanced returns the advanced settings used when a key is absent.
func DefaultAdvanced() Advanced {
	return Advanced{
		LogLevel:         "debug",
		Player:           "omxplayer",
		BufferTime:       500,
		HardwareCheck:    true,
		ShowTime:         10,
		BackgroundMode:   "dynamic",
		Icons:            true,
		StreamWatchdog:   15,
		PlayTimeout:      10,
		StreamQuality:    "auto",
		RefreshTime:      60,
		EnableHEVC:       "auto",
		EnableAudio:      "off",
		AudioVolume:      100,
		MaxDecoders:      16,
		RestartThreshold: 3,
		RetryCeiling:     5,
		FailedRetry:      60,
		HTTPCORS:         []string{},
		CacheFile:        "/tmp/camwall-streaminfo.yaml",
		Resources:        "/usr/local/share/camwall",
	}
}

var (
	backgroundModes = []string{"hide", "static", "dynamic", "off"}
	hevcModes       = []string{"off", "auto", "fhd", "uhd"}
	audioModes      = []string{"off", "fullscreen"}
)

// normalize lowercases enum values, maps the legacy integer encodings and
// applies cross-key rules. Problems are appended to errs.
func (a *Advanced) normalize(errs *problems) {
	a.Player = strings.ToLower(strings.TrimSpace(a.Player))
	a.BackgroundMode = legacyEnum(a.BackgroundMode, backgroundModes)
	a.EnableHEVC = legacyEnum(a.EnableHEVC, hevcModes)
	a.EnableAudio = legacyEnum(a.EnableAudio, audioModes)
	a.StreamQuality = strings.ToLower(strings.TrimSpace(a.StreamQuality))

	if _, err := a.Level(); err != nil {
		errs.add("advanced.loglevel", err.Error())
	}
	errs.oneOf("advanced.backgroundmode", a.BackgroundMode, backgroundModes)
	errs.oneOf("advanced.enablehevc", a.EnableHEVC, hevcModes)
	errs.oneOf("advanced.enableaudio", a.EnableAudio, audioModes)
	errs.oneOf("advanced.streamquality", a.StreamQuality, []string{"lowest", "low", "auto", "highest", "high", "0", "1", "2", ""})

	errs.min("advanced.screenwidth", a.ScreenWidth, 0)
	errs.min("advanced.screenheight", a.ScreenHeight, 0)
	errs.min("advanced.buffertime", a.BufferTime, 0)
	errs.min("advanced.showtime", a.ShowTime, 0)
	errs.min("advanced.streamwatchdog", a.StreamWatchdog, 0)
	errs.min("advanced.playtimeout", a.PlayTimeout, 1)
	errs.min("advanced.refreshtime", a.RefreshTime, 0)
	errs.min("advanced.maxdecoders", a.MaxDecoders, 1)
	errs.min("advanced.restartthreshold", a.RestartThreshold, 1)
	errs.min("advanced.retryceiling", a.RetryCeiling, 1)
	errs.min("advanced.failedretry", a.FailedRetry, 1)
	if a.AudioVolume < 0 || a.AudioVolume > 100 {
		errs.add("advanced.audiovolume", fmt.Sprintf("%d not in 0..100", a.AudioVolume))
	}
	if a.ScreenDownscale < 0 || a.ScreenDownscale > 99 {
		errs.add("advanced.screendownscale", fmt.Sprintf("%d not in 0..99", a.ScreenDownscale))
	}

	if a.HTTPAddr != "" {
		if err := hostutil.ValidateAddr(a.HTTPAddr, true); err != nil {
			errs.add("advanced.httpaddr", err.Error())
		}
	}
	if a.RedisAddr != "" {
		if err := hostutil.ValidateAddr(a.RedisAddr, false); err != nil {
			errs.add("advanced.redisaddr", err.Error())
		}
	}

	if a.EnableVideoOSD && (a.RefreshTime == 0 || a.RefreshTime > osdRefreshTime) {
		a.RefreshTime = osdRefreshTime
	}
}

// legacyEnum accepts either a name or its index in names.
func legacyEnum(v string, names []string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if len(v) == 1 && v[0] >= '0' && v[0] <= '9' {
		if i := int(v[0] - '0'); i < len(names) {
			return names[i]
		}
	}
	return v
}

// Level parses loglevel. The integers 0..3 of older configs map to
// debug, info, warn and error.
func (a Advanced) Level() (zapcore.Level, error) {
	switch strings.TrimSpace(a.LogLevel) {
	case "0":
		return zapcore.DebugLevel, nil
	case "1":
		return zapcore.InfoLevel, nil
	case "2":
		return zapcore.WarnLevel, nil
	case "3":
		return zapcore.ErrorLevel, nil
	}
	return zapcore.ParseLevel(a.LogLevel)
}

func (a Advanced) BufferDuration() time.Duration { return time.Duration(a.BufferTime) * time.Millisecond }
func (a Advanced) ShowDuration() time.Duration { return time.Duration(a.ShowTime) * time.Second }
func (a Advanced) WatchdogInterval() time.Duration { return time.Duration(a.StreamWatchdog) * time.Second }
func (a Advanced) PlayTimeoutDuration() time.Duration {
	return time.Duration(a.PlayTimeout) * time.Second
}
func (a Advanced) RefreshDuration() time.Duration { return time.Duration(a.RefreshTime) * time.Minute }
func (a Advanced) FailedRetryPeriod() time.Duration { return time.Duration(a.FailedRetry) * time.Second }

// AudioInFullscreen reports whether the fullscreen window plays sound.
func (a Advanced) AudioInFullscreen() bool { return a.EnableAudio == "fullscreen" }
