// Package config loads and validates the camwall configuration: the
// advanced tunables, the camera devices and the screens that place them.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/edirooss/camwall/internal/domain/camera"
	"github.com/edirooss/camwall/internal/layout"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// File mirrors the on-disk YAML document.
type File struct {
	Advanced Advanced      `mapstructure:"advanced" yaml:"advanced"`
	Devices  []DeviceEntry `mapstructure:"devices" yaml:"devices"`
	Screens  []ScreenEntry `mapstructure:"screens" yaml:"screens"`
}

// DeviceEntry is one camera. Channels maps a subchannel rank ("1".."9") to
// its stream URL.
type DeviceEntry struct {
	ID       string            `mapstructure:"id" yaml:"id"`
	Name     string            `mapstructure:"name" yaml:"name"`
	Username string            `mapstructure:"username" yaml:"username"`
	Password string            `mapstructure:"password" yaml:"password"`
	ForceUDP bool              `mapstructure:"forceudp" yaml:"forceudp"`
	Channels map[string]string `mapstructure:"channels" yaml:"channels"`
}

// ScreenEntry is one screen. Windows holds "device" or "device:rank"
// references in layout order; an empty string leaves the slot blank.
type ScreenEntry struct {
	Layout      int      `mapstructure:"layout" yaml:"layout"`
	Display     int      `mapstructure:"display" yaml:"display"`
	DisplayTime *int     `mapstructure:"displaytime" yaml:"displaytime"`
	Windows     []string `mapstructure:"windows" yaml:"windows"`
}

// Config is the validated model handed to the supervisor.
type Config struct {
	Source   string
	Advanced Advanced
	Devices  map[string]*camera.Device
	Screens  []Screen
	Warnings []string
}

// Screen is a validated screen. Windows has exactly Layout.Windows() entries.
type Screen struct {
	Index   int
	Display int
	Layout  layout.Code
	Dwell   time.Duration // 0 pins rotation on this screen
	Windows []camera.Binding
}

// Displays returns the display ids in use, ascending.
func (c *Config) Displays() []int {
	seen := map[int]bool{}
	var out []int
	for _, s := range c.Screens {
		if !seen[s.Display] {
			seen[s.Display] = true
			out = append(out, s.Display)
		}
	}
	sort.Ints(out)
	return out
}

const envPrefix = "CAMWALL"

// Load reads path through viper. Every advanced key can be overridden with
// CAMWALL_ADVANCED_<KEY>.
func Load(path string) (*Config, error) {
	v := viper.New()
	for k, d := range defaults {
		v.SetDefault("advanced."+k, d)
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var f File
	if err := v.Unmarshal(&f); err != nil {
		return nil, &ConfigurationError{Source: path, Problems: []string{err.Error()}}
	}

	var keys []string
	if sub := v.Sub("advanced"); sub != nil {
		keys = sub.AllKeys()
	}
	return Build(path, f, unknownKeys(keys))
}

//go:embed demo.yaml
var demoYAML []byte

// Demo returns the built-in demo configuration. Its devices play looping
// clips from the resources directory and need no network.
func Demo(resources string) (*Config, error) {
	f := File{Advanced: DefaultAdvanced()}
	dec := yaml.NewDecoder(bytes.NewReader(demoYAML))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode demo config: %w", err)
	}
	if resources != "" {
		f.Advanced.Resources = resources
	}
	for i := range f.Devices {
		for k, u := range f.Devices[i].Channels {
			f.Devices[i].Channels[k] = strings.ReplaceAll(u, "${resources}", f.Advanced.Resources)
		}
	}
	return Build("demo", f, nil)
}

// Build validates a decoded document.
func Build(source string, f File, warnings []string) (*Config, error) {
	var errs problems

	adv := f.Advanced
	adv.normalize(&errs)

	devices := make(map[string]*camera.Device, len(f.Devices))
	for i, d := range f.Devices {
		field := fmt.Sprintf("devices[%d]", i)
		id := strings.TrimSpace(d.ID)
		switch {
		case id == "":
			errs.add(field, "missing id")
			continue
		case strings.Contains(id, ":"):
			errs.add(field, fmt.Sprintf("id %q must not contain ':'", id))
			continue
		case devices[id] != nil:
			errs.add(field, fmt.Sprintf("duplicate id %q", id))
			continue
		}

		urls := make(map[int]string, len(d.Channels))
		for k, u := range d.Channels {
			rank, err := strconv.Atoi(strings.TrimPrefix(strings.ToLower(k), "channel"))
			if err != nil || rank < 1 || rank > camera.MaxRank {
				errs.add(field, fmt.Sprintf("channel %q is not a rank in 1..%d", k, camera.MaxRank))
				continue
			}
			urls[rank] = u
		}
		dev := camera.NewDevice(id, d.Name, d.ForceUDP, urls)
		if d.Username != "" {
			dev.SetCredentials(d.Username, d.Password)
		}
		if len(dev.Ranks()) == 0 {
			warnings = append(warnings, fmt.Sprintf("%s: device %q has no usable channel", field, id))
		}
		devices[id] = dev
	}

	screens := make([]Screen, 0, len(f.Screens))
	for i, s := range f.Screens {
		field := fmt.Sprintf("screens[%d]", i)
		code := layout.Code(s.Layout)
		if !code.Valid() {
			errs.add(field, fmt.Sprintf("layout %d: %v", s.Layout, layout.ErrUnsupportedCode))
			continue
		}
		display := s.Display
		if display == 0 {
			display = 1
		}
		if display != 1 && display != 2 {
			errs.add(field, fmt.Sprintf("display %d is not 1 or 2", s.Display))
			continue
		}
		if len(s.Windows) > code.Windows() {
			errs.add(field, fmt.Sprintf("%d windows do not fit layout %d", len(s.Windows), s.Layout))
			continue
		}

		dwell := adv.ShowDuration()
		if s.DisplayTime != nil {
			if *s.DisplayTime < 0 {
				errs.add(field, "negative displaytime")
				continue
			}
			dwell = time.Duration(*s.DisplayTime) * time.Second
		}

		bindings := make([]camera.Binding, code.Windows())
		for j, ref := range s.Windows {
			b, err := ParseBinding(ref)
			if err != nil {
				errs.add(fmt.Sprintf("%s.windows[%d]", field, j), err.Error())
				continue
			}
			if b.Empty() {
				continue
			}
			dev := devices[b.DeviceID]
			if dev == nil {
				errs.add(fmt.Sprintf("%s.windows[%d]", field, j), fmt.Sprintf("unknown device %q", b.DeviceID))
				continue
			}
			if b.Rank != 0 && dev.Channel(b.Rank) == nil {
				errs.add(fmt.Sprintf("%s.windows[%d]", field, j), fmt.Sprintf("device %q has no channel %d", b.DeviceID, b.Rank))
				continue
			}
			bindings[j] = b
		}

		screens = append(screens, Screen{
			Index:   len(screens),
			Display: display,
			Layout:  code,
			Dwell:   dwell,
			Windows: bindings,
		})
	}
	if len(f.Screens) == 0 {
		errs.add("screens", "no screen configured")
	}

	if err := errs.err(source); err != nil {
		return nil, err
	}
	return &Config{
		Source:   source,
		Advanced: adv,
		Devices:  devices,
		Screens:  screens,
		Warnings: warnings,
	}, nil
}

var ErrBadReference = errors.New("bad window reference")

// ParseBinding parses "device" or "device:rank". The empty string is an
// empty slot.
func ParseBinding(ref string) (camera.Binding, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return camera.Binding{}, nil
	}
	id, rankStr, pinned := strings.Cut(ref, ":")
	if id == "" {
		return camera.Binding{}, fmt.Errorf("%w %q: missing device", ErrBadReference, ref)
	}
	if !pinned {
		return camera.Binding{DeviceID: id}, nil
	}
	rank, err := strconv.Atoi(rankStr)
	if err != nil || rank < 1 || rank > camera.MaxRank {
		return camera.Binding{}, fmt.Errorf("%w %q: rank must be 1..%d", ErrBadReference, ref, camera.MaxRank)
	}
	return camera.Binding{DeviceID: id, Rank: rank}, nil
}

// unknownKeys warns about advanced keys nobody reads, with a suggestion when
// one is a likely typo.
func unknownKeys(keys []string) []string {
	var out []string
	for _, k := range keys {
		if _, ok := defaults[k]; ok {
			continue
		}
		msg := fmt.Sprintf("advanced.%s: unknown key", k)
		if s := suggest(k); s != "" {
			msg += fmt.Sprintf(", did you mean %q?", s)
		}
		out = append(out, msg)
	}
	sort.Strings(out)
	return out
}

func suggest(key string) string {
	best, bestDist := "", 3
	for k := range defaults {
		if d := levenshtein.ComputeDistance(key, k); d < bestDist || (d == bestDist && best != "" && k < best) {
			best, bestDist = k, d
		}
	}
	return best
}
