// Package probe finds out codec and resolution of every configured stream,
// with ffprobe and a persistent cache, and decides which subchannels the
// host can play.
package probe

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/edirooss/camwall/internal/domain/camera"
	"github.com/edirooss/camwall/internal/hwinfo"
	"github.com/edirooss/camwall/pkg/avurl"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// concurrent ffprobe processes during a refresh
const probeWorkers = 4

// Catalog answers codec questions for the supervisor.
type Catalog struct {
	log    *zap.Logger
	cache  *Cache
	runner Runner
	cap    hwinfo.Capability
	now    func() time.Time
}

func NewCatalog(log *zap.Logger, cache *Cache, runner Runner, capability hwinfo.Capability) *Catalog {
	return &Catalog{
		log:    log.Named("probe"),
		cache:  cache,
		runner: runner,
		cap:    capability,
		now:    time.Now,
	}
}

// Refresh probes every network channel missing from the cache, or all of
// them when rebuild is set. Local files are probed too. Failures are logged
// and leave the channel unprobed; the cache is saved at the end.
func (c *Catalog) Refresh(ctx context.Context, devices map[string]*camera.Device, rebuild bool) error {
	if rebuild {
		c.cache.Clear()
	}

	var todo []*camera.Channel
	for _, id := range sortedIDs(devices) {
		for _, rank := range devices[id].Ranks() {
			ch := devices[id].Channel(rank)
			if _, ok := c.cache.Get(ch.PrintableURL()); !ok {
				todo = append(todo, ch)
			}
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(probeWorkers)
	for _, ch := range todo {
		forceUDP := devices[ch.DeviceID].ForceUDP
		g.Go(func() error {
			info, err := c.runner.Probe(gctx, ch.URL, forceUDP)
			if err != nil {
				if errors.Is(gctx.Err(), context.Canceled) {
					return gctx.Err()
				}
				c.log.Warn("probe failed", zap.String("url", ch.PrintableURL()), zap.Error(err))
				return nil
			}
			info.ProbedAt = c.now()
			c.cache.Put(ch.PrintableURL(), info)
			c.log.Debug("probed",
				zap.String("url", ch.PrintableURL()),
				zap.String("codec", info.Codec),
				zap.Int("width", info.Width),
				zap.Int("height", info.Height))
			return nil
		})
	}
	err := g.Wait()
	if serr := c.cache.Save(); serr != nil {
		c.log.Warn("saving stream info cache failed", zap.Error(serr))
	}
	return err
}

// Lookup returns the cached info of a channel.
func (c *Catalog) Lookup(ch *camera.Channel) (Info, bool) {
	return c.cache.Get(avurl.Printable(ch.URL))
}

// CodecHint returns the probed codec or "".
func (c *Catalog) CodecHint(ch *camera.Channel) string {
	info, _ := c.Lookup(ch)
	return info.Codec
}

// Usable reports whether the host can decode the channel.
func (c *Catalog) Usable(ch *camera.Channel) bool {
	info, ok := c.Lookup(ch)
	if !ok {
		return true
	}
	return c.cap.Supports(info.Codec, info.Width, info.Height)
}

func sortedIDs(devices map[string]*camera.Device) []string {
	ids := make([]string, 0, len(devices))
	for id := range devices {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
