// Package camera holds the immutable device/channel model loaded from
// configuration.
package camera

import (
	"sort"

	"github.com/edirooss/camwall/pkg/avurl"
)

// MaxRank is the highest subchannel index a device may configure.
const MaxRank = 9

// Channel is one stream URL of a Device. Rank 1 is the primary (main) stream,
// higher ranks are alternative, usually lower quality, streams.
type Channel struct {
	DeviceID string
	Rank     int
	URL      string
}

// PrintableURL returns the stream URL with credentials masked.
func (c *Channel) PrintableURL() string { return avurl.Printable(c.URL) }

// Device is a configured camera.
type Device struct {
	ID       string
	Name     string
	ForceUDP bool
	Channels map[int]*Channel // rank -> channel
}

// NewDevice builds a Device from a rank -> URL mapping. Empty URLs are
// skipped.
func NewDevice(id, name string, forceUDP bool, urls map[int]string) *Device {
	d := &Device{
		ID:       id,
		Name:     name,
		ForceUDP: forceUDP,
		Channels: make(map[int]*Channel, len(urls)),
	}
	for rank, url := range urls {
		if url == "" {
			continue
		}
		d.Channels[rank] = &Channel{DeviceID: id, Rank: rank, URL: url}
	}
	return d
}

// Ranks returns the configured subchannel ranks in ascending order.
func (d *Device) Ranks() []int {
	out := make([]int, 0, len(d.Channels))
	for r := range d.Channels {
		out = append(out, r)
	}
	sort.Ints(out)
	return out
}

// Channel returns the channel at rank, or nil.
func (d *Device) Channel(rank int) *Channel {
	return d.Channels[rank]
}

// DisplayName falls back to the id when no name is configured.
func (d *Device) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.ID
}

// Binding is a Window's reference to a Device. Rank pins a single
// subchannel; 0 lets quality selection choose among all of them.
type Binding struct {
	DeviceID string
	Rank     int
}

// Empty reports whether the binding references no device.
func (b Binding) Empty() bool { return b.DeviceID == "" }

// SetCredentials embeds username and password into every channel URL that
// does not carry its own. Local files are left alone.
func (d *Device) SetCredentials(username, password string) {
	for _, ch := range d.Channels {
		if avurl.IsFile(ch.URL) || avurl.Split(ch.URL).HasAt {
			continue
		}
		ch.URL = avurl.EmbedUserinfo(ch.URL, username, password)
	}
}
