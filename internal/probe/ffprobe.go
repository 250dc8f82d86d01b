package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/edirooss/camwall/pkg/avurl"
	"github.com/edirooss/camwall/pkg/jsonx"
	"github.com/edirooss/camwall/pkg/playercmd"
)

// Info is what camwall needs to know about a stream before playing it.
type Info struct {
	Codec    string    `yaml:"codec" json:"codec"`
	Width    int       `yaml:"width" json:"width"`
	Height   int       `yaml:"height" json:"height"`
	FPS      float64   `yaml:"fps" json:"fps"`
	ProbedAt time.Time `yaml:"probed_at" json:"probed_at"`
}

// Runner probes one stream.
type Runner interface {
	Probe(ctx context.Context, url string, forceUDP bool) (Info, error)
}

// FFProbe runs the ffprobe executable.
type FFProbe struct {
	Binary  string
	Timeout time.Duration
}

const defaultProbeTimeout = 10 * time.Second

func (f FFProbe) Probe(ctx context.Context, url string, forceUDP bool) (Info, error) {
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	argv := f.command(url, forceUDP).BuildArgv()
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return Info{}, fmt.Errorf("ffprobe %s: %w: %s", avurl.Printable(url), err, strings.TrimSpace(stderr.String()))
	}
	return parse(&stdout)
}

func (f FFProbe) command(url string, forceUDP bool) *playercmd.Builder {
	binary := f.Binary
	if binary == "" {
		binary = "ffprobe"
	}
	return playercmd.NewBuilder(binary).
		WithStringFlag("-v", "error").
		WithStringFlag("-print_format", "json").
		WithStringFlag("-select_streams", "v:0").
		WithFlag("-show_streams").
		WithStringFlag("-rtsp_transport", rtspTransport(url, forceUDP)).
		WithSecret(url, avurl.Printable(url))
}

func rtspTransport(url string, forceUDP bool) string {
	if !avurl.IsRTSP(url) || forceUDP {
		return ""
	}
	return "tcp"
}

type ffprobeOutput struct {
	Streams []struct {
		CodecName    string `json:"codec_name"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
		RFrameRate   string `json:"r_frame_rate"`
	} `json:"streams"`
}

var ErrNoVideo = errors.New("no video stream")

func parse(b *bytes.Buffer) (Info, error) {
	var out ffprobeOutput
	if err := jsonx.Decode(b, &out); err != nil {
		return Info{}, fmt.Errorf("decode ffprobe output: %w", err)
	}
	if len(out.Streams) == 0 {
		return Info{}, ErrNoVideo
	}
	s := out.Streams[0]
	fps := frameRate(s.AvgFrameRate)
	if fps == 0 {
		fps = frameRate(s.RFrameRate)
	}
	return Info{Codec: s.CodecName, Width: s.Width, Height: s.Height, FPS: fps}, nil
}

// frameRate parses ffprobe rationals like "30000/1001".
func frameRate(s string) float64 {
	num, den, found := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}
