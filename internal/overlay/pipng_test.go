//go:build linux

package overlay

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/edirooss/camwall/internal/layout"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakePipng prints its arguments and then echoes stdin.
func fakePipng(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipng")
	script := "#!/bin/sh\necho \"args $*\"\nexec cat\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func firstLine(t *testing.T, p *Pipng, name string) string {
	t.Helper()
	buf, ok := p.output[name]
	require.True(t, ok, "no output buffer for %s", name)
	entries := buf.Read(0)
	require.NotEmpty(t, entries)
	return entries[len(entries)-1].Line
}

func TestPipngKeepsOutputPerProcess(t *testing.T) {
	p := newPipng(zap.NewNop(), fakePipng(t), "/res", Dynamic, true)

	p.Render(Scene{Display: 1, Layout: layout.Grid2x2, Icon: Loading})
	p.Render(Scene{Display: 2, Layout: layout.Single})
	p.Close()

	require.Len(t, p.output, 4)
	require.Contains(t, firstLine(t, p, "pipng-1-background"), "-l -100 -d 2 -h -i /res/backgrounds/nolink_1x1.png")
	require.Contains(t, firstLine(t, p, "pipng-1-icons"), "-l 1000 -d 2 -i")
	require.Contains(t, firstLine(t, p, "pipng-2-background"), "-d 7")
	require.Contains(t, firstLine(t, p, "pipng-2-icons"), "/res/icons/icon_loading.png")
	require.Empty(t, p.displays)
}

func TestPipngOffDrawsNoBackground(t *testing.T) {
	p := newPipng(zap.NewNop(), fakePipng(t), "/res", Off, false)

	p.Render(Scene{Display: 1, Layout: layout.Grid3x3})
	require.Nil(t, p.displays[1].background)
	require.Nil(t, p.displays[1].icon)
	p.Close()

	require.Empty(t, p.output)
}
