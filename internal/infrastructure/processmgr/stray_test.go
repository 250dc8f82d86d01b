//go:build linux

package processmgr

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

func TestFindByName(t *testing.T) {
	root := fstest.MapFS{
		"101/comm":    {Data: []byte("omxplayer.bin\n")},
		"102/comm":    {Data: []byte("bash\n")},
		"103/comm":    {Data: []byte("vlc\n")},
		"self/comm":   {Data: []byte("omxplayer.bin\n")},
		"uptime":      {Data: []byte("1.0 2.0\n")},
		"104/cmdline": {Data: []byte("vlc")},
	}
	require.ElementsMatch(t, []int{101, 103}, FindByName(root, "omxplayer.bin", "vlc"))
	require.Empty(t, FindByName(root, "pipng"))
}
