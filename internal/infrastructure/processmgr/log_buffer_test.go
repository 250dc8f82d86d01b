package processmgr

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogBufferNewestFirst(t *testing.T) {
	var b LogBuffer
	require.Nil(t, b.Read(10))

	for i := 0; i < 3; i++ {
		b.Append("line " + strconv.Itoa(i))
	}

	got := b.Read(0)
	require.Len(t, got, 3)
	require.Equal(t, "line 2", got[0].Line)
	require.Equal(t, "line 0", got[2].Line)

	got = b.Read(2)
	require.Len(t, got, 2)
	require.Equal(t, "line 1", got[1].Line)
}

func TestLogBufferWraps(t *testing.T) {
	var b LogBuffer
	for i := 0; i < logBufferSize+25; i++ {
		b.Append(strconv.Itoa(i))
	}

	require.Equal(t, logBufferSize, b.Len())
	got := b.Read(0)
	require.Len(t, got, logBufferSize)
	require.Equal(t, strconv.Itoa(logBufferSize+24), got[0].Line)
	require.Equal(t, "25", got[logBufferSize-1].Line)
}

func TestLogManagerReusesBuffers(t *testing.T) {
	lm := NewLogManager()
	a := lm.Get(7)
	require.Same(t, a, lm.Get(7))

	_, ok := lm.Lookup(8)
	require.False(t, ok)

	lm.Drop(7)
	_, ok = lm.Lookup(7)
	require.False(t, ok)
}
