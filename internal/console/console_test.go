package console

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/edirooss/camwall/internal/domain/window"
	"github.com/edirooss/camwall/internal/input"
	"github.com/edirooss/camwall/internal/supervisor"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	windows []supervisor.WindowStatus
	err     error
}

func (f fakeSource) Snapshot(context.Context) ([]supervisor.WindowStatus, error) {
	return f.windows, f.err
}

func TestKeyOf(t *testing.T) {
	tests := []struct {
		name string
		msg  tea.KeyMsg
		want input.Key
		ok   bool
	}{
		{"up", tea.KeyMsg{Type: tea.KeyUp}, input.KeyUp, true},
		{"enter", tea.KeyMsg{Type: tea.KeyEnter}, input.KeyEnter, true},
		{"esc", tea.KeyMsg{Type: tea.KeyEsc}, input.KeyEscape, true},
		{"space", tea.KeyMsg{Type: tea.KeySpace}, input.KeySpace, true},
		{"digit", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("4")}, input.Key4, true},
		{"quit", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")}, input.KeyQuit, true},
		{"display", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("d")}, input.KeyDisplay, true},
		{"unmapped rune", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")}, input.KeyNone, false},
		{"tab", tea.KeyMsg{Type: tea.KeyTab}, input.KeyNone, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, ok := keyOf(tt.msg)
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.want, k)
		})
	}
}

func TestKeyIsForwarded(t *testing.T) {
	var got []input.Key
	sink := input.SinkFunc(func(_ context.Context, k input.Key) error {
		got = append(got, k)
		return nil
	})
	m := newModel(context.Background(), sink, fakeSource{})

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRight})
	require.NotNil(t, cmd)
	msg := cmd()
	require.Equal(t, sentMsg{key: input.KeyRight}, msg)
	require.Equal(t, []input.Key{input.KeyRight}, got)

	m.Update(msg)
	require.Equal(t, "right", m.last)
}

func TestSendErrorIsShown(t *testing.T) {
	sink := input.SinkFunc(func(context.Context, input.Key) error { return supervisor.ErrStopped })
	m := newModel(context.Background(), sink, fakeSource{})

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m.Update(cmd())
	require.Contains(t, m.last, supervisor.ErrStopped.Error())
}

func TestCtrlCNeedsConfirmation(t *testing.T) {
	m := newModel(context.Background(), input.SinkFunc(func(context.Context, input.Key) error { return nil }), fakeSource{})

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.Nil(t, cmd)
	require.True(t, m.armed)

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	require.Equal(t, tea.Quit(), cmd())
}

func TestViewListsWindows(t *testing.T) {
	src := fakeSource{windows: []supervisor.WindowStatus{
		{Key: "D01_S01_W01", Name: "Gate", Status: window.Playing, Rank: 1, Preferred: 1, Visible: true},
		{Key: "D01_S01_W02", Name: "Yard", Status: window.Failed, Rank: 2, Preferred: 1, Manual: true, Restarts: 4},
	}}
	m := newModel(context.Background(), nil, src)
	m.Update(m.fetch()())

	v := m.View()
	require.Contains(t, v, "D01_S01_W01")
	require.Contains(t, v, "Gate")
	require.Contains(t, v, "playing")
	require.Contains(t, v, "2/1*")
	require.Contains(t, v, "failed")
}

func TestFetchErrorKeepsLastTable(t *testing.T) {
	src := &fakeSource{windows: []supervisor.WindowStatus{{Key: "D01_S01_W01", Status: window.Idle}}}
	m := newModel(context.Background(), nil, src)
	m.Update(m.fetch()())

	src.err = errors.New("loop busy")
	src.windows = nil
	m.Update(m.fetch()())

	require.Len(t, m.windows, 1)
	require.Contains(t, m.View(), "loop busy")
}
