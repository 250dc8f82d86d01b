package jsonx

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type rankBody struct {
	Rank int `json:"rank"`
}

func TestDecode(t *testing.T) {
	var v rankBody
	require.NoError(t, Decode(strings.NewReader(`{"rank": 2, "extra": true}`), &v))
	require.Equal(t, 2, v.Rank)

	require.ErrorIs(t, Decode(strings.NewReader("  \n"), &v), ErrEmpty)
	require.ErrorIs(t, Decode(strings.NewReader(`{"rank":1} {"rank":2}`), &v), ErrTrailingJSON)
}

func TestParseStrictJSONBody(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"ok", `{"rank": 3}`, false},
		{"unknown field", `{"rank": 3, "x": 1}`, true},
		{"wrong type", `{"rank": "3"}`, true},
		{"truncated", `{"rank": 3`, true},
		{"empty", ``, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/", strings.NewReader(tt.body))
			var v rankBody
			err := ParseStrictJSONBody(r, &v)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, 3, v.Rank)
		})
	}
}
