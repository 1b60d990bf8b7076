package strata_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/aretw0/strata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeLine(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{"plain", `set {"slice":"a","value":1}`, `set {"slice":"a","value":1}`, nil},
		{"keeps tab", "undo\t", "undo\t", nil},
		{"strips ansi escape", "st\x1b[31mate", "st[31mate", nil},
		{"strips null and bell", "re\x00do\a", "redo", nil},
		{"invalid utf8", "set \xff", "", strata.ErrInvalidUTF8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := strata.SanitizeLine(tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSanitizeLine_SizeLimit(t *testing.T) {
	t.Setenv(strata.EnvMaxLineSize, "8")

	_, err := strata.SanitizeLine("123456789")
	assert.ErrorIs(t, err, strata.ErrLineTooLarge)

	got, err := strata.SanitizeLine("12345678")
	require.NoError(t, err)
	assert.Equal(t, "12345678", got)
}

func TestRunner_RejectsOversizedLine(t *testing.T) {
	t.Setenv(strata.EnvMaxLineSize, "32")
	ws := newWorkspace(t)

	var out bytes.Buffer
	r := &strata.Runner{
		Input:    strings.NewReader(`set {"slice": "tool", "value": "a very long pen name"}` + "\nstate\n"),
		Output:   &out,
		Headless: true,
	}
	require.NoError(t, r.Run(ws))

	assert.Contains(t, out.String(), "exceeds maximum allowed size")
	assert.Equal(t, 0, ws.History().Len())
}
