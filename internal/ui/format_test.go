package ui

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// captureOutput redirects Output for the duration of a test.
func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	old := Output
	Output = &buf
	t.Cleanup(func() { Output = old })
	return &buf
}

func withColor(t *testing.T, enabled bool) {
	t.Helper()
	old := supportsColor
	supportsColor = enabled
	t.Cleanup(func() { supportsColor = old })
}

func TestColorFunc(t *testing.T) {
	funcs := []func(string) string{
		ColorSuccess, ColorError, ColorWarning, ColorInfo, ColorProgress, ColorBold, ColorDim,
	}

	t.Run("with color support", func(t *testing.T) {
		withColor(t, true)
		for _, f := range funcs {
			assert.NotEqual(t, "text", f("text"))
			assert.Contains(t, f("text"), "text")
		}
	})

	t.Run("without color support", func(t *testing.T) {
		withColor(t, false)
		for _, f := range funcs {
			assert.Equal(t, "text", f("text"))
		}
	})
}

func TestShowHeader(t *testing.T) {
	withColor(t, false)
	buf := captureOutput(t)

	ShowHeader("Run Summary")

	out := buf.String()
	assert.Contains(t, out, "Run Summary")
	assert.Contains(t, out, "+------")
}

func TestShowHeaderLongTitle(t *testing.T) {
	withColor(t, false)
	buf := captureOutput(t)

	long := "a title that is clearly longer than the fifty column frame"
	assert.NotPanics(t, func() { ShowHeader(long) })
	assert.Contains(t, buf.String(), long)
}

func TestShowError(t *testing.T) {
	withColor(t, false)

	tests := []struct {
		name    string
		err     error
		wantTip string
	}{
		{"missing column", errors.New("tickets: required column \"acct_id\" not found"), "expected column names"},
		{"ambiguous section", errors.New("section \"101\" maps to more than one home city"), "model.fan_out"},
		{"no weather", errors.New("no weather data retrieved for any city"), "station ids"},
		{"auth", errors.New("authentication failed for user"), "username and password"},
		{"refused", errors.New("dial tcp: connection refused"), "network connectivity"},
		{"privileges", errors.New("permission denied for schema"), "privileges"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureOutput(t)
			ShowError(tt.err)
			assert.Contains(t, buf.String(), "ERROR:")
			assert.Contains(t, buf.String(), "TIP:")
			assert.Contains(t, buf.String(), tt.wantTip)
		})
	}
}

func TestShowErrorWithoutSuggestion(t *testing.T) {
	withColor(t, false)
	buf := captureOutput(t)

	ShowError(errors.New("first line\nsecond line"))

	out := buf.String()
	assert.Contains(t, out, "  first line\n")
	assert.Contains(t, out, "  second line\n")
	assert.NotContains(t, out, "TIP:")
}

func TestShowMessages(t *testing.T) {
	withColor(t, false)
	buf := captureOutput(t)

	ShowSuccess("published")
	ShowWarning("weather partial")
	ShowInfo("reading sources")

	assert.Equal(t,
		"SUCCESS: published\nWARNING: weather partial\nINFO: reading sources\n",
		buf.String())
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{250 * time.Millisecond, "250ms"},
		{1500 * time.Millisecond, "1.5s"},
		{90 * time.Second, "1m30s"},
		{2*time.Hour + 5*time.Minute, "2h5m"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.in))
	}
}
