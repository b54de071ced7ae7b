package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"ERROR", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestSetup_WritesToConfiguredOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := Setup(Config{Level: "info", Output: buf})

	logger.Info().Str("cache", "packet").Msg("packet cache cleared")

	output := buf.String()
	if !strings.Contains(output, "packet cache cleared") {
		t.Errorf("output missing message: %q", output)
	}
	if !strings.Contains(output, `"cache":"packet"`) {
		t.Errorf("output missing structured field: %q", output)
	}
}

func TestSetup_LevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := Setup(Config{Level: "warn", Output: buf})

	logger.Debug().Msg("cache hit")
	logger.Info().Msg("cache cleared")
	logger.Warn().Msg("favicon too large")

	output := buf.String()
	if strings.Contains(output, "cache hit") || strings.Contains(output, "cache cleared") {
		t.Errorf("below-threshold messages leaked: %q", output)
	}
	if !strings.Contains(output, "favicon too large") {
		t.Errorf("warn message missing: %q", output)
	}
}

func TestNewLogger_TagsComponent(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: "info", Output: buf})

	logger := NewLogger("rotator")
	logger.Info().Msg("rotated")

	if !strings.Contains(buf.String(), `"component":"rotator"`) {
		t.Errorf("output missing component tag: %q", buf.String())
	}
}
