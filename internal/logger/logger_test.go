package logger_test

import (
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/LonghornRacingElectric/recruiting-site-2026-sub000/internal/logger"
)

func TestNew_Levels(t *testing.T) {
	cases := []struct {
		level string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"bogus", zapcore.InfoLevel},
	}
	for _, c := range cases {
		for _, format := range []string{"json", "console"} {
			l := logger.New(c.level, format)
			if !l.Core().Enabled(c.want) {
				t.Errorf("New(%q, %q) does not enable %s", c.level, format, c.want)
			}
			if c.want > zapcore.DebugLevel && l.Core().Enabled(c.want-1) {
				t.Errorf("New(%q, %q) enables %s", c.level, format, c.want-1)
			}
		}
	}
}
