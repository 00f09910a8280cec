package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func newBufferLogger(t *testing.T, dev bool) (*ChanneledLogger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger, err := NewChanneledLogger(&LoggerConfig{
		OutputToConsole: true,
		Output:          &buf,
		DefaultLevel:    slog.LevelDebug,
		DevMode:         dev,
	})
	if err != nil {
		t.Fatalf("NewChanneledLogger: %v", err)
	}
	return logger, &buf
}

func TestChannelAttributeIsAttached(t *testing.T) {
	logger, buf := newBufferLogger(t, false)
	logger.WithWidget(ChannelEmbed, "wd-1").Info("Widget mounted")

	out := buf.String()
	if !strings.Contains(out, "channel=embed") || !strings.Contains(out, "widgetId=wd-1") {
		t.Fatalf("missing attributes in %q", out)
	}
}

func TestProtocolChannelOnlyLogsInDevMode(t *testing.T) {
	prod, prodBuf := newBufferLogger(t, false)
	prod.Protocol().Debug("dropped message", "origin", "https://evil.example")
	if prodBuf.Len() != 0 {
		t.Fatalf("protocol drops must be silent outside dev mode: %q", prodBuf.String())
	}

	dev, devBuf := newBufferLogger(t, true)
	dev.Protocol().Debug("dropped message", "origin", "https://evil.example")
	if !strings.Contains(devBuf.String(), "evil.example") {
		t.Fatalf("expected protocol drop in dev mode")
	}
}

func TestSetChannelLevel(t *testing.T) {
	logger, buf := newBufferLogger(t, false)
	if err := logger.SetChannelLevel(ChannelStorage, slog.LevelError); err != nil {
		t.Fatal(err)
	}
	logger.Storage().Warn("quota exceeded")
	if buf.Len() != 0 {
		t.Fatalf("warn should be filtered at error level")
	}
	if got := logger.GetChannelLevels()["storage"]; got != "ERROR" {
		t.Fatalf("level = %s", got)
	}
	if err := logger.SetChannelLevel(Channel("nope"), slog.LevelInfo); err == nil {
		t.Fatalf("expected error for unknown channel")
	}
}

func TestSanitizers(t *testing.T) {
	if got := SanitizeSessionID("3fa85f64-5717-4562-b3fc-2c963f66afa6"); got != "3fa8****afa6" {
		t.Errorf("SanitizeSessionID = %q", got)
	}
	if got := SanitizeSessionID("short"); got != "********" {
		t.Errorf("short ids must be fully masked, got %q", got)
	}
	if got := SanitizeEmail("ada@example.com"); got != "a****@example.com" {
		t.Errorf("SanitizeEmail = %q", got)
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("debug") != slog.LevelDebug || ParseLevel("warn") != slog.LevelWarn || ParseLevel("bogus") != slog.LevelInfo {
		t.Fatal("unexpected level parsing")
	}
}
