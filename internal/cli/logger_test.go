package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/SmitUplenchwar2687/Stall/internal/config"
)

func TestNewLogger_Formats(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{"text", "hello"},
		{"json", `"msg":"hello"`},
		{"logfmt", "msg=hello"},
	}
	for _, tt := range tests {
		buf := new(bytes.Buffer)
		logger, err := newLogger(config.LogConfig{Level: "info", Format: tt.format}, buf)
		if err != nil {
			t.Fatalf("%s: %v", tt.format, err)
		}
		logger.Info("hello", "k", 1)
		logger.Debug("hidden")
		out := buf.String()
		if !strings.Contains(out, tt.want) {
			t.Errorf("%s output = %q, want it to contain %q", tt.format, out, tt.want)
		}
		if strings.Contains(out, "hidden") {
			t.Errorf("%s: debug line written at info level", tt.format)
		}
	}
}

func TestNewLogger_Invalid(t *testing.T) {
	if _, err := newLogger(config.LogConfig{Level: "loud", Format: "text"}, new(bytes.Buffer)); err == nil {
		t.Error("expected error for invalid level")
	}
	if _, err := newLogger(config.LogConfig{Level: "info", Format: "xml"}, new(bytes.Buffer)); err == nil {
		t.Error("expected error for invalid format")
	}
}
