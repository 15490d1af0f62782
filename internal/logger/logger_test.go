package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNew(t *testing.T) {
	log := New()
	if log.GetLevel() != zerolog.InfoLevel {
		t.Errorf("Expected info level, got %s", log.GetLevel())
	}
}

func TestNewWithLevel(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"WARN", zerolog.WarnLevel},
		{" error ", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			log := NewWithLevel(tt.level, FormatJSON)
			if log.GetLevel() != tt.want {
				t.Errorf("NewWithLevel(%q) level = %s, want %s", tt.level, log.GetLevel(), tt.want)
			}
		})
	}
}

func TestNewWithWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf)

	log.Info().Msg("test message")

	output := buf.String()
	if output == "" {
		t.Error("Expected log output, got empty string")
	}
	if !strings.Contains(output, "test message") {
		t.Errorf("Expected output to contain 'test message', got: %s", output)
	}
}

func TestWithContext(t *testing.T) {
	log := New()
	ctx := context.Background()

	ctxWithLogger := WithContext(ctx, log)

	if ctxWithLogger.Value(LoggerKey) == nil {
		t.Error("Expected logger in context, got nil")
	}
}

func TestFromContext(t *testing.T) {
	buf := &bytes.Buffer{}
	testLog := NewWithWriter(buf)
	ctx := WithContext(context.Background(), testLog)

	retrievedLog := FromContext(ctx)
	retrievedLog.Info().Msg("test")

	if buf.Len() == 0 {
		t.Error("Expected log output from retrieved logger")
	}
}

func TestFromContext_DefaultLogger(t *testing.T) {
	log := FromContext(context.Background())

	if log.GetLevel() == zerolog.Disabled {
		t.Error("Expected default logger to be enabled")
	}
}

func TestWithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf)

	fields := map[string]interface{}{
		"join_key": "abc123",
		"vendor":   "Lawrence Waste",
	}

	logWithFields := WithFields(log, fields)
	logWithFields.Info().Msg("group matched")

	output := buf.String()
	if !strings.Contains(output, "join_key") || !strings.Contains(output, "abc123") {
		t.Errorf("Expected output to contain join_key field, got: %s", output)
	}
	if !strings.Contains(output, "vendor") || !strings.Contains(output, "Lawrence Waste") {
		t.Errorf("Expected output to contain vendor field, got: %s", output)
	}
}
