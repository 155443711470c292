package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevels(t *testing.T) {
	tests := []struct {
		arg      string
		fallback zapcore.Level
		packages map[string]zapcore.Level
	}{
		{arg: "", fallback: zapcore.ErrorLevel},
		{arg: "provision", fallback: zapcore.ErrorLevel, packages: map[string]zapcore.Level{
			"provision": zapcore.DebugLevel,
		}},
		{arg: "warn", fallback: zapcore.WarnLevel},
		{arg: "WARN", fallback: zapcore.WarnLevel},
		{arg: "config=debug", fallback: zapcore.ErrorLevel, packages: map[string]zapcore.Level{
			"config": zapcore.DebugLevel,
		}},
		{arg: "off", fallback: off},
		{arg: "info, provision=warn", fallback: zapcore.InfoLevel, packages: map[string]zapcore.Level{
			"provision": zapcore.WarnLevel,
		}},
		{arg: "error,command=off,project=bogus,=info,tracing=", fallback: zapcore.ErrorLevel, packages: map[string]zapcore.Level{
			"command": off,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			got := parseLevels(tt.arg)
			assert.Equal(t, tt.fallback, got.fallback)
			if tt.packages == nil {
				assert.Empty(t, got.packages)
				return
			}
			assert.Equal(t, tt.packages, got.packages)
		})
	}
}

func entryFrom(lvl zapcore.Level, file string) zapcore.Entry {
	return zapcore.Entry{
		Level:   lvl,
		Message: "hello",
		Caller:  zapcore.NewEntryCaller(0, "/src/envspec/internal/"+file, 1, true),
	}
}

func TestFilterEncoder(t *testing.T) {
	fe := filterEncoder{
		Encoder: zapcore.NewConsoleEncoder(zapcore.EncoderConfig{MessageKey: "msg"}),
		levels:  parseLevels("error,provision=debug,project=off"),
	}
	for _, tt := range []struct {
		entry   zapcore.Entry
		written bool
	}{
		{entryFrom(zapcore.DebugLevel, "provision/nix.go"), true},
		{entryFrom(zapcore.InfoLevel, "config/config.go"), false},
		{entryFrom(zapcore.ErrorLevel, "config/config.go"), true},
		{entryFrom(zapcore.ErrorLevel, "project/project.go"), false},
		{zapcore.Entry{Level: zapcore.ErrorLevel, Message: "no caller"}, true},
	} {
		line, err := fe.EncodeEntry(tt.entry, nil)
		require.NoError(t, err)
		assert.Equal(t, tt.written, line.Len() > 0, tt.entry.Caller.TrimmedPath())
	}

	// fields added with With clone the encoder, the clone still filters
	clone := fe.Clone()
	line, err := clone.EncodeEntry(entryFrom(zapcore.InfoLevel, "config/config.go"), nil)
	require.NoError(t, err)
	assert.Zero(t, line.Len())
}
