// Package logger is envspec's diagnostic logger. Everything is logged at
// debug level into zap and filtered per package when the entry is encoded, the
// levels come from ENVSPEC_LOG.
package logger

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

// EnvVar holds the log level, optionally followed by per package levels:
// "info,provision=debug". A package name on its own turns on debug logging
// for that package.
const EnvVar = "ENVSPEC_LOG"

// off is below every level zap has, nothing passes it.
const off = zapcore.DebugLevel - 1

var (
	sugar  = newLogger()
	Debugw = sugar.Debugw
	Warnf  = sugar.Warnf
)

func newLogger() *zap.SugaredLogger {
	_ = zap.RegisterEncoder("envspec", func(cfg zapcore.EncoderConfig) (zapcore.Encoder, error) {
		return filterEncoder{
			Encoder: zapcore.NewConsoleEncoder(cfg),
			levels:  parseLevels(os.Getenv(EnvVar)),
		}, nil
	})
	cfg := zap.NewDevelopmentConfig()
	cfg.Encoding = "envspec"
	cfg.DisableStacktrace = true
	// filterEncoder does the level checks, zap has to let everything through
	cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return logger.Sugar()
}

// Print writes user facing messages, like command errors, to stderr.
func Print(a ...interface{}) {
	fmt.Fprintln(os.Stderr, a...)
}

type packageLevels struct {
	fallback zapcore.Level
	packages map[string]zapcore.Level
}

func parseLevels(val string) packageLevels {
	pl := packageLevels{fallback: zapcore.ErrorLevel, packages: map[string]zapcore.Level{}}
	for _, part := range strings.Split(strings.ToLower(val), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) == 1 {
			if lvl, ok := levelFromString(part); ok {
				pl.fallback = lvl
			} else {
				pl.packages[part] = zapcore.DebugLevel
			}
			continue
		}
		// malformed package levels are ignored
		if lvl, ok := levelFromString(kv[1]); ok && kv[0] != "" {
			pl.packages[kv[0]] = lvl
		}
	}
	return pl
}

func levelFromString(s string) (zapcore.Level, bool) {
	switch s {
	case "off":
		return off, true
	case "":
		return 0, false
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return 0, false
	}
	return lvl, true
}

// enabled reports whether entry clears the level of the package that logged
// it. Caller paths are trimmed by zap to "package/file.go:line".
func (pl packageLevels) enabled(entry zapcore.Entry) bool {
	threshold := pl.fallback
	if entry.Caller.Defined {
		trimmed := entry.Caller.TrimmedPath()
		if idx := strings.IndexByte(trimmed, '/'); idx > 0 {
			if lvl, found := pl.packages[trimmed[:idx]]; found {
				threshold = lvl
			}
		}
	}
	return threshold != off && entry.Level >= threshold
}

var dropped = buffer.NewPool()

type filterEncoder struct {
	zapcore.Encoder
	levels packageLevels
}

func (fe filterEncoder) Clone() zapcore.Encoder {
	return filterEncoder{Encoder: fe.Encoder.Clone(), levels: fe.levels}
}

func (fe filterEncoder) EncodeEntry(entry zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	if !fe.levels.enabled(entry) {
		return dropped.Get(), nil
	}
	return fe.Encoder.EncodeEntry(entry, fields)
}
