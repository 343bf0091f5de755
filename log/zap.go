// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package log

import (
	"io"
	"os"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// DiscardLogger drops every entry. Panic and Fatal keep their control flow.
	DiscardLogger Logger = newDiscard()

	// DefaultLogger writes InfoLevel and above to os.Stdout. Components fall back
	// to it when no logger is configured.
	DefaultLogger = NewZap(InfoLevel, os.Stdout)
)

// Zap is the Logger backed by a sugared zap logger. The level methods come
// from the embedded logger; the level itself can be changed at runtime.
type Zap struct {
	*zap.SugaredLogger
	level   zap.AtomicLevel
	outputs []io.Writer
}

// enforce compilation and linter error
var _ Logger = &Zap{}

// NewZap creates a JSON logger writing entries at level and above to writers,
// os.Stdout when none is given.
func NewZap(level Level, writers ...io.Writer) *Zap {
	if len(writers) == 0 {
		writers = []io.Writer{os.Stdout}
	}

	syncers := make([]zapcore.WriteSyncer, len(writers))
	for i, writer := range writers {
		syncers[i] = zapcore.AddSync(writer)
	}

	atomicLevel := zap.NewAtomicLevelAt(toZapLevel(level))
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), zap.CombineWriteSyncers(syncers...), atomicLevel)
	return &Zap{
		SugaredLogger: zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)).Sugar(),
		level:         atomicLevel,
		outputs:       writers,
	}
}

func newDiscard() *Zap {
	return &Zap{
		SugaredLogger: zap.NewNop().Sugar(),
		level:         zap.NewAtomicLevelAt(toZapLevel(Disabled)),
		outputs:       []io.Writer{io.Discard},
	}
}

// SetLevel changes the minimum level of z and of every logger derived from
// it with With.
func (z *Zap) SetLevel(level Level) {
	z.level.SetLevel(toZapLevel(level))
}

// Enabled reports whether entries at level are written. Panic and Fatal always
// take effect, written or not.
func (z *Zap) Enabled(level Level) bool {
	switch level {
	case Disabled, InvalidLevel:
		return false
	case PanicLevel, FatalLevel:
		return true
	}
	return z.level.Enabled(toZapLevel(level))
}

// With returns a Logger adding the key-value pairs to every entry. Pairs with
// a non-string key are dropped; a trailing key without value is logged under "_".
func (z *Zap) With(keyValues ...any) Logger {
	var fields []zap.Field
	for len(keyValues) > 0 {
		if len(keyValues) == 1 {
			fields = append(fields, field("_", keyValues[0]))
			break
		}
		if key, ok := keyValues[0].(string); ok {
			fields = append(fields, field(key, keyValues[1]))
		}
		keyValues = keyValues[2:]
	}
	if len(fields) == 0 {
		return z
	}
	return &Zap{
		SugaredLogger: z.Desugar().With(fields...).Sugar(),
		level:         z.level,
		outputs:       z.outputs,
	}
}

// field picks a typed zap field for the values this module logs and falls
// back to reflection for the rest.
func field(key string, value any) zap.Field {
	switch v := value.(type) {
	case string:
		return zap.String(key, v)
	case int:
		return zap.Int(key, v)
	case int64:
		return zap.Int64(key, v)
	case bool:
		return zap.Bool(key, v)
	case time.Duration:
		return zap.Duration(key, v)
	case error:
		return zap.NamedError(key, v)
	case interface{ String() string }:
		return zap.Stringer(key, v)
	}
	return zap.Any(key, value)
}

// LogLevel returns the current minimum level.
func (z *Zap) LogLevel() Level {
	return fromZapLevel(z.level.Level())
}

// LogOutput returns the writers entries go to.
func (z *Zap) LogOutput() []io.Writer {
	return z.outputs
}

// Flush syncs the file outputs other than the standard streams, which cannot
// be synced on most terminals.
func (z *Zap) Flush() error {
	var err error
	for _, output := range z.outputs {
		if file, ok := output.(*os.File); ok && file != os.Stdout && file != os.Stderr {
			err = multierr.Append(err, file.Sync())
		}
	}
	return err
}

func encoderConfig() zapcore.EncoderConfig {
	config := zap.NewProductionEncoderConfig()
	config.TimeKey = "ts"
	config.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncodeDuration = zapcore.StringDurationEncoder
	return config
}

// zapLevels maps every level that zap can represent. Disabled sits above
// Fatal so nothing passes it.
var zapLevels = map[Level]zapcore.Level{
	DebugLevel:   zapcore.DebugLevel,
	InfoLevel:    zapcore.InfoLevel,
	WarningLevel: zapcore.WarnLevel,
	ErrorLevel:   zapcore.ErrorLevel,
	PanicLevel:   zapcore.PanicLevel,
	FatalLevel:   zapcore.FatalLevel,
	Disabled:     zapcore.FatalLevel + 1,
}

func toZapLevel(level Level) zapcore.Level {
	if zl, ok := zapLevels[level]; ok {
		return zl
	}
	return zapcore.DebugLevel
}

func fromZapLevel(zl zapcore.Level) Level {
	for level, candidate := range zapLevels {
		if candidate == zl {
			return level
		}
	}
	return InvalidLevel
}
