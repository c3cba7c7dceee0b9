package log

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelError Level = "ERROR"
)

// Options configures the process-wide logger.
type Options struct {
	Level Level
	// File, if set, receives a copy of every enabled entry with size-based
	// rotation.
	File       string
	MaxSizeMB  int
	MaxAgeDays int
}

var (
	mu       sync.RWMutex
	logger   *zap.Logger
	initOnce sync.Once
	minLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// ParseLevel maps a config string to a Level. Unknown values yield INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Setup replaces the global logger. It is safe to call more than once.
func Setup(opts Options) {
	minLevel.SetLevel(opts.Level.zapLevel())

	encConfig := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	stdoutEnc := encConfig
	stdoutEnc.EncodeLevel = zapcore.CapitalColorLevelEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(
			zapcore.NewConsoleEncoder(stdoutEnc),
			zapcore.Lock(os.Stdout),
			zap.LevelEnablerFunc(func(l zapcore.Level) bool {
				return minLevel.Enabled(l) && l < zapcore.ErrorLevel
			}),
		),
		zapcore.NewCore(
			zapcore.NewConsoleEncoder(encConfig),
			zapcore.Lock(os.Stderr),
			zap.LevelEnablerFunc(func(l zapcore.Level) bool {
				return l >= zapcore.ErrorLevel
			}),
		),
	}

	if opts.File != "" {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(encConfig),
			zapcore.AddSync(&lumberjack.Logger{
				Filename: opts.File,
				MaxSize:  opts.MaxSizeMB,
				MaxAge:   opts.MaxAgeDays,
			}),
			minLevel,
		))
	}

	l := zap.New(zapcore.NewTee(cores...))

	mu.Lock()
	old := logger
	logger = l
	mu.Unlock()

	if old != nil {
		_ = old.Sync()
	}
}

// Sync flushes buffered entries. Call before exit.
func Sync() {
	_ = current().Sync()
}

func current() *zap.Logger {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if l != nil {
		return l
	}
	initOnce.Do(func() {
		Setup(Options{Level: LevelInfo})
	})
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func Debug(msg string, kv ...any) {
	current().Debug(msg, fields(kv)...)
}

func Info(msg string, kv ...any) {
	current().Info(msg, fields(kv)...)
}

func Error(msg string, err error, kv ...any) {
	current().Error(msg, append([]zap.Field{zap.Error(err)}, fields(kv)...)...)
}

// fields turns key, value, key, value... into zap fields. Non-string keys
// are skipped and a trailing odd value is ignored.
func fields(kv []any) []zap.Field {
	if len(kv) < 2 {
		return nil
	}
	out := make([]zap.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		out = append(out, zap.Any(key, kv[i+1]))
	}
	return out
}
