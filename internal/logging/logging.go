package logging

import (
	"sort"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger = zap.NewNop()

// Init builds the process logger. JSON to stderr keeps stdout free for reports.
func Init(verbose bool) error {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	l, err := cfg.Build()
	if err != nil {
		return err
	}
	logger = l
	return nil
}

// Set replaces the process logger; tests use zaptest/observer loggers.
func Set(l *zap.Logger) { logger = l }

// L returns the process logger.
func L() *zap.Logger { return logger }

// Sync flushes buffered entries.
func Sync() { _ = logger.Sync() }

func Log(level, msg string, fields map[string]any) {
	zf := toFields(fields)
	switch level {
	case "debug":
		logger.Debug(msg, zf...)
	case "warn":
		logger.Warn(msg, zf...)
	case "error":
		logger.Error(msg, zf...)
	default:
		logger.Info(msg, zf...)
	}
}

func Debug(msg string, fields map[string]any) { Log("debug", msg, fields) }
func Info(msg string, fields map[string]any)  { Log("info", msg, fields) }
func Warn(msg string, fields map[string]any)  { Log("warn", msg, fields) }
func Error(msg string, fields map[string]any) { Log("error", msg, fields) }

func toFields(fields map[string]any) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		if err, ok := fields[k].(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, fields[k]))
	}
	return out
}

// Leveled adapts the process logger to retryablehttp.LeveledLogger.
// Client errors are logged at warn since the caller decides what is fatal.
type Leveled struct{}

func (Leveled) Error(msg string, kv ...interface{}) { logger.Sugar().Warnw(msg, kv...) }
func (Leveled) Warn(msg string, kv ...interface{})  { logger.Sugar().Warnw(msg, kv...) }
func (Leveled) Info(msg string, kv ...interface{})  { logger.Sugar().Infow(msg, kv...) }
func (Leveled) Debug(msg string, kv ...interface{}) { logger.Sugar().Debugw(msg, kv...) }
