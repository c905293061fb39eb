package log

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	tlog "go.temporal.io/sdk/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps a zap logger. It also satisfies the Temporal SDK logger so
// workflow and activity logs share the service's output.
type Logger struct {
	Log *zap.Logger
}

type LoggerInterface interface {
	tlog.Logger
	tlog.WithLogger

	Logger() *zap.Logger
}

var _ LoggerInterface = (*Logger)(nil)

func parseLevel(level string) string {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "error", "fatal":
		return strings.ToLower(level)
	default:
		return "info"
	}
}

func New(name, level string) *Logger {
	stringCfg := fmt.Sprintf(`{
		"level": "%s",
		"encoding": "json",
		"outputPaths": ["stdout"],
		"errorOutputPaths": ["stderr"],
		"initialFields": {"app_name": "%s"},
		"encoderConfig": {
		  "messageKey": "message",
		  "levelKey": "level",
		  "timeKey": "timestamp",
		  "levelEncoder": "lowercase"
		}
	}`, parseLevel(level), name)

	var cfg zap.Config
	if err := json.Unmarshal([]byte(stringCfg), &cfg); err != nil {
		panic(fmt.Sprintf("FATAL ERROR: loading logger %s", err))
	}
	cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoder(func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.UTC().Format("2006-01-02T15:04:05Z0700"))
	})

	logger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("FATAL ERROR: loading logger %s", err))
	}

	return &Logger{Log: logger}
}

// Wrap adapts an existing zap logger, for example one built by zaptest.
func Wrap(l *zap.Logger) *Logger {
	return &Logger{Log: l}
}

func (l *Logger) Logger() *zap.Logger {
	return l.Log
}

func (l *Logger) Debug(msg string, keyvals ...interface{}) {
	l.Log.Sugar().Debugw(msg, keyvals...)
}

func (l *Logger) Info(msg string, keyvals ...interface{}) {
	l.Log.Sugar().Infow(msg, keyvals...)
}

func (l *Logger) Warn(msg string, keyvals ...interface{}) {
	l.Log.Sugar().Warnw(msg, keyvals...)
}

func (l *Logger) Error(msg string, keyvals ...interface{}) {
	l.Log.Sugar().Errorw(msg, keyvals...)
}

func (l *Logger) With(keyvals ...interface{}) tlog.Logger {
	return &Logger{Log: l.Log.Sugar().With(keyvals...).Desugar()}
}

// Sync flushes buffered entries. The error stdout returns on some platforms
// is ignored.
func (l *Logger) Sync() {
	_ = l.Log.Sync()
}
