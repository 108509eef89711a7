package voicecore

import "github.com/rs/zerolog"

// Logger is the ambient logging seam, kept deliberately narrow the way the
// teacher's pkg/orchestrator/types.go keeps it: callers plug in whatever
// backend they like, the core never imports a concrete logging library into
// its decision logic.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// NoOpLogger discards everything. It is the default when no Logger is
// configured.
type NoOpLogger struct{}

func (NoOpLogger) Debug(msg string, args ...interface{}) {}
func (NoOpLogger) Info(msg string, args ...interface{})  {}
func (NoOpLogger) Warn(msg string, args ...interface{})  {}
func (NoOpLogger) Error(msg string, args ...interface{}) {}

// ZerologLogger adapts the Logger interface to github.com/rs/zerolog,
// letting a caller opt into structured JSON logs without the core package
// depending on zerolog for anything but this one adapter.
type ZerologLogger struct {
	log zerolog.Logger
}

// NewZerologLogger wraps an existing zerolog.Logger.
func NewZerologLogger(log zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{log: log}
}

func (z *ZerologLogger) event(level zerolog.Level, msg string, args ...interface{}) {
	ev := z.log.WithLevel(level)
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		ev = ev.Interface(key, args[i+1])
	}
	ev.Msg(msg)
}

func (z *ZerologLogger) Debug(msg string, args ...interface{}) { z.event(zerolog.DebugLevel, msg, args...) }
func (z *ZerologLogger) Info(msg string, args ...interface{})  { z.event(zerolog.InfoLevel, msg, args...) }
func (z *ZerologLogger) Warn(msg string, args ...interface{})  { z.event(zerolog.WarnLevel, msg, args...) }
func (z *ZerologLogger) Error(msg string, args ...interface{}) { z.event(zerolog.ErrorLevel, msg, args...) }
