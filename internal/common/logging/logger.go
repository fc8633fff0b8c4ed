package logging

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
)

// Frames between a caller of a Logger method and the zerolog event.
const loggerSkipFrames = 2

// Logger wraps a zerolog.Logger so that callers get a printf-style API plus structured fields.
type Logger struct {
	underlying zerolog.Logger
	skip       int
}

// FromZerolog returns a new Logger backed by the supplied zerolog.Logger
func FromZerolog(l zerolog.Logger) *Logger {
	return &Logger{underlying: l, skip: loggerSkipFrames}
}

// NewLogger returns a Logger writing json lines to w at the given level. Mostly useful in tests.
func NewLogger(w io.Writer, level zerolog.Level) *Logger {
	return FromZerolog(zerolog.New(w).Level(level).With().Timestamp().Logger())
}

func (l *Logger) Debug(args ...any) {
	l.log(zerolog.DebugLevel, fmt.Sprint(args...))
}

func (l *Logger) Info(args ...any) {
	l.log(zerolog.InfoLevel, fmt.Sprint(args...))
}

func (l *Logger) Warn(args ...any) {
	l.log(zerolog.WarnLevel, fmt.Sprint(args...))
}

func (l *Logger) Error(args ...any) {
	l.log(zerolog.ErrorLevel, fmt.Sprint(args...))
}

// Panic logs the message and then panics with it.
func (l *Logger) Panic(args ...any) {
	l.log(zerolog.PanicLevel, fmt.Sprint(args...))
}

// Fatal logs the message and then calls os.Exit(1).
func (l *Logger) Fatal(args ...any) {
	l.log(zerolog.FatalLevel, fmt.Sprint(args...))
}

func (l *Logger) Debugf(format string, args ...any) {
	l.log(zerolog.DebugLevel, fmt.Sprintf(format, args...))
}

func (l *Logger) Infof(format string, args ...any) {
	l.log(zerolog.InfoLevel, fmt.Sprintf(format, args...))
}

func (l *Logger) Warnf(format string, args ...any) {
	l.log(zerolog.WarnLevel, fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...any) {
	l.log(zerolog.ErrorLevel, fmt.Sprintf(format, args...))
}

func (l *Logger) Fatalf(format string, args ...any) {
	l.log(zerolog.FatalLevel, fmt.Sprintf(format, args...))
}

// WithField returns a new Logger with the key-value pair added as a new field
func (l *Logger) WithField(key string, value any) *Logger {
	return l.derive(l.underlying.With().Interface(key, value).Logger())
}

// WithFields returns a new Logger with all key-value pairs in the map added as new fields
func (l *Logger) WithFields(args map[string]any) *Logger {
	return l.derive(l.underlying.With().Fields(args).Logger())
}

// WithError returns a new Logger with the error added as a field
func (l *Logger) WithError(err error) *Logger {
	return l.derive(l.underlying.With().AnErr("error", err).Logger())
}

// WithStacktrace returns a new Logger with the error and, if available, the stacktrace added as fields
func (l *Logger) WithStacktrace(err error) *Logger {
	ctx := l.underlying.With().AnErr("error", err)
	if stack := ExtractStack(err); stack != nil {
		ctx = ctx.Str(Stacktrace, fmt.Sprintf("%+v", stack))
	}
	return l.derive(ctx.Logger())
}

func (l *Logger) derive(z zerolog.Logger) *Logger {
	return &Logger{underlying: z, skip: l.skip}
}

// withCallerSkip is used by the package level functions, which add a frame of their own.
func (l *Logger) withCallerSkip(extra int) *Logger {
	return &Logger{underlying: l.underlying, skip: l.skip + extra}
}

func (l *Logger) log(level zerolog.Level, msg string) {
	var event *zerolog.Event
	switch level {
	case zerolog.PanicLevel:
		event = l.underlying.Panic()
	case zerolog.FatalLevel:
		event = l.underlying.Fatal()
	default:
		event = l.underlying.WithLevel(level)
	}
	event.CallerSkipFrame(l.skip).Msg(msg)
}
