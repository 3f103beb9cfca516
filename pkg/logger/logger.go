// Package logger defines the leveled logging contract shared by every component
package logger

// Level is a logging severity
type Level int8

const (
	Disabled   Level = -1   // Disabled turns logging off.
	TraceLevel Level = iota // TraceLevel is used for wire level details.
	DebugLevel              // DebugLevel is used for cache and scheduling decisions.
	InfoLevel               // InfoLevel is used for lifecycle and dispatch events.
	WarnLevel               // WarnLevel is used for skipped symbols and degraded providers.
	ErrorLevel              // ErrorLevel is used for failed units of work.
	FatalLevel              // FatalLevel logs and exits the program.
	NoLevel                 // NoLevel logs without a level.
)

type Logger interface {
	// Returns a logger decorated with the given context.
	WithField(key string, value any) Logger  // WithField returns a logger with the given key-value pair.
	WithFields(fields map[string]any) Logger // WithFields returns a logger with the given fields.
	WithError(err error) Logger              // WithError returns a logger with the given error.

	Trace(args ...any)
	Debug(args ...any)
	Info(args ...any)
	Warn(args ...any)
	Error(args ...any)
	Fatal(args ...any)

	Tracef(format string, args ...any)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Fatalf(format string, args ...any)

	SetLevel(level Level) // SetLevel sets the global logging level.
	GetLevel() Level      // GetLevel returns the logging level of this logger.
}
