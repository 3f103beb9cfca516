package zerolog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/goterm/term"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// New creates the process logger. Console output uses fixed-width coloured
// columns; jsonFormat switches to plain zerolog JSON lines.
func New(level, dateTimeLayout string, colored, jsonFormat bool) (*ZerologAdapter, error) {
	return newWithWriter(os.Stdout, level, dateTimeLayout, colored, jsonFormat)
}

func newWithWriter(out io.Writer, level, dateTimeLayout string, colored, jsonFormat bool) (*ZerologAdapter, error) {
	logMode, err := zerolog.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	zerolog.SetGlobalLevel(logMode)

	if jsonFormat {
		l := zerolog.New(out).With().Timestamp().Logger()
		return NewAdapter(&l), nil
	}

	output := zerolog.ConsoleWriter{
		Out:           out,
		NoColor:       !colored,
		TimeFormat:    dateTimeLayout,
		FormatLevel:   formatLevel,
		FormatMessage: formatMessage,
		FormatCaller:  formatCaller,
		FormatTimestamp: func(i any) string {
			return formatTimestamp(i, dateTimeLayout)
		},
	}

	l := log.Output(output).With().CallerWithSkipFrameCount(3).Logger()
	return NewAdapter(&l), nil
}

func formatLevel(i any) string {
	level, _ := i.(string)

	switch level {
	case zerolog.LevelTraceValue, zerolog.LevelDebugValue:
		return term.Cyanf("[%s]", strings.ToUpper(level[:3]))
	case zerolog.LevelInfoValue:
		return term.Greenf("[INF]")
	case zerolog.LevelWarnValue:
		return term.Yellowf("[WRN]")
	case zerolog.LevelErrorValue, zerolog.LevelFatalValue, zerolog.LevelPanicValue:
		return term.Redf("[%s]", strings.ToUpper(level[:3]))
	default:
		return term.Whitef("[???]")
	}
}

func formatMessage(i any) string {
	const width = 60

	msg, ok := i.(string)
	if !ok || msg == "" {
		return ">"
	}

	if len(msg) < width {
		msg += strings.Repeat(" ", width-len(msg))
	}

	return term.Whitef("> %s", msg)
}

func formatCaller(i any) string {
	fname, ok := i.(string)
	if !ok || fname == "" {
		return ""
	}

	return term.Yellowf("[%-22s]", filepath.Base(fname))
}

func formatTimestamp(i any, layout string) string {
	raw, ok := i.(string)
	if !ok {
		return term.Cyanf("[%v]", i)
	}

	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		raw = ts.Local().Format(layout)
	}

	return term.Cyanf("[%s]", raw)
}
