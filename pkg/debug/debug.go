// Package debug builds the loggers the command line tools use: zerolog writing through a
// console writer, with a millisecond timestamp and the caller's package, file and line on
// every event.
package debug

import (
	"context"
	"fmt"
	"io"
	"reflect"
	"runtime"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
)

const defaultTimeFormat = "2006-01-02T15:04:05.0000Z"

// LoggerOptions configures NewLogger.
type LoggerOptions struct {
	Out   io.Writer
	Level zerolog.Level
	Color bool
	// Console selects the human readable console writer over JSON lines.
	Console bool
}

// NewLogger builds a logger with the time and caller hooks attached.
func NewLogger(opts LoggerOptions) zerolog.Logger {
	out := opts.Out
	if opts.Console {
		out = zerolog.ConsoleWriter{
			Out:        opts.Out,
			NoColor:    !opts.Color,
			PartsOrder: []string{zerolog.LevelFieldName, "caller", zerolog.MessageFieldName},
			FieldsExclude: []string{
				"time",
			},
		}
	}

	return zerolog.New(out).
		Level(opts.Level).
		Hook(CustomTimeHook{WithColor: opts.Color}).
		Hook(CustomCallerHook{WithColor: opts.Color})
}

// WithLogger attaches a NewLogger logger to ctx.
func WithLogger(ctx context.Context, opts LoggerOptions) context.Context {
	logger := NewLogger(opts)
	return logger.WithContext(ctx)
}

// skipFrames reads the event's unexported frame skip count so the caller hook reports the
// same frame zerolog's own Caller() would.
func skipFrames(e *zerolog.Event) int {
	field := reflect.ValueOf(e).Elem().FieldByName("skipFrame")
	if field.IsValid() {
		return int(field.Int())
	}
	return 0
}

type CustomTimeHook struct {
	WithColor bool
	Format    string
}

func (t CustomTimeHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	format := t.Format
	if format == "" {
		format = defaultTimeFormat
	}
	e.Str("time", time.Now().Format(format))
}

type CustomCallerHook struct {
	WithColor bool
}

func (c CustomCallerHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	pc, file, line, ok := runtime.Caller(skipFrames(e) + 3)
	if !ok {
		return
	}

	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return
	}

	pkg, _ := SplitFuncName(fn.Name())
	e.Str("caller", FormatCaller(pkg, file, line, c.WithColor))
}

// SplitFuncName splits a runtime function name such as
// "github.com/a/b/pkg.(*T).Method" into its package path and function part.
func SplitFuncName(name string) (pkg, function string) {
	lastSlash := strings.LastIndexByte(name, '/')
	if lastSlash < 0 {
		lastSlash = 0
	}

	dot := strings.IndexByte(name[lastSlash:], '.')
	if dot < 0 {
		return name, ""
	}
	dot += lastSlash

	pkg, function = name[:dot], name[dot+1:]

	if before, after, found := strings.Cut(pkg, ".("); found {
		pkg = before
		function = "(" + after + "." + function
	}

	return pkg, function
}

func FormatCaller(pkg, path string, line int, colorize bool) string {
	file := FileNameOfPath(path)
	if !colorize {
		return fmt.Sprintf("%s:%s:%d", pkg, file, line)
	}

	sep := color.New(color.Faint).Sprint(":")
	return pkg + sep + color.New(color.Bold).Sprint(file) + sep + color.New(color.FgHiRed, color.Bold).Sprintf("%d", line)
}

func FileNameOfPath(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}
