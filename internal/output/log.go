// Package output renders Anubis's terminal output: leveled logs and the
// small set of styled status lines the build driver prints (linked
// artifacts, toolchain installs, diagnostics).
package output

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

// TraceLevel sits below charmbracelet/log's native DebugLevel floor; it is
// Anubis's most verbose tier (`-l trace`), used for per-job scheduler
// transitions that would otherwise drown out normal debug output.
const TraceLevel = log.DebugLevel - 4

// Level names the five log levels the `-l/--log-level` flag accepts.
type Level string

const (
	LevelError Level = "error"
	LevelWarn  Level = "warn"
	LevelInfo  Level = "info"
	LevelDebug Level = "debug"
	LevelTrace Level = "trace"
)

var logger = log.NewWithOptions(os.Stderr, log.Options{
	ReportTimestamp: true,
	TimeFormat:      "15:04:05",
})

// Setup configures the global logger from the CLI's --log-level flag.
func Setup(level Level) error {
	lv, err := parseLevel(level)
	if err != nil {
		return err
	}
	logger = log.NewWithOptions(os.Stderr, log.Options{
		Level:           lv,
		ReportTimestamp: true,
		ReportCaller:    lv <= TraceLevel,
		TimeFormat:      "15:04:05",
	})
	return nil
}

func parseLevel(level Level) (log.Level, error) {
	switch level {
	case LevelError:
		return log.ErrorLevel, nil
	case LevelWarn:
		return log.WarnLevel, nil
	case LevelInfo:
		return log.InfoLevel, nil
	case LevelDebug:
		return log.DebugLevel, nil
	case LevelTrace:
		return TraceLevel, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", level)
	}
}

// JobLogger returns a child logger scoped to one job, rendering a prefix
// of the form "job:<id>:" with the id in cyan, mirroring the teacher's
// module-scoped prefix convention.
func JobLogger(jobID uint64, description string) *log.Logger {
	prefix := fmt.Sprintf("%s%s",
		styleDim.Render("job:"),
		lipgloss.NewStyle().Foreground(ColorCyan).Render(fmt.Sprintf("%d", jobID)),
	)
	return logger.WithPrefix(prefix).With("job", description)
}

// Trace logs below Debug; used for scheduler state transitions.
func Trace(msg string, keyvals ...interface{}) {
	logger.Log(TraceLevel, msg, keyvals...)
}

// Debug logs a debug message.
func Debug(msg string, keyvals ...interface{}) {
	logger.Debug(msg, keyvals...)
}

// Info logs an info message.
func Info(msg string, keyvals ...interface{}) {
	logger.Info(msg, keyvals...)
}

// Warn logs a warning message.
func Warn(msg string, keyvals ...interface{}) {
	logger.Warn(msg, keyvals...)
}

// Error logs an error message.
func Error(msg string, keyvals ...interface{}) {
	logger.Error(msg, keyvals...)
}

// Println prints a message to stdout with a newline, bypassing the
// leveled logger — used for the final build summary line.
func Println(msg string) {
	fmt.Fprintln(os.Stdout, msg)
}
