package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	levelVar   slog.LevelVar
	loggerMu   sync.RWMutex
	baseLogger *slog.Logger
)

func init() {
	levelVar.Set(slog.LevelInfo)
	baseLogger = newLogger(os.Stdout)
}

func newLogger(w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: &levelVar})
	return slog.New(handler)
}

func SetOutput(w io.Writer) {
	loggerMu.Lock()
	baseLogger = newLogger(w)
	loggerMu.Unlock()
}

// SetLevel accepts debug|info|warn|error; anything else falls back to info.
func SetLevel(level string) {
	levelVar.Set(parseLevel(level))
}

// ValidLevel reports whether level is one SetLevel understands explicitly.
func ValidLevel(level string) bool {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug", "info", "warn", "warning", "error":
		return true
	default:
		return false
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func activeLogger() *slog.Logger {
	loggerMu.RLock()
	l := baseLogger
	loggerMu.RUnlock()
	if l != nil {
		return l
	}
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if baseLogger == nil {
		baseLogger = newLogger(os.Stdout)
	}
	return baseLogger
}

func Debugf(format string, v ...any) {
	activeLogger().Debug(fmt.Sprintf(format, v...))
}

func Infof(format string, v ...any) {
	activeLogger().Info(fmt.Sprintf(format, v...))
}

func Warnf(format string, v ...any) {
	activeLogger().Warn(fmt.Sprintf(format, v...))
}

func Errorf(format string, v ...any) {
	activeLogger().Error(fmt.Sprintf(format, v...))
}

// Component is a logger that tags every line with component=<name>.
// It resolves the base logger lazily so SetOutput after construction still applies.
type Component struct {
	name string
}

// With returns a component-scoped logger.
func With(component string) Component {
	return Component{name: strings.TrimSpace(component)}
}

func (c Component) log(level slog.Level, format string, v ...any) {
	l := activeLogger()
	if c.name != "" {
		l = l.With("component", c.name)
	}
	l.Log(context.Background(), level, fmt.Sprintf(format, v...))
}

func (c Component) Debugf(format string, v ...any) { c.log(slog.LevelDebug, format, v...) }
func (c Component) Infof(format string, v ...any)  { c.log(slog.LevelInfo, format, v...) }
func (c Component) Warnf(format string, v ...any)  { c.log(slog.LevelWarn, format, v...) }
func (c Component) Errorf(format string, v ...any) { c.log(slog.LevelError, format, v...) }
