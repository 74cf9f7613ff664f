// Package logger is the process-wide structured logger. Level, output
// and record format are runtime knobs because adapters are chatty at
// debug level and operators flip them without a rebuild.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"log/slog"
)

var (
	levelVar slog.LevelVar
	mu       sync.RWMutex
	out      io.Writer = os.Stdout
	jsonOut  bool
	base     *slog.Logger
)

func init() {
	levelVar.Set(slog.LevelInfo)
	rebuild()
}

// rebuild swaps the active handler. Callers hold mu.
func rebuild() {
	opts := &slog.HandlerOptions{Level: &levelVar}
	var h slog.Handler
	if jsonOut {
		h = slog.NewJSONHandler(out, opts)
	} else {
		h = slog.NewTextHandler(out, opts)
	}
	base = slog.New(h)
}

func SetOutput(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	mu.Lock()
	out = w
	rebuild()
	mu.Unlock()
}

// SetFormat selects "text" (default) or "json" records.
func SetFormat(format string) {
	mu.Lock()
	jsonOut = strings.EqualFold(strings.TrimSpace(format), "json")
	rebuild()
	mu.Unlock()
}

func SetLevel(level string) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		levelVar.Set(slog.LevelDebug)
	case "info":
		levelVar.Set(slog.LevelInfo)
	case "warn", "warning":
		levelVar.Set(slog.LevelWarn)
	case "error":
		levelVar.Set(slog.LevelError)
	default:
		levelVar.Set(slog.LevelInfo)
	}
}

func active() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

func Debugf(format string, v ...any) {
	active().Debug(fmt.Sprintf(format, v...))
}

func Infof(format string, v ...any) {
	active().Info(fmt.Sprintf(format, v...))
}

func Warnf(format string, v ...any) {
	active().Warn(fmt.Sprintf(format, v...))
}

func Errorf(format string, v ...any) {
	active().Error(fmt.Sprintf(format, v...))
}
