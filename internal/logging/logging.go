// Package logging builds the slog loggers used across gamevision.
//
// Debug output is off unless GAMEVISION_DEBUG=1. GAMEVISION_DEBUG_FILE sends
// all log output to a file instead of stderr.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	envDebug     = "GAMEVISION_DEBUG"
	envDebugFile = "GAMEVISION_DEBUG_FILE"
)

var (
	outputOnce sync.Once
	output     io.Writer = os.Stderr

	rootOnce sync.Once
	root     atomic.Pointer[slog.Logger]
)

// DebugEnabled reports whether GAMEVISION_DEBUG is set to 1.
func DebugEnabled() bool {
	return strings.TrimSpace(os.Getenv(envDebug)) == "1"
}

func writer() io.Writer {
	outputOnce.Do(func() {
		p := strings.TrimSpace(os.Getenv(envDebugFile))
		if p == "" {
			return
		}
		f, err := os.OpenFile(p, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "gamevision debug log open failed: %v\n", err)
			return
		}
		output = f
	})
	return output
}

func base() *slog.Logger {
	rootOnce.Do(func() {
		if root.Load() != nil {
			return
		}
		level := slog.LevelInfo
		if DebugEnabled() {
			level = slog.LevelDebug
		}
		root.Store(slog.New(slog.NewTextHandler(writer(), &slog.HandlerOptions{Level: level})))
	})
	return root.Load()
}

// EnableDebug switches the root logger to debug level, as GAMEVISION_DEBUG=1
// does at startup.
func EnableDebug() {
	root.Store(slog.New(slog.NewTextHandler(writer(), &slog.HandlerOptions{Level: slog.LevelDebug})))
}

// SetLogger replaces the root logger. Loggers returned by For before the
// call keep the old handler.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	root.Store(l)
}

// For returns a logger tagged with the component name.
func For(component string) *slog.Logger {
	return base().With("component", component)
}

// Every reports whether at least period has passed since the last time it
// returned true for the same counter. It is safe for concurrent use and is
// meant for logs on hot paths.
func Every(last *atomic.Int64, period time.Duration) bool {
	if last == nil || period <= 0 {
		return true
	}

	now := time.Now().UnixNano()
	for {
		prev := last.Load()
		if prev != 0 && time.Duration(now-prev) < period {
			return false
		}
		if last.CompareAndSwap(prev, now) {
			return true
		}
	}
}
