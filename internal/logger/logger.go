package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

var (
	current atomic.Pointer[slog.Logger]

	auditMu     sync.Mutex
	auditLogger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
)

// Initialize sets up the global logger. Format is "json" or "text"; an unknown level falls back to info.
func Initialize(level, format string) {
	initialize(os.Stdout, level, format)
}

func initialize(w io.Writer, level, format string) {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler = slog.NewTextHandler(w, opts)
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	}

	l := slog.New(handler)
	current.Store(l)
	slog.SetDefault(l)
}

func parseLevel(level string) slog.Level {
	if strings.EqualFold(level, "warning") {
		return slog.LevelWarn
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func get() *slog.Logger {
	if l := current.Load(); l != nil {
		return l
	}
	Initialize("info", "text")
	return current.Load()
}

// SetAuditOutput redirects audit lines, mainly for tests
func SetAuditOutput(w io.Writer) {
	auditMu.Lock()
	defer auditMu.Unlock()
	auditLogger = slog.New(slog.NewJSONHandler(w, nil))
}

// Audit writes exactly one JSON line regardless of the configured log format
func Audit(event string, args ...any) {
	auditMu.Lock()
	l := auditLogger
	auditMu.Unlock()
	l.Info(event, append([]any{"audit", true}, args...)...)
}

func Debug(msg string, args ...any) { get().Debug(msg, args...) }
func Info(msg string, args ...any)  { get().Info(msg, args...) }
func Warn(msg string, args ...any)  { get().Warn(msg, args...) }
func Error(msg string, args ...any) { get().Error(msg, args...) }

// EnterMethod and the helpers below trace service methods and outbound calls at debug level.
// Failures are logged at error level.
func EnterMethod(methodName string, args ...any) {
	get().Debug("→ Method entered", with(args, "method", methodName, "event", "enter")...)
}

func ExitMethod(methodName string, args ...any) {
	get().Debug("← Method exited", with(args, "method", methodName, "event", "exit")...)
}

func ExitMethodWithError(methodName string, err error, args ...any) {
	get().Error("← Method exited with error", with(args, "method", methodName, "event", "exit", "error", err)...)
}

func DatabaseCall(operation, query string, args ...any) {
	get().Debug("→ Database call", with(args, "operation", operation, "query", query)...)
}

func DatabaseResult(operation string, rowsAffected int64, err error, args ...any) {
	outcome("Database call", err, with(args, "operation", operation, "rows_affected", rowsAffected))
}

func ExternalServiceCall(service, operation string, args ...any) {
	get().Debug("→ External service call", with(args, "service", service, "operation", operation)...)
}

func ExternalServiceResult(service, operation string, err error, args ...any) {
	outcome("External service call", err, with(args, "service", service, "operation", operation))
}

// with puts the fixed attributes ahead of the caller's key/value pairs.
func with(args []any, fixed ...any) []any {
	return append(fixed, args...)
}

func outcome(what string, err error, args []any) {
	if err != nil {
		get().Error("← "+what+" failed", append(args, "error", err)...)
		return
	}
	get().Debug("← "+what+" succeeded", args...)
}
