package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// LogLevel defines the severity of the log entry.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String makes LogLevel satisfy the fmt.Stringer interface.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogEntry is a structured log entry, also published on the daemon-mode
// tail channel so the local IPC surface can relay recent log lines.
type LogEntry struct {
	Timestamp time.Time
	Level     LogLevel
	Subsystem string
	Message   string
	Err       error
}

var (
	defaultLogger *slog.Logger
	tailChannel   chan LogEntry
	daemonMode    bool
)

const tailChannelBufferSize = 2048

// InitForCLI initializes the logging system for direct, synchronous output.
func InitForCLI(filterLevel LogLevel, output io.Writer) {
	daemonMode = false
	opts := &slog.HandlerOptions{Level: filterLevel.SlogLevel()}
	defaultLogger = slog.New(slog.NewTextHandler(output, opts))
	slog.SetDefault(defaultLogger)
}

// InitForDaemon initializes the logging system for fleetd serve: output is
// still written synchronously, but every entry is additionally copied onto a
// buffered channel that the IPC surface can drain for diagnostics.
func InitForDaemon(filterLevel LogLevel, output io.Writer) <-chan LogEntry {
	daemonMode = true
	opts := &slog.HandlerOptions{Level: filterLevel.SlogLevel()}
	defaultLogger = slog.New(slog.NewTextHandler(output, opts))
	slog.SetDefault(defaultLogger)
	tailChannel = make(chan LogEntry, tailChannelBufferSize)
	return tailChannel
}

func logInternal(level LogLevel, subsystem string, err error, messageFmt string, args ...interface{}) {
	if defaultLogger == nil || !defaultLogger.Enabled(context.Background(), level.SlogLevel()) {
		return
	}

	msg := messageFmt
	if len(args) > 0 {
		msg = fmt.Sprintf(messageFmt, args...)
	}
	now := time.Now()

	var slogAttrs []slog.Attr
	slogAttrs = append(slogAttrs, slog.String("subsystem", subsystem))
	if err != nil {
		slogAttrs = append(slogAttrs, slog.String("error", err.Error()))
	}
	defaultLogger.LogAttrs(context.Background(), level.SlogLevel(), msg, slogAttrs...)

	if daemonMode && tailChannel != nil {
		entry := LogEntry{Timestamp: now, Level: level, Subsystem: subsystem, Message: msg, Err: err}
		select {
		case tailChannel <- entry:
		default:
			fmt.Fprintf(os.Stderr, "[LOGGING_CRITICAL] tail channel full, dropping entry: %s [%s] %s\n", now.Format(time.RFC3339), level, msg)
		}
	}
}

// Debug logs a debug message.
func Debug(subsystem string, messageFmt string, args ...interface{}) {
	logInternal(LevelDebug, subsystem, nil, messageFmt, args...)
}

// Info logs an informational message.
func Info(subsystem string, messageFmt string, args ...interface{}) {
	logInternal(LevelInfo, subsystem, nil, messageFmt, args...)
}

// Warn logs a warning message.
func Warn(subsystem string, messageFmt string, args ...interface{}) {
	logInternal(LevelWarn, subsystem, nil, messageFmt, args...)
}

// Error logs an error message.
func Error(subsystem string, err error, messageFmt string, args ...interface{}) {
	logInternal(LevelError, subsystem, err, messageFmt, args...)
}

// TruncateID shortens a deployment or component-instance identifier for
// compact, still-correlatable log lines.
func TruncateID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8] + "..."
}

// AuditEvent is a structured record for deployment-affecting operations:
// submit, commit, rollback. External audit pipelines can key off Action and
// Outcome without parsing free-text log lines.
type AuditEvent struct {
	Action       string // e.g. "deployment_submit", "deployment_commit", "deployment_rollback"
	Outcome      string // "success" or "failure"
	DeploymentID string
	GroupName    string
	Details      string
	Error        string
}

// Audit logs a structured audit event at INFO level with an [AUDIT] prefix
// so log aggregators can filter on it independently of severity.
func Audit(event AuditEvent) {
	parts := make([]string, 0, 6)
	parts = append(parts, "action="+event.Action)
	parts = append(parts, "outcome="+event.Outcome)
	if event.DeploymentID != "" {
		parts = append(parts, "deployment="+TruncateID(event.DeploymentID))
	}
	if event.GroupName != "" {
		parts = append(parts, "group="+event.GroupName)
	}
	if event.Details != "" {
		parts = append(parts, "details="+event.Details)
	}
	if event.Error != "" {
		parts = append(parts, "error="+event.Error)
	}
	logInternal(LevelInfo, "AUDIT", nil, "[AUDIT] %s", strings.Join(parts, " "))
}
