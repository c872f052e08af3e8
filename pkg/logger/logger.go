package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LogLevel defines the severity of a log message.
type LogLevel int

const (
	INFO LogLevel = iota
	WARN
	ERROR
	DEBUG
	TRACE
)

const appTag = "textcorrector"

// Logger writes levelled messages to an output stream and keeps the most recent
// lines in memory for the GUI log panel. Errors reported through LogError are
// also appended to a daily file when a log directory is set.
type Logger struct {
	mu          sync.Mutex
	logMessages []string
	stdLogger   *log.Logger
	maxLines    int
	minLevel    LogLevel
	errorDir    string           // empty disables the error file
	now         func() time.Time // overridable in tests
}

// NewLogger creates a Logger printing to stdout.
func NewLogger(maxLines int) *Logger {
	return NewLoggerTo(os.Stdout, maxLines)
}

// NewLoggerTo creates a Logger printing to w.
func NewLoggerTo(w io.Writer, maxLines int) *Logger {
	if maxLines <= 0 {
		maxLines = 1
	}
	return &Logger{
		stdLogger:   log.New(w, "", log.Ldate|log.Ltime|log.Lshortfile),
		maxLines:    maxLines,
		logMessages: make([]string, 0, maxLines),
		minLevel:    DEBUG,
		now:         time.Now,
	}
}

// SetLevel updates the minimum log level.
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.minLevel = level
}

// GetLevel returns the current minimum log level.
func (l *Logger) GetLevel() LogLevel {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.minLevel
}

// SetErrorDir enables the daily error file under dir.
func (l *Logger) SetErrorDir(dir string) error {
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create log dir: %w", err)
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errorDir = dir
	return nil
}

func (l *Logger) logf(level LogLevel, format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if levelRank(level) < levelRank(l.minLevel) {
		return
	}

	logEntry := fmt.Sprintf("[%s] %s", level.String(), fmt.Sprintf(format, v...))
	l.stdLogger.Output(3, logEntry)
	l.remember(logEntry)
}

func (l *Logger) remember(entry string) {
	l.logMessages = append(l.logMessages, entry)
	if len(l.logMessages) > l.maxLines {
		l.logMessages = l.logMessages[len(l.logMessages)-l.maxLines:]
	}
}

// Infof logs an info message.
func (l *Logger) Infof(format string, v ...interface{}) {
	l.logf(INFO, format, v...)
}

// Warnf logs a warning message.
func (l *Logger) Warnf(format string, v ...interface{}) {
	l.logf(WARN, format, v...)
}

// Errorf logs an error message.
func (l *Logger) Errorf(format string, v ...interface{}) {
	l.logf(ERROR, format, v...)
}

// Debugf logs a debug message.
func (l *Logger) Debugf(format string, v ...interface{}) {
	l.logf(DEBUG, format, v...)
}

// Tracef logs a trace message.
func (l *Logger) Tracef(format string, v ...interface{}) {
	l.logf(TRACE, format, v...)
}

// LogError records an error of the given kind. It is always logged at ERROR
// level and, if an error dir is set, appended to error_log_YYYY-MM-DD.txt.
// details may span several lines, e.g. a wrapped error chain.
func (l *Logger) LogError(kind, message, details string) error {
	l.logf(ERROR, "%s: %s", kind, message)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.errorDir == "" {
		return nil
	}

	now := l.now()
	path := ErrorLogPath(l.errorDir, now)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open error log: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	fmt.Fprintf(&b, "%s - %s - ERROR - %s: %s\n", now.Format("2006-01-02 15:04:05"), appTag, kind, message)
	if details = strings.TrimSpace(details); details != "" {
		for _, line := range strings.Split(details, "\n") {
			b.WriteString("    ")
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	if _, err := f.WriteString(b.String()); err != nil {
		return fmt.Errorf("failed to write error log: %w", err)
	}
	return nil
}

// ErrorLogPath returns the error file for the day of t.
func ErrorLogPath(dir string, t time.Time) string {
	return filepath.Join(dir, "error_log_"+t.Format("2006-01-02")+".txt")
}

// GetLogs returns a copy of the in-memory log lines.
func (l *Logger) GetLogs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	logs := make([]string, len(l.logMessages))
	copy(logs, l.logMessages)
	return logs
}

// Clear removes all in-memory log messages.
func (l *Logger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logMessages = l.logMessages[:0]
}

func (l LogLevel) String() string {
	switch l {
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case DEBUG:
		return "DEBUG"
	case TRACE:
		return "TRACE"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a config string to a LogLevel. Unknown names give INFO.
func ParseLevel(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return TRACE
	case "DEBUG":
		return DEBUG
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

func levelRank(level LogLevel) int {
	switch level {
	case TRACE:
		return 0
	case DEBUG:
		return 1
	case INFO:
		return 2
	case WARN:
		return 3
	case ERROR:
		return 4
	default:
		return 5
	}
}
