// Package logging provides categorized logging for samplewatch.
// Every subsystem logs through its own category; categories map to
// separate files under the configured log directory, or to stderr when
// no directory is configured. The log stream is the operator-facing
// status channel, so logging defaults to on.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Category identifies a logging subsystem.
type Category string

const (
	CategoryBoot       Category = "boot"       // startup, config, factory wiring
	CategoryStore      Category = "store"      // CSV record store
	CategoryRepository Category = "repository" // entity repositories
	CategoryWorkflow   Category = "workflow"   // follow-up workflow
	CategoryMailer     Category = "mailer"     // SMTP + templates
	CategoryLLM        Category = "llm"        // provider clients
)

// Log levels.
const (
	LevelDebug = 0
	LevelInfo  = 1
	LevelWarn  = 2
	LevelError = 3
)

// Options configures the logging system.
type Options struct {
	Dir        string          // per-category files under this dir; stderr when empty
	Level      string          // debug, info, warn, error
	JSONFormat bool            // structured JSON lines instead of text
	Categories map[string]bool // nil enables all
}

// Logger writes to one category's destination.
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
	json     bool
}

var (
	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex
	opts      Options
	logLevel  = LevelInfo
)

// Initialize sets up the logging system. Safe to call once at startup;
// without a call, all categories log to stderr at info level.
func Initialize(o Options) error {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	opts = o
	logLevel = parseLevel(o.Level)
	loggers = make(map[Category]*Logger)

	if o.Dir != "" {
		if err := os.MkdirAll(o.Dir, 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
	}
	return nil
}

// Shutdown closes all open log files.
func Shutdown() {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	for _, l := range loggers {
		if l.file != nil {
			l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
}

func parseLevel(s string) int {
	switch s {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func categoryEnabled(cat Category) bool {
	if opts.Categories == nil {
		return true
	}
	enabled, ok := opts.Categories[string(cat)]
	return !ok || enabled
}

// Get returns the logger for a category, creating it on first use.
func Get(cat Category) *Logger {
	loggersMu.RLock()
	if l, ok := loggers[cat]; ok {
		loggersMu.RUnlock()
		return l
	}
	loggersMu.RUnlock()

	loggersMu.Lock()
	defer loggersMu.Unlock()
	if l, ok := loggers[cat]; ok {
		return l
	}

	var out io.Writer = os.Stderr
	var file *os.File
	if opts.Dir != "" {
		path := filepath.Join(opts.Dir, string(cat)+".log")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[logging] cannot open %s: %v, falling back to stderr\n", path, err)
		} else {
			out = f
			file = f
		}
	}

	l := &Logger{
		category: cat,
		logger:   log.New(out, fmt.Sprintf("[%s] ", cat), log.LstdFlags),
		file:     file,
		json:     opts.JSONFormat,
	}
	loggers[cat] = l
	return l
}

type jsonEntry struct {
	Timestamp int64  `json:"ts"`
	Category  string `json:"cat"`
	Level     string `json:"lvl"`
	Message   string `json:"msg"`
}

func (l *Logger) write(level int, levelName, format string, args ...interface{}) {
	if level < logLevel || !categoryEnabled(l.category) {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if l.json {
		entry := jsonEntry{
			Timestamp: time.Now().UnixMilli(),
			Category:  string(l.category),
			Level:     levelName,
			Message:   msg,
		}
		if data, err := json.Marshal(entry); err == nil {
			l.logger.Print(string(data))
			return
		}
	}
	l.logger.Printf("%s %s", levelName, msg)
}

// Debug logs at debug level.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.write(LevelDebug, "DEBUG", format, args...)
}

// Info logs at info level.
func (l *Logger) Info(format string, args ...interface{}) {
	l.write(LevelInfo, "INFO", format, args...)
}

// Warn logs at warn level.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.write(LevelWarn, "WARN", format, args...)
}

// Error logs at error level.
func (l *Logger) Error(format string, args ...interface{}) {
	l.write(LevelError, "ERROR", format, args...)
}

// Convenience helpers for the hot categories.

func Boot(format string, args ...interface{})  { Get(CategoryBoot).Info(format, args...) }
func Store(format string, args ...interface{}) { Get(CategoryStore).Info(format, args...) }
func StoreDebug(format string, args ...interface{}) {
	Get(CategoryStore).Debug(format, args...)
}
func StoreWarn(format string, args ...interface{}) { Get(CategoryStore).Warn(format, args...) }
func Repo(format string, args ...interface{})      { Get(CategoryRepository).Info(format, args...) }
func RepoWarn(format string, args ...interface{})  { Get(CategoryRepository).Warn(format, args...) }
func Workflow(format string, args ...interface{})  { Get(CategoryWorkflow).Info(format, args...) }
func WorkflowDebug(format string, args ...interface{}) {
	Get(CategoryWorkflow).Debug(format, args...)
}
func WorkflowWarn(format string, args ...interface{}) {
	Get(CategoryWorkflow).Warn(format, args...)
}
func Mailer(format string, args ...interface{}) { Get(CategoryMailer).Info(format, args...) }
func LLM(format string, args ...interface{})    { Get(CategoryLLM).Info(format, args...) }
func LLMDebug(format string, args ...interface{}) {
	Get(CategoryLLM).Debug(format, args...)
}
