// Package logging provides categorized file logging for the coordinator.
// All categories share one log file under <state-dir>/logs/ so a corpus
// run can be reconstructed from a single stream. The level is tunable via
// the CASEFORGE_LOG_LEVEL environment variable (debug, info, warn, error).
package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Category tags a log line with the subsystem that emitted it.
type Category string

const (
	CategoryServer    Category = "server"    // HTTP surface, lifecycle
	CategoryScheduler Category = "scheduler" // quota drawing, signature FIFO
	CategoryGenerator Category = "generator" // target synthesis attempts
	CategoryCodec     Category = "codec"     // TOON subprocess calls
	CategoryReview    Category = "review"    // submission validation
	CategoryStorage   Category = "storage"   // logs, counters, exports
	CategoryWatcher   Category = "watcher"   // schema hot-reload
)

// Log levels.
const (
	LevelDebug = 0
	LevelInfo  = 1
	LevelWarn  = 2
	LevelError = 3
)

// Logger emits printf-style lines for one category.
type Logger struct {
	category Category
}

var (
	mu       sync.Mutex
	out      *log.Logger
	file     *os.File
	level    = LevelInfo
	loggers  = make(map[Category]*Logger)
	loggerMu sync.RWMutex
)

// Initialize opens the shared log file under dir/logs and applies the env
// level override. Safe to call again after Close (tests do).
func Initialize(dir string) error {
	if dir == "" {
		return fmt.Errorf("répertoire de logs requis")
	}
	logsDir := filepath.Join(dir, "logs")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return fmt.Errorf("création du répertoire de logs: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(logsDir, "caseforge.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("ouverture du fichier de log: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if file != nil {
		_ = file.Close()
	}
	file = f
	out = log.New(f, "", log.LstdFlags|log.Lmicroseconds)
	if env := os.Getenv("CASEFORGE_LOG_LEVEL"); env != "" {
		SetLevel(env)
	}
	return nil
}

// SetLevel switches the minimum emitted level by name. Unknown names
// leave the level untouched.
func SetLevel(name string) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		level = LevelDebug
	case "info":
		level = LevelInfo
	case "warn", "warning":
		level = LevelWarn
	case "error":
		level = LevelError
	}
}

// Close flushes and closes the log file. Subsequent log calls are no-ops
// until the next Initialize.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if file != nil {
		_ = file.Close()
		file = nil
		out = nil
	}
}

// Get returns the logger for a category, creating it on first use.
func Get(category Category) *Logger {
	loggerMu.RLock()
	logger, ok := loggers[category]
	loggerMu.RUnlock()
	if ok {
		return logger
	}
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if logger, ok = loggers[category]; ok {
		return logger
	}
	logger = &Logger{category: category}
	loggers[category] = logger
	return logger
}

func (l *Logger) emit(lvl int, label, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if out == nil || lvl < level {
		return
	}
	out.Printf("[%s] %s %s", l.category, label, fmt.Sprintf(format, args...))
}

// Debug logs at debug level.
func (l *Logger) Debug(format string, args ...any) { l.emit(LevelDebug, "DEBUG", format, args...) }

// Info logs at info level.
func (l *Logger) Info(format string, args ...any) { l.emit(LevelInfo, "INFO", format, args...) }

// Warn logs at warn level.
func (l *Logger) Warn(format string, args ...any) { l.emit(LevelWarn, "WARN", format, args...) }

// Error logs at error level.
func (l *Logger) Error(format string, args ...any) { l.emit(LevelError, "ERROR", format, args...) }

// Per-category convenience functions, info level.

func Server(format string, args ...any)    { Get(CategoryServer).Info(format, args...) }
func Scheduler(format string, args ...any) { Get(CategoryScheduler).Info(format, args...) }
func Generator(format string, args ...any) { Get(CategoryGenerator).Info(format, args...) }
func Codec(format string, args ...any)     { Get(CategoryCodec).Info(format, args...) }
func Review(format string, args ...any)    { Get(CategoryReview).Info(format, args...) }
func Storage(format string, args ...any)   { Get(CategoryStorage).Info(format, args...) }
func Watcher(format string, args ...any)   { Get(CategoryWatcher).Info(format, args...) }
