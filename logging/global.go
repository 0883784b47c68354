package logging

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

type LoggingService struct {
	Logger *slog.Logger
	writer *RotatingWriter
}

var (
	mu                    sync.RWMutex
	DefaultLoggingService *LoggingService

	fallback = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
)

// InitLogger installs the process logger and makes it the slog default.
// If the log directory is unusable, logging continues on the console only.
func InitLogger(opts Options) *LoggingService {
	logger, writer, err := Setup(opts)
	if err != nil {
		logger.Error("File logging disabled", "dir", opts.Dir, "error", err)
	}

	svc := &LoggingService{Logger: logger, writer: writer}
	mu.Lock()
	DefaultLoggingService = svc
	mu.Unlock()
	slog.SetDefault(logger)
	return svc
}

// InitConsole installs a text logger on w with no log file, for batch
// commands whose stdout carries data.
func InitConsole(w io.Writer, level slog.Level) *LoggingService {
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	svc := &LoggingService{Logger: logger}
	mu.Lock()
	DefaultLoggingService = svc
	mu.Unlock()
	slog.SetDefault(logger)
	return svc
}

// Close flushes and closes the rotating file, if any.
func (s *LoggingService) Close() error {
	if s == nil || s.writer == nil {
		return nil
	}
	return s.writer.Close()
}

func current() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if DefaultLoggingService == nil || DefaultLoggingService.Logger == nil {
		return fallback
	}
	return DefaultLoggingService.Logger
}

// Logger returns the process logger, or the console fallback before InitLogger.
func Logger() *slog.Logger {
	return current()
}

func Info(msg string, args ...any) {
	current().Info(msg, args...)
}

func Error(msg string, args ...any) {
	current().Error(msg, args...)
}

func Warn(msg string, args ...any) {
	current().Warn(msg, args...)
}

func Debug(msg string, args ...any) {
	current().Debug(msg, args...)
}
