package slogutil

import (
	"io"
	"log/slog"

	"ducklint/internal/config"
	"ducklint/internal/paths"
)

// Subsystems with their own log file under .ducklint/logs.
const (
	SubsystemCLI   = "cli"
	SubsystemWatch = "watch"
)

// LoggerFactory builds loggers for a project. Precedence for the level is
// CLI flag, then the subsystem's config level, then the global level.
type LoggerFactory struct {
	projectRoot string
	config      *config.Config
	cliLevel    *slog.Level
	console     io.Writer
	closers     []io.Closer
}

// NewLoggerFactory creates a factory. console receives records as well as the
// log file; pass nil to log to the file only.
func NewLoggerFactory(projectRoot string, cfg *config.Config, console io.Writer) *LoggerFactory {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &LoggerFactory{projectRoot: projectRoot, config: cfg, console: console}
}

// SetCLILevel overrides every configured level.
func (f *LoggerFactory) SetCLILevel(level slog.Level) {
	f.cliLevel = &level
}

// Logger returns the logger for subsystem, writing to
// .ducklint/logs/<subsystem>.log. When the file cannot be opened the logger
// falls back to the console alone.
func (f *LoggerFactory) Logger(subsystem string) *slog.Logger {
	level := f.EffectiveLevel(subsystem)
	var handlers []slog.Handler
	if f.console != nil {
		// the console always uses the line format
		handlers = append(handlers, NewLineHandler(f.console, &slog.HandlerOptions{Level: level}))
	}
	if f.projectRoot != "" {
		if file, closer, err := f.fileLogger(subsystem, level); err == nil {
			f.closers = append(f.closers, closer)
			handlers = append(handlers, file.Handler())
		}
	}
	switch len(handlers) {
	case 0:
		return NewDiscardLogger()
	case 1:
		return slog.New(handlers[0])
	}
	return slog.New(NewTeeHandler(handlers...))
}

func (f *LoggerFactory) fileLogger(subsystem string, level slog.Level) (*slog.Logger, io.Closer, error) {
	if _, err := paths.EnsureLogsDir(f.projectRoot); err != nil {
		return nil, nil, err
	}
	l := f.config.Logging
	return NewFileLoggerWithRotation(paths.LogPath(f.projectRoot, subsystem), l.Format, level, l.MaxSize, l.MaxBackups)
}

// EffectiveLevel resolves the level for subsystem.
func (f *LoggerFactory) EffectiveLevel(subsystem string) slog.Level {
	if f.cliLevel != nil {
		return *f.cliLevel
	}
	if subsystem == SubsystemWatch && f.config.Logging.Watch != "" {
		return LevelFromString(f.config.Logging.Watch)
	}
	return LevelFromString(f.config.Logging.Level)
}

// Close closes every log file opened by the factory.
func (f *LoggerFactory) Close() error {
	var firstErr error
	for _, c := range f.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	f.closers = nil
	return firstErr
}
