package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger is the structured logger of one archetype invocation. Packages
// that log take the zerolog.Logger returned by Zerolog.
type Logger struct {
	zlog zerolog.Logger
	file *os.File
}

type loggerContextKey struct{}

// NewLogger builds a logger writing to stderr, stdout or a file. Files are
// appended to and always written without colors.
func NewLogger(cfg LoggingConfig) (*Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	l := &Logger{}
	var w io.Writer
	switch cfg.Output {
	case "", "stderr":
		w = os.Stderr
	case "stdout":
		w = os.Stdout
	default:
		if err := os.MkdirAll(filepath.Dir(cfg.Output), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log output %s: %w", cfg.Output, err)
		}
		l.file = f
		w = f
	}

	zerolog.TimeFieldFormat = timeFieldFormat(cfg.TimeFormat)
	if cfg.Format != "json" {
		w = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.Kitchen,
			NoColor:    l.file != nil,
		}
	}

	zctx := zerolog.New(w).Level(level).With().Timestamp()
	if cfg.EnableCaller {
		zctx = zctx.Caller()
	}
	l.zlog = zctx.Logger()
	return l, nil
}

// ParseLevel maps a configured level name to a zerolog level. An empty
// name means info.
func ParseLevel(name string) (zerolog.Level, error) {
	if name == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(name)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel, fmt.Errorf("unknown log level %q", name)
	}
	return level, nil
}

func timeFieldFormat(name string) string {
	switch name {
	case "unix":
		return zerolog.TimeFormatUnix
	case "unixms":
		return zerolog.TimeFormatUnixMs
	case "unixmicro":
		return zerolog.TimeFormatUnixMicro
	default:
		return time.RFC3339
	}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zlog: zerolog.Nop()}
}

// Zerolog returns the underlying logger.
func (l *Logger) Zerolog() zerolog.Logger {
	return l.zlog
}

// Close closes the log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func (l *Logger) derive(zlog zerolog.Logger) *Logger {
	return &Logger{zlog: zlog, file: l.file}
}

// With returns a child logger carrying fields.
func (l *Logger) With(fields map[string]interface{}) *Logger {
	return l.derive(l.zlog.With().Fields(fields).Logger())
}

// ForArchetype returns a child logger tagged with archetype coordinates.
func (l *Logger) ForArchetype(coords string) *Logger {
	return l.derive(l.zlog.With().Str("archetype", coords).Logger())
}

// ForProject returns a child logger tagged with the coordinates and
// directory of a generated project.
func (l *Logger) ForProject(groupID, artifactID, dir string) *Logger {
	return l.derive(l.zlog.With().
		Str("group_id", groupID).
		Str("artifact_id", artifactID).
		Str("project_dir", dir).
		Logger())
}

// Hook returns a child logger running h on every event.
func (l *Logger) Hook(h zerolog.Hook) *Logger {
	return l.derive(l.zlog.Hook(h))
}

// WithContext stores the logger in ctx.
func (l *Logger) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, loggerContextKey{}, l)
}

// FromContext returns the logger stored in ctx, or one wrapping the global
// zerolog logger set up by the command entry point.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerContextKey{}).(*Logger); ok {
		return l
	}
	return &Logger{zlog: log.Logger}
}

func (l *Logger) Debug(msg string) { l.zlog.Debug().Msg(msg) }
func (l *Logger) Info(msg string)  { l.zlog.Info().Msg(msg) }
func (l *Logger) Warn(msg string)  { l.zlog.Warn().Msg(msg) }

// Error logs msg with err at error level.
func (l *Logger) Error(err error, msg string) {
	l.zlog.Error().Err(err).Msg(msg)
}
