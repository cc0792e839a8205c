// pattern: Imperative Shell

package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds configuration for the Manager.
type Config struct {
	FilePath       string // Path to log file
	MaxSizeMB      int    // Max size in MB before rotation
	MaxBackups     int    // Max number of old log files to keep
	MaxAgeDays     int    // Max days to keep old log files
	Level          string // Minimum log level (debug, info, warn, error)
	Console        bool   // Also write human-readable lines to stderr
	ChannelBufSize int    // Buffer size for the live entry stream (default 1000)
}

// LoggerProvider hands out scoped loggers. Manager and TestLogManager
// both implement it.
type LoggerProvider interface {
	For(scope string) *ScopedLogger
}

// ScopedLogger is an slog-style logger bound to one scope.
// A nil-backed ScopedLogger (see NopLogger) discards everything.
type ScopedLogger struct {
	slog  *slog.Logger
	scope string
}

// Info logs at INFO level.
func (l *ScopedLogger) Info(msg string, args ...any) {
	if l.slog != nil {
		l.slog.Info(msg, args...)
	}
}

// Debug logs at DEBUG level.
func (l *ScopedLogger) Debug(msg string, args ...any) {
	if l.slog != nil {
		l.slog.Debug(msg, args...)
	}
}

// Warn logs at WARN level.
func (l *ScopedLogger) Warn(msg string, args ...any) {
	if l.slog != nil {
		l.slog.Warn(msg, args...)
	}
}

// Error logs at ERROR level.
func (l *ScopedLogger) Error(msg string, args ...any) {
	if l.slog != nil {
		l.slog.Error(msg, args...)
	}
}

// With returns a logger that adds the given key-value pairs to every entry.
func (l *ScopedLogger) With(args ...any) *ScopedLogger {
	if l.slog == nil {
		return l
	}
	return &ScopedLogger{
		slog:  l.slog.With(args...),
		scope: l.scope,
	}
}

// Scope returns the logger's scope.
func (l *ScopedLogger) Scope() string {
	return l.scope
}

// Manager owns the zap core shared by all scoped loggers. Entries go to a
// rotating JSON file, to the live entry stream, and optionally to stderr.
type Manager struct {
	baseZap     *zap.Logger
	channelSink *ChannelSink
	fileWriter  *lumberjack.Logger
	level       zapcore.Level

	mu      sync.RWMutex
	loggers map[string]*ScopedLogger
}

// NewManager creates a log manager with the given configuration.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.FilePath == "" {
		return nil, fmt.Errorf("FilePath is required")
	}

	if cfg.ChannelBufSize == 0 {
		cfg.ChannelBufSize = 1000
	}
	if cfg.MaxSizeMB == 0 {
		cfg.MaxSizeMB = 10
	}
	if cfg.MaxBackups == 0 {
		cfg.MaxBackups = 5
	}
	if cfg.MaxAgeDays == 0 {
		cfg.MaxAgeDays = 7
	}

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
		return nil, err
	}

	fileWriter := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
	channelSink := NewChannelSink(cfg.ChannelBufSize)

	jsonEncoder := zapcore.NewJSONEncoder(encoderConfig())
	cores := []zapcore.Core{
		zapcore.NewCore(jsonEncoder, zapcore.AddSync(fileWriter), level),
		zapcore.NewCore(jsonEncoder.Clone(), zapcore.AddSync(channelSink), level),
	}
	if cfg.Console {
		consoleCfg := zap.NewDevelopmentEncoderConfig()
		consoleCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(consoleCfg),
			zapcore.Lock(os.Stderr),
			level,
		))
	}

	return &Manager{
		baseZap:     zap.New(zapcore.NewTee(cores...)),
		channelSink: channelSink,
		fileWriter:  fileWriter,
		level:       level,
		loggers:     make(map[string]*ScopedLogger),
	}, nil
}

// encoderConfig is the JSON layout ChannelSink.parseEntry expects.
func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.EpochTimeEncoder
	cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
	return cfg
}

// For returns the logger for scope, creating and caching it on first use.
// Scopes are dotted paths such as "watcher.<workspace-id>".
func (m *Manager) For(scope string) *ScopedLogger {
	return forScope(&m.mu, m.loggers, m.baseZap, m.level, scope)
}

// forScope implements the cached lookup shared by Manager and TestLogManager.
func forScope(mu *sync.RWMutex, cache map[string]*ScopedLogger, base *zap.Logger, level zapcore.Level, scope string) *ScopedLogger {
	mu.RLock()
	if logger, ok := cache[scope]; ok {
		mu.RUnlock()
		return logger
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()

	if logger, ok := cache[scope]; ok {
		return logger
	}

	logger := &ScopedLogger{
		slog:  slog.New(&zapSlogHandler{zap: base.Named(scope), level: level}),
		scope: scope,
	}
	cache[scope] = logger
	return logger
}

// Entries returns the live stream of parsed log entries.
func (m *Manager) Entries() <-chan LogEntry {
	return m.channelSink.Entries()
}

// Sync flushes buffered output.
func (m *Manager) Sync() error {
	return m.baseZap.Sync()
}

// Cleanup drops cached loggers whose scope starts with scopePrefix.
// Call it when the thing a scope names (e.g. a workspace watcher) goes away.
func (m *Manager) Cleanup(scopePrefix string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for scope := range m.loggers {
		if strings.HasPrefix(scope, scopePrefix) {
			delete(m.loggers, scope)
		}
	}
}

// Close syncs and releases the file and the entry stream.
func (m *Manager) Close() error {
	_ = m.Sync()
	_ = m.channelSink.Close()
	return m.fileWriter.Close()
}

// zapSlogHandler adapts zap.Logger to slog.Handler.
type zapSlogHandler struct {
	zap    *zap.Logger
	level  zapcore.Level
	attrs  []zap.Field
	prefix string // group prefix for attribute keys
}

func (h *zapSlogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return slogToZapLevel(level) >= h.level
}

func (h *zapSlogHandler) Handle(_ context.Context, r slog.Record) error {
	fields := make([]zap.Field, 0, r.NumAttrs()+len(h.attrs))
	fields = append(fields, h.attrs...)
	r.Attrs(func(attr slog.Attr) bool {
		fields = append(fields, h.field(attr))
		return true
	})

	if ce := h.zap.Check(slogToZapLevel(r.Level), r.Message); ce != nil {
		ce.Write(fields...)
	}
	return nil
}

func (h *zapSlogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = make([]zap.Field, 0, len(h.attrs)+len(attrs))
	next.attrs = append(next.attrs, h.attrs...)
	for _, attr := range attrs {
		next.attrs = append(next.attrs, h.field(attr))
	}
	return &next
}

func (h *zapSlogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

func (h *zapSlogHandler) field(attr slog.Attr) zap.Field {
	value := attr.Value.Resolve()
	if err, ok := value.Any().(error); ok {
		return zap.String(h.prefix+attr.Key, err.Error())
	}
	return zap.Any(h.prefix+attr.Key, value.Any())
}

func slogToZapLevel(level slog.Level) zapcore.Level {
	switch {
	case level >= slog.LevelError:
		return zapcore.ErrorLevel
	case level >= slog.LevelWarn:
		return zapcore.WarnLevel
	case level >= slog.LevelInfo:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}
