// pattern: Imperative Shell

package logging

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NopLogger returns a logger that discards all output.
func NopLogger() *ScopedLogger {
	return &ScopedLogger{}
}

// TestLogManager is a LoggerProvider for tests. Entries are written at debug
// level to a channel only, so tests can assert on what was logged.
type TestLogManager struct {
	channelSink *ChannelSink
	baseZap     *zap.Logger
	loggers     map[string]*ScopedLogger
	mu          sync.RWMutex
}

// NewTestLogManager creates a TestLogManager buffering up to bufferSize entries.
func NewTestLogManager(bufferSize int) *TestLogManager {
	channelSink := NewChannelSink(bufferSize)
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig()),
		zapcore.AddSync(channelSink),
		zapcore.DebugLevel,
	)

	return &TestLogManager{
		channelSink: channelSink,
		baseZap:     zap.New(core),
		loggers:     make(map[string]*ScopedLogger),
	}
}

// For returns a scoped logger for the given scope name.
func (m *TestLogManager) For(scope string) *ScopedLogger {
	return forScope(&m.mu, m.loggers, m.baseZap, zapcore.DebugLevel, scope)
}

// Channel returns the channel log entries arrive on.
func (m *TestLogManager) Channel() <-chan LogEntry {
	return m.channelSink.Entries()
}

// Drain collects entries until none arrives for the given quiet period.
func (m *TestLogManager) Drain(quiet time.Duration) []LogEntry {
	var out []LogEntry
	for {
		select {
		case e, ok := <-m.channelSink.Entries():
			if !ok {
				return out
			}
			out = append(out, e)
		case <-time.After(quiet):
			return out
		}
	}
}

// Close closes the test log manager.
func (m *TestLogManager) Close() error {
	return m.channelSink.Close()
}
