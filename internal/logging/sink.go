// pattern: Imperative Shell

package logging

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// ChannelSink is a zapcore.WriteSyncer that parses each JSON line zap writes
// and forwards it as a LogEntry on a buffered channel. When the buffer is
// full the oldest entry is dropped so logging never blocks.
type ChannelSink struct {
	entries chan LogEntry
	mu      sync.Mutex
	closed  bool
}

// NewChannelSink creates a sink buffering up to bufferSize entries.
func NewChannelSink(bufferSize int) *ChannelSink {
	return &ChannelSink{
		entries: make(chan LogEntry, bufferSize),
	}
}

// Write implements io.Writer. Lines that are not valid JSON are swallowed.
func (s *ChannelSink) Write(p []byte) (int, error) {
	entry, err := parseEntry(p)
	if err != nil {
		return len(p), nil
	}
	if err := s.Send(entry); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Send queues an already-built entry, dropping the oldest one on overflow.
func (s *ChannelSink) Send(entry LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("write to closed channel sink")
	}

	select {
	case s.entries <- entry:
	default:
		select {
		case <-s.entries:
		default:
		}
		select {
		case s.entries <- entry:
		default:
		}
	}
	return nil
}

// Sync implements zapcore.WriteSyncer.
func (s *ChannelSink) Sync() error {
	return nil
}

// Close closes the entries channel. Safe to call multiple times.
func (s *ChannelSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.entries)
	}
	return nil
}

// Entries returns the channel entries are delivered on.
func (s *ChannelSink) Entries() <-chan LogEntry {
	return s.entries
}

// parseEntry converts one line of zap JSON output into a LogEntry.
func parseEntry(data []byte) (LogEntry, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return LogEntry{}, err
	}

	entry := LogEntry{
		Timestamp: time.Now(),
		Level:     "INFO",
		Scope:     "app",
		Fields:    make(map[string]any),
	}

	if msg, ok := raw["msg"].(string); ok {
		entry.Message = msg
	}
	if level, ok := raw["level"].(string); ok {
		entry.Level = ParseLevel(level)
	}
	if logger, ok := raw["logger"].(string); ok {
		entry.Scope = logger
	}
	if ts, ok := raw["ts"].(float64); ok {
		sec := int64(ts)
		nsec := int64((ts - float64(sec)) * 1e9)
		entry.Timestamp = time.Unix(sec, nsec)
	}

	for _, key := range []string{"msg", "level", "logger", "ts", "caller", "stacktrace"} {
		delete(raw, key)
	}
	for k, v := range raw {
		entry.Fields[k] = v
	}
	return entry, nil
}
