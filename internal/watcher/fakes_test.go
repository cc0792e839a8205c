package watcher

import (
	"context"
	"errors"
	"sync"
	"time"

	"shellflow/internal/events"
	"shellflow/internal/workspace"
)

var errTest = errors.New("event queue overflow")

type fakeSource struct {
	events chan Event
	errors chan error
	once   sync.Once
	closed chan struct{}
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		events: make(chan Event, 100),
		errors: make(chan error, 10),
		closed: make(chan struct{}),
	}
}

func (s *fakeSource) Events() <-chan Event { return s.events }
func (s *fakeSource) Errors() <-chan error { return s.errors }

func (s *fakeSource) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeSource) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

type fakeLister struct {
	mu    sync.Mutex
	calls int
	files []workspace.FileChange
	fail  int // number of upcoming calls that fail
}

func (l *fakeLister) ChangedFiles(_ context.Context, _ string) ([]workspace.FileChange, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.fail > 0 {
		l.fail--
		return nil, errors.New("git status failed")
	}
	return l.files, nil
}

func (l *fakeLister) callCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

type recordingEmitter struct {
	mu   sync.Mutex
	got  []events.Envelope
	sent chan struct{}
}

func newRecordingEmitter() *recordingEmitter {
	return &recordingEmitter{sent: make(chan struct{}, 100)}
}

func (e *recordingEmitter) Emit(env events.Envelope) {
	e.mu.Lock()
	e.got = append(e.got, env)
	e.mu.Unlock()
	e.sent <- struct{}{}
}

func (e *recordingEmitter) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.got)
}

func (e *recordingEmitter) all() []events.Envelope {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]events.Envelope(nil), e.got...)
}

// waitFor waits for n emissions or fails after timeout.
func (e *recordingEmitter) waitFor(n int, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for e.count() < n {
		select {
		case <-e.sent:
		case <-deadline:
			return false
		}
	}
	return true
}
