// pattern: Imperative Shell

package watcher

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"shellflow/internal/events"
	"shellflow/internal/logging"
)

type running struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Supervisor runs one Watcher per workspace id and stops them on request.
type Supervisor struct {
	cfg       Config
	lister    ChangeLister
	emitter   events.Emitter
	logs      logging.LoggerProvider
	newSource SourceFactory

	mu       sync.Mutex
	watchers map[string]*running
}

// NewSupervisor creates a Supervisor whose watchers open sources for
// cfg.Backend.
func NewSupervisor(cfg Config, lister ChangeLister, emitter events.Emitter, logs logging.LoggerProvider) *Supervisor {
	cfg = cfg.withDefaults()
	return &Supervisor{
		cfg:     cfg,
		lister:  lister,
		emitter: emitter,
		logs:    logs,
		newSource: func(root string) (Source, error) {
			return NewSource(cfg, root)
		},
		watchers: make(map[string]*running),
	}
}

// Scope is the logger scope used for a workspace's watcher.
func Scope(workspaceID string) string {
	return "watcher." + workspaceID
}

// Start begins watching path for workspace id. Starting an id that is
// already running is a no-op. A source setup failure is returned and no
// watcher runs.
func (s *Supervisor) Start(id, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.watchers[id]; ok {
		return nil
	}

	src, err := s.newSource(path)
	if err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}

	var logger *logging.ScopedLogger
	if s.logs != nil {
		logger = s.logs.For(Scope(id))
	}
	w := New(id, path, src, s.lister, s.emitter, s.cfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	r := &running{cancel: cancel, done: make(chan struct{})}
	s.watchers[id] = r

	go func() {
		defer close(r.done)
		_ = w.Run(ctx)
		s.mu.Lock()
		if s.watchers[id] == r {
			delete(s.watchers, id)
		}
		s.mu.Unlock()
	}()
	return nil
}

// Stop cancels the watcher for id and waits for it to exit. It reports
// whether a watcher was running.
func (s *Supervisor) Stop(id string) bool {
	s.mu.Lock()
	r, ok := s.watchers[id]
	if ok {
		delete(s.watchers, id)
	}
	s.mu.Unlock()

	if !ok {
		return false
	}
	r.cancel()
	<-r.done
	return true
}

// StopAll stops every running watcher.
func (s *Supervisor) StopAll() {
	for _, id := range s.IDs() {
		s.Stop(id)
	}
}

// Running reports whether a watcher for id is active.
func (s *Supervisor) Running(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.watchers[id]
	return ok
}

// IDs returns the ids of running watchers in sorted order.
func (s *Supervisor) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.watchers))
	for id := range s.watchers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
