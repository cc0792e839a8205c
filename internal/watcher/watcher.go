// pattern: Imperative Shell

// Package watcher turns filesystem activity in a workspace into debounced
// files-changed notifications.
package watcher

import (
	"context"
	"errors"
	"time"

	"shellflow/internal/events"
	"shellflow/internal/logging"
	"shellflow/internal/workspace"
)

// Backends.
const (
	BackendPoll     = "poll"
	BackendFSNotify = "fsnotify"
)

// Defaults used when a Config field is zero.
const (
	DefaultPollInterval   = 2 * time.Second
	DefaultDebounce       = 500 * time.Millisecond
	DefaultReceiveTimeout = time.Second
)

// ErrSourceClosed is returned by Run when the event source stops on its own.
var ErrSourceClosed = errors.New("watch source closed")

// Config tunes event detection and debouncing.
type Config struct {
	Backend        string
	PollInterval   time.Duration
	Debounce       time.Duration
	ReceiveTimeout time.Duration
	Ignore         []string
}

// DefaultConfig polls every two seconds, ignoring .git.
func DefaultConfig() Config {
	return Config{
		Backend:        BackendPoll,
		PollInterval:   DefaultPollInterval,
		Debounce:       DefaultDebounce,
		ReceiveTimeout: DefaultReceiveTimeout,
		Ignore:         []string{".git"},
	}
}

func (c Config) withDefaults() Config {
	if c.Backend == "" {
		c.Backend = BackendPoll
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.Debounce <= 0 {
		c.Debounce = DefaultDebounce
	}
	if c.ReceiveTimeout <= 0 {
		c.ReceiveTimeout = DefaultReceiveTimeout
	}
	return c
}

// ChangeLister reports the changed-file set of a working tree.
type ChangeLister interface {
	ChangedFiles(ctx context.Context, path string) ([]workspace.FileChange, error)
}

// Watcher watches one workspace. The first event after a quiet period opens
// a debounce window; events inside the window are coalesced and do not
// extend it. When the window closes the changed-file set is queried and
// emitted once.
type Watcher struct {
	workspaceID string
	root        string
	source      Source
	lister      ChangeLister
	emitter     events.Emitter
	cfg         Config
	logger      *logging.ScopedLogger
}

// New creates a Watcher. Run takes ownership of source.
func New(workspaceID, root string, source Source, lister ChangeLister, emitter events.Emitter, cfg Config, logger *logging.ScopedLogger) *Watcher {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Watcher{
		workspaceID: workspaceID,
		root:        root,
		source:      source,
		lister:      lister,
		emitter:     emitter,
		cfg:         cfg.withDefaults(),
		logger:      logger,
	}
}

// Run processes events until ctx is cancelled or the source closes, then
// closes the source. Query and source errors are logged and never end the
// loop.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() {
		if err := w.source.Close(); err != nil {
			w.logger.Warn("close watch source", "error", err)
		}
	}()

	w.logger.Info("watching", "path", w.root, "debounce", w.cfg.Debounce.String())

	var (
		window    *time.Timer
		windowC   <-chan time.Time
		coalesced int
		errs      = w.source.Errors()
	)
	defer func() {
		if window != nil {
			window.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("stopped")
			return nil

		case ev, ok := <-w.source.Events():
			if !ok {
				w.logger.Warn("event source closed")
				return ErrSourceClosed
			}
			if windowC == nil {
				window = time.NewTimer(w.cfg.Debounce)
				windowC = window.C
				coalesced = 0
				w.logger.Debug("change detected", "path", ev.Path, "op", string(ev.Op))
			} else {
				coalesced++
			}

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			w.logger.Warn("watch error", "error", err)

		case <-windowC:
			window, windowC = nil, nil
			w.emit(ctx, coalesced)

		case <-time.After(w.cfg.ReceiveTimeout):
		}
	}
}

func (w *Watcher) emit(ctx context.Context, coalesced int) {
	files, err := w.lister.ChangedFiles(ctx, w.root)
	if err != nil {
		w.logger.Warn("changed files query failed", "error", err)
		return
	}
	if files == nil {
		files = []workspace.FileChange{}
	}
	w.emitter.Emit(events.FilesChanged{WorkspaceID: w.workspaceID, Files: files}.Envelope())
	w.logger.Info("files changed", "count", len(files), "coalesced", coalesced)
}
