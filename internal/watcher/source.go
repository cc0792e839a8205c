// pattern: Imperative Shell

package watcher

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Op names the kind of filesystem change an Event reports.
type Op string

const (
	OpCreate Op = "create"
	OpWrite  Op = "write"
	OpRemove Op = "remove"
	OpRename Op = "rename"
	OpChmod  Op = "chmod"
)

// Event is one filesystem change under a watched root. Path is relative to
// the root.
type Event struct {
	Path string
	Op   Op
}

// Source delivers filesystem events for one directory tree. Both channels
// are closed once the source stops.
type Source interface {
	Events() <-chan Event
	Errors() <-chan error
	Close() error
}

// SourceFactory opens a Source rooted at a directory.
type SourceFactory func(root string) (Source, error)

// NewSource opens the Source selected by cfg.Backend.
func NewSource(cfg Config, root string) (Source, error) {
	switch cfg.Backend {
	case BackendPoll, "":
		return NewPollSource(root, cfg.PollInterval, cfg.Ignore)
	case BackendFSNotify:
		return NewNotifySource(root, cfg.Ignore)
	default:
		return nil, fmt.Errorf("unknown watcher backend %q", cfg.Backend)
	}
}

// ignored reports whether any segment of the slash- or separator-delimited
// relative path matches an ignore pattern.
func ignored(rel string, patterns []string) bool {
	if len(patterns) == 0 || rel == "." || rel == "" {
		return false
	}
	for _, seg := range strings.Split(filepath.ToSlash(rel), "/") {
		for _, pattern := range patterns {
			if seg == pattern {
				return true
			}
			if ok, _ := filepath.Match(pattern, seg); ok {
				return true
			}
		}
	}
	return false
}

// trySend delivers err without blocking. Errors are advisory, so a full
// buffer drops them.
func trySend(ch chan error, err error) {
	select {
	case ch <- err:
	default:
	}
}
