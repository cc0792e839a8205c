// pattern: Imperative Shell

package watcher

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// fileMeta is what the poller compares between scans. File contents are
// never read.
type fileMeta struct {
	size    int64
	modTime time.Time
	mode    fs.FileMode
}

// PollSource detects changes by rescanning file metadata on an interval.
type PollSource struct {
	root     string
	interval time.Duration
	ignore   []string

	events chan Event
	errors chan error
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewPollSource takes an initial snapshot of root and starts polling. It
// fails if root cannot be scanned.
func NewPollSource(root string, interval time.Duration, ignore []string) (*PollSource, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %s", interval)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	initial, err := scan(root, ignore)
	if err != nil {
		return nil, err
	}

	s := &PollSource{
		root:     root,
		interval: interval,
		ignore:   ignore,
		events:   make(chan Event, 64),
		errors:   make(chan error, 8),
		done:     make(chan struct{}),
	}
	s.wg.Add(1)
	go s.loop(initial)
	return s, nil
}

func (s *PollSource) Events() <-chan Event { return s.events }
func (s *PollSource) Errors() <-chan error { return s.errors }

// Close stops polling and waits for the poll goroutine to exit.
func (s *PollSource) Close() error {
	s.once.Do(func() { close(s.done) })
	s.wg.Wait()
	return nil
}

func (s *PollSource) loop(prev map[string]fileMeta) {
	defer s.wg.Done()
	defer close(s.events)
	defer close(s.errors)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
		}

		cur, err := scan(s.root, s.ignore)
		if err != nil {
			trySend(s.errors, err)
			continue
		}
		for _, ev := range diff(prev, cur) {
			select {
			case s.events <- ev:
			case <-s.done:
				return
			}
		}
		prev = cur
	}
}

// scan records metadata for every non-directory entry under root, skipping
// ignored paths. Unreadable entries below root are skipped.
func scan(root string, ignore []string) (map[string]fileMeta, error) {
	out := make(map[string]fileMeta)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil || rel == "." {
			return nil
		}
		if ignored(rel, ignore) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		out[rel] = fileMeta{size: info.Size(), modTime: info.ModTime(), mode: info.Mode()}
		return nil
	})
	return out, err
}

// diff lists the changes between two scans ordered by path.
func diff(prev, cur map[string]fileMeta) []Event {
	var out []Event
	for path, meta := range cur {
		old, ok := prev[path]
		switch {
		case !ok:
			out = append(out, Event{Path: path, Op: OpCreate})
		case old.size != meta.size || !old.modTime.Equal(meta.modTime):
			out = append(out, Event{Path: path, Op: OpWrite})
		case old.mode != meta.mode:
			out = append(out, Event{Path: path, Op: OpChmod})
		}
	}
	for path := range prev {
		if _, ok := cur[path]; !ok {
			out = append(out, Event{Path: path, Op: OpRemove})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}
