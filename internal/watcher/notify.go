// pattern: Imperative Shell

package watcher

import (
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// NotifySource delivers native filesystem events through fsnotify. fsnotify
// watches single directories, so every directory under root is added and
// directories created later are added as they appear.
type NotifySource struct {
	root   string
	ignore []string
	fsw    *fsnotify.Watcher

	events chan Event
	errors chan error
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewNotifySource watches root recursively. It fails if the fsnotify watcher
// cannot be created or root itself cannot be watched.
func NewNotifySource(root string, ignore []string) (*NotifySource, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	s := &NotifySource{
		root:   root,
		ignore: ignore,
		fsw:    fsw,
		events: make(chan Event, 64),
		errors: make(chan error, 8),
		done:   make(chan struct{}),
	}
	if err := s.addRecursive(root); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	s.wg.Add(1)
	go s.loop()
	return s, nil
}

func (s *NotifySource) Events() <-chan Event { return s.events }
func (s *NotifySource) Errors() <-chan error { return s.errors }

// Close stops the fsnotify watcher and waits for the forwarding goroutine.
func (s *NotifySource) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.fsw.Close()
	})
	s.wg.Wait()
	return err
}

// addRecursive watches dir and every non-ignored directory below it. Only a
// failure on dir itself is returned; failures further down are reported on
// the error channel.
func (s *NotifySource) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if rel, relErr := filepath.Rel(s.root, path); relErr == nil && ignored(rel, s.ignore) {
			return fs.SkipDir
		}
		if err := s.fsw.Add(path); err != nil {
			if path == dir {
				return err
			}
			trySend(s.errors, err)
		}
		return nil
	})
}

func (s *NotifySource) loop() {
	defer s.wg.Done()
	defer close(s.events)
	defer close(s.errors)

	for {
		select {
		case <-s.done:
			return

		case ev, ok := <-s.fsw.Events:
			if !ok {
				return
			}
			rel, err := filepath.Rel(s.root, ev.Name)
			if err != nil || ignored(rel, s.ignore) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := s.addRecursive(ev.Name); err != nil {
						trySend(s.errors, err)
					}
				}
			}
			select {
			case s.events <- Event{Path: rel, Op: convertOp(ev.Op)}:
			case <-s.done:
				return
			}

		case err, ok := <-s.fsw.Errors:
			if !ok {
				return
			}
			trySend(s.errors, err)
		}
	}
}

func convertOp(op fsnotify.Op) Op {
	switch {
	case op.Has(fsnotify.Create):
		return OpCreate
	case op.Has(fsnotify.Remove):
		return OpRemove
	case op.Has(fsnotify.Rename):
		return OpRename
	case op.Has(fsnotify.Write):
		return OpWrite
	default:
		return OpChmod
	}
}
