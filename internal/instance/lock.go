// pattern: Imperative Shell

package instance

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/natefinch/atomic"
)

const (
	lockFileName = "shellflow.lock"
	portFileName = "shellflow.port"
)

// ErrAlreadyRunning is returned by Acquire when another process holds the lock.
var ErrAlreadyRunning = errors.New("another shellflow instance is already running")

// Handle is the single-instance lock held by a running server.
type Handle struct {
	dataDir string
	fl      *flock.Flock
}

// Acquire takes the exclusive instance lock in dataDir, creating the
// directory if needed. The caller must Release the handle.
func Acquire(dataDir string) (*Handle, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	fl := flock.New(filepath.Join(dataDir, lockFileName))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return nil, ErrAlreadyRunning
	}
	return &Handle{dataDir: dataDir, fl: fl}, nil
}

// WritePort records the web server's listener address for Discover.
// The file is replaced atomically so readers never see a partial address.
func (h *Handle) WritePort(addr string) error {
	return atomic.WriteFile(filepath.Join(h.dataDir, portFileName), strings.NewReader(addr))
}

// Release removes the port file and drops the lock.
func (h *Handle) Release() {
	if h == nil {
		return
	}
	_ = os.Remove(filepath.Join(h.dataDir, portFileName))
	if h.fl != nil {
		_ = h.fl.Unlock()
	}
}

// RemoveStale deletes the port file left behind by a crashed instance.
// It fails with ErrAlreadyRunning if an instance still holds the lock.
func RemoveStale(dataDir string) error {
	h, err := Acquire(dataDir)
	if err != nil {
		return err
	}
	h.Release()
	return nil
}
