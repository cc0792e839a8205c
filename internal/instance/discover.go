// pattern: Imperative Shell

package instance

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

const healthTimeout = 2 * time.Second

// ErrNoInstance means no process holds the instance lock.
var ErrNoInstance = errors.New("no running shellflow instance found (start shellflow first)")

// Running reports whether another process holds the instance lock in dataDir.
func Running(dataDir string) (bool, error) {
	fl := flock.New(filepath.Join(dataDir, lockFileName))
	locked, err := fl.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to check lock: %w", err)
	}
	if locked {
		_ = fl.Unlock()
		return false, nil
	}
	return true, nil
}

// ReadPort returns the listener address recorded by the running instance.
func ReadPort(dataDir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dataDir, portFileName))
	if err != nil {
		return "", fmt.Errorf("shellflow instance detected but port file missing (try 'shellflow cleanup'): %w", err)
	}
	addr := strings.TrimSpace(string(data))
	if addr == "" {
		return "", fmt.Errorf("shellflow port file is empty (try 'shellflow cleanup')")
	}
	return addr, nil
}

// Health checks that the instance at baseURL answers its health endpoint.
func Health(baseURL string) error {
	client := &http.Client{Timeout: healthTimeout}
	resp, err := client.Get(baseURL + "/api/health")
	if err != nil {
		return fmt.Errorf("shellflow instance not responding (try 'shellflow cleanup'): %w", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("shellflow health check failed (status %d)", resp.StatusCode)
	}
	return nil
}

// Discover returns the base URL (e.g. "http://127.0.0.1:12345") of the
// running instance. It fails with ErrNoInstance when nothing holds the lock.
func Discover(dataDir string) (string, error) {
	running, err := Running(dataDir)
	if err != nil {
		return "", err
	}
	if !running {
		return "", ErrNoInstance
	}

	addr, err := ReadPort(dataDir)
	if err != nil {
		return "", err
	}

	baseURL := "http://" + addr
	if err := Health(baseURL); err != nil {
		return "", err
	}
	return baseURL, nil
}
