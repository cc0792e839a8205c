// pattern: Imperative Shell

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"shellflow/internal/instance"
)

const defaultClientTimeout = 10 * time.Second

// Delegate discovers a running shellflow instance and runs a CLI command
// against it over HTTP.
//
// Exit codes:
//   - 2: no running shellflow instance found
//   - 1: any other error
//   - 0: success
type Delegate struct {
	// ConfigDir is the directory holding the lock and port files.
	ConfigDir string

	// ExitFunc defaults to os.Exit.
	ExitFunc func(int)

	// Stdout and Stderr default to the process streams.
	Stdout io.Writer
	Stderr io.Writer

	// ClientTimeout is the HTTP client timeout. Defaults to 10 seconds.
	ClientTimeout time.Duration
}

func (d *Delegate) setDefaults() {
	if d.ExitFunc == nil {
		d.ExitFunc = os.Exit
	}
	if d.Stdout == nil {
		d.Stdout = os.Stdout
	}
	if d.Stderr == nil {
		d.Stderr = os.Stderr
	}
	if d.ClientTimeout == 0 {
		d.ClientTimeout = defaultClientTimeout
	}
}

// Client discovers the running instance and returns a client for it. On
// failure it reports the error, calls ExitFunc and returns nil.
func (d *Delegate) Client() *instance.Client {
	d.setDefaults()

	baseURL, err := instance.Discover(ResolveDataDir(d.ConfigDir))
	if err != nil {
		fmt.Fprintf(d.Stderr, "error: %v\n", err)
		if errors.Is(err, instance.ErrNoInstance) {
			d.ExitFunc(2)
		} else {
			d.ExitFunc(1)
		}
		return nil
	}
	return instance.NewClientWithTimeout(baseURL, d.ClientTimeout)
}

// Run invokes fn with a client for the running instance. Server errors are
// reported by their message alone.
func (d *Delegate) Run(fn func(*instance.Client) error) {
	client := d.Client()
	if client == nil {
		return
	}
	if err := fn(client); err != nil {
		d.Fail(err)
	}
}

// Fail reports err and exits with code 1.
func (d *Delegate) Fail(err error) {
	d.setDefaults()
	var statusErr *instance.StatusError
	if errors.As(err, &statusErr) {
		fmt.Fprintf(d.Stderr, "error: %s\n", statusErr.Message)
	} else {
		fmt.Fprintf(d.Stderr, "error: %v\n", err)
	}
	d.ExitFunc(1)
}

// Usage prints a usage line and exits with code 1.
func (d *Delegate) Usage(usage string) {
	d.setDefaults()
	fmt.Fprintf(d.Stderr, "%s\n", usage)
	d.ExitFunc(1)
}

// PrintJSON writes JSON data to the delegate's stdout, indented when stdout
// is a terminal.
func (d *Delegate) PrintJSON(data []byte) error {
	d.setDefaults()
	return PrintJSON(d.Stdout, data)
}

// PrintJSON writes data to w. If w is a terminal the JSON is re-indented;
// otherwise the raw bytes are written.
func PrintJSON(w io.Writer, data []byte) error {
	if !isTerminal(w) {
		_, err := w.Write(data)
		return err
	}

	var obj any
	if err := json.Unmarshal(data, &obj); err != nil {
		_, err := w.Write(data)
		return err
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(obj)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}
