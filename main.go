// pattern: Imperative Shell

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"shellflow/internal/cli"
	"shellflow/internal/config"
	"shellflow/internal/discovery"
	"shellflow/internal/events"
	"shellflow/internal/instance"
	"shellflow/internal/logging"
	"shellflow/internal/service"
	"shellflow/internal/state"
	"shellflow/internal/watcher"
	"shellflow/internal/web"
	"shellflow/internal/workspace"
	"shellflow/internal/worktree"
)

var version = "dev"

const (
	busBuffer       = 64
	logStreamBuffer = 256
	shutdownTimeout = 5 * time.Second
)

func main() {
	// Stop at the first non-flag argument so subcommands own their flags.
	flag.CommandLine.SetInterspersed(false)

	configDir := flag.StringP("config-dir", "c", "", "data directory for lock, state and logs (default: ~/.config/shellflow)")
	configFile := flag.String("config", "", "config file (default: <config-dir>/config.yaml)")
	logLevel := flag.String("log-level", "", "override the configured log level (debug, info, warn, error)")
	console := flag.Bool("console", false, "also write logs to stderr")

	flag.Usage = func() {
		cli.BuildApp(version, *configDir).PrintHelp(os.Stderr)
		flag.PrintDefaults()
	}
	flag.Parse()

	app := cli.BuildApp(version, *configDir)
	if !app.Execute(flag.Args()) {
		return
	}

	cfg, err := loadConfig(*configDir, *configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runDaemon(ctx, cfg, cli.ResolveDataDir(*configDir), *console); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads an explicit config file, then <configDir>/config.yaml,
// then the default location.
func loadConfig(configDir, configFile string) (config.Config, error) {
	switch {
	case configFile != "":
		return config.LoadFrom(configFile)
	case configDir != "":
		return config.LoadFrom(filepath.Join(configDir, "config.yaml"))
	default:
		return config.Load()
	}
}

// daemon is a running shellflow instance.
type daemon struct {
	dataDir string
	lock    *instance.Handle
	logs    *logging.Manager
	logger  *logging.ScopedLogger
	bus     *events.Bus
	stream  *events.Broker[logging.LogEntry]
	service *service.Service
	web     *web.Server
	served  chan error
}

// runDaemon serves until ctx ends, then shuts everything down.
func runDaemon(ctx context.Context, cfg config.Config, dataDir string, console bool) error {
	d, err := startDaemon(ctx, cfg, dataDir, console)
	if err != nil {
		return err
	}
	defer d.shutdown()

	d.logger.Info("shellflow started", "url", "http://"+d.web.Addr(), "data_dir", dataDir)
	fmt.Fprintf(os.Stderr, "shellflow listening on http://%s\n", d.web.Addr())

	select {
	case <-ctx.Done():
		d.logger.Info("shutdown requested")
		return nil
	case err := <-d.served:
		return err
	}
}

// startDaemon acquires the instance lock and wires logging, the event bus,
// the workspace service and the web server.
func startDaemon(ctx context.Context, cfg config.Config, dataDir string, console bool) (*daemon, error) {
	lock, err := instance.Acquire(dataDir)
	if err != nil {
		return nil, err
	}
	d := &daemon{dataDir: dataDir, lock: lock, served: make(chan error, 1)}

	d.logs, err = logging.NewManager(logging.Config{
		FilePath:   filepath.Join(dataDir, "logs", "shellflow.log"),
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 7,
		Level:      cfg.LogLevel,
		Console:    console,
	})
	if err != nil {
		lock.Release()
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	d.logger = d.logs.For("app")

	d.stream = events.NewBroker[logging.LogEntry](logStreamBuffer)
	go func() {
		for entry := range d.logs.Entries() {
			d.stream.Publish(entry)
		}
	}()
	d.bus = events.NewBus(busBuffer)

	git := worktree.New()
	manager := workspace.NewManager(git, workspace.Options{
		Layout: workspace.Layout{Root: cfg.ResolvedWorkspaceRoot()},
		Logger: d.logs.For("workspace"),
	})
	watchers := watcher.NewSupervisor(watcher.Config{
		Backend:        cfg.Watcher.Backend,
		PollInterval:   cfg.Watcher.PollInterval,
		Debounce:       cfg.Watcher.Debounce,
		ReceiveTimeout: cfg.Watcher.ReceiveTimeout,
		Ignore:         cfg.Watcher.Ignore,
	}, git, d.bus, d.logs)

	d.service = service.New(service.Options{
		Manager:  manager,
		Watchers: watchers,
		Emitter:  d.bus,
		Store:    state.NewStore(cfg.StatePath(dataDir), d.logs.For("state")),
		Logs:     d.logs,
	})
	if err := d.service.Open(ctx); err != nil {
		d.shutdown()
		return nil, err
	}

	webCfg := web.Config{Addr: cfg.ListenAddr()}
	if paths := cfg.ResolvedScanPaths(); len(paths) > 0 {
		webCfg.Discover = discovery.NewScanner(git, paths).Scan
	}
	d.web = web.New(webCfg, d.service, d.bus, d.stream, d.logs)
	ln, err := d.web.Listen()
	if err != nil {
		d.web = nil
		d.shutdown()
		return nil, err
	}
	go func() {
		if err := d.web.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.logger.Error("web server error", "error", err)
			d.served <- err
		}
	}()

	if err := lock.WritePort(d.web.Addr()); err != nil {
		d.logger.Error("failed to write port file", "error", err)
	}
	return d, nil
}

// shutdown closes the brokers first so open event streams end, then stops
// the web server, the watchers and logging, and releases the lock.
func (d *daemon) shutdown() {
	if d.bus != nil {
		d.bus.Close()
	}
	if d.stream != nil {
		d.stream.Close()
	}
	if d.web != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := d.web.Shutdown(ctx); err != nil {
			d.logger.Error("web server shutdown error", "error", err)
		}
		cancel()
	}
	if d.service != nil {
		d.service.Close()
	}
	if d.logger != nil {
		d.logger.Info("shellflow stopped")
	}
	if d.logs != nil {
		_ = d.logs.Close()
	}
	d.lock.Release()
}
