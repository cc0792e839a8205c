package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"shellflow/internal/watcher"
)

type Config struct {
	WorkspaceRoot string        `yaml:"workspace_root"`
	LogLevel      string        `yaml:"log_level"`
	StateFile     string        `yaml:"state_file"`
	ScanPaths     []string      `yaml:"scan_paths"`
	Web           WebConfig     `yaml:"web"`
	Watcher       WatcherConfig `yaml:"watcher"`
}

type WebConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type WatcherConfig struct {
	Backend        string        `yaml:"backend"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	Debounce       time.Duration `yaml:"debounce"`
	ReceiveTimeout time.Duration `yaml:"receive_timeout"`
	Ignore         []string      `yaml:"ignore"`
}

func DefaultConfig() Config {
	return Config{
		WorkspaceRoot: "~/.workspaces",
		LogLevel:      "info",
		Web: WebConfig{
			Bind: "127.0.0.1",
		},
		Watcher: WatcherConfig{
			Backend:        watcher.BackendPoll,
			PollInterval:   2 * time.Second,
			Debounce:       500 * time.Millisecond,
			ReceiveTimeout: time.Second,
			Ignore:         []string{".git"},
		},
	}
}

func Load() (Config, error) {
	return LoadFrom(getConfigPath())
}

// LoadFrom reads configPath over the defaults. A missing file is not an
// error. Fields left empty in the file keep their default values.
func LoadFrom(configPath string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("parse %s: %w", configPath, err)
	}

	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return DefaultConfig(), fmt.Errorf("%s: %w", configPath, err)
	}
	return cfg, nil
}

func (c *Config) fillDefaults() {
	def := DefaultConfig()
	if c.WorkspaceRoot == "" {
		c.WorkspaceRoot = def.WorkspaceRoot
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.Web.Bind == "" {
		c.Web.Bind = def.Web.Bind
	}
	if c.Watcher.Backend == "" {
		c.Watcher.Backend = def.Watcher.Backend
	}
	if c.Watcher.PollInterval == 0 {
		c.Watcher.PollInterval = def.Watcher.PollInterval
	}
	if c.Watcher.Debounce == 0 {
		c.Watcher.Debounce = def.Watcher.Debounce
	}
	if c.Watcher.ReceiveTimeout == 0 {
		c.Watcher.ReceiveTimeout = def.Watcher.ReceiveTimeout
	}
	if c.Watcher.Ignore == nil {
		c.Watcher.Ignore = def.Watcher.Ignore
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Watcher.Backend {
	case watcher.BackendPoll, watcher.BackendFSNotify:
	default:
		return fmt.Errorf("watcher.backend: unknown backend %q (want %s or %s)", c.Watcher.Backend, watcher.BackendPoll, watcher.BackendFSNotify)
	}
	if c.Watcher.PollInterval <= 0 {
		return fmt.Errorf("watcher.poll_interval must be positive, got %s", c.Watcher.PollInterval)
	}
	if c.Watcher.Debounce <= 0 {
		return fmt.Errorf("watcher.debounce must be positive, got %s", c.Watcher.Debounce)
	}
	if c.Watcher.ReceiveTimeout <= 0 {
		return fmt.Errorf("watcher.receive_timeout must be positive, got %s", c.Watcher.ReceiveTimeout)
	}
	if c.Web.Port < 0 || c.Web.Port > 65535 {
		return fmt.Errorf("web.port out of range: %d", c.Web.Port)
	}
	return nil
}

// ResolvedWorkspaceRoot returns WorkspaceRoot with a leading ~ expanded.
func (c *Config) ResolvedWorkspaceRoot() string {
	return expandHome(c.WorkspaceRoot)
}

// ResolvedScanPaths returns ScanPaths with leading ~ expanded.
func (c *Config) ResolvedScanPaths() []string {
	paths := make([]string, 0, len(c.ScanPaths))
	for _, p := range c.ScanPaths {
		paths = append(paths, expandHome(p))
	}
	return paths
}

// StatePath returns the project registry file, defaulting to state.yaml in dataDir.
func (c *Config) StatePath(dataDir string) string {
	if c.StateFile == "" {
		return filepath.Join(dataDir, "state.yaml")
	}
	return expandHome(c.StateFile)
}

// ListenAddr returns the host:port the web server binds.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.Web.Bind, strconv.Itoa(c.Web.Port))
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func getConfigPath() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "shellflow", "config.yaml")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "shellflow", "config.yaml")
	}

	return filepath.Join(home, ".config", "shellflow", "config.yaml")
}
