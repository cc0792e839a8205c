package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"shellflow/internal/config"
	"shellflow/internal/instance"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.WorkspaceRoot = filepath.Join(t.TempDir(), "workspaces")
	cfg.LogLevel = "debug"
	return cfg
}

func TestStartDaemon_ServesAndDiscovers(t *testing.T) {
	dataDir := t.TempDir()
	d, err := startDaemon(context.Background(), testConfig(t), dataDir, false)
	if err != nil {
		t.Fatalf("startDaemon() error: %v", err)
	}
	defer d.shutdown()

	baseURL, err := instance.Discover(dataDir)
	if err != nil {
		t.Fatalf("Discover() error: %v", err)
	}

	data, err := instance.NewClient(baseURL).ListProjects()
	if err != nil {
		t.Fatalf("ListProjects() error: %v", err)
	}
	var projects []json.RawMessage
	if err := json.Unmarshal(data, &projects); err != nil || len(projects) != 0 {
		t.Errorf("projects = %s (%v), want empty list", data, err)
	}

	if _, err := os.Stat(filepath.Join(dataDir, "logs", "shellflow.log")); err != nil {
		t.Errorf("log file missing: %v", err)
	}
}

func TestStartDaemon_SecondInstanceFails(t *testing.T) {
	dataDir := t.TempDir()
	d, err := startDaemon(context.Background(), testConfig(t), dataDir, false)
	if err != nil {
		t.Fatal(err)
	}
	defer d.shutdown()

	if _, err := startDaemon(context.Background(), testConfig(t), dataDir, false); !errors.Is(err, instance.ErrAlreadyRunning) {
		t.Fatalf("second startDaemon() error = %v, want ErrAlreadyRunning", err)
	}
}

func TestStartDaemon_OpenProjectRejectsNonRepository(t *testing.T) {
	dataDir := t.TempDir()
	d, err := startDaemon(context.Background(), testConfig(t), dataDir, false)
	if err != nil {
		t.Fatal(err)
	}
	defer d.shutdown()

	_, err = instance.NewClient("http://" + d.web.Addr()).OpenProject(t.TempDir())
	var statusErr *instance.StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusBadRequest {
		t.Fatalf("OpenProject() error = %v, want 400", err)
	}
	if !strings.Contains(statusErr.Message, "not a git repository") {
		t.Errorf("message = %q", statusErr.Message)
	}
}

func TestRunDaemon_StopsOnCancel(t *testing.T) {
	dataDir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- runDaemon(ctx, testConfig(t), dataDir, false) }()

	deadline := time.Now().Add(3 * time.Second)
	for {
		if _, err := instance.Discover(dataDir); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("daemon did not become discoverable")
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runDaemon() error = %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("runDaemon did not return after cancel")
	}

	if running, _ := instance.Running(dataDir); running {
		t.Error("lock still held after shutdown")
	}
}

func TestLoadConfig_FromConfigDir(t *testing.T) {
	dir := t.TempDir()
	yaml := "log_level: debug\nweb:\n  port: 4321\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(dir, "")
	if err != nil {
		t.Fatalf("loadConfig() error: %v", err)
	}
	if cfg.LogLevel != "debug" || cfg.Web.Port != 4321 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadConfig_ExplicitFileWins(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(t.TempDir(), "other.yaml")
	if err := os.WriteFile(file, []byte("log_level: warn\n"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(dir, file)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want warn", cfg.LogLevel)
	}
}

func TestStartDaemon_DiscoverNeedsScanPaths(t *testing.T) {
	dataDir := t.TempDir()
	d, err := startDaemon(context.Background(), testConfig(t), dataDir, false)
	if err != nil {
		t.Fatal(err)
	}
	defer d.shutdown()

	_, err = instance.NewClient("http://" + d.web.Addr()).DiscoverRepositories()
	var statusErr *instance.StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusNotFound {
		t.Fatalf("DiscoverRepositories() error = %v, want 404", err)
	}
}

func TestStartDaemon_DiscoverScansConfiguredPaths(t *testing.T) {
	cfg := testConfig(t)
	cfg.ScanPaths = []string{t.TempDir()}
	d, err := startDaemon(context.Background(), cfg, t.TempDir(), false)
	if err != nil {
		t.Fatal(err)
	}
	defer d.shutdown()

	data, err := instance.NewClient("http://" + d.web.Addr()).DiscoverRepositories()
	if err != nil {
		t.Fatalf("DiscoverRepositories() error = %v", err)
	}
	if strings.TrimSpace(string(data)) != "[]" {
		t.Errorf("body = %s, want empty list", data)
	}
}
