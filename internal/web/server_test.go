package web_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"shellflow/internal/events"
	"shellflow/internal/logging"
	"shellflow/internal/web"
)

type testServer struct {
	srv      *web.Server
	projects *fakeProjects
	bus      *events.Bus
	logs     *events.Broker[logging.LogEntry]
	baseURL  string
}

// startServer runs a server on an ephemeral port and shuts it down when the
// test ends.
func startServer(t *testing.T) *testServer {
	t.Helper()
	lm := logging.NewTestLogManager(100)
	t.Cleanup(func() { _ = lm.Close() })

	ts := &testServer{
		projects: newFakeProjects(),
		bus:      events.NewBus(16),
		logs:     events.NewBroker[logging.LogEntry](16),
	}
	ts.srv = web.New(web.Config{Addr: "127.0.0.1:0"}, ts.projects, ts.bus, ts.logs, lm)

	ln, err := ts.srv.Listen()
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- ts.srv.Serve(ln) }()

	t.Cleanup(func() {
		ts.bus.Close()
		ts.logs.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = ts.srv.Shutdown(ctx)
		<-done
	})

	ts.baseURL = "http://" + ts.srv.Addr()
	return ts
}

func TestHandleHealth(t *testing.T) {
	ts := startServer(t)

	resp, err := http.Get(ts.baseURL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health error = %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if body := readBody(t, resp); body != `{"status":"ok"}` {
		t.Errorf("body = %q", body)
	}
}

func TestServer_AddrBeforeListen(t *testing.T) {
	lm := logging.NewTestLogManager(10)
	t.Cleanup(func() { _ = lm.Close() })

	s := web.New(web.Config{Addr: "127.0.0.1:8765"}, newFakeProjects(), events.NewBus(1), nil, lm)

	if addr := s.Addr(); addr != "127.0.0.1:8765" {
		t.Errorf("Addr() before Listen() = %q, want %q", addr, "127.0.0.1:8765")
	}
}

func TestServer_GracefulShutdown(t *testing.T) {
	lm := logging.NewTestLogManager(10)
	t.Cleanup(func() { _ = lm.Close() })

	s := web.New(web.Config{Addr: "127.0.0.1:0"}, newFakeProjects(), events.NewBus(1), nil, lm)
	ln, err := s.Listen()
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- s.Serve(ln) }()

	addr := s.Addr()
	resp, err := http.Get("http://" + addr + "/api/health")
	if err != nil {
		t.Fatalf("pre-shutdown GET: %v", err)
	}
	_ = resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	select {
	case err := <-done:
		if err != nil && err != http.ErrServerClosed {
			t.Errorf("Serve() returned unexpected error: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop after Shutdown()")
	}

	client := &http.Client{Timeout: 500 * time.Millisecond}
	if resp, err := client.Get("http://" + addr + "/api/health"); err == nil {
		_ = resp.Body.Close()
		t.Error("server accepted a connection after Shutdown()")
	}
}

func TestServer_LogsUnavailable(t *testing.T) {
	lm := logging.NewTestLogManager(10)
	t.Cleanup(func() { _ = lm.Close() })

	s := web.New(web.Config{Addr: "127.0.0.1:0"}, newFakeProjects(), events.NewBus(1), nil, lm)
	rec := doRequest(t, s.Handler(), http.MethodGet, "/api/logs", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
