// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/speedup/internal/config"
	"github.com/ManuGH/speedup/internal/log"
	"github.com/rs/zerolog"
	"go.uber.org/goleak"
)

func reserveListenAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to reserve listen addr: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	return addr
}

func waitForListen(addr string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 50*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	return errors.New("listen timeout")
}

func testServerConfig(addr string) config.ServerConfig {
	return config.ServerConfig{
		ListenAddr:        addr,
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       time.Second,
		WriteTimeout:      time.Second,
		IdleTimeout:       10 * time.Second,
		MaxHeaderBytes:    1 << 20,
		ShutdownTimeout:   2 * time.Second,
	}
}

func TestNewManager_ValidDeps(t *testing.T) {
	deps := Deps{
		Logger:     log.WithComponent("test"),
		APIHandler: http.NotFoundHandler(),
	}

	mgr, err := NewManager(testServerConfig("127.0.0.1:0"), deps)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	if mgr == nil {
		t.Fatal("NewManager() returned nil manager")
	}
}

func TestNewManager_InvalidDeps(t *testing.T) {
	tests := []struct {
		name string
		deps Deps
		want error
	}{
		{
			name: "missing logger",
			deps: Deps{Logger: zerolog.Nop(), APIHandler: http.NotFoundHandler()},
			want: ErrMissingLogger,
		},
		{
			name: "missing API handler",
			deps: Deps{Logger: log.WithComponent("test")},
			want: ErrMissingAPIHandler,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewManager(testServerConfig("127.0.0.1:0"), tt.deps)
			if !errors.Is(err, tt.want) {
				t.Errorf("NewManager() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestManager_StartServesAndStops(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	addr := reserveListenAddr(t)
	deps := Deps{
		Logger: log.WithComponent("test"),
		APIHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("ok"))
		}),
	}
	mgr, err := NewManager(testServerConfig(addr), deps)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errChan := make(chan error, 1)
	go func() { errChan <- mgr.Start(ctx) }()

	if err := waitForListen(addr, 2*time.Second); err != nil {
		t.Fatalf("API server did not start: %v", err)
	}

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + addr + "/")
	if err != nil {
		t.Fatalf("GET / error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if string(body) != "ok" {
		t.Errorf("body = %q, want %q", body, "ok")
	}

	cancel()
	select {
	case err := <-errChan:
		if err != nil {
			t.Errorf("Start() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after context cancellation")
	}
}

func TestManager_StartTwice(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	addr := reserveListenAddr(t)
	mgr, err := NewManager(testServerConfig(addr), Deps{
		Logger:     log.WithComponent("test"),
		APIHandler: http.NotFoundHandler(),
	})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)
	go func() { errChan <- mgr.Start(ctx) }()
	if err := waitForListen(addr, 2*time.Second); err != nil {
		t.Fatalf("API server did not start: %v", err)
	}

	if err := mgr.Start(ctx); !errors.Is(err, ErrManagerAlreadyStarted) {
		t.Errorf("second Start() error = %v, want %v", err, ErrManagerAlreadyStarted)
	}

	cancel()
	if err := <-errChan; err != nil {
		t.Errorf("Start() error = %v", err)
	}
}

func TestManager_ShutdownHooksRunLIFO(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	addr := reserveListenAddr(t)
	mgr, err := NewManager(testServerConfig(addr), Deps{
		Logger:     log.WithComponent("test"),
		APIHandler: http.NotFoundHandler(),
	})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	var (
		mu    sync.Mutex
		order []string
	)
	record := func(name string) ShutdownHook {
		return func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return nil
		}
	}
	mgr.RegisterShutdownHook("telemetry", record("telemetry"))
	mgr.RegisterShutdownHook("executor", record("executor"))

	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)
	go func() { errChan <- mgr.Start(ctx) }()
	if err := waitForListen(addr, 2*time.Second); err != nil {
		t.Fatalf("API server did not start: %v", err)
	}
	cancel()
	if err := <-errChan; err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if strings.Join(order, ",") != "executor,telemetry" {
		t.Errorf("hook order = %v, want [executor telemetry]", order)
	}
}

func TestManager_ShutdownHookErrorsAreJoined(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	addr := reserveListenAddr(t)
	mgr, err := NewManager(testServerConfig(addr), Deps{
		Logger:     log.WithComponent("test"),
		APIHandler: http.NotFoundHandler(),
	})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	hookErr := errors.New("flush failed")
	ran := false
	mgr.RegisterShutdownHook("first", func(context.Context) error { ran = true; return nil })
	mgr.RegisterShutdownHook("failing", func(context.Context) error { return hookErr })

	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)
	go func() { errChan <- mgr.Start(ctx) }()
	if err := waitForListen(addr, 2*time.Second); err != nil {
		t.Fatalf("API server did not start: %v", err)
	}
	cancel()

	err = <-errChan
	if !errors.Is(err, hookErr) {
		t.Fatalf("Start() error = %v, want wrapped %v", err, hookErr)
	}
	if !strings.Contains(err.Error(), "hook failing") {
		t.Errorf("error %q does not name the failing hook", err)
	}
	if !ran {
		t.Error("hooks after a failing one must still run")
	}
}

func TestManager_Shutdown_NotStarted(t *testing.T) {
	mgr, err := NewManager(testServerConfig("127.0.0.1:0"), Deps{
		Logger:     log.WithComponent("test"),
		APIHandler: http.NotFoundHandler(),
	})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	err = mgr.Shutdown(context.Background())
	if !errors.Is(err, ErrManagerNotStarted) {
		t.Errorf("Shutdown() error = %v, want %v", err, ErrManagerNotStarted)
	}
}

func TestManager_WithMetrics(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	addr := reserveListenAddr(t)
	metricsAddr := reserveListenAddr(t)

	deps := Deps{
		Logger:     log.WithComponent("test"),
		APIHandler: http.NotFoundHandler(),
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("# HELP test_metric\n"))
		}),
		MetricsAddr: metricsAddr,
	}

	mgr, err := NewManager(testServerConfig(addr), deps)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errChan := make(chan error, 1)
	go func() { errChan <- mgr.Start(ctx) }()

	if err := waitForListen(metricsAddr, 2*time.Second); err != nil {
		t.Fatalf("metrics server did not start: %v", err)
	}

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + metricsAddr + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if !strings.Contains(string(body), "test_metric") {
		t.Errorf("metrics body = %q", body)
	}

	cancel()
	select {
	case err := <-errChan:
		if err != nil {
			t.Errorf("Start() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after context cancellation")
	}
}

func TestManager_PropagatesListenErrors(t *testing.T) {
	testServer := httptest.NewServer(http.NotFoundHandler())
	defer testServer.Close()

	mgr, err := NewManager(testServerConfig(testServer.Listener.Addr().String()), Deps{
		Logger:     log.WithComponent("test"),
		APIHandler: http.NotFoundHandler(),
	})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err = mgr.Start(ctx)
	if err == nil {
		t.Fatal("Start() expected error for port conflict, got nil")
	}
	if !strings.Contains(err.Error(), "failed to start API server") {
		t.Errorf("Start() error = %v", err)
	}
}
