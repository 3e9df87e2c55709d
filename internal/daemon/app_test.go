// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/speedup/internal/config"
	"github.com/ManuGH/speedup/internal/housekeeping"
	"github.com/ManuGH/speedup/internal/log"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeManager struct {
	startErr error
	started  chan struct{}
	shutdown int
	mu       sync.Mutex
}

func newFakeManager() *fakeManager { return &fakeManager{started: make(chan struct{})} }

func (f *fakeManager) Start(ctx context.Context) error {
	close(f.started)
	if f.startErr != nil {
		return f.startErr
	}
	<-ctx.Done()
	return nil
}

func (f *fakeManager) Shutdown(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shutdown++
	return nil
}

func (f *fakeManager) RegisterShutdownHook(string, ShutdownHook) {}

type fakeJanitor struct {
	mu      sync.Mutex
	applied []housekeeping.Config
	ran     chan struct{}
}

func (f *fakeJanitor) Run(ctx context.Context) error {
	close(f.ran)
	<-ctx.Done()
	return nil
}

func (f *fakeJanitor) Apply(cfg housekeeping.Config) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied = append(f.applied, cfg)
}

func (f *fakeJanitor) last() (housekeeping.Config, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.applied) == 0 {
		return housekeeping.Config{}, false
	}
	return f.applied[len(f.applied)-1], true
}

func restoreGlobalLevel(t *testing.T) {
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })
}

func TestApp_Run_MissingManager(t *testing.T) {
	app := NewApp(log.WithComponent("test"), nil, nil, nil)
	assert.ErrorIs(t, app.Run(context.Background()), ErrMissingManager)
}

func TestApp_Run_StopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	mgr := newFakeManager()
	jan := &fakeJanitor{ran: make(chan struct{})}
	app := NewApp(log.WithComponent("test"), mgr, nil, jan)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	<-mgr.started
	<-jan.ran
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestApp_Run_ManagerFailureShutsDown(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	mgr := newFakeManager()
	mgr.startErr = errors.New("bind failed")
	app := NewApp(log.WithComponent("test"), mgr, nil, &fakeJanitor{ran: make(chan struct{})})

	err := app.Run(context.Background())
	require.ErrorIs(t, err, mgr.startErr)
	assert.Equal(t, 1, mgr.shutdown)
}

func TestApp_ReloadAppliesLevelAndHousekeeping(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	restoreGlobalLevel(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	write := func(body string) {
		require.NoError(t, os.WriteFile(path, []byte("dataDir: "+dir+"\n"+body), 0o600))
	}
	write("logLevel: info\n")

	loader := config.NewLoader(path, "test")
	initial, err := loader.Load()
	require.NoError(t, err)
	holder := config.NewConfigHolder(initial, loader)

	jan := &fakeJanitor{ran: make(chan struct{})}
	app := NewApp(log.WithComponent("test"), newFakeManager(), holder, jan)
	app.reloadSignal = nil

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()
	<-jan.ran

	write("logLevel: debug\nhousekeeping:\n  enabled: true\n  retention: 2h\n  interval: 15m\n")
	require.NoError(t, holder.Reload(ctx))

	require.Eventually(t, func() bool {
		cfg, ok := jan.last()
		return ok && cfg.Retention == 2*time.Hour && cfg.Interval == 15*time.Minute
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	cancel()
	require.NoError(t, <-done)
}

func TestApp_ApplyIgnoresInvalidLevel(t *testing.T) {
	restoreGlobalLevel(t)
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	jan := &fakeJanitor{ran: make(chan struct{})}
	app := NewApp(log.WithComponent("test"), newFakeManager(), nil, jan)
	app.apply(config.AppConfig{LogLevel: "chatty"})

	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
	_, ok := jan.last()
	assert.True(t, ok, "janitor settings are applied even when the level is rejected")
}

func TestJanitorConfig(t *testing.T) {
	cfg := config.AppConfig{Housekeeping: config.HousekeepingConfig{
		Enabled:   true,
		Retention: time.Hour,
		Interval:  10 * time.Minute,
	}}
	assert.Equal(t, housekeeping.Config{Retention: time.Hour, Interval: 10 * time.Minute}, JanitorConfig(cfg))

	cfg.Housekeeping.Enabled = false
	assert.Equal(t, housekeeping.Config{Retention: time.Hour}, JanitorConfig(cfg))
}
