// Cinifob - Movie Discovery and Watch Tracking
// Copyright 2026 hishamktd
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hishamktd/cinifob

package supervisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/hishamktd/cinifob/internal/logging"
)

// mockService runs until canceled, optionally failing its first runs. On
// stop it appends its name to stops, if set.
type mockService struct {
	name     string
	starts   atomic.Int32
	maxFails int32
	stops    *stopLog
	exitWith error
	after    *mockService
}

func (m *mockService) Serve(ctx context.Context) error {
	if n := m.starts.Add(1); n <= m.maxFails {
		return errors.New("simulated failure")
	}
	if m.exitWith != nil {
		for m.after != nil && m.after.starts.Load() == 0 {
			time.Sleep(time.Millisecond)
		}
		return m.exitWith
	}
	<-ctx.Done()
	if m.stops != nil {
		// Give a sibling layer a chance to stop concurrently, which the
		// tree must not allow.
		time.Sleep(10 * time.Millisecond)
		m.stops.add(m.name)
	}
	return ctx.Err()
}

func (m *mockService) String() string { return m.name }

type stopLog struct {
	mu    sync.Mutex
	names []string
}

func (l *stopLog) add(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.names = append(l.names, name)
}

func (l *stopLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.names...)
}

func testLogger() *slog.Logger {
	return slog.New(logging.NewSlogHandlerWithLogger(logging.NewTestLogger(io.Discard)))
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met within 2s")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func waitServe(t *testing.T, errCh <-chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("tree did not stop")
		return nil
	}
}

func TestNewTreeDefaults(t *testing.T) {
	t.Parallel()

	tree := NewTree(testLogger(), TreeConfig{})
	if tree.config != DefaultTreeConfig() {
		t.Errorf("config = %+v, want %+v", tree.config, DefaultTreeConfig())
	}

	custom := NewTree(testLogger(), TreeConfig{FailureThreshold: 2, ShutdownTimeout: time.Second})
	if custom.config.FailureThreshold != 2 || custom.config.ShutdownTimeout != time.Second || custom.config.FailureDecay != 30 {
		t.Errorf("custom config = %+v", custom.config)
	}
}

func TestLayerString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		layer Layer
		want  string
	}{
		{LayerData, "data-layer"},
		{LayerMessaging, "messaging-layer"},
		{LayerAPI, "api-layer"},
		{Layer(7), "layer(7)"},
	}
	for _, tt := range tests {
		if got := tt.layer.String(); got != tt.want {
			t.Errorf("Layer(%d).String() = %q, want %q", int(tt.layer), got, tt.want)
		}
	}
}

func TestAddUnknownLayerPanics(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Error("Add with an unknown layer did not panic")
		}
	}()
	NewTree(testLogger(), TreeConfig{}).Add(numLayers, &mockService{name: "lost"})
}

func TestLayersStartServices(t *testing.T) {
	t.Parallel()

	for _, layer := range []Layer{LayerData, LayerMessaging, LayerAPI} {
		t.Run(layer.String(), func(t *testing.T) {
			t.Parallel()
			tree := NewTree(testLogger(), TreeConfig{ShutdownTimeout: time.Second})
			svc := &mockService{name: layer.String() + "-service"}
			tree.Add(layer, svc)

			ctx, cancel := context.WithCancel(context.Background())
			errCh := tree.ServeBackground(ctx)
			waitFor(t, func() bool { return svc.starts.Load() >= 1 })
			cancel()

			if err := waitServe(t, errCh); !errors.Is(err, context.Canceled) {
				t.Errorf("Serve = %v, want context.Canceled", err)
			}
			if got := tree.Unstopped(); len(got) != 0 {
				t.Errorf("unstopped services: %v", got)
			}
		})
	}
}

func TestShutdownIsOrderedTopDown(t *testing.T) {
	t.Parallel()

	stops := &stopLog{}
	tree := NewTree(testLogger(), TreeConfig{ShutdownTimeout: time.Second})
	data := &mockService{name: "detail-store-gc", stops: stops}
	messaging := &mockService{name: "prefetch-pipeline", stops: stops}
	api := &mockService{name: "http-server", stops: stops}
	tree.Add(LayerData, data)
	tree.Add(LayerMessaging, messaging)
	tree.Add(LayerAPI, api)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)
	waitFor(t, func() bool {
		return data.starts.Load() == 1 && messaging.starts.Load() == 1 && api.starts.Load() == 1
	})
	cancel()
	waitServe(t, errCh)

	got := stops.snapshot()
	want := []string{"http-server", "prefetch-pipeline", "detail-store-gc"}
	if len(got) != len(want) {
		t.Fatalf("stop order = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("stop order = %v, want %v", got, want)
		}
	}
}

func TestFailingServiceIsRestartedWithinItsLayer(t *testing.T) {
	t.Parallel()

	tree := NewTree(testLogger(), TreeConfig{
		FailureThreshold: 10,
		FailureBackoff:   10 * time.Millisecond,
		ShutdownTimeout:  time.Second,
	})
	failing := &mockService{name: "failing", maxFails: 2}
	stable := &mockService{name: "stable"}
	tree.Add(LayerMessaging, failing)
	tree.Add(LayerAPI, stable)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	waitFor(t, func() bool { return failing.starts.Load() >= 3 })
	if stable.starts.Load() != 1 {
		t.Errorf("stable service started %d times, want 1", stable.starts.Load())
	}
	cancel()
	waitServe(t, errCh)
}

func TestTerminatingServiceStopsTree(t *testing.T) {
	t.Parallel()

	stops := &stopLog{}
	tree := NewTree(testLogger(), TreeConfig{ShutdownTimeout: time.Second})
	api := &mockService{name: "http-server", stops: stops}
	tree.Add(LayerAPI, api)
	tree.Add(LayerData, &mockService{name: "fatal", exitWith: suture.ErrTerminateSupervisorTree, after: api})

	err := waitServe(t, tree.ServeBackground(context.Background()))
	if err == nil {
		t.Fatal("Serve returned nil after a layer terminated")
	}
	if got := stops.snapshot(); len(got) != 1 || got[0] != "http-server" {
		t.Errorf("stops = %v, want the api layer stopped", got)
	}
}
