package server

import (
	"context"
	"testing"
	"time"

	"github.com/CMBAgents/synapses/pkg/config"
	"github.com/CMBAgents/synapses/pkg/gateway"
)

func testServer() *Server {
	cfg := config.ServerConfig{
		ListenAddress:   "127.0.0.1:0",
		ShutdownTimeout: time.Second,
	}
	gw := gateway.New(nil, nil, nil, nil, nil, nil, nil, 0)
	return New(cfg, gw, nil)
}

func TestStartStopViaContext(t *testing.T) {
	s := testServer()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	// Give the listener a moment to come up, then cancel.
	time.Sleep(50 * time.Millisecond)
	if !s.IsRunning() {
		t.Fatal("server should be running after Start")
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
	if s.IsRunning() {
		t.Error("server still marked running after shutdown")
	}
}

func TestStop(t *testing.T) {
	s := testServer()

	done := make(chan error, 1)
	go func() { done <- s.Start(context.Background()) }()

	time.Sleep(50 * time.Millisecond)
	s.Stop()
	s.Stop() // idempotent

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestDoubleStartRejected(t *testing.T) {
	s := testServer()

	go s.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	defer s.Stop()

	if err := s.Start(context.Background()); err == nil {
		t.Error("second Start should fail while running")
	}
}
