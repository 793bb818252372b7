package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/tazhibayda/expired-service/internal/repo"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestBus_ListenRetriesUntilDone(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)

	r := repo.NewRedis("127.0.0.1:1")
	defer r.Close()
	bus := r.Bus("expired:test")
	bus.Log = zap.New(core)
	bus.MinBackoff, bus.MaxBackoff = 10*time.Millisecond, 40*time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	start := time.Now()
	called := false
	if err := bus.Listen(ctx, func() { called = true }); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	if d := time.Since(start); d < 400*time.Millisecond {
		t.Fatalf("Listen gave up after %s, want it to run until ctx is done", d)
	}
	if called {
		t.Fatal("fn called without a subscription")
	}
	if n := logs.FilterMessage("invalidation subscribe failed").Len(); n < 3 {
		t.Fatalf("subscribe attempts logged = %d, want >= 3", n)
	}
}
