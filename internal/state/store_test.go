package state

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestMemoryStore_DefaultIdle(t *testing.T) {
	m := NewMemoryStore()
	s, err := m.Get(context.Background(), "unknown")
	if err != nil {
		t.Fatal(err)
	}
	if s != Idle {
		t.Errorf("expected Idle for unknown identity, got %s", s)
	}
}

func TestMemoryStore_SetGetClear(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	if err := m.Set(ctx, "100", AwaitingWithdrawAddress); err != nil {
		t.Fatal(err)
	}
	s, _ := m.Get(ctx, "100")
	if s != AwaitingWithdrawAddress {
		t.Errorf("expected AwaitingWithdrawAddress, got %s", s)
	}

	if err := m.Clear(ctx, "100"); err != nil {
		t.Fatal(err)
	}
	s, _ = m.Get(ctx, "100")
	if s != Idle {
		t.Errorf("expected Idle after clear, got %s", s)
	}
}

func TestMemoryStore_SetIdleEqualsClear(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	m.Set(ctx, "100", AwaitingPaymentQuery)
	m.Set(ctx, "100", Idle)
	s, _ := m.Get(ctx, "100")
	if s != Idle {
		t.Errorf("expected Idle, got %s", s)
	}
}

func TestMemoryStore_Concurrent(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := string(rune('a' + n%10))
			m.Set(ctx, id, AwaitingPaymentQuery)
			m.Get(ctx, id)
			m.Clear(ctx, id)
		}(i)
	}
	wg.Wait()
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	path := filepath.Join(t.TempDir(), "state.db")

	s, err := NewSQLiteStore(path, logger)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	got, err := s.Get(ctx, "100")
	if err != nil {
		t.Fatal(err)
	}
	if got != Idle {
		t.Errorf("expected Idle default, got %s", got)
	}

	if err := s.Set(ctx, "100", AwaitingWithdrawAddress); err != nil {
		t.Fatal(err)
	}
	got, _ = s.Get(ctx, "100")
	if got != AwaitingWithdrawAddress {
		t.Errorf("expected AwaitingWithdrawAddress, got %s", got)
	}

	// Overwrite takes the latest state.
	if err := s.Set(ctx, "100", AwaitingPaymentQuery); err != nil {
		t.Fatal(err)
	}
	got, _ = s.Get(ctx, "100")
	if got != AwaitingPaymentQuery {
		t.Errorf("expected AwaitingPaymentQuery, got %s", got)
	}

	if err := s.Clear(ctx, "100"); err != nil {
		t.Fatal(err)
	}
	got, _ = s.Get(ctx, "100")
	if got != Idle {
		t.Errorf("expected Idle after clear, got %s", got)
	}
}
