package session

import (
	"testing"
	"time"
)

func TestNewJanitorRejectsBadCron(t *testing.T) {
	t.Parallel()
	store := NewInMemoryStore(10)
	if _, err := NewJanitor(store, "not a cron spec", time.Hour); err == nil {
		t.Fatalf("expected error for invalid cron expression")
	}
}

func TestJanitorStartStop(t *testing.T) {
	t.Parallel()
	store := NewInMemoryStore(10)
	j, err := NewJanitor(store, "0 0 1 1 *", time.Hour)
	if err != nil {
		t.Fatalf("NewJanitor: %v", err)
	}
	j.Start()

	done := make(chan struct{})
	go func() {
		j.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Stop did not return")
	}
}
