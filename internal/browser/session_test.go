package browser_test

import (
	"context"
	"testing"
	"time"

	"github.com/dsisson/welkin/internal/browser"
	"github.com/dsisson/welkin/internal/browser/browsertest"
	"github.com/rs/zerolog"
)

type launcher struct {
	drivers []*browsertest.Driver
}

func (l *launcher) launch(ctx context.Context) (browser.Driver, error) {
	d := browsertest.New(browsertest.Site{})
	l.drivers = append(l.drivers, d)
	return d, nil
}

func TestSessionManager_Acquire(t *testing.T) {
	l := &launcher{}
	sm := browser.NewSessionManager(l.launch, 2, 0, zerolog.Nop())

	s, err := sm.Acquire(context.Background(), "pythonorg")
	if err != nil {
		t.Fatalf("Acquire() = error %v; want nil", err)
	}
	if s.ID == "" {
		t.Error("session.ID is empty")
	}
	if s.Label != "pythonorg" {
		t.Errorf("session.Label = %q; want %q", s.Label, "pythonorg")
	}
	if s.Driver == nil {
		t.Error("session.Driver is nil")
	}
	if got, ok := sm.Get(s.ID); !ok || got != s {
		t.Errorf("Get(%q) = %v, %v; want the acquired session", s.ID, got, ok)
	}
	if sm.ActiveCount() != 1 {
		t.Errorf("ActiveCount() = %d; want 1", sm.ActiveCount())
	}
}

func TestSessionManager_CleanupLoop(t *testing.T) {
	l := &launcher{}
	sm := browser.NewSessionManager(l.launch, 2, 100*time.Millisecond, zerolog.Nop())

	idle, err := sm.Acquire(context.Background(), "idle")
	if err != nil {
		t.Fatal(err)
	}
	busy, err := sm.Acquire(context.Background(), "busy")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sm.StartCleanupLoop(ctx, 5*time.Millisecond)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		sm.Touch(busy.ID)
		if _, ok := sm.Get(idle.ID); !ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("idle session was never cleaned up")
		}
		time.Sleep(2 * time.Millisecond)
	}
	if _, ok := sm.Get(busy.ID); !ok {
		t.Error("touched session was cleaned up")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup loop did not stop")
	}
	if sm.ActiveCount() != 0 {
		t.Errorf("ActiveCount() after cancel = %d; want 0", sm.ActiveCount())
	}
}
