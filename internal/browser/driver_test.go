package browser

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestWaitUntil_ImmediateSuccess(t *testing.T) {
	var calls int
	err := WaitUntil(context.Background(), time.Second, 10*time.Millisecond, func(context.Context) (bool, error) {
		calls++
		return true, nil
	})
	if err != nil {
		t.Fatalf("WaitUntil() = %v, want nil", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestWaitUntil_EventualSuccess(t *testing.T) {
	var calls int
	err := WaitUntil(context.Background(), time.Second, time.Millisecond, func(context.Context) (bool, error) {
		calls++
		return calls >= 3, nil
	})
	if err != nil {
		t.Fatalf("WaitUntil() = %v, want nil", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestWaitUntil_Timeout(t *testing.T) {
	err := WaitUntil(context.Background(), 20*time.Millisecond, 5*time.Millisecond, func(context.Context) (bool, error) {
		return false, nil
	})
	if !errors.Is(err, ErrWaitTimeout) {
		t.Fatalf("WaitUntil() = %v, want ErrWaitTimeout", err)
	}
}

func TestWaitUntil_ZeroTimeoutEvaluatesOnce(t *testing.T) {
	var calls int
	err := WaitUntil(context.Background(), 0, time.Millisecond, func(context.Context) (bool, error) {
		calls++
		return false, nil
	})
	if !errors.Is(err, ErrWaitTimeout) {
		t.Fatalf("WaitUntil() = %v, want ErrWaitTimeout", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestWaitUntil_ConditionError(t *testing.T) {
	boom := errors.New("boom")
	err := WaitUntil(context.Background(), time.Second, time.Millisecond, func(context.Context) (bool, error) {
		return false, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WaitUntil() = %v, want boom", err)
	}
}

func TestWaitUntil_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := WaitUntil(ctx, time.Second, 50*time.Millisecond, func(context.Context) (bool, error) {
		return false, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("WaitUntil() = %v, want context.Canceled", err)
	}
}

func TestElementError_Unwrap(t *testing.T) {
	err := error(&ElementError{Op: "click", Locator: LinkText("About"), Err: ErrElementNotFound})
	if !errors.Is(err, ErrElementNotFound) {
		t.Error("errors.Is(ElementError, ErrElementNotFound) = false")
	}
	if !strings.Contains(err.Error(), "link text=About") {
		t.Errorf("Error() = %q, want locator in message", err.Error())
	}
}

// --- ChromeDriver before launch ---

func TestChromeDriver_Defaults(t *testing.T) {
	cd := NewChromeDriver(ChromeOptions{}, zerolog.Nop())
	if cd.opts.ViewportW != 1280 || cd.opts.ViewportH != 720 {
		t.Errorf("viewport = %dx%d; want 1280x720", cd.opts.ViewportW, cd.opts.ViewportH)
	}
	if cd.opts.ActionTimeout != 5*time.Second {
		t.Errorf("ActionTimeout = %v; want 5s", cd.opts.ActionTimeout)
	}
	if cd.IsActive() {
		t.Error("IsActive() = true before Launch; want false")
	}
}

func TestChromeDriver_BeforeLaunch(t *testing.T) {
	cd := NewChromeDriver(ChromeOptions{}, zerolog.Nop())
	ctx := context.Background()

	if err := cd.Navigate(ctx, "https://example.com"); !errors.Is(err, ErrNotActive) {
		t.Errorf("Navigate() = %v; want ErrNotActive", err)
	}
	if _, err := cd.Present(ctx, CSS("a")); !errors.Is(err, ErrNotActive) {
		t.Errorf("Present() = %v; want ErrNotActive", err)
	}
	if err := cd.Click(ctx, CSS("a")); !errors.Is(err, ErrNotActive) {
		t.Errorf("Click() = %v; want ErrNotActive", err)
	}
	if _, err := cd.Title(ctx); !errors.Is(err, ErrNotActive) {
		t.Errorf("Title() = %v; want ErrNotActive", err)
	}
	if _, err := cd.Screenshot(ctx); !errors.Is(err, ErrNotActive) {
		t.Errorf("Screenshot() = %v; want ErrNotActive", err)
	}
	if err := cd.Close(); err != nil {
		t.Errorf("Close() before Launch = %v; want nil", err)
	}
}

func TestPlaywrightDriver_BeforeLaunch(t *testing.T) {
	pd := NewPlaywrightDriver(PlaywrightOptions{}, zerolog.Nop())
	ctx := context.Background()

	if err := pd.Navigate(ctx, "https://example.com"); !errors.Is(err, ErrNotActive) {
		t.Errorf("Navigate() = %v; want ErrNotActive", err)
	}
	if _, err := pd.CurrentURL(ctx); !errors.Is(err, ErrNotActive) {
		t.Errorf("CurrentURL() = %v; want ErrNotActive", err)
	}
	if err := pd.Resize(ctx, 800, 600); !errors.Is(err, ErrNotActive) {
		t.Errorf("Resize() = %v; want ErrNotActive", err)
	}
	if err := pd.Close(); err != nil {
		t.Errorf("Close() before Launch = %v; want nil", err)
	}
}

func TestLaunch_UnknownBackend(t *testing.T) {
	_, err := Launch(context.Background(), LaunchOptions{Backend: "selenium"}, zerolog.Nop())
	if err == nil || !strings.Contains(err.Error(), "unknown browser backend") {
		t.Fatalf("Launch() = %v; want unknown backend error", err)
	}
}

// --- Recorder ---

type pngDriver struct {
	Driver
	data []byte
}

func (p pngDriver) Screenshot(context.Context) ([]byte, error) { return p.data, nil }

func TestRecorder_Capture(t *testing.T) {
	dir := t.TempDir()
	r := NewRecorder(dir, zerolog.Nop())
	r.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	path, err := r.Capture(context.Background(), pngDriver{data: []byte("png")}, "Python About / Apps")
	if err != nil {
		t.Fatalf("Capture() error: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Errorf("path dir = %s; want %s", filepath.Dir(path), dir)
	}
	if base := filepath.Base(path); base != "python-about-apps-20260102T030405.000.png" {
		t.Errorf("file name = %s", base)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "png" {
		t.Errorf("file content = %q, %v", data, err)
	}
}

func TestRecorder_Disabled(t *testing.T) {
	var r *Recorder
	path, err := r.Capture(context.Background(), pngDriver{}, "x")
	if err != nil || path != "" {
		t.Errorf("nil Recorder Capture() = %q, %v; want empty, nil", path, err)
	}
}

// --- SessionManager ---

type closeCounter struct {
	Driver
	closed *atomic.Int32
}

func (c closeCounter) Close() error {
	c.closed.Add(1)
	return nil
}

func TestSessionManager_AcquireRelease(t *testing.T) {
	var closed atomic.Int32
	sm := NewSessionManager(func(context.Context) (Driver, error) {
		return closeCounter{closed: &closed}, nil
	}, 2, time.Minute, zerolog.Nop())

	ctx := context.Background()
	a, err := sm.Acquire(ctx, "a")
	if err != nil {
		t.Fatalf("Acquire(a) error: %v", err)
	}
	b, err := sm.Acquire(ctx, "b")
	if err != nil {
		t.Fatalf("Acquire(b) error: %v", err)
	}
	if a.ID == b.ID {
		t.Error("sessions share an id")
	}

	if _, err := sm.Acquire(ctx, "c"); !errors.Is(err, ErrSessionLimit) {
		t.Errorf("Acquire(c) = %v; want ErrSessionLimit", err)
	}

	if err := sm.Release(a.ID); err != nil {
		t.Fatalf("Release() error: %v", err)
	}
	if closed.Load() != 1 {
		t.Errorf("closed = %d; want 1", closed.Load())
	}
	if _, ok := sm.Get(a.ID); ok {
		t.Error("released session still registered")
	}
	if err := sm.Release(a.ID); err == nil {
		t.Error("second Release() returned nil")
	}

	sm.CloseAll()
	if sm.ActiveCount() != 0 {
		t.Errorf("ActiveCount() = %d after CloseAll; want 0", sm.ActiveCount())
	}
	if closed.Load() != 2 {
		t.Errorf("closed = %d; want 2", closed.Load())
	}
	if _, err := sm.Acquire(ctx, "d"); !errors.Is(err, ErrManagerClosed) {
		t.Errorf("Acquire after CloseAll = %v; want ErrManagerClosed", err)
	}
}

func TestSessionManager_LaunchFailure(t *testing.T) {
	sm := NewSessionManager(func(context.Context) (Driver, error) {
		return nil, errors.New("no chrome")
	}, 1, time.Minute, zerolog.Nop())

	if _, err := sm.Acquire(context.Background(), "x"); err == nil || !strings.Contains(err.Error(), "no chrome") {
		t.Fatalf("Acquire() = %v; want launch error", err)
	}
	// The reserved slot must be returned after a failed launch.
	sm.launch = func(context.Context) (Driver, error) { return closeCounter{closed: new(atomic.Int32)}, nil }
	if _, err := sm.Acquire(context.Background(), "y"); err != nil {
		t.Fatalf("Acquire() after failure = %v; want nil", err)
	}
}

func TestSessionManager_CleanupIdle(t *testing.T) {
	var closed atomic.Int32
	sm := NewSessionManager(func(context.Context) (Driver, error) {
		return closeCounter{closed: &closed}, nil
	}, 2, time.Minute, zerolog.Nop())

	s, err := sm.Acquire(context.Background(), "idle")
	if err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}

	sm.cleanupIdle(s.LastActiveAt.Add(30 * time.Second))
	if sm.ActiveCount() != 1 {
		t.Fatalf("session closed before idle timeout")
	}

	sm.cleanupIdle(s.LastActiveAt.Add(2 * time.Minute))
	if sm.ActiveCount() != 0 {
		t.Errorf("ActiveCount() = %d; want 0", sm.ActiveCount())
	}
	if closed.Load() != 1 {
		t.Errorf("closed = %d; want 1", closed.Load())
	}
}
