// Package browser provides the browser capability set the page-object layer
// drives: navigation, element presence, clicks, URL/title reads, bounded
// waits, screenshots and viewport control.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotActive is returned by a driver that has not been launched or was closed.
	ErrNotActive = errors.New("browser is not active")

	// ErrElementNotFound is returned when a locator matches no element.
	ErrElementNotFound = errors.New("element not found")

	// ErrNotInteractable is returned when a matched element cannot receive input.
	ErrNotInteractable = errors.New("element not interactable")

	// ErrWaitTimeout is returned by WaitUntil when the condition never held.
	ErrWaitTimeout = errors.New("condition not met before timeout")
)

// Driver is the capability set of one browser tab. Implementations are not
// safe for overlapping navigations; one session drives one linear sequence.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	// Present reports whether loc currently matches at least one element.
	// It never waits.
	Present(ctx context.Context, loc Locator) (bool, error)
	Click(ctx context.Context, loc Locator) error
	Fill(ctx context.Context, loc Locator, text string) error
	CurrentURL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
	Resize(ctx context.Context, width, height int) error
	Close() error
}

// Viewport is a window size in CSS pixels.
type Viewport struct {
	Width  int
	Height int
}

func (v Viewport) String() string { return fmt.Sprintf("%dx%d", v.Width, v.Height) }

// ElementError ties a browser-level failure to the locator that caused it.
type ElementError struct {
	Op      string
	Locator Locator
	Err     error
}

func (e *ElementError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Locator, e.Err)
}

func (e *ElementError) Unwrap() error { return e.Err }

// WaitUntil polls cond every interval until it returns true, returns an
// error, ctx is done, or timeout elapses. cond is always evaluated at least
// once.
func WaitUntil(ctx context.Context, timeout, interval time.Duration, cond func(context.Context) (bool, error)) error {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	deadline := time.Now().Add(timeout)

	for {
		ok, err := cond(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		if !time.Now().Before(deadline) {
			return ErrWaitTimeout
		}

		wait := interval
		if remaining := time.Until(deadline); remaining < wait {
			wait = remaining
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
