package page

import (
	"errors"
	"fmt"
)

var (
	// ErrSuperseded is returned when navigating from a page that already
	// handed over to its successor.
	ErrSuperseded = errors.New("page object superseded")

	// ErrUnknownLink is returned when a page declares no link of that name.
	ErrUnknownLink = errors.New("unknown link")
)

// IdentityMismatchError reports that the browser is not where a freshly
// constructed page object claims to be. It is never retried.
type IdentityMismatchError struct {
	Page  string
	Check string
	Want  string
	Got   string
}

func (e *IdentityMismatchError) Error() string {
	return fmt.Sprintf("identity mismatch on %q: %s check wants %q, browser has %q", e.Page, e.Check, e.Want, e.Got)
}

// Phase names the wait that timed out.
type Phase string

// Wait phases.
const (
	PhaseLoad   Phase = "load"
	PhaseUnload Phase = "unload"
)

// TimeoutError reports that a load or unload check never held within the
// navigator's bound.
type TimeoutError struct {
	Page  string
	Phase Phase
	Check Check
	Err   error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("page %q did not %s in time: %s", e.Page, e.Phase, e.Check)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// Stage names the click of a link that failed.
type Stage string

// Link stages.
const (
	StagePrimary   Stage = "primary"
	StageSecondary Stage = "secondary"
)

// NavigationError wraps a browser-level element failure raised while
// following a link. Screenshot is the diagnostic capture path, if any.
type NavigationError struct {
	Page       string
	Link       string
	Stage      Stage
	Screenshot string
	Err        error
}

func (e *NavigationError) Error() string {
	msg := fmt.Sprintf("navigation from %q via %q failed at %s link: %v", e.Page, e.Link, e.Stage, e.Err)
	if e.Screenshot != "" {
		msg += " (screenshot: " + e.Screenshot + ")"
	}
	return msg
}

func (e *NavigationError) Unwrap() error { return e.Err }
