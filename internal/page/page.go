// Package page implements the page-object layer: a plain Page data
// structure (url, title, checks, links) plus the Navigator that verifies
// identity, awaits load/unload conditions and constructs the next Page.
package page

import (
	"fmt"
	"strings"
	"time"

	"github.com/dsisson/welkin/internal/browser"
)

// Mode selects the routing partition a page belongs to.
type Mode string

// Routing partitions.
const (
	NoAuth Mode = "noauth"
	Auth   Mode = "auth"
)

// ParseMode accepts "noauth" and "auth"; the empty string means NoAuth.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", NoAuth:
		return NoAuth, nil
	case Auth:
		return Auth, nil
	default:
		return "", fmt.Errorf("unknown auth mode %q (noauth, auth)", s)
	}
}

// State is a page object's position in its lifecycle.
type State int

// Lifecycle states. A page only moves forward.
const (
	Constructing State = iota
	Verified
	Active
	Superseded
)

func (s State) String() string {
	switch s {
	case Constructing:
		return "constructing"
	case Verified:
		return "verified"
	case Active:
		return "active"
	case Superseded:
		return "superseded"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Check is one DOM presence assertion: the element at By must be present
// (Present=true) or absent (Present=false).
type Check struct {
	Present bool
	By      browser.Locator
}

func (c Check) String() string {
	if c.Present {
		return "present " + c.By.String()
	}
	return "absent " + c.By.String()
}

// DiagnosticPolicy decides when a failed link click captures a screenshot.
type DiagnosticPolicy int

// Screenshot policies for navigation failures.
const (
	// ScreenshotAny captures on a primary or secondary failure.
	ScreenshotAny DiagnosticPolicy = iota
	// ScreenshotSecondary captures only when the secondary link of a
	// two-stage navigation fails.
	ScreenshotSecondary
	// ScreenshotNever disables capture.
	ScreenshotNever
)

// Link is a declared navigation from a page to a destination identifier.
// A nil Secondary is a one-stage link; otherwise Primary opens a panel and
// Secondary is clicked after PanelDelay.
type Link struct {
	Name        string
	Primary     browser.Locator
	Secondary   *browser.Locator
	PanelDelay  time.Duration
	Destination string
	Mode        Mode
	Diagnostics DiagnosticPolicy
	// Viewport is the window size the link's controls are rendered at, for
	// responsive menus that only exist on small screens. The browser is
	// resized for the clicks and restored before the destination settles.
	Viewport *browser.Viewport
}

// TwoStage reports whether the link needs a menu opened first.
func (l Link) TwoStage() bool { return l.Secondary != nil }

// Options are the per-instance inputs to a Factory.
type Options struct {
	// Name is the routing identifier the page is constructed for.
	Name string
	// Domain is the application's base URL, e.g. "https://www.python.org".
	Domain string
	// Path is appended to Domain to form the page URL.
	Path string
	// FirstLoad marks the boot page of a session.
	FirstLoad bool
}

// Factory constructs a page object for the given options.
type Factory func(Options) *Page

// Page is one conceptual page of an application under test.
type Page struct {
	Name           string
	URL            string
	Title          string
	IdentityChecks []IdentityCheck
	LoadChecks     []Check
	UnloadChecks   []Check
	// Links are keyed by Link.Name; TopLevel preserves declaration order of
	// the links reachable from the page's main navigation.
	Links    map[string]Link
	TopLevel []string

	state State
}

// Template is the static part of a page definition.
type Template struct {
	Title          string
	IdentityChecks []IdentityCheck
	LoadChecks     []Check
	UnloadChecks   []Check
	Links          []Link
	// TopLevel names the links walked by round-trip scenarios; nil means
	// every link in declaration order.
	TopLevel []string
	// SharedTitle marks a title used by every page of the site. It cannot
	// signal departure, so no title unload check is appended, not even on
	// pages constructed without FirstLoad. Such pages must declare their
	// own UnloadChecks (a heading, a form) or departures go unchecked.
	SharedTitle bool
}

// New builds a Page from opts and tmpl. The url is Domain+Path. Unless this
// is the session's first load, an absence check for the page's own <title>
// is appended to the unload checks; on first load the unload checks are nil
// because a blank browser cannot satisfy them.
func New(opts Options, tmpl Template) *Page {
	p := &Page{
		Name:           opts.Name,
		URL:            JoinURL(opts.Domain, opts.Path),
		Title:          tmpl.Title,
		IdentityChecks: tmpl.IdentityChecks,
		LoadChecks:     append([]Check(nil), tmpl.LoadChecks...),
		Links:          make(map[string]Link, len(tmpl.Links)),
		state:          Constructing,
	}
	if p.IdentityChecks == nil {
		p.IdentityChecks = []IdentityCheck{CheckURL(), CheckTitle()}
	}

	for _, l := range tmpl.Links {
		if l.Mode == "" {
			l.Mode = NoAuth
		}
		p.Links[l.Name] = l
		if tmpl.TopLevel == nil {
			p.TopLevel = append(p.TopLevel, l.Name)
		}
	}
	if tmpl.TopLevel != nil {
		p.TopLevel = append([]string(nil), tmpl.TopLevel...)
	}

	if !opts.FirstLoad {
		p.UnloadChecks = append([]Check(nil), tmpl.UnloadChecks...)
		if p.Title != "" && !tmpl.SharedTitle {
			p.UnloadChecks = append(p.UnloadChecks, Check{Present: false, By: browser.TitleLocator(p.Title)})
		}
	}
	return p
}

// State returns the page's lifecycle state.
func (p *Page) State() State { return p.state }

// Link returns the named link.
func (p *Page) Link(name string) (Link, bool) {
	l, ok := p.Links[name]
	return l, ok
}

// JoinURL concatenates a domain and a path with exactly one slash between them.
func JoinURL(domain, path string) string {
	if path == "" {
		return domain
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimRight(domain, "/") + "/" + strings.TrimLeft(path, "/")
}
