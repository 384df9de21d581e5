package page

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dsisson/welkin/internal/browser"
	"github.com/dsisson/welkin/internal/metrics"
	"github.com/rs/zerolog"
)

// Resolver turns a destination identifier into a Factory bound to that
// identifier's routing entry.
type Resolver interface {
	Resolve(id string, mode Mode) (Factory, error)
}

// NavigatorOptions configures a Navigator.
type NavigatorOptions struct {
	// Domain is handed to every Factory.
	Domain string
	// Timeout bounds each load or unload phase.
	Timeout time.Duration
	// Poll is the interval between presence checks.
	Poll time.Duration
	// Recorder stores diagnostic screenshots; nil disables them.
	Recorder *browser.Recorder
	// ScreenshotOnArrival captures every verified page, not just failures.
	ScreenshotOnArrival bool
	// Viewport is the session's normal window size, restored after links
	// that declare their own. Zero leaves the link's size in place.
	Viewport browser.Viewport
	Metrics  *metrics.Metrics
	Logger              zerolog.Logger
}

// Navigator drives one browser session through a forward-only chain of
// page objects. It is not safe for concurrent use.
type Navigator struct {
	driver   browser.Driver
	resolver Resolver
	opts     NavigatorOptions
	logger   zerolog.Logger
}

// NewNavigator creates a Navigator over driver and resolver.
func NewNavigator(driver browser.Driver, resolver Resolver, opts NavigatorOptions) *Navigator {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Poll <= 0 {
		opts.Poll = 250 * time.Millisecond
	}
	return &Navigator{
		driver:   driver,
		resolver: resolver,
		opts:     opts,
		logger:   opts.Logger,
	}
}

// Driver exposes the underlying browser for page-specific actions.
func (n *Navigator) Driver() browser.Driver { return n.driver }

// Start boots a session on the page named id: the page is constructed with
// FirstLoad set, explicitly loaded and verified.
func (n *Navigator) Start(ctx context.Context, id string, mode Mode) (*Page, error) {
	p, err := n.construct(id, mode, true)
	if err != nil {
		return nil, err
	}
	if err := n.Load(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Load navigates the browser to p.URL, awaits p's load checks and verifies
// identity. p becomes Active.
func (n *Navigator) Load(ctx context.Context, p *Page) error {
	if p.state == Superseded {
		return fmt.Errorf("load %q: %w", p.Name, ErrSuperseded)
	}
	start := time.Now()
	n.count(func(m *metrics.Metrics) { m.NavigationsStarted.Add(1) })

	n.logger.Debug().Str("page", p.Name).Str("url", p.URL).Msg("loading page")
	if err := n.driver.Navigate(ctx, p.URL); err != nil {
		n.count(func(m *metrics.Metrics) { m.NavigationsFailed.Add(1) })
		return fmt.Errorf("load %q: %w", p.Name, err)
	}
	return n.settle(ctx, nil, p, start)
}

// Goto is the explicit loader: it navigates straight to the page named id
// without clicking, then verifies it. from may be nil.
func (n *Navigator) Goto(ctx context.Context, from *Page, id string, mode Mode) (*Page, error) {
	if err := n.ready(from); err != nil {
		return nil, err
	}
	start := time.Now()
	n.count(func(m *metrics.Metrics) { m.NavigationsStarted.Add(1) })

	p, err := n.construct(id, mode, false)
	if err != nil {
		n.count(func(m *metrics.Metrics) { m.NavigationsFailed.Add(1) })
		return nil, err
	}
	if err := n.driver.Navigate(ctx, p.URL); err != nil {
		n.count(func(m *metrics.Metrics) { m.NavigationsFailed.Add(1) })
		return nil, fmt.Errorf("goto %q: %w", id, err)
	}
	if err := n.settle(ctx, from, p, start); err != nil {
		return nil, err
	}
	return p, nil
}

// Follow clicks the named link of from (opening its menu first for
// two-stage links) and returns the verified destination page. Element
// failures are not retried.
func (n *Navigator) Follow(ctx context.Context, from *Page, linkName string) (*Page, error) {
	if from == nil {
		return nil, fmt.Errorf("follow %q: no current page", linkName)
	}
	if err := n.ready(from); err != nil {
		return nil, err
	}
	link, ok := from.Link(linkName)
	if !ok {
		return nil, fmt.Errorf("follow %q from %q: %w", linkName, from.Name, ErrUnknownLink)
	}

	start := time.Now()
	n.count(func(m *metrics.Metrics) { m.NavigationsStarted.Add(1) })
	n.logger.Debug().
		Str("page", from.Name).
		Str("link", link.Name).
		Bool("two_stage", link.TwoStage()).
		Str("destination", link.Destination).
		Msg("following link")

	restore, err := n.resize(ctx, link.Viewport)
	if err != nil {
		n.count(func(m *metrics.Metrics) { m.NavigationsFailed.Add(1) })
		return nil, fmt.Errorf("follow %q from %q: %w", linkName, from.Name, err)
	}
	err = n.click(ctx, from, link)
	restore()
	if err != nil {
		return nil, err
	}

	p, err := n.construct(link.Destination, link.Mode, false)
	if err != nil {
		n.count(func(m *metrics.Metrics) { m.NavigationsFailed.Add(1) })
		return nil, err
	}
	if err := n.settle(ctx, from, p, start); err != nil {
		return nil, err
	}
	return p, nil
}

// click performs the one or two clicks of link.
func (n *Navigator) click(ctx context.Context, from *Page, link Link) error {
	if err := n.driver.Click(ctx, link.Primary); err != nil {
		return n.linkFailure(ctx, from, link, StagePrimary, err)
	}
	if !link.TwoStage() {
		return nil
	}
	if link.PanelDelay > 0 {
		select {
		case <-ctx.Done():
			n.count(func(m *metrics.Metrics) { m.NavigationsFailed.Add(1) })
			return ctx.Err()
		case <-time.After(link.PanelDelay):
		}
	}
	if err := n.driver.Click(ctx, *link.Secondary); err != nil {
		return n.linkFailure(ctx, from, link, StageSecondary, err)
	}
	return nil
}

// resize switches to v, when set, and returns the func that switches back.
func (n *Navigator) resize(ctx context.Context, v *browser.Viewport) (func(), error) {
	if v == nil {
		return func() {}, nil
	}
	n.logger.Debug().Str("viewport", v.String()).Msg("resizing for link")
	if err := n.driver.Resize(ctx, v.Width, v.Height); err != nil {
		return nil, err
	}
	return func() {
		normal := n.opts.Viewport
		if normal.Width <= 0 || normal.Height <= 0 {
			return
		}
		if err := n.driver.Resize(context.WithoutCancel(ctx), normal.Width, normal.Height); err != nil {
			n.logger.Warn().Err(err).Str("viewport", normal.String()).Msg("failed to restore viewport")
		}
	}, nil
}

// Arrive completes a transition that a page-specific action (a form
// submission, a keyboard shortcut) already triggered in the browser.
func (n *Navigator) Arrive(ctx context.Context, from *Page, id string, mode Mode) (*Page, error) {
	if err := n.ready(from); err != nil {
		return nil, err
	}
	start := time.Now()
	n.count(func(m *metrics.Metrics) { m.NavigationsStarted.Add(1) })

	p, err := n.construct(id, mode, false)
	if err != nil {
		n.count(func(m *metrics.Metrics) { m.NavigationsFailed.Add(1) })
		return nil, err
	}
	if err := n.settle(ctx, from, p, start); err != nil {
		return nil, err
	}
	return p, nil
}

// Fill types text into the element at loc on the active page p.
func (n *Navigator) Fill(ctx context.Context, p *Page, loc browser.Locator, text string) error {
	if err := n.ready(p); err != nil {
		return err
	}
	if err := n.driver.Fill(ctx, loc, text); err != nil {
		n.count(func(m *metrics.Metrics) { m.ElementFailures.Add(1) })
		return fmt.Errorf("fill on %q: %w", p.Name, err)
	}
	return nil
}

// Click clicks loc on the active page p without any routing; callers
// follow it with Arrive when the click changes page.
func (n *Navigator) Click(ctx context.Context, p *Page, loc browser.Locator) error {
	if err := n.ready(p); err != nil {
		return err
	}
	if err := n.driver.Click(ctx, loc); err != nil {
		n.count(func(m *metrics.Metrics) { m.ElementFailures.Add(1) })
		return fmt.Errorf("click on %q: %w", p.Name, err)
	}
	return nil
}

// ready rejects pages that have already been superseded. nil is allowed.
func (n *Navigator) ready(p *Page) error {
	if p != nil && p.state == Superseded {
		return fmt.Errorf("page %q: %w", p.Name, ErrSuperseded)
	}
	return nil
}

func (n *Navigator) construct(id string, mode Mode, first bool) (*Page, error) {
	factory, err := n.resolver.Resolve(id, mode)
	if err != nil {
		n.count(func(m *metrics.Metrics) { m.UnresolvedDestinations.Add(1) })
		return nil, err
	}
	p := factory(Options{Name: id, Domain: n.opts.Domain, FirstLoad: first})
	if p == nil {
		return nil, fmt.Errorf("factory for %q returned no page", id)
	}
	if p.Name == "" {
		p.Name = id
	}
	p.state = Constructing
	return p, nil
}

// settle awaits the departure of from (unless it is being reloaded) and the
// arrival of p, verifies p and hands over.
func (n *Navigator) settle(ctx context.Context, from, p *Page, start time.Time) error {
	if from != nil && from.Name != p.Name {
		if err := n.await(ctx, from.Name, PhaseUnload, from.UnloadChecks); err != nil {
			n.count(func(m *metrics.Metrics) { m.NavigationsFailed.Add(1) })
			return err
		}
	}
	if err := n.await(ctx, p.Name, PhaseLoad, p.LoadChecks); err != nil {
		n.count(func(m *metrics.Metrics) { m.NavigationsFailed.Add(1) })
		return err
	}
	if err := n.verify(ctx, p); err != nil {
		n.count(func(m *metrics.Metrics) { m.NavigationsFailed.Add(1) })
		return err
	}

	if from != nil {
		from.state = Superseded
	}
	p.state = Active

	elapsed := time.Since(start)
	n.count(func(m *metrics.Metrics) {
		m.NavigationsCompleted.Add(1)
		m.RecordLatency(elapsed)
	})
	n.logger.Info().Str("page", p.Name).Dur("elapsed", elapsed).Msg("page verified")

	if n.opts.ScreenshotOnArrival {
		n.capture(ctx, p.Name)
	}
	return nil
}

// verify runs p's identity checks in order. A mismatch is fatal to the step.
func (n *Navigator) verify(ctx context.Context, p *Page) error {
	for _, check := range p.IdentityChecks {
		if err := check.Verify(ctx, n.driver, p); err != nil {
			var mismatch *IdentityMismatchError
			if errors.As(err, &mismatch) {
				n.count(func(m *metrics.Metrics) { m.IdentityMismatches.Add(1) })
				return err
			}
			return fmt.Errorf("identity check %s on %q: %w", check.Name, p.Name, err)
		}
	}
	p.state = Verified
	return nil
}

// await polls every check until it holds, sharing one deadline per phase.
func (n *Navigator) await(ctx context.Context, pageName string, phase Phase, checks []Check) error {
	deadline := time.Now().Add(n.opts.Timeout)
	for _, c := range checks {
		c := c
		err := browser.WaitUntil(ctx, time.Until(deadline), n.opts.Poll, func(ctx context.Context) (bool, error) {
			ok, err := n.driver.Present(ctx, c.By)
			if err != nil {
				return false, err
			}
			return ok == c.Present, nil
		})
		if err == nil {
			continue
		}
		if errors.Is(err, browser.ErrWaitTimeout) {
			n.count(func(m *metrics.Metrics) {
				if phase == PhaseUnload {
					m.UnloadTimeouts.Add(1)
				} else {
					m.LoadTimeouts.Add(1)
				}
			})
			n.logger.Warn().Str("page", pageName).Str("phase", string(phase)).Str("check", c.String()).Msg("wait timed out")
			return &TimeoutError{Page: pageName, Phase: phase, Check: c, Err: err}
		}
		return fmt.Errorf("%s check on %q: %w", phase, pageName, err)
	}
	return nil
}

// linkFailure wraps a click failure, capturing a screenshot when the
// link's diagnostic policy asks for one.
func (n *Navigator) linkFailure(ctx context.Context, from *Page, link Link, stage Stage, err error) error {
	n.count(func(m *metrics.Metrics) {
		m.ElementFailures.Add(1)
		m.NavigationsFailed.Add(1)
	})

	navErr := &NavigationError{Page: from.Name, Link: link.Name, Stage: stage, Err: err}
	capture := link.Diagnostics == ScreenshotAny ||
		(link.Diagnostics == ScreenshotSecondary && stage == StageSecondary)
	if capture {
		navErr.Screenshot = n.capture(ctx, from.Name+"-"+link.Name+"-"+string(stage))
	}

	n.logger.Error().Err(err).
		Str("page", from.Name).
		Str("link", link.Name).
		Str("stage", string(stage)).
		Str("screenshot", navErr.Screenshot).
		Msg("navigation failed")
	return navErr
}

// capture takes a best-effort screenshot; failures are only logged.
func (n *Navigator) capture(ctx context.Context, label string) string {
	if n.opts.Recorder == nil {
		return ""
	}
	path, err := n.opts.Recorder.Capture(ctx, n.driver, label)
	if err != nil {
		n.logger.Warn().Err(err).Str("label", label).Msg("screenshot failed")
		return ""
	}
	if path != "" {
		n.count(func(m *metrics.Metrics) { m.Screenshots.Add(1) })
	}
	return path
}

func (n *Navigator) count(f func(m *metrics.Metrics)) {
	if n.opts.Metrics != nil {
		f(n.opts.Metrics)
	}
}
