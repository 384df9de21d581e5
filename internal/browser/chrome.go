package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"
)

// compile-time interface check
var _ Driver = (*ChromeDriver)(nil)

// ChromeOptions configures a ChromeDriver.
type ChromeOptions struct {
	ViewportW int
	ViewportH int
	Headless  bool
	// RemoteURL attaches to an already running browser's DevTools websocket
	// instead of spawning a local Chrome process.
	RemoteURL string
	// ActionTimeout bounds a single click or fill once the element is present.
	ActionTimeout time.Duration
}

// ChromeDriver drives a single Chrome tab over the DevTools protocol.
type ChromeDriver struct {
	opts   ChromeOptions
	logger zerolog.Logger

	// allocCtx and allocCancel control the browser process lifecycle.
	allocCtx    context.Context
	allocCancel context.CancelFunc

	// taskCtx and taskCancel control the browser tab/target lifecycle.
	taskCtx    context.Context
	taskCancel context.CancelFunc

	active bool
	mu     sync.Mutex
}

// NewChromeDriver creates a ChromeDriver. Launch must be called before use.
func NewChromeDriver(opts ChromeOptions, logger zerolog.Logger) *ChromeDriver {
	if opts.ViewportW <= 0 {
		opts.ViewportW = 1280
	}
	if opts.ViewportH <= 0 {
		opts.ViewportH = 720
	}
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = 5 * time.Second
	}
	return &ChromeDriver{
		opts:   opts,
		logger: logger.With().Str("driver", "chromedp").Logger(),
	}
}

// Launch starts (or attaches to) a Chrome instance and opens a blank tab.
func (cd *ChromeDriver) Launch(ctx context.Context) error {
	cd.mu.Lock()
	defer cd.mu.Unlock()

	if cd.active {
		return fmt.Errorf("browser is already launched")
	}

	if cd.opts.RemoteURL != "" {
		cd.allocCtx, cd.allocCancel = chromedp.NewRemoteAllocator(ctx, cd.opts.RemoteURL)
	} else {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.WindowSize(cd.opts.ViewportW, cd.opts.ViewportH),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-first-run", true),
			chromedp.Flag("no-default-browser-check", true),
			chromedp.Flag("disable-extensions", true),
		)
		if cd.opts.Headless {
			opts = append(opts, chromedp.Headless)
		} else {
			// Remove the default headless flag for headed mode.
			opts = append(opts, chromedp.Flag("headless", false))
		}
		cd.allocCtx, cd.allocCancel = chromedp.NewExecAllocator(ctx, opts...)
	}

	cd.taskCtx, cd.taskCancel = chromedp.NewContext(cd.allocCtx)

	// The first Run on the tab context allocates the browser.
	if err := chromedp.Run(cd.taskCtx, chromedp.Navigate("about:blank")); err != nil {
		cd.taskCancel()
		cd.allocCancel()
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	if err := chromedp.Run(cd.taskCtx, chromedp.EmulateViewport(int64(cd.opts.ViewportW), int64(cd.opts.ViewportH))); err != nil {
		cd.logger.Warn().Err(err).Msg("failed to set viewport")
	}

	cd.active = true
	cd.logger.Info().
		Int("viewport_w", cd.opts.ViewportW).
		Int("viewport_h", cd.opts.ViewportH).
		Bool("headless", cd.opts.Headless).
		Bool("remote", cd.opts.RemoteURL != "").
		Msg("browser launched")
	return nil
}

// Close terminates the tab and the browser process.
func (cd *ChromeDriver) Close() error {
	cd.mu.Lock()
	defer cd.mu.Unlock()

	if !cd.active {
		return nil
	}
	cd.active = false

	// Cancel contexts in reverse order.
	if cd.taskCancel != nil {
		cd.taskCancel()
	}
	if cd.allocCancel != nil {
		cd.allocCancel()
	}

	cd.logger.Info().Msg("browser closed")
	return nil
}

// IsActive returns whether the browser is currently running.
func (cd *ChromeDriver) IsActive() bool {
	cd.mu.Lock()
	defer cd.mu.Unlock()
	return cd.active
}

// run executes actions on the tab while honoring cancellation of the
// caller's ctx. The caller must hold cd.mu.
func (cd *ChromeDriver) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if !cd.active {
		return ErrNotActive
	}

	runCtx, cancel := context.WithCancel(cd.taskCtx)
	defer cancel()
	if timeout > 0 {
		var tcancel context.CancelFunc
		runCtx, tcancel = context.WithTimeout(runCtx, timeout)
		defer tcancel()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

// Navigate loads url in the tab and waits for the load event.
func (cd *ChromeDriver) Navigate(ctx context.Context, url string) error {
	cd.mu.Lock()
	defer cd.mu.Unlock()

	if err := cd.run(ctx, 0, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

// Present counts matching nodes without waiting for any to appear.
func (cd *ChromeDriver) Present(ctx context.Context, loc Locator) (bool, error) {
	cd.mu.Lock()
	defer cd.mu.Unlock()
	return cd.present(ctx, loc)
}

func (cd *ChromeDriver) present(ctx context.Context, loc Locator) (bool, error) {
	sel, by, err := chromeQuery(loc)
	if err != nil {
		return false, err
	}

	var nodes []*cdp.Node
	if err := cd.run(ctx, 0, chromedp.Nodes(sel, &nodes, by, chromedp.AtLeast(0))); err != nil {
		return false, fmt.Errorf("failed to query %s: %w", loc, err)
	}
	return len(nodes) > 0, nil
}

// Click clicks the first element matching loc once it is visible.
func (cd *ChromeDriver) Click(ctx context.Context, loc Locator) error {
	cd.mu.Lock()
	defer cd.mu.Unlock()

	sel, by, err := cd.interactable(ctx, "click", loc)
	if err != nil {
		return err
	}
	if err := cd.run(ctx, cd.opts.ActionTimeout, chromedp.Click(sel, by, chromedp.NodeVisible)); err != nil {
		return cd.actionError("click", loc, err)
	}
	return nil
}

// Fill replaces the value of the input matching loc with text.
func (cd *ChromeDriver) Fill(ctx context.Context, loc Locator, text string) error {
	cd.mu.Lock()
	defer cd.mu.Unlock()

	sel, by, err := cd.interactable(ctx, "fill", loc)
	if err != nil {
		return err
	}
	err = cd.run(ctx, cd.opts.ActionTimeout,
		chromedp.Clear(sel, by, chromedp.NodeVisible),
		chromedp.SendKeys(sel, text, by, chromedp.NodeVisible),
	)
	if err != nil {
		return cd.actionError("fill", loc, err)
	}
	return nil
}

// interactable resolves loc to its first match and fails fast with
// ErrElementNotFound when it matches nothing, so that a missing element is
// not reported as a timeout.
func (cd *ChromeDriver) interactable(ctx context.Context, op string, loc Locator) (string, chromedp.QueryOption, error) {
	sel, by, err := chromeActionQuery(loc)
	if err != nil {
		return "", nil, err
	}
	ok, err := cd.present(ctx, loc)
	if err != nil {
		return "", nil, err
	}
	if !ok {
		return "", nil, &ElementError{Op: op, Locator: loc, Err: ErrElementNotFound}
	}
	return sel, by, nil
}

func (cd *ChromeDriver) actionError(op string, loc Locator, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &ElementError{Op: op, Locator: loc, Err: ErrNotInteractable}
	}
	return &ElementError{Op: op, Locator: loc, Err: err}
}

// CurrentURL returns the tab's current location.
func (cd *ChromeDriver) CurrentURL(ctx context.Context) (string, error) {
	cd.mu.Lock()
	defer cd.mu.Unlock()

	var u string
	if err := cd.run(ctx, 0, chromedp.Location(&u)); err != nil {
		return "", fmt.Errorf("failed to read location: %w", err)
	}
	return u, nil
}

// Title returns the current document title.
func (cd *ChromeDriver) Title(ctx context.Context) (string, error) {
	cd.mu.Lock()
	defer cd.mu.Unlock()

	var title string
	if err := cd.run(ctx, 0, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("failed to read title: %w", err)
	}
	return title, nil
}

// Screenshot captures the viewport as PNG bytes.
func (cd *ChromeDriver) Screenshot(ctx context.Context) ([]byte, error) {
	cd.mu.Lock()
	defer cd.mu.Unlock()

	var buf []byte
	if err := cd.run(ctx, 0, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return buf, nil
}

// Resize changes the emulated viewport.
func (cd *ChromeDriver) Resize(ctx context.Context, width, height int) error {
	cd.mu.Lock()
	defer cd.mu.Unlock()

	if err := cd.run(ctx, 0, chromedp.EmulateViewport(int64(width), int64(height))); err != nil {
		return fmt.Errorf("failed to resize viewport to %dx%d: %w", width, height, err)
	}
	cd.opts.ViewportW, cd.opts.ViewportH = width, height
	return nil
}

// chromeActionQuery is chromeQuery narrowed to the first match. Visibility
// waits apply to every node a query returns, so a hidden duplicate would
// otherwise stall clicks on a visible element.
func chromeActionQuery(loc Locator) (string, chromedp.QueryOption, error) {
	sel, by, err := chromeQuery(loc)
	if err != nil {
		return "", nil, err
	}
	if loc.Strategy == ByCSS || loc.Strategy == ByTag || loc.Strategy == ByID {
		return sel, chromedp.ByQuery, nil
	}
	return "(" + sel + ")[1]", by, nil
}

// chromeQuery maps a Locator onto a chromedp selector and query option
// matching every element.
func chromeQuery(loc Locator) (string, chromedp.QueryOption, error) {
	if err := loc.Validate(); err != nil {
		return "", nil, err
	}
	switch loc.Strategy {
	case ByCSS, ByTag:
		return loc.Value, chromedp.ByQueryAll, nil
	case ByID:
		return "#" + loc.Value, chromedp.ByQueryAll, nil
	default:
		expr, err := loc.XPathExpr()
		if err != nil {
			return "", nil, err
		}
		return expr, chromedp.BySearch, nil
	}
}
