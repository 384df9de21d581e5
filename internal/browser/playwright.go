package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/rs/zerolog"
)

// compile-time interface check
var _ Driver = (*PlaywrightDriver)(nil)

// PlaywrightOptions configures a PlaywrightDriver.
type PlaywrightOptions struct {
	ViewportW     int
	ViewportH     int
	Headless      bool
	ActionTimeout time.Duration
	// NavigationTimeout bounds page.Goto.
	NavigationTimeout time.Duration
}

// PlaywrightDriver drives one Chromium page through playwright-go.
type PlaywrightDriver struct {
	opts   PlaywrightOptions
	logger zerolog.Logger

	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page

	active bool
	mu     sync.Mutex
}

// NewPlaywrightDriver creates a PlaywrightDriver. Launch must be called before use.
func NewPlaywrightDriver(opts PlaywrightOptions, logger zerolog.Logger) *PlaywrightDriver {
	if opts.ViewportW <= 0 {
		opts.ViewportW = 1280
	}
	if opts.ViewportH <= 0 {
		opts.ViewportH = 720
	}
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = 5 * time.Second
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = 30 * time.Second
	}
	return &PlaywrightDriver{
		opts:   opts,
		logger: logger.With().Str("driver", "playwright").Logger(),
	}
}

// Launch starts the playwright driver process, a Chromium browser and one page.
func (pd *PlaywrightDriver) Launch(ctx context.Context) error {
	pd.mu.Lock()
	defer pd.mu.Unlock()

	if pd.active {
		return fmt.Errorf("browser is already launched")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	pw, err := playwright.Run()
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	b, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(pd.opts.Headless),
	})
	if err != nil {
		_ = pw.Stop()
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	page, err := b.NewPage(playwright.BrowserNewPageOptions{
		Viewport: &playwright.Size{Width: pd.opts.ViewportW, Height: pd.opts.ViewportH},
	})
	if err != nil {
		_ = b.Close()
		_ = pw.Stop()
		return fmt.Errorf("failed to open page: %w", err)
	}

	pd.pw, pd.browser, pd.page = pw, b, page
	pd.active = true
	pd.logger.Info().
		Int("viewport_w", pd.opts.ViewportW).
		Int("viewport_h", pd.opts.ViewportH).
		Bool("headless", pd.opts.Headless).
		Msg("browser launched")
	return nil
}

// Close shuts down the browser and the playwright driver process.
func (pd *PlaywrightDriver) Close() error {
	pd.mu.Lock()
	defer pd.mu.Unlock()

	if !pd.active {
		return nil
	}
	pd.active = false

	var errs []error
	if err := pd.browser.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing browser: %w", err))
	}
	if err := pd.pw.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stopping playwright: %w", err))
	}
	pd.logger.Info().Msg("browser closed")
	return errors.Join(errs...)
}

func (pd *PlaywrightDriver) check(ctx context.Context) error {
	if !pd.active {
		return ErrNotActive
	}
	return ctx.Err()
}

// Navigate loads url and waits for DOMContentLoaded.
func (pd *PlaywrightDriver) Navigate(ctx context.Context, url string) error {
	pd.mu.Lock()
	defer pd.mu.Unlock()

	if err := pd.check(ctx); err != nil {
		return err
	}
	_, err := pd.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(pd.opts.NavigationTimeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

// Present counts matching elements without waiting.
func (pd *PlaywrightDriver) Present(ctx context.Context, loc Locator) (bool, error) {
	pd.mu.Lock()
	defer pd.mu.Unlock()

	if err := pd.check(ctx); err != nil {
		return false, err
	}
	return pd.present(loc)
}

func (pd *PlaywrightDriver) present(loc Locator) (bool, error) {
	sel, err := playwrightSelector(loc)
	if err != nil {
		return false, err
	}
	n, err := pd.page.Locator(sel).Count()
	if err != nil {
		return false, fmt.Errorf("failed to query %s: %w", loc, err)
	}
	return n > 0, nil
}

// Click clicks the first element matching loc.
func (pd *PlaywrightDriver) Click(ctx context.Context, loc Locator) error {
	pd.mu.Lock()
	defer pd.mu.Unlock()

	target, err := pd.interactable(ctx, "click", loc)
	if err != nil {
		return err
	}
	err = target.Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(float64(pd.opts.ActionTimeout.Milliseconds())),
	})
	if err != nil {
		return pd.actionError("click", loc, err)
	}
	return nil
}

// Fill replaces the value of the input matching loc with text.
func (pd *PlaywrightDriver) Fill(ctx context.Context, loc Locator, text string) error {
	pd.mu.Lock()
	defer pd.mu.Unlock()

	target, err := pd.interactable(ctx, "fill", loc)
	if err != nil {
		return err
	}
	err = target.Fill(text, playwright.LocatorFillOptions{
		Timeout: playwright.Float(float64(pd.opts.ActionTimeout.Milliseconds())),
	})
	if err != nil {
		return pd.actionError("fill", loc, err)
	}
	return nil
}

func (pd *PlaywrightDriver) interactable(ctx context.Context, op string, loc Locator) (playwright.Locator, error) {
	if err := pd.check(ctx); err != nil {
		return nil, err
	}
	ok, err := pd.present(loc)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &ElementError{Op: op, Locator: loc, Err: ErrElementNotFound}
	}
	sel, _ := playwrightSelector(loc)
	return pd.page.Locator(sel).First(), nil
}

func (pd *PlaywrightDriver) actionError(op string, loc Locator, err error) error {
	if errors.Is(err, playwright.ErrTimeout) {
		return &ElementError{Op: op, Locator: loc, Err: ErrNotInteractable}
	}
	return &ElementError{Op: op, Locator: loc, Err: err}
}

// CurrentURL returns the page's current location.
func (pd *PlaywrightDriver) CurrentURL(ctx context.Context) (string, error) {
	pd.mu.Lock()
	defer pd.mu.Unlock()

	if err := pd.check(ctx); err != nil {
		return "", err
	}
	return pd.page.URL(), nil
}

// Title returns the current document title.
func (pd *PlaywrightDriver) Title(ctx context.Context) (string, error) {
	pd.mu.Lock()
	defer pd.mu.Unlock()

	if err := pd.check(ctx); err != nil {
		return "", err
	}
	title, err := pd.page.Title()
	if err != nil {
		return "", fmt.Errorf("failed to read title: %w", err)
	}
	return title, nil
}

// Screenshot captures the viewport as PNG bytes.
func (pd *PlaywrightDriver) Screenshot(ctx context.Context) ([]byte, error) {
	pd.mu.Lock()
	defer pd.mu.Unlock()

	if err := pd.check(ctx); err != nil {
		return nil, err
	}
	buf, err := pd.page.Screenshot()
	if err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return buf, nil
}

// Resize changes the page viewport.
func (pd *PlaywrightDriver) Resize(ctx context.Context, width, height int) error {
	pd.mu.Lock()
	defer pd.mu.Unlock()

	if err := pd.check(ctx); err != nil {
		return err
	}
	if err := pd.page.SetViewportSize(width, height); err != nil {
		return fmt.Errorf("failed to resize viewport to %dx%d: %w", width, height, err)
	}
	pd.opts.ViewportW, pd.opts.ViewportH = width, height
	return nil
}

// playwrightSelector maps a Locator onto a playwright selector engine string.
func playwrightSelector(loc Locator) (string, error) {
	if err := loc.Validate(); err != nil {
		return "", err
	}
	if css, ok := loc.CSSExpr(); ok {
		return "css=" + css, nil
	}
	expr, err := loc.XPathExpr()
	if err != nil {
		return "", err
	}
	return "xpath=" + expr, nil
}
