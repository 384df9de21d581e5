package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Driver backend names accepted by Launch.
const (
	BackendChromedp   = "chromedp"
	BackendPlaywright = "playwright"
)

// LaunchOptions selects and configures a driver backend.
type LaunchOptions struct {
	Backend       string
	Headless      bool
	ViewportW     int
	ViewportH     int
	RemoteURL     string
	ActionTimeout time.Duration
}

// Launch creates and starts a Driver for the configured backend.
func Launch(ctx context.Context, opts LaunchOptions, logger zerolog.Logger) (Driver, error) {
	switch opts.Backend {
	case "", BackendChromedp:
		d := NewChromeDriver(ChromeOptions{
			ViewportW:     opts.ViewportW,
			ViewportH:     opts.ViewportH,
			Headless:      opts.Headless,
			RemoteURL:     opts.RemoteURL,
			ActionTimeout: opts.ActionTimeout,
		}, logger)
		if err := d.Launch(ctx); err != nil {
			return nil, err
		}
		return d, nil
	case BackendPlaywright:
		d := NewPlaywrightDriver(PlaywrightOptions{
			ViewportW:     opts.ViewportW,
			ViewportH:     opts.ViewportH,
			Headless:      opts.Headless,
			ActionTimeout: opts.ActionTimeout,
		}, logger)
		if err := d.Launch(ctx); err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unknown browser backend %q (chromedp, playwright)", opts.Backend)
	}
}
