// Package browsertest provides a scripted, in-memory browser.Driver for
// exercising page objects without launching Chrome.
package browsertest

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"sync"

	"github.com/dsisson/welkin/internal/browser"
)

// BlankURL is the location of a freshly launched Driver.
const BlankURL = "about:blank"

// Page is the scripted state of one URL.
type Page struct {
	Title    string
	Elements []browser.Locator
	// Links navigates to the mapped URL when the locator is clicked.
	Links map[browser.Locator]string
	// Reveals makes further elements present when the locator is clicked,
	// modelling a menu panel that must be opened first.
	Reveals map[browser.Locator][]browser.Locator
	// Blocked elements are present but reject clicks and input.
	Blocked []browser.Locator
	// Forms computes the destination URL of a submit click from the values
	// filled so far on this page.
	Forms map[browser.Locator]func(values map[browser.Locator]string) string
	// Narrow elements are only rendered at viewports no wider than the
	// mapped width. At wider or unset sizes they are present but hidden.
	Narrow map[browser.Locator]int
}

// Site maps URLs to scripted pages.
type Site map[string]*Page

// Driver is a browser.Driver backed by a Site.
type Driver struct {
	site Site

	mu          sync.Mutex
	url         string
	revealed    map[browser.Locator]bool
	values      map[browser.Locator]string
	closed      bool
	navigations []string
	clicks      []browser.Locator
	screenshots int
	resizes     []browser.Viewport
}

var _ browser.Driver = (*Driver)(nil)

// New returns a Driver positioned on about:blank.
func New(site Site) *Driver {
	return &Driver{
		site:     site,
		url:      BlankURL,
		revealed: make(map[browser.Locator]bool),
		values:   make(map[browser.Locator]string),
	}
}

func (d *Driver) current() *Page {
	if p, ok := d.site[d.url]; ok {
		return p
	}
	return &Page{}
}

func (d *Driver) goTo(url string) {
	d.url = url
	d.revealed = make(map[browser.Locator]bool)
	d.values = make(map[browser.Locator]string)
	d.navigations = append(d.navigations, url)
}

func (d *Driver) present(loc browser.Locator) bool {
	p := d.current()
	if p.Title != "" && loc == browser.TitleLocator(p.Title) {
		return true
	}
	if d.revealed[loc] {
		return true
	}
	for _, e := range p.Elements {
		if e == loc {
			return true
		}
	}
	return false
}

func (d *Driver) usable(op string, loc browser.Locator) error {
	if d.closed {
		return browser.ErrNotActive
	}
	if !d.present(loc) {
		return &browser.ElementError{Op: op, Locator: loc, Err: browser.ErrElementNotFound}
	}
	p := d.current()
	for _, b := range p.Blocked {
		if b == loc {
			return &browser.ElementError{Op: op, Locator: loc, Err: browser.ErrNotInteractable}
		}
	}
	if maxW, ok := p.Narrow[loc]; ok {
		if w := d.viewport().Width; w == 0 || w > maxW {
			return &browser.ElementError{Op: op, Locator: loc, Err: browser.ErrNotInteractable}
		}
	}
	return nil
}

func (d *Driver) viewport() browser.Viewport {
	if len(d.resizes) == 0 {
		return browser.Viewport{}
	}
	return d.resizes[len(d.resizes)-1]
}

// Navigate moves to url. Unknown URLs load an empty, untitled page.
func (d *Driver) Navigate(ctx context.Context, url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return browser.ErrNotActive
	}
	d.goTo(url)
	return nil
}

// Present reports whether loc is on the current page or a revealed panel.
func (d *Driver) Present(ctx context.Context, loc browser.Locator) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false, browser.ErrNotActive
	}
	return d.present(loc), nil
}

// Click follows links, opens panels and submits forms.
func (d *Driver) Click(ctx context.Context, loc browser.Locator) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usable("click", loc); err != nil {
		return err
	}
	d.clicks = append(d.clicks, loc)

	p := d.current()
	if submit, ok := p.Forms[loc]; ok {
		d.goTo(submit(d.values))
		return nil
	}
	if target, ok := p.Links[loc]; ok {
		d.goTo(target)
		return nil
	}
	for _, r := range p.Reveals[loc] {
		d.revealed[r] = true
	}
	return nil
}

// Fill records text as the value of loc.
func (d *Driver) Fill(ctx context.Context, loc browser.Locator, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usable("fill", loc); err != nil {
		return err
	}
	d.values[loc] = text
	return nil
}

// CurrentURL returns the current location.
func (d *Driver) CurrentURL(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return "", browser.ErrNotActive
	}
	return d.url, nil
}

// Title returns the current page title.
func (d *Driver) Title(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return "", browser.ErrNotActive
	}
	return d.current().Title, nil
}

// Screenshot returns a 1x1 PNG.
func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, browser.ErrNotActive
	}
	d.screenshots++
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 1, 1))); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Resize records the requested viewport.
func (d *Driver) Resize(ctx context.Context, width, height int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return browser.ErrNotActive
	}
	d.resizes = append(d.resizes, browser.Viewport{Width: width, Height: height})
	return nil
}

// Close marks the driver inactive.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Navigations returns every URL loaded so far, including link targets.
func (d *Driver) Navigations() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.navigations...)
}

// Clicks returns the locators clicked so far.
func (d *Driver) Clicks() []browser.Locator {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]browser.Locator(nil), d.clicks...)
}

// Screenshots returns how many screenshots were taken.
func (d *Driver) Screenshots() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.screenshots
}

// Closed reports whether Close was called.
func (d *Driver) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Viewport returns the last size passed to Resize, or the zero Viewport.
func (d *Driver) Viewport() browser.Viewport {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.viewport()
}

// Resizes returns every size passed to Resize, in order.
func (d *Driver) Resizes() []browser.Viewport {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]browser.Viewport(nil), d.resizes...)
}
