// Package appstest builds scripted sites from routing tables so that
// catalogs and scenarios can be exercised without a browser.
package appstest

import (
	"fmt"

	"github.com/dsisson/welkin/internal/browser"
	"github.com/dsisson/welkin/internal/browser/browsertest"
	"github.com/dsisson/welkin/internal/page"
	"github.com/dsisson/welkin/internal/routing"
)

// Mirror returns a site that behaves exactly as t's page objects expect:
// every page carries its title, the elements of its presence load checks
// and its link controls; one-stage links navigate on click and two-stage
// links reveal their secondary control first. Controls of links that declare
// a viewport only respond at that width or narrower.
func Mirror(t *routing.Table) (browsertest.Site, error) {
	site := make(browsertest.Site)
	for _, mode := range []page.Mode{page.NoAuth, page.Auth} {
		for _, id := range t.IDs(mode) {
			p, err := construct(t, id, mode)
			if err != nil {
				return nil, err
			}
			sp, err := mirrorPage(t, p)
			if err != nil {
				return nil, err
			}
			site[p.URL] = sp
		}
	}
	return site, nil
}

// URL returns the address of the page named id.
func URL(t *routing.Table, id string, mode page.Mode) (string, error) {
	p, err := construct(t, id, mode)
	if err != nil {
		return "", err
	}
	return p.URL, nil
}

func construct(t *routing.Table, id string, mode page.Mode) (*page.Page, error) {
	factory, err := t.Resolve(id, mode)
	if err != nil {
		return nil, err
	}
	return factory(page.Options{Domain: t.Domain}), nil
}

func mirrorPage(t *routing.Table, p *page.Page) (*browsertest.Page, error) {
	sp := &browsertest.Page{
		Title:   p.Title,
		Links:   make(map[browser.Locator]string),
		Reveals: make(map[browser.Locator][]browser.Locator),
		Narrow:  make(map[browser.Locator]int),
	}
	for _, c := range p.LoadChecks {
		if c.Present {
			sp.Elements = append(sp.Elements, c.By)
		}
	}
	for name, l := range p.Links {
		dest, err := URL(t, l.Destination, l.Mode)
		if err != nil {
			return nil, fmt.Errorf("link %q on %q: %w", name, p.Name, err)
		}
		sp.Elements = append(sp.Elements, l.Primary)
		if l.Viewport != nil {
			sp.Narrow[l.Primary] = l.Viewport.Width
		}
		if l.TwoStage() {
			sp.Reveals[l.Primary] = append(sp.Reveals[l.Primary], *l.Secondary)
			sp.Links[*l.Secondary] = dest
		} else {
			sp.Links[l.Primary] = dest
		}
	}
	return sp, nil
}
