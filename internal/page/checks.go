package page

import (
	"context"
	"net/url"
	"strings"

	"github.com/dsisson/welkin/internal/browser"
)

// IdentityCheck confirms that the live browser shows the page just
// constructed. Verify returns *IdentityMismatchError on a mismatch and any
// other error for driver failures.
type IdentityCheck struct {
	Name   string
	Verify func(ctx context.Context, d browser.Driver, p *Page) error
}

// CheckURL compares the current URL with Page.URL, ignoring a trailing
// slash and the fragment.
func CheckURL() IdentityCheck {
	return IdentityCheck{
		Name: "url",
		Verify: func(ctx context.Context, d browser.Driver, p *Page) error {
			got, err := d.CurrentURL(ctx)
			if err != nil {
				return err
			}
			if normalizeURL(got) != normalizeURL(p.URL) {
				return &IdentityMismatchError{Page: p.Name, Check: "url", Want: p.URL, Got: got}
			}
			return nil
		},
	}
}

// CheckURLPrefix accepts any current URL starting with Page.URL, for pages
// that append query strings or session tokens.
func CheckURLPrefix() IdentityCheck {
	return IdentityCheck{
		Name: "url prefix",
		Verify: func(ctx context.Context, d browser.Driver, p *Page) error {
			got, err := d.CurrentURL(ctx)
			if err != nil {
				return err
			}
			if !strings.HasPrefix(normalizeURL(got), normalizeURL(p.URL)) {
				return &IdentityMismatchError{Page: p.Name, Check: "url prefix", Want: p.URL, Got: got}
			}
			return nil
		},
	}
}

// CheckTitle compares the document title with Page.Title.
func CheckTitle() IdentityCheck {
	return IdentityCheck{
		Name: "title",
		Verify: func(ctx context.Context, d browser.Driver, p *Page) error {
			got, err := d.Title(ctx)
			if err != nil {
				return err
			}
			if strings.TrimSpace(got) != strings.TrimSpace(p.Title) {
				return &IdentityMismatchError{Page: p.Name, Check: "title", Want: p.Title, Got: got}
			}
			return nil
		},
	}
}

// CheckElement requires loc to be present, for pages whose url and title
// are shared with siblings.
func CheckElement(name string, loc browser.Locator) IdentityCheck {
	return IdentityCheck{
		Name: name,
		Verify: func(ctx context.Context, d browser.Driver, p *Page) error {
			ok, err := d.Present(ctx, loc)
			if err != nil {
				return err
			}
			if !ok {
				return &IdentityMismatchError{Page: p.Name, Check: name, Want: "present " + loc.String(), Got: "absent"}
			}
			return nil
		},
	}
}

// normalizeURL drops the fragment and trailing slash so that
// "https://x.org" and "https://x.org/#top" compare equal.
func normalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return strings.TrimRight(raw, "/")
	}
	u.Fragment = ""
	u.RawFragment = ""
	return strings.TrimRight(u.String(), "/")
}
