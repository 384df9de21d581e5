// Package example is the smallest catalog: example.com and the IANA page
// its single link leads to.
package example

import (
	_ "embed"

	"github.com/dsisson/welkin/internal/browser"
	"github.com/dsisson/welkin/internal/page"
	"github.com/dsisson/welkin/internal/routing"
)

//go:embed routes.yaml
var Routes []byte

// Page identifiers.
const (
	Home           = "example home"
	ExampleDomains = "iana example domains"
)

var (
	heading  = browser.CSS("div > h1")
	moreInfo = browser.CSS("div > p > a")
)

// Kinds returns the page objects referenced by routes.yaml.
func Kinds() routing.Kinds {
	return routing.Kinds{
		"example.HomePage":           homePage,
		"example.ExampleDomainsPage": exampleDomainsPage,
	}
}

func homePage(o page.Options) *page.Page {
	return page.New(o, page.Template{
		Title:      "Example Domain",
		LoadChecks: []page.Check{{Present: true, By: heading}, {Present: true, By: moreInfo}},
		Links: []page.Link{
			{Name: "more information", Primary: moreInfo, Destination: ExampleDomains},
		},
	})
}

// The IANA page sits on another domain and has no link back, so round trips
// return with an explicit load.
func exampleDomainsPage(o page.Options) *page.Page {
	return page.New(o, page.Template{
		Title:          "Example Domains",
		IdentityChecks: []page.IdentityCheck{page.CheckURLPrefix(), page.CheckTitle()},
		LoadChecks:     []page.Check{{Present: true, By: browser.XPath(`//h1[normalize-space(.)="Example Domains"]`)}},
	})
}
