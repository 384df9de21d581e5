// Package pythonorg models www.python.org. The top navigation is one-stage;
// pages only listed in the site map need the "Menu" jump link first, which
// the site renders on phone-sized screens only.
package pythonorg

import (
	_ "embed"
	"fmt"
	"time"

	"github.com/dsisson/welkin/internal/browser"
	"github.com/dsisson/welkin/internal/page"
	"github.com/dsisson/welkin/internal/routing"
)

//go:embed routes.yaml
var Routes []byte

// Page identifiers.
const (
	Home          = "python home"
	About         = "python about"
	Applications  = "python applications"
	Quotes        = "python quotes"
	Downloads     = "python downloads"
	Documentation = "python documentation"
	Community     = "python community"
	Events        = "python events"
)

// PanelDelay is how long the site map takes to scroll into view.
const PanelDelay = 500 * time.Millisecond

// MenuViewport is a phone-sized window, at which the Menu button shows.
var MenuViewport = browser.Viewport{Width: 400, Height: 800}

var (
	// MenuLink opens the site map panel.
	MenuLink = browser.ID("site-map-link")
	logo     = browser.CSS("h1.site-headline > a")
	mainNav  = browser.ID("mainnav")
)

// navLink is a one-stage link in the top navigation bar.
func navLink(name, section, dest string) page.Link {
	return page.Link{
		Name:        name,
		Primary:     browser.CSS(fmt.Sprintf("#mainnav li#%s > a", section)),
		Destination: dest,
	}
}

// siteMapLink is a two-stage link: open the menu, then pick from the map.
// Only a failure on the second click is worth a screenshot.
func siteMapLink(name, text, dest string) page.Link {
	secondary := SiteMapItem(text)
	viewport := MenuViewport
	return page.Link{
		Name:        name,
		Primary:     MenuLink,
		Secondary:   &secondary,
		PanelDelay:  PanelDelay,
		Destination: dest,
		Diagnostics: page.ScreenshotSecondary,
		Viewport:    &viewport,
	}
}

// SiteMapItem locates a link by its text inside the site map panel.
func SiteMapItem(text string) browser.Locator {
	return browser.XPath(fmt.Sprintf(`//*[@id="site-map"]//a[normalize-space(.)="%s"]`, text))
}

// Kinds returns the page objects referenced by routes.yaml.
func Kinds() routing.Kinds {
	return routing.Kinds{
		"pythonorg.HomePage":          homePage,
		"pythonorg.AboutPage":         section("About Python™ | Python.org", "About"),
		"pythonorg.ApplicationsPage":  section("Applications for Python | Python.org", "Applications for Python"),
		"pythonorg.QuotesPage":        section("Quotes about Python | Python.org", "Quotes about Python"),
		"pythonorg.DownloadsPage":     section("Download Python | Python.org", "Download the latest source release"),
		"pythonorg.DocumentationPage": section("Our Documentation | Python.org", "Python Documentation"),
		"pythonorg.CommunityPage":     section("Our Community | Python.org", "Python Community"),
		"pythonorg.EventsPage":        section("Our Events | Python.org", "Upcoming Events"),
	}
}

func homePage(o page.Options) *page.Page {
	return page.New(o, page.Template{
		Title: "Welcome to Python.org",
		LoadChecks: []page.Check{
			{Present: true, By: mainNav},
			{Present: true, By: browser.CSS("div.introduction")},
		},
		UnloadChecks: []page.Check{{Present: false, By: browser.CSS("div.introduction")}},
		Links: []page.Link{
			navLink("about", "about", About),
			navLink("downloads", "downloads", Downloads),
			navLink("documentation", "documentation", Documentation),
			navLink("community", "community", Community),
			navLink("events", "events", Events),
			siteMapLink("applications", "Applications", Applications),
			siteMapLink("quotes", "Quotes", Quotes),
		},
	})
}

// section builds an inner page: identified by title, loaded once its main
// heading renders, and linked back home through the logo.
func section(title, heading string) page.Factory {
	headingLoc := browser.XPath(fmt.Sprintf(`//main//h1[contains(normalize-space(.), "%s")] | //main//h2[contains(normalize-space(.), "%s")]`, heading, heading))
	return func(o page.Options) *page.Page {
		return page.New(o, page.Template{
			Title:      title,
			LoadChecks: []page.Check{{Present: true, By: mainNav}, {Present: true, By: headingLoc}},
			Links: []page.Link{
				{Name: "home", Primary: logo, Destination: Home},
			},
		})
	}
}
