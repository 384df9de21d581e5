// Package herokuapp models the-internet.herokuapp.com, the only catalog
// with an authenticated partition. Every page there is titled "The
// Internet", so identity and departure are judged by headings instead.
package herokuapp

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/dsisson/welkin/internal/browser"
	"github.com/dsisson/welkin/internal/page"
	"github.com/dsisson/welkin/internal/routing"
)

//go:embed routes.yaml
var Routes []byte

// Page identifiers.
const (
	Home       = "heroku home"
	Login      = "heroku login"
	Checkboxes = "heroku checkboxes"
	Dropdown   = "heroku dropdown"
	SecureArea = "heroku secure area"
)

const siteTitle = "The Internet"

// Demo credentials, printed on the login page itself.
const (
	DemoUsername = "tomsmith"
	DemoPassword = "SuperSecretPassword!"
)

// Login form and secure area elements.
var (
	UsernameField = browser.ID("username")
	PasswordField = browser.ID("password")
	SubmitButton  = browser.CSS(`button[type="submit"]`)
	Flash         = browser.ID("flash")
	LogoutButton  = browser.CSS(`a[href="/logout"]`)
)

// Heading locates the page heading with the given text at level h1..h3.
func Heading(level int, text string) browser.Locator {
	return browser.XPath(fmt.Sprintf(`//h%d[normalize-space(.)="%s"]`, level, text))
}

// Kinds returns the page objects referenced by routes.yaml.
func Kinds() routing.Kinds {
	return routing.Kinds{
		"herokuapp.HomePage":       homePage,
		"herokuapp.LoginPage":      loginPage,
		"herokuapp.CheckboxesPage": example(Heading(3, "Checkboxes"), browser.ID("checkboxes")),
		"herokuapp.DropdownPage":   example(Heading(3, "Dropdown List"), browser.ID("dropdown")),
		"herokuapp.SecureAreaPage": secureAreaPage,
	}
}

// template fills in what every page of the site shares. Every page is
// titled "The Internet", so departure is detected by the heading vanishing
// instead of the title check other sites get.
func template(heading browser.Locator, load ...browser.Locator) page.Template {
	checks := []page.Check{{Present: true, By: heading}}
	for _, l := range load {
		checks = append(checks, page.Check{Present: true, By: l})
	}
	return page.Template{
		Title:       siteTitle,
		SharedTitle: true,
		IdentityChecks: []page.IdentityCheck{
			page.CheckURL(),
			page.CheckTitle(),
			page.CheckElement("heading", heading),
		},
		LoadChecks:   checks,
		UnloadChecks: []page.Check{{Present: false, By: heading}},
	}
}

func homePage(o page.Options) *page.Page {
	tmpl := template(Heading(1, "Welcome to the-internet"), Heading(2, "Available Examples"))
	tmpl.Links = []page.Link{
		{Name: "form authentication", Primary: browser.LinkText("Form Authentication"), Destination: Login},
		{Name: "checkboxes", Primary: browser.LinkText("Checkboxes"), Destination: Checkboxes},
		{Name: "dropdown", Primary: browser.LinkText("Dropdown"), Destination: Dropdown},
	}
	return page.New(o, tmpl)
}

// example pages have no navigation of their own.
func example(heading browser.Locator, load ...browser.Locator) page.Factory {
	return func(o page.Options) *page.Page {
		return page.New(o, template(heading, load...))
	}
}

func loginPage(o page.Options) *page.Page {
	return page.New(o, template(Heading(2, "Login Page"), UsernameField, PasswordField, SubmitButton))
}

func secureAreaPage(o page.Options) *page.Page {
	tmpl := template(Heading(2, "Secure Area"), Flash, LogoutButton)
	tmpl.Links = []page.Link{
		{Name: "logout", Primary: LogoutButton, Destination: Login, Mode: page.NoAuth},
	}
	return page.New(o, tmpl)
}

// SignIn submits the login form on p and returns the secure area. Wrong
// credentials leave the login heading in place, which surfaces as an
// unload timeout on the login page.
func SignIn(ctx context.Context, nav *page.Navigator, p *page.Page, username, password string) (*page.Page, error) {
	if p.Name != Login {
		return nil, fmt.Errorf("sign in from %q: not the login page", p.Name)
	}
	if err := nav.Fill(ctx, p, UsernameField, username); err != nil {
		return nil, err
	}
	if err := nav.Fill(ctx, p, PasswordField, password); err != nil {
		return nil, err
	}
	if err := nav.Click(ctx, p, SubmitButton); err != nil {
		return nil, err
	}
	return nav.Arrive(ctx, p, SecureArea, page.Auth)
}
