package pages

import (
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/sumitdasdk/DRX-pro/internal/fixtures"
)

const postLoginSettle = 3 * time.Second

// LoginPage drives the login form and the signed-in user display.
type LoginPage struct {
	base *Base
	urls fixtures.URLs
}

// NewLoginPage creates the login driver.
func NewLoginPage(base *Base, urls fixtures.URLs) *LoginPage {
	return &LoginPage{base: base, urls: urls}
}

func (p *LoginPage) usernameField() playwright.Locator {
	return p.base.ByRole("textbox", "Username", false)
}

func (p *LoginPage) passwordField() playwright.Locator {
	return p.base.ByRole("textbox", "Password", false)
}

func (p *LoginPage) loginButton() playwright.Locator {
	return p.base.ByRole("button", "Login", false)
}

// Open navigates to the base URL.
func (p *LoginPage) Open() error {
	if err := p.base.Navigate(p.urls.BaseURL); err != nil {
		return err
	}
	p.base.Settle(time.Second)
	return nil
}

// Login fills both fields, then clicks Login while waiting for the RX page URL.
func (p *LoginPage) Login(username, password string) error {
	if err := p.base.Fill("username", p.usernameField(), username); err != nil {
		return err
	}
	if err := p.base.Fill("password", p.passwordField(), password); err != nil {
		return err
	}
	err := p.base.ClickAndWaitForURL("Login", p.loginButton(), p.urls.RXPagePattern, p.base.Timeouts().LoginRedirect)
	if err != nil {
		return err
	}
	p.base.Settle(postLoginSettle)
	return nil
}

// OpenAndLogin is Open followed by Login.
func (p *LoginPage) OpenAndLogin(creds fixtures.Credentials) error {
	if err := p.Open(); err != nil {
		return err
	}
	return p.Login(creds.Username, creds.Password)
}

// IsLoggedIn reports whether the current URL is on the RX page.
func (p *LoginPage) IsLoggedIn() bool {
	return strings.Contains(p.base.CurrentURL(), fixtures.PathSegment(p.urls.RXPagePattern))
}

// DoctorName returns the name shown in the User button.
func (p *LoginPage) DoctorName() (string, error) {
	name := p.base.ByRole("button", "User", false).First().Locator("p")
	return p.base.Text("doctor name", name, p.base.Timeouts().Element)
}

// Attempt fills and submits the form without waiting for a redirect.
func (p *LoginPage) Attempt(username, password string) error {
	if err := p.base.Fill("username", p.usernameField(), username); err != nil {
		return err
	}
	if err := p.base.Fill("password", p.passwordField(), password); err != nil {
		return err
	}
	return p.base.Click("Login", p.loginButton())
}

// LoginErrorVisible reports whether the form shows a rejection alert.
func (p *LoginPage) LoginErrorVisible() bool {
	return p.base.VisibleWithin(p.base.ByRole("alert", "", false), p.base.Timeouts().Element)
}
