package suites

import (
	"strings"

	"github.com/sumitdasdk/DRX-pro/internal/scenario"
)

// LoginScenarios covers authentication and the landing page.
func LoginScenarios() []scenario.Scenario {
	return []scenario.Scenario{
		{
			ID:    "TC-001",
			Suite: Login,
			Title: "User should successfully login with valid credentials",
			Run: func(c *scenario.Context) error {
				c.Step("Login with valid credentials")
				if err := c.Login.OpenAndLogin(c.Store.LoginData()); err != nil {
					return err
				}
				c.Step("Verify URL contains doctor/rx")
				return c.CheckURLContains("doctor/rx")
			},
		},
		{
			ID:    "TC-002",
			Suite: Login,
			Title: "After login, doctor name should be displayed in top right corner",
			Run: func(c *scenario.Context) error {
				creds := c.Store.LoginData()
				c.Step("Login with valid credentials")
				if err := c.Login.OpenAndLogin(creds); err != nil {
					return err
				}
				c.Step("Verify doctor name is displayed")
				name, err := c.Login.DoctorName()
				if err != nil {
					return err
				}
				if err := c.Check(strings.Contains(name, creds.ExpectedDoctorName),
					"doctor name %q does not contain %q", name, creds.ExpectedDoctorName); err != nil {
					return err
				}
				return c.CheckURLContains("doctor/rx")
			},
		},
		{
			ID:    "TC-003",
			Suite: Login,
			Title: "User should be able to navigate to Patient section after login",
			Run: func(c *scenario.Context) error {
				c.Step("Login with valid credentials")
				if err := c.Login.OpenAndLogin(c.Store.LoginData()); err != nil {
					return err
				}
				c.Step("Open Patients section")
				if err := c.Patients.NavigateToPatients(); err != nil {
					return err
				}
				if err := c.CheckURLContains("doctor/patient"); err != nil {
					return err
				}
				c.Step("Verify Create Patient button is visible")
				return c.Check(c.Patients.CreatePatientButtonVisible(), "Create Patient button not visible")
			},
		},
		{
			ID:    "TC-004",
			Suite: Login,
			Title: "Invalid password keeps the user on the login page",
			Run: func(c *scenario.Context) error {
				creds := c.Store.LoginData()
				c.Step("Open login page")
				if err := c.Login.Open(); err != nil {
					return err
				}
				c.Step("Submit a wrong password")
				if err := c.Login.Attempt(creds.Username, creds.Password+"-wrong"); err != nil {
					return err
				}
				c.Step("Verify the login error is shown")
				if err := c.Check(c.Login.LoginErrorVisible(), "no login error shown for a wrong password"); err != nil {
					return err
				}
				return c.Check(!c.Login.IsLoggedIn(), "wrong password reached %s", c.Base.CurrentURL())
			},
		},
	}
}
