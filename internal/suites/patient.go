package suites

import (
	"github.com/sumitdasdk/DRX-pro/internal/fixtures"
	"github.com/sumitdasdk/DRX-pro/internal/pages"
	"github.com/sumitdasdk/DRX-pro/internal/scenario"
)

// openPatientList logs in and lands on the patient list.
func openPatientList(c *scenario.Context) error {
	c.Step("Login with valid credentials")
	if err := c.Login.OpenAndLogin(c.Store.LoginData()); err != nil {
		return err
	}
	c.Step("Open Patients section")
	return c.Patients.NavigateToPatients()
}

// createFromFixture creates a patient built from the patient fixture id.
func createFromFixture(c *scenario.Context, id string) (pages.PatientForm, error) {
	f, err := c.Fixture(fixtures.CategoryPatient, id)
	if err != nil {
		return pages.PatientForm{}, err
	}
	form := c.NewPatient(f)
	c.Step("Create patient " + form.Name)
	if err := c.Patients.CreatePatient(form); err != nil {
		return form, err
	}
	return form, nil
}

// PatientScenarios covers patient creation and search.
func PatientScenarios() []scenario.Scenario {
	return []scenario.Scenario{
		{
			ID:    "TC-P01",
			Suite: Patient,
			Title: "User should successfully create a patient with mandatory fields only",
			Run: func(c *scenario.Context) error {
				if err := openPatientList(c); err != nil {
					return err
				}
				if _, err := createFromFixture(c, "TC-P01"); err != nil {
					return err
				}
				c.Step("Verify return to patient list")
				return c.CheckURLContains("doctor/patient")
			},
		},
		{
			ID:    "TC-P02",
			Suite: Patient,
			Title: "Created patient should appear in the patient list with correct details",
			Run: func(c *scenario.Context) error {
				if err := openPatientList(c); err != nil {
					return err
				}
				form, err := createFromFixture(c, "TC-P02")
				if err != nil {
					return err
				}
				c.Step("Search the list by name")
				if err := c.Patients.SearchPatientByName(form.Name); err != nil {
					return err
				}
				c.Step("Verify the row shows the phone number")
				n, err := c.Patients.VisibleMatches(form.Phone)
				if err != nil {
					return err
				}
				return c.Check(n >= 1, "phone %s not shown for %s", form.Phone, form.Name)
			},
		},
		{
			ID:    "TC-P03",
			Suite: Patient,
			Title: "Patient creation should work multiple times in sequence",
			Run: func(c *scenario.Context) error {
				if err := openPatientList(c); err != nil {
					return err
				}
				first, err := createFromFixture(c, "TC-P03")
				if err != nil {
					return err
				}
				second, err := createFromFixture(c, "TC-P03")
				if err != nil {
					return err
				}
				if err := c.Check(first.Name != second.Name, "sequential patients share the name %s", first.Name); err != nil {
					return err
				}
				c.Step("Verify both patients are listed")
				if err := c.Patients.SearchPatientByName(first.Name); err != nil {
					return err
				}
				return c.Patients.SearchPatientByName(second.Name)
			},
		},
		{
			ID:    "TC-P04",
			Suite: Patient,
			Title: "Search patient by name and verify the search result",
			Run: func(c *scenario.Context) error {
				if err := openPatientList(c); err != nil {
					return err
				}
				form, err := createFromFixture(c, "TC-P04")
				if err != nil {
					return err
				}
				c.Step("Search by full name")
				if err := c.Patients.SearchPatientByName(form.Name); err != nil {
					return err
				}
				n, err := c.Patients.VisibleMatches(form.Name)
				if err != nil {
					return err
				}
				return c.Check(n == 1, "expected exactly one row for %s, saw %d", form.Name, n)
			},
		},
		{
			ID:    "TC-P05",
			Suite: Patient,
			Title: "Search patient by partial name",
			Run: func(c *scenario.Context) error {
				return searchByKeyword(c, "TC-P05")
			},
		},
		{
			ID:    "TC-P06",
			Suite: Patient,
			Title: "Verify patient list displays after search",
			Run: func(c *scenario.Context) error {
				if err := searchByKeyword(c, "TC-P06"); err != nil {
					return err
				}
				return c.CheckURLContains("doctor/patient")
			},
		},
		{
			ID:    "TC-P07",
			Suite: Patient,
			Title: "RX page should be reachable from the patient list",
			Run: func(c *scenario.Context) error {
				if err := openPatientList(c); err != nil {
					return err
				}
				c.Step("Try to open the RX page")
				if err := c.Patients.NavigateToRXPage(); err != nil {
					c.Observe("RX page not reachable from the patient list: %v", err)
					return c.CheckURLContains("doctor/patient")
				}
				if !c.RX.AddPatientButtonVisible() {
					c.Observe("Add Patient button not found on RX page")
				}
				return c.CheckURLContains("doctor/")
			},
		},
		{
			ID:    "TC-P08",
			Suite: Patient,
			Title: "Search patient by phone and verify the search result",
			Run: func(c *scenario.Context) error {
				if err := openPatientList(c); err != nil {
					return err
				}
				form, err := createFromFixture(c, "TC-P08")
				if err != nil {
					return err
				}
				c.Step("Search by phone " + form.Phone)
				return c.Patients.SearchPatientByPartialName(form.Phone, form.Name)
			},
		},
	}
}

// searchByKeyword creates the fixture's patient and finds it by the fixture's search keyword.
func searchByKeyword(c *scenario.Context, id string) error {
	f, err := c.Fixture(fixtures.CategoryPatient, id)
	if err != nil {
		return err
	}
	keyword, err := f.RequireField("searchKeyword")
	if err != nil {
		return err
	}
	if err := openPatientList(c); err != nil {
		return err
	}
	form, err := createFromFixture(c, id)
	if err != nil {
		return err
	}
	c.Step("Search by keyword " + keyword)
	return c.Patients.SearchPatientByPartialName(keyword, form.Name)
}
