package suites

import (
	"strings"

	"github.com/sumitdasdk/DRX-pro/internal/fixtures"
	"github.com/sumitdasdk/DRX-pro/internal/pages"
	"github.com/sumitdasdk/DRX-pro/internal/scenario"
)

// createFromRX logs in and adds the prescription fixture's patient through the RX dialog.
func createFromRX(c *scenario.Context, id string) (fixtures.Fixture, error) {
	f, err := c.Fixture(fixtures.CategoryPrescription, id)
	if err != nil {
		return f, err
	}
	if err := loginToRX(c); err != nil {
		return f, err
	}
	form := c.NewPatient(f)
	c.Step("Create patient " + form.Name)
	return f, c.RX.CreatePatientFromRX(form)
}

// addComplaint fills the fixture's chief complaint and checks the field kept it.
func addComplaint(c *scenario.Context, f fixtures.Fixture) error {
	complaint, err := f.RequireField("chiefComplaint")
	if err != nil {
		return err
	}
	c.Step("Add chief complaint")
	if err := c.RX.AddChiefComplaint(complaint); err != nil {
		return err
	}
	c.Step("Verify chief complaint field contains text")
	if err := c.Check(c.RX.ChiefComplaintVisible(), "chief complaint field not visible"); err != nil {
		return err
	}
	value, err := c.RX.ChiefComplaintValue()
	if err != nil {
		return err
	}
	return c.Check(strings.TrimSpace(value) != "", "chief complaint field is empty")
}

// PrescriptionScenarios covers the RX page and prescription writing.
func PrescriptionScenarios() []scenario.Scenario {
	return []scenario.Scenario{
		{
			ID:    "TC-RX-PAGE-01",
			Suite: Prescription,
			Title: "User should be redirected to RX page after login",
			Run: func(c *scenario.Context) error {
				if err := loginToRX(c); err != nil {
					return err
				}
				c.Step("Verify user is on RX page")
				return c.Check(c.RX.IsOnRXPage(), "not on RX page: %s", c.Base.CurrentURL())
			},
		},
		{
			ID:    "TC-RX-PAGE-02",
			Suite: Prescription,
			Title: "Add Patient button should be visible on RX page",
			Run: func(c *scenario.Context) error {
				if err := loginToRX(c); err != nil {
					return err
				}
				c.Step("Verify Add Patient button is visible")
				return c.Check(c.RX.AddPatientButtonVisible(), "Add Patient button not visible")
			},
		},
		{
			ID:    "TC-RX-PAGE-03",
			Suite: Prescription,
			Title: "Create patient from RX page successfully",
			Run: func(c *scenario.Context) error {
				if _, err := createFromRX(c, "TC-RX-02"); err != nil {
					return err
				}
				c.Step("Verify prescription form is displayed")
				return c.Check(c.RX.PrescriptionFormDisplayed(), "prescription form not displayed")
			},
		},
		{
			ID:    "TC-RX-PAGE-04",
			Suite: Prescription,
			Title: "Chief complaint field should be visible after patient creation",
			Run: func(c *scenario.Context) error {
				if _, err := createFromRX(c, "TC-RX-03"); err != nil {
					return err
				}
				c.Step("Verify chief complaint field is visible")
				return c.Check(c.RX.ChiefComplaintVisible(), "chief complaint field not visible")
			},
		},
		{
			ID:    "TC-RX-PAGE-05",
			Suite: Prescription,
			Title: "User should be able to add chief complaint",
			Run: func(c *scenario.Context) error {
				f, err := createFromRX(c, "TC-RX-04")
				if err != nil {
					return err
				}
				return addComplaint(c, f)
			},
		},
		{
			ID:    "TC-RX-PAGE-06",
			Suite: Prescription,
			Title: "Save button should be visible in prescription form",
			Run: func(c *scenario.Context) error {
				if _, err := createFromRX(c, "TC-RX-02"); err != nil {
					return err
				}
				c.Step("Verify Save button is visible")
				return c.Check(c.RX.SaveButtonVisible(), "Save button not visible")
			},
		},
		{
			ID:    "TC-RX-PAGE-07",
			Suite: Prescription,
			Title: "Complete prescription workflow with chief complaint and save",
			Run: func(c *scenario.Context) error {
				f, err := createFromRX(c, "TC-RX-01")
				if err != nil {
					return err
				}
				if err := addComplaint(c, f); err != nil {
					return err
				}
				c.Step("Save prescription")
				if err := c.RX.SavePrescription(); err != nil {
					return err
				}
				recordSave(c)
				return nil
			},
		},
		{
			ID:    "TC-RX-01",
			Suite: Prescription,
			Title: "Add patient from RX page then write and save prescription",
			Run: func(c *scenario.Context) error {
				if _, err := createFromRX(c, "TC-RX-01"); err != nil {
					return err
				}
				c.Step("Write prescription")
				if err := c.RX.WriteFullPrescription(pages.DefaultFullPrescription); err != nil {
					return err
				}
				c.Step("Save prescription")
				if err := c.RX.SavePrescription(); err != nil {
					return err
				}
				recordSave(c)
				return nil
			},
		},
	}
}
