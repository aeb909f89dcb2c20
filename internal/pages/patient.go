package pages

import (
	"fmt"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/sumitdasdk/DRX-pro/internal/errs"
	"github.com/sumitdasdk/DRX-pro/internal/fixtures"
)

// PatientPage drives the patient list, the add form and the list search.
//
//	List -> Add-Form -> List      (CreatePatient)
//	List -> List-filtered         (SearchPatientByName, SearchPatientByPartialName)
type PatientPage struct {
	base *Base
	urls fixtures.URLs
}

// NewPatientPage creates the patient driver.
func NewPatientPage(base *Base, urls fixtures.URLs) *PatientPage {
	return &PatientPage{base: base, urls: urls}
}

// PatientForm is the input of the add-patient form.
type PatientForm struct {
	Name  string
	Age   string
	Phone string
}

// NewPatientForm builds a unique form from a fixture.
func NewPatientForm(gen *fixtures.Generator, f fixtures.Fixture) PatientForm {
	return PatientForm{
		Name:  gen.PatientName(f.PatientNamePrefix),
		Age:   f.Age,
		Phone: gen.PatientPhone(f.PhonePrefix),
	}
}

// fillPatientFields fills the three mandatory fields. Shared with the RX page dialog.
func fillPatientFields(b *Base, form PatientForm) error {
	if err := b.Fill("Patient Name", b.ByRole("textbox", "Patient Name", false), form.Name); err != nil {
		return err
	}
	b.Settle(300 * time.Millisecond)
	if err := b.Fill("Years", b.ByRole("textbox", "Years", false), form.Age); err != nil {
		return err
	}
	b.Settle(200 * time.Millisecond)
	if err := b.Fill("phone", b.ByRole("textbox", "e.x: 016********", false), form.Phone); err != nil {
		return err
	}
	b.Settle(300 * time.Millisecond)
	return nil
}

func submitButton(b *Base) playwright.Locator {
	return b.ByRole("button", "Submit", false)
}

// NavigateToPatients clicks the Patients nav button and waits for the list.
func (p *PatientPage) NavigateToPatients() error {
	if err := p.base.Click("Patients", p.base.ByRole("button", "Patients", true)); err != nil {
		return err
	}
	if err := p.base.WaitForURL(p.urls.PatientPagePattern, p.base.Timeouts().Click); err != nil {
		return err
	}
	p.base.Settle(2 * time.Second)
	return nil
}

// IsOnPatientPage reports whether the current URL is on the patient list or form.
func (p *PatientPage) IsOnPatientPage() bool {
	return strings.Contains(p.base.CurrentURL(), fixtures.PathSegment(p.urls.PatientPagePattern))
}

// ClickCreatePatient opens the add form.
func (p *PatientPage) ClickCreatePatient() error {
	if err := p.base.Click("Create Patient", p.base.ByRole("button", "Create Patient", false)); err != nil {
		return err
	}
	if err := p.base.WaitForURL(p.urls.PatientAddPattern, p.base.Timeouts().Click); err != nil {
		return err
	}
	p.base.Settle(1500 * time.Millisecond)
	return nil
}

// CreatePatientButtonVisible reports whether the list's Create Patient button shows within the element ceiling.
func (p *PatientPage) CreatePatientButtonVisible() bool {
	return p.base.VisibleWithin(p.base.ByRole("button", "Create Patient", false), p.base.Timeouts().Element)
}

// FillPatientForm fills name, age and phone with short settles in between.
func (p *PatientPage) FillPatientForm(form PatientForm) error {
	return fillPatientFields(p.base, form)
}

// SubmitPatientForm submits and waits for the return to the patient list.
func (p *PatientPage) SubmitPatientForm() error {
	err := p.base.ClickAndWaitForURL("Submit", submitButton(p.base), p.urls.PatientPagePattern, p.base.Timeouts().PatientSubmit)
	if err != nil {
		return err
	}
	p.base.Settle(time.Second)
	return nil
}

// CreatePatient runs the whole create flow from the patient list.
func (p *PatientPage) CreatePatient(form PatientForm) error {
	if err := p.ClickCreatePatient(); err != nil {
		return err
	}
	if err := p.FillPatientForm(form); err != nil {
		return err
	}
	return p.SubmitPatientForm()
}

// SearchPatientByName filters the list by name and expects that name's row.
func (p *PatientPage) SearchPatientByName(name string) error {
	return p.search(name, name)
}

// SearchPatientByPartialName filters by partial and expects fullName's row.
func (p *PatientPage) SearchPatientByPartialName(partial, fullName string) error {
	return p.search(partial, fullName)
}

func (p *PatientPage) search(query, expected string) error {
	if err := p.base.WaitForURL(p.urls.PatientPagePattern, p.base.Timeouts().PatientSubmit); err != nil {
		return err
	}
	p.base.Settle(2 * time.Second)

	if err := p.base.Fill("search patient", p.searchField(), query); err != nil {
		return err
	}
	p.base.Settle(time.Second)

	row := p.base.ByText(expected).First()
	if !p.base.VisibleWithin(row, p.base.Timeouts().Search) {
		return errs.New(errs.SearchMismatch, fmt.Sprintf("search %q: no visible row for %q", query, expected))
	}
	return nil
}

func (p *PatientPage) searchField() playwright.Locator {
	return p.base.ByRole("textbox", "search patient", false)
}

// VisibleMatches counts the visible elements whose text is exactly name.
func (p *PatientPage) VisibleMatches(name string) (int, error) {
	return p.base.CountVisible(p.base.ByExactText(name))
}

// NavigateToRXPage tries to reach the RX page from here. Callers treat failure as an observation.
func (p *PatientPage) NavigateToRXPage() error {
	if err := p.base.ClickWithin("RX", p.base.ByRole("button", "RX", true), 8*time.Second); err != nil {
		return err
	}
	if err := p.base.WaitForURL(p.urls.RXPagePattern, 10*time.Second); err != nil {
		return err
	}
	p.base.Settle(2 * time.Second)
	return nil
}
