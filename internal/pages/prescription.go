package pages

import (
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/sumitdasdk/DRX-pro/internal/fixtures"
)

// FieldMatcher locates a form field by role. An exact accessible name is tried
// first; when nothing carries it the fuzzy pattern is used and the fallback logged.
type FieldMatcher struct {
	Role  string
	Exact string
	Fuzzy *regexp.Regexp
}

// DefaultChiefComplaintMatcher matches the chief complaint textbox.
var DefaultChiefComplaintMatcher = FieldMatcher{
	Role:  "textbox",
	Exact: "Chief Complaint",
	Fuzzy: regexp.MustCompile(`(?i)chief|complaint|symptoms`),
}

// SaveOutcome is the result of the best-effort save confirmation.
type SaveOutcome int

const (
	// SaveVerified: the success toast was visible.
	SaveVerified SaveOutcome = iota
	// SaveUnverified: no toast, but the session is still on a doctor page.
	SaveUnverified
	// SaveNotConfirmed: no toast and the session left the doctor pages.
	SaveNotConfirmed
)

func (o SaveOutcome) String() string {
	switch o {
	case SaveVerified:
		return "verified save"
	case SaveUnverified:
		return "unverified save"
	default:
		return "save not confirmed"
	}
}

const saveToastText = "Prescription saved"

// FullPrescription is what the full workflow picks in each section.
type FullPrescription struct {
	Complaint   string
	History     string
	Examination string
	Diagnosis   string
	Medicine    string
	Advice      string
	FollowUp    string
}

// DefaultFullPrescription is the recorded clinical workflow.
var DefaultFullPrescription = FullPrescription{
	Complaint:   "Generalized Weakness",
	History:     "IHD/CAD",
	Examination: "/80 mmHg",
	Diagnosis:   "Tonsilitis",
	Medicine:    "Sergel 20 mg (Capsule)",
	Advice:      "Take 8 hours sleep",
	FollowUp:    "ব্যাথা বাড়লে আসবেন",
}

// PrescriptionPage drives the RX page:
//
//	unauthenticated -> RX page -> patient created -> form populated -> saved
type PrescriptionPage struct {
	base            *Base
	urls            fixtures.URLs
	login           *LoginPage
	complaintFields FieldMatcher
	fuzzyLogged     *sync.Once
}

// NewPrescriptionPage creates the RX driver with the default chief complaint matcher.
func NewPrescriptionPage(base *Base, urls fixtures.URLs) *PrescriptionPage {
	return &PrescriptionPage{
		base:            base,
		urls:            urls,
		login:           NewLoginPage(base, urls),
		complaintFields: DefaultChiefComplaintMatcher,
		fuzzyLogged:     new(sync.Once),
	}
}

// WithChiefComplaintMatcher replaces the chief complaint matcher.
func (p *PrescriptionPage) WithChiefComplaintMatcher(m FieldMatcher) *PrescriptionPage {
	p.complaintFields = m
	p.fuzzyLogged = new(sync.Once)
	return p
}

// NavigateToRXAndLogin opens the app and logs in, landing on the RX page.
func (p *PrescriptionPage) NavigateToRXAndLogin(username, password string) error {
	if err := p.login.Open(); err != nil {
		return err
	}
	return p.login.Login(username, password)
}

// IsOnRXPage reports whether the current URL is the RX page.
func (p *PrescriptionPage) IsOnRXPage() bool {
	return strings.Contains(p.base.CurrentURL(), fixtures.PathSegment(p.urls.RXPagePattern))
}

func (p *PrescriptionPage) addPatientButton() playwright.Locator {
	return p.base.ByRole("button", "Add Patient", false)
}

func (p *PrescriptionPage) saveButton() playwright.Locator {
	return p.base.ByRole("button", "Save", true)
}

// AddPatientButtonVisible reports whether Add Patient shows within the element ceiling.
func (p *PrescriptionPage) AddPatientButtonVisible() bool {
	return p.base.VisibleWithin(p.addPatientButton(), p.base.Timeouts().Element)
}

// ClickAddPatient opens the add patient dialog.
func (p *PrescriptionPage) ClickAddPatient() error {
	if err := p.base.ClickWithin("Add Patient", p.addPatientButton(), 60*time.Second); err != nil {
		return err
	}
	p.base.Settle(800 * time.Millisecond)
	return nil
}

// CreatePatientFromRX adds a patient through the RX page dialog.
func (p *PrescriptionPage) CreatePatientFromRX(form PatientForm) error {
	if err := p.ClickAddPatient(); err != nil {
		return err
	}
	if err := fillPatientFields(p.base, form); err != nil {
		return err
	}
	if err := p.base.Click("Submit", submitButton(p.base)); err != nil {
		return err
	}
	p.base.Settle(time.Second)
	return nil
}

// ChiefComplaintField resolves the chief complaint field through the matcher.
func (p *PrescriptionPage) ChiefComplaintField() playwright.Locator {
	m := p.complaintFields
	if m.Exact != "" {
		exact := p.base.ByRole(m.Role, m.Exact, true)
		if n, err := exact.Count(); err == nil && n > 0 {
			return exact.First()
		}
	}
	if m.Fuzzy == nil {
		return p.base.ByRole(m.Role, m.Exact, true).First()
	}
	p.fuzzyLogged.Do(func() {
		p.base.log().Info("chief complaint: exact name not found, using fuzzy match",
			"exact", m.Exact,
			"pattern", m.Fuzzy.String(),
		)
	})
	return p.base.ByRoleMatching(m.Role, m.Fuzzy).First()
}

// AddChiefComplaint types text into the chief complaint field.
func (p *PrescriptionPage) AddChiefComplaint(text string) error {
	if err := p.base.Fill("chief complaint", p.ChiefComplaintField(), text); err != nil {
		return err
	}
	p.base.Settle(500 * time.Millisecond)
	return nil
}

// ChiefComplaintVisible reports whether the chief complaint field shows.
func (p *PrescriptionPage) ChiefComplaintVisible() bool {
	return p.base.VisibleWithin(p.ChiefComplaintField(), p.base.Timeouts().Element)
}

// ChiefComplaintValue returns the chief complaint text.
func (p *PrescriptionPage) ChiefComplaintValue() (string, error) {
	return p.base.InputValue("chief complaint", p.ChiefComplaintField())
}

// SaveButtonVisible reports whether the exact Save button shows.
func (p *PrescriptionPage) SaveButtonVisible() bool {
	return p.base.VisibleWithin(p.saveButton(), p.base.Timeouts().Element)
}

// PrescriptionFormDisplayed reports whether the prescription form is ready.
func (p *PrescriptionPage) PrescriptionFormDisplayed() bool {
	return p.SaveButtonVisible()
}

// FormTitle returns the first heading of the RX page, or "" when there is none.
func (p *PrescriptionPage) FormTitle() string {
	title, err := p.base.Text("form title", p.base.Locator("h1, h2, .form-title").First(), p.base.Timeouts().Element)
	if err != nil {
		return ""
	}
	return title
}

// OpenComplaintSuggestions clicks the first Add icon, which opens the complaint list.
func (p *PrescriptionPage) OpenComplaintSuggestions() error {
	if err := p.base.ClickWithin("complaint add icon", p.base.ByTestID("AddIcon").First(), p.base.Timeouts().Element); err != nil {
		return err
	}
	p.base.Settle(300 * time.Millisecond)
	return nil
}

// OpenSection switches to a prescription section tab such as "Diagnosis".
func (p *PrescriptionPage) OpenSection(name string) error {
	return p.base.Click("section "+name, p.base.ByRole("tab", name, true))
}

// PickOption clicks the suggestion button whose name contains option.
func (p *PrescriptionPage) PickOption(option string) error {
	return p.base.Click(option, p.base.ByRole("button", option, false).First())
}

// DismissOverlays closes floating popovers so they cannot intercept clicks.
func (p *PrescriptionPage) DismissOverlays() {
	p.base.Settle(500 * time.Millisecond)
	if err := p.base.PressKey("Escape"); err != nil {
		p.base.log().Debug("escape ignored", "error", err)
	}
	p.base.Settle(300 * time.Millisecond)
	_, err := p.base.Evaluate(`() => {
		const overlay = document.querySelector('[data-floating-ui-portal], [id^="floating-ui-"]');
		if (overlay instanceof HTMLElement) overlay.style.pointerEvents = 'none';
	}`)
	if err != nil {
		p.base.log().Debug("overlay script ignored", "error", err)
	}
	p.base.Settle(200 * time.Millisecond)
}

func (p *PrescriptionPage) editor() playwright.Locator {
	return p.base.Locator("#rx_editor_container")
}

// FocusEditor clicks into the medicine editor.
func (p *PrescriptionPage) FocusEditor() error {
	if err := p.base.Click("rx editor", p.editor()); err != nil {
		return err
	}
	p.base.Settle(300 * time.Millisecond)
	return nil
}

// AddMedicine opens the editor's medicine list and picks medicine.
func (p *PrescriptionPage) AddMedicine(medicine string) error {
	if err := p.base.Click("medicine add icon", p.editor().GetByTestId("AddIcon")); err != nil {
		return err
	}
	p.base.Settle(300 * time.Millisecond)
	if err := p.PickOption(medicine); err != nil {
		return err
	}
	p.base.Settle(400 * time.Millisecond)
	return nil
}

// WriteFullPrescription fills every clinical section of the form.
func (p *PrescriptionPage) WriteFullPrescription(rx FullPrescription) error {
	steps := []func() error{
		p.OpenComplaintSuggestions,
		func() error { return p.PickOption(rx.Complaint) },
		func() error { return p.OpenSection("History") },
		func() error { return p.PickOption(rx.History) },
		func() error { return p.OpenSection("On Examinations") },
		func() error { return p.PickOption(rx.Examination) },
		func() error { return p.OpenSection("Diagnosis") },
		func() error { return p.PickOption(rx.Diagnosis) },
		func() error { p.DismissOverlays(); return nil },
		p.FocusEditor,
		func() error { return p.AddMedicine(rx.Medicine) },
		func() error { return p.OpenSection("Advices") },
		func() error { return p.PickOption(rx.Advice) },
		func() error { return p.OpenSection("Follow-up") },
		func() error { return p.PickOption(rx.FollowUp) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

// SavePrescription clicks Save and waits the fixed save settle. It does not confirm persistence.
func (p *PrescriptionPage) SavePrescription() error {
	if err := p.base.Click("Save", p.saveButton()); err != nil {
		return err
	}
	p.base.Delay(p.base.Timeouts().SaveSettle)
	return nil
}

// ConfirmSave checks for the success toast, falling back to the URL. It never fails.
func (p *PrescriptionPage) ConfirmSave() SaveOutcome {
	if err := p.base.WaitForLoad(); err != nil {
		p.base.log().Debug("save confirmation: page still loading", "error", err)
	}
	if p.base.IsVisible(p.base.ByText(saveToastText).First()) {
		return SaveVerified
	}
	if strings.Contains(p.base.CurrentURL(), "doctor") {
		return SaveUnverified
	}
	return SaveNotConfirmed
}
