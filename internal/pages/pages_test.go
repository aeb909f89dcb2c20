package pages

import (
	"bytes"
	"context"
	"log/slog"
	"net/http/httptest"
	"os"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sumitdasdk/DRX-pro/internal/browser"
	"github.com/sumitdasdk/DRX-pro/internal/errs"
	"github.com/sumitdasdk/DRX-pro/internal/fixtures"
	"github.com/sumitdasdk/DRX-pro/internal/obs"
	"github.com/sumitdasdk/DRX-pro/internal/rxstub"
)

func TestMain(m *testing.M) {
	code := m.Run()
	browser.CloseTestLauncher()
	os.Exit(code)
}

var testCreds = fixtures.Credentials{
	Username:           "Sadman",
	Password:           "Sadman1#",
	ExpectedDoctorName: "Dr. Sadman Soeb Adib",
}

type pagesEnv struct {
	stub *rxstub.Server
	urls fixtures.URLs
	base *Base
}

func testTimeouts() Timeouts {
	t := DefaultTimeouts()
	t.Navigation = 15 * time.Second
	t.FillVisible = 5 * time.Second
	t.Click = 5 * time.Second
	t.Element = 5 * time.Second
	t.LoginRedirect = 10 * time.Second
	t.PatientSubmit = 10 * time.Second
	t.Search = 5 * time.Second
	t.HistoryPage = 5 * time.Second
	t.SaveSettle = 200 * time.Millisecond
	return t
}

func setupPagesEnv(t *testing.T, opts rxstub.Options) *pagesEnv {
	t.Helper()

	session := browser.TestSession(t)

	opts.Username = testCreds.Username
	opts.Password = testCreds.Password
	opts.DoctorName = testCreds.ExpectedDoctorName
	stub, err := rxstub.New(opts)
	require.NoError(t, err)
	ts := httptest.NewServer(stub.Handler())
	t.Cleanup(ts.Close)

	urls := fixtures.URLs{
		BaseURL:            ts.URL + "/",
		RXPagePattern:      "**/doctor/rx",
		PatientPagePattern: "**/doctor/patient",
		PatientAddPattern:  "**/doctor/patient/add",
		HistoryPagePattern: "**/doctor/history/**",
	}
	return &pagesEnv{
		stub: stub,
		urls: urls,
		base: NewBase(context.Background(), session.Page, testTimeouts(), 0),
	}
}

func (e *pagesEnv) login(t *testing.T) *LoginPage {
	t.Helper()
	lp := NewLoginPage(e.base, e.urls)
	require.NoError(t, lp.OpenAndLogin(testCreds))
	return lp
}

func TestLogin_LandsOnRXWithDoctorName(t *testing.T) {
	env := setupPagesEnv(t, rxstub.Options{})
	lp := NewLoginPage(env.base, env.urls)

	require.NoError(t, lp.Open())
	require.False(t, lp.IsLoggedIn())
	require.NoError(t, lp.Login(testCreds.Username, testCreds.Password))
	require.True(t, lp.IsLoggedIn())
	require.Contains(t, env.base.CurrentURL(), "doctor/rx")

	name, err := lp.DoctorName()
	require.NoError(t, err)
	require.Contains(t, name, testCreds.ExpectedDoctorName)
}

func TestLogin_BadPasswordShowsAlert(t *testing.T) {
	env := setupPagesEnv(t, rxstub.Options{})
	lp := NewLoginPage(env.base, env.urls)

	require.NoError(t, lp.Open())
	require.NoError(t, lp.Attempt(testCreds.Username, "wrong"))
	require.True(t, lp.LoginErrorVisible())
	require.False(t, lp.IsLoggedIn())
}

func TestBase_FailureCodes(t *testing.T) {
	env := setupPagesEnv(t, rxstub.Options{})
	require.NoError(t, env.base.Navigate(env.urls.BaseURL))

	err := env.base.ClickWithin("missing", env.base.ByRole("button", "Does Not Exist", true), 300*time.Millisecond)
	require.Equal(t, errs.ElementNotFound, errs.CodeOf(err))

	err = env.base.WaitForURL("**/never", 300*time.Millisecond)
	require.Equal(t, errs.NavigationTimeout, errs.CodeOf(err))

	start := time.Now()
	env.base.Settle(time.Hour)
	require.Less(t, time.Since(start), time.Second)

	got, err := env.base.Evaluate("() => document.title")
	require.NoError(t, err)
	require.Contains(t, got, "Login")
}

func TestPatient_CreateThenSearch(t *testing.T) {
	env := setupPagesEnv(t, rxstub.Options{})
	env.login(t)

	pp := NewPatientPage(env.base, env.urls)
	require.NoError(t, pp.NavigateToPatients())
	require.True(t, pp.IsOnPatientPage())

	gen := fixtures.NewGenerator(nil)
	form := NewPatientForm(gen, fixtures.Fixture{PatientNamePrefix: "TestPatient", Age: "28", PhonePrefix: "01700000"})
	require.NoError(t, pp.CreatePatient(form))
	require.True(t, strings.HasSuffix(env.base.CurrentURL(), "/doctor/patient"))
	require.Len(t, env.stub.Store().SearchPatients(form.Name), 1)

	require.NoError(t, pp.SearchPatientByName(form.Name))
	n, err := pp.VisibleMatches(form.Name)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	partial := form.Name[:len("TestPat")]
	require.NoError(t, pp.SearchPatientByPartialName(partial, form.Name))

	err = pp.SearchPatientByName("NoSuchPatient_0")
	require.Equal(t, errs.SearchMismatch, errs.CodeOf(err))

	require.NoError(t, pp.NavigateToRXPage())
	require.Contains(t, env.base.CurrentURL(), "doctor/rx")
}

func TestPrescription_FullWorkflowVerified(t *testing.T) {
	env := setupPagesEnv(t, rxstub.Options{})
	rx := NewPrescriptionPage(env.base, env.urls)

	require.NoError(t, rx.NavigateToRXAndLogin(testCreds.Username, testCreds.Password))
	require.True(t, rx.IsOnRXPage())
	require.True(t, rx.AddPatientButtonVisible())

	form := NewPatientForm(fixtures.NewGenerator(nil), fixtures.Fixture{PatientNamePrefix: "RxPatient", Age: "26", PhonePrefix: "01300000"})
	require.NoError(t, rx.CreatePatientFromRX(form))
	require.True(t, rx.PrescriptionFormDisplayed())
	require.Equal(t, "Write Prescription", rx.FormTitle())
	require.True(t, rx.ChiefComplaintVisible())

	require.NoError(t, rx.AddChiefComplaint("Fever for 3 days"))
	value, err := rx.ChiefComplaintValue()
	require.NoError(t, err)
	require.Equal(t, "Fever for 3 days", value)

	require.NoError(t, rx.WriteFullPrescription(DefaultFullPrescription))
	require.NoError(t, rx.SavePrescription())
	require.Equal(t, SaveVerified, rx.ConfirmSave())

	saved := env.stub.Store().Prescriptions()
	require.Len(t, saved, 1)
	require.Equal(t, form.Name, saved[0].PatientName)
	require.Equal(t, "Fever for 3 days", saved[0].ChiefComplaint)
	require.Contains(t, saved[0].Items, "Medicine: Sergel 20 mg (Capsule)")
	require.Contains(t, saved[0].Items, "Diagnosis: Tonsilitis")
	require.Len(t, saved[0].Items, 7)
}

func TestPrescription_SaveOutcomes(t *testing.T) {
	for name, tc := range map[string]struct {
		opts rxstub.Options
		want SaveOutcome
	}{
		"toast suppressed": {rxstub.Options{SuppressSaveToast: true}, SaveUnverified},
		"save fails":       {rxstub.Options{FailSaves: true}, SaveNotConfirmed},
	} {
		t.Run(name, func(t *testing.T) {
			env := setupPagesEnv(t, tc.opts)
			rx := NewPrescriptionPage(env.base, env.urls)
			require.NoError(t, rx.NavigateToRXAndLogin(testCreds.Username, testCreds.Password))

			form := NewPatientForm(fixtures.NewGenerator(nil), fixtures.Fixture{PatientNamePrefix: "RxSimple", Age: "40", PhonePrefix: "01400000"})
			require.NoError(t, rx.CreatePatientFromRX(form))
			require.NoError(t, rx.AddChiefComplaint("Headache"))
			require.NoError(t, rx.SavePrescription())
			require.Equal(t, tc.want, rx.ConfirmSave())
		})
	}
}

func TestPrescription_FuzzyChiefComplaintFallback(t *testing.T) {
	var buf bytes.Buffer
	restore := obs.SetOutputForTests(&buf)
	defer restore()

	env := setupPagesEnv(t, rxstub.Options{})
	rx := NewPrescriptionPage(env.base, env.urls).WithChiefComplaintMatcher(FieldMatcher{
		Role:  "textbox",
		Exact: "Presenting Symptoms",
		Fuzzy: regexp.MustCompile(`(?i)chief|complaint|symptoms`),
	})
	require.NoError(t, rx.NavigateToRXAndLogin(testCreds.Username, testCreds.Password))

	form := NewPatientForm(fixtures.NewGenerator(nil), fixtures.Fixture{PatientNamePrefix: "RxFuzzy", Age: "33", PhonePrefix: "01500000"})
	require.NoError(t, rx.CreatePatientFromRX(form))
	require.NoError(t, rx.AddChiefComplaint("Cough"))

	require.True(t, rx.ChiefComplaintVisible())
	value, err := rx.ChiefComplaintValue()
	require.NoError(t, err)
	require.Equal(t, "Cough", value)

	require.Equal(t, 1, strings.Count(buf.String(), "using fuzzy match"))
}

func TestBase_SetStepTagsLaterLogs(t *testing.T) {
	var buf bytes.Buffer
	restore := obs.SetOutputForTests(&buf)
	defer restore()
	obs.SetLevel(slog.LevelDebug)
	defer obs.SetLevel(slog.LevelInfo)

	ctx := obs.WithCorrelation(context.Background(), obs.Correlation{RunID: "run-9", Scenario: "TC-001"})
	b := NewBase(ctx, nil, DefaultTimeouts(), 0)
	b.Settle(time.Second)
	b.SetStep("Step 2: Verify doctor name")
	b.Settle(time.Second)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	require.NotContains(t, lines[0], `"step"`)
	require.Contains(t, lines[1], `"step":"Step 2: Verify doctor name"`)
	require.Contains(t, lines[1], `"scenario":"TC-001"`)
	require.Contains(t, lines[1], `"scaled":0`)
}

func TestHistory_ListsSavedPrescriptions(t *testing.T) {
	env := setupPagesEnv(t, rxstub.Options{})
	env.login(t)

	patient, err := env.stub.Store().AddPatient("HistPatient_1", "50", "01900001")
	require.NoError(t, err)
	_, err = env.stub.Store().SavePrescription(patient.ID, "Fever", []string{"Diagnosis: Viral Fever"})
	require.NoError(t, err)

	hp := NewHistoryPage(env.base, env.urls)
	require.NoError(t, hp.NavigateToHistory())
	require.True(t, hp.IsOnHistoryPage())
	require.True(t, hp.HistoryTableVisible())
	require.True(t, hp.HeaderVisible())
	require.Equal(t, 1, hp.HistoryRecordCount())
}

func TestTimeoutsFromStore(t *testing.T) {
	t.Parallel()

	require.Equal(t, DefaultTimeouts(), TimeoutsFromStore(nil))

	got := TimeoutsFromStore(&fixtures.Store{Timeouts: map[string]int64{
		"navigation":     5000,
		"elementVisible": 2500,
		"search":         0,
	}})
	require.Equal(t, 5*time.Second, got.Navigation)
	require.Equal(t, 2500*time.Millisecond, got.FillVisible)
	require.Equal(t, 2500*time.Millisecond, got.Element)
	require.Equal(t, 12*time.Second, got.Search)
	require.Equal(t, 30*time.Second, got.LoginRedirect)
}

func TestSaveOutcome_String(t *testing.T) {
	t.Parallel()
	require.Equal(t, "verified save", SaveVerified.String())
	require.Equal(t, "unverified save", SaveUnverified.String())
	require.Equal(t, "save not confirmed", SaveNotConfirmed.String())
}

func TestNewPatientForm_UsesGenerator(t *testing.T) {
	t.Parallel()

	clock := fixtures.NewFakeClock(time.UnixMilli(1_760_000_001_234))
	form := NewPatientForm(fixtures.NewGenerator(clock), fixtures.Fixture{PatientNamePrefix: "TestPatient", Age: "28", PhonePrefix: "01700000"})
	require.Equal(t, PatientForm{Name: "TestPatient_1760000001234", Age: "28", Phone: "017000001234"}, form)
}

func TestNewHistoryPage_DefaultPattern(t *testing.T) {
	t.Parallel()
	hp := NewHistoryPage(nil, fixtures.URLs{})
	require.Equal(t, DefaultHistoryPagePattern, hp.pattern)
	require.Equal(t, "doctor/history", hp.URLSegment())
}
