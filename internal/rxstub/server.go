// Package rxstub is an in-process imitation of the Digital Rx Pro web UI.
//
// It renders the same accessible surface the page drivers rely on (button and
// textbox names, test ids, URL paths) over an in-memory store, so the harness
// can be exercised end to end without the hosted application.
package rxstub

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sumitdasdk/DRX-pro/internal/fixtures"
	"github.com/sumitdasdk/DRX-pro/internal/obs"
	"github.com/sumitdasdk/DRX-pro/internal/ratelimit"
)

// Section is one tab of the prescription form with its suggestion buttons.
type Section struct {
	ID      string
	Name    string
	Options []string
}

// Vocabulary offered by the prescription form.
var (
	DefaultComplaints = []string{"Generalized Weakness", "Fever", "Headache", "Cough"}
	DefaultSections   = []Section{
		{ID: "history", Name: "History", Options: []string{"IHD/CAD", "DM", "HTN", "Asthma"}},
		{ID: "examination", Name: "On Examinations", Options: []string{"BP: 120/80 mmHg", "Pulse: 72 bpm", "Temp: 98.6 °F"}},
		{ID: "diagnosis", Name: "Diagnosis", Options: []string{"Tonsilitis", "Viral Fever", "Migraine"}},
		{ID: "advice", Name: "Advices", Options: []string{"Take 8 hours sleep", "Drink plenty of water"}},
		{ID: "followup", Name: "Follow-up", Options: []string{"ব্যাথা বাড়লে আসবেন", "7 days later"}},
	}
	DefaultMedicines = []string{"Sergel 20 mg (Capsule)", "Napa 500 mg (Tablet)", "Fexo 120 mg (Tablet)"}
)

// Options configure the stub.
type Options struct {
	Username   string
	Password   string
	DoctorName string
	// Latency delays every response, imitating a slow backend.
	Latency time.Duration
	// SuppressSaveToast saves prescriptions without showing the confirmation toast.
	SuppressSaveToast bool
	// FailSaves rejects every prescription save and leaves the doctor area.
	FailSaves bool
	// RequestsPerSecond throttles each logged-in session, answering 429 beyond
	// RequestBurst. Zero disables throttling.
	RequestsPerSecond float64
	RequestBurst      int
}

// OptionsFromCredentials builds Options accepting the given login.
func OptionsFromCredentials(c fixtures.Credentials) Options {
	return Options{
		Username:   c.Username,
		Password:   c.Password,
		DoctorName: c.ExpectedDoctorName,
	}
}

// Server serves the stub UI.
type Server struct {
	opts     Options
	store    *Store
	sessions *SessionStore
	renderer *Renderer
	limiter  *ratelimit.RateLimiter
}

// New creates a stub server.
func New(opts Options) (*Server, error) {
	if opts.Username == "" || opts.Password == "" {
		return nil, errors.New("rxstub: username and password are required")
	}
	if opts.DoctorName == "" {
		opts.DoctorName = "Dr. " + opts.Username
	}
	renderer, err := NewRenderer(mustSub(templateFS, "templates"))
	if err != nil {
		return nil, err
	}
	s := &Server{
		opts:     opts,
		store:    NewStore(),
		sessions: NewSessionStore(),
		renderer: renderer,
	}
	if opts.RequestsPerSecond > 0 {
		s.limiter = ratelimit.NewRateLimiter(ratelimit.Config{
			PerSecond: opts.RequestsPerSecond,
			Burst:     opts.RequestBurst,
		})
	}
	return s, nil
}

// Close releases background resources.
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.Stop()
		s.limiter = nil
	}
}

// Store exposes the in-memory state for assertions.
func (s *Server) Store() *Store {
	return s.store
}

// Handler returns the stub's HTTP handler wrapped in request correlation and access logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	var h http.Handler = mux
	if s.opts.Latency > 0 {
		h = withLatency(s.opts.Latency, h)
	}
	if s.limiter != nil {
		h = ratelimit.Middleware(s.limiter, sessionKey)(h)
	}
	return obs.RequestContextMiddleware(obs.AccessLogMiddleware("rxstub", h))
}

// RegisterRoutes registers all stub routes on mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.HandleLoginPage)
	mux.HandleFunc("POST /login", s.HandleLogin)
	mux.HandleFunc("POST /logout", s.HandleLogout)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.Handle("GET /doctor/rx", s.requireSession(s.HandleRXPage))
	mux.Handle("POST /doctor/rx/patient", s.requireSession(s.HandleCreatePatientFromRX))
	mux.Handle("POST /doctor/rx/save", s.requireSession(s.HandleSavePrescription))
	mux.Handle("GET /doctor/patient", s.requireSession(s.HandlePatientList))
	mux.Handle("GET /doctor/patient/add", s.requireSession(s.HandleAddPatientPage))
	mux.Handle("POST /doctor/patient/add", s.requireSession(s.HandleAddPatient))
	mux.Handle("GET /doctor/history", s.requireSession(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/doctor/history/all", http.StatusFound)
	}))
	mux.Handle("GET /doctor/history/{scope}", s.requireSession(s.HandleHistory))
	mux.HandleFunc("GET /save-failed", s.HandleSaveFailed)
}

type viewData struct {
	Doctor        string
	Error         string
	DialogOpen    bool
	Patient       *Patient
	Patients      []Patient
	Prescriptions []Prescription
	Saved         *Prescription
	Complaints    []string
	Sections      []Section
	Medicines     []string
}

func (s *Server) view() viewData {
	return viewData{
		Doctor:     s.opts.DoctorName,
		Complaints: DefaultComplaints,
		Sections:   DefaultSections,
		Medicines:  DefaultMedicines,
	}
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, code int, name string, data viewData) {
	if err := s.renderer.Render(w, code, name, data); err != nil {
		obs.From(r.Context()).Error("render failed", "template", name, "error", err)
	}
}

// HandleLoginPage shows the login form, or forwards a logged-in doctor to the RX page.
func (s *Server) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.currentUser(r); ok {
		http.Redirect(w, r, "/doctor/rx", http.StatusFound)
		return
	}
	s.render(w, r, http.StatusOK, "login", viewData{Error: r.URL.Query().Get("error")})
}

// HandleLogin checks the credentials and starts a session.
func (s *Server) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}
	username := strings.TrimSpace(r.PostFormValue("username"))
	password := r.PostFormValue("password")

	if username != s.opts.Username || password != s.opts.Password {
		obs.From(r.Context()).Info("login rejected", "username", username)
		s.render(w, r, http.StatusUnauthorized, "login", viewData{Error: "Invalid username or password"})
		return
	}

	sessionID, err := s.sessions.Create(username)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	SetCookie(w, sessionID)
	obs.From(r.Context()).Info("login accepted", "username", username)
	http.Redirect(w, r, "/doctor/rx", http.StatusSeeOther)
}

// HandleLogout ends the session.
func (s *Server) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if id, err := GetFromRequest(r); err == nil {
		s.sessions.Delete(id)
	}
	ClearCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleRXPage renders the prescription page, with the form when ?patient= is set
// and the confirmation toast when ?saved= is set.
func (s *Server) HandleRXPage(w http.ResponseWriter, r *http.Request) {
	data := s.view()
	q := r.URL.Query()

	if id := q.Get("patient"); id != "" {
		p, err := s.store.Patient(id)
		if err != nil {
			http.Redirect(w, r, "/doctor/rx", http.StatusFound)
			return
		}
		data.Patient = &p
	}
	if id := q.Get("saved"); id != "" && !s.opts.SuppressSaveToast {
		for _, rx := range s.store.Prescriptions() {
			if rx.ID == id {
				data.Saved = &rx
				break
			}
		}
	}
	s.render(w, r, http.StatusOK, "rx", data)
}

// HandleCreatePatientFromRX creates a patient from the RX page dialog and opens its form.
func (s *Server) HandleCreatePatientFromRX(w http.ResponseWriter, r *http.Request) {
	p, ok := s.createPatient(w, r, "rx")
	if !ok {
		return
	}
	http.Redirect(w, r, "/doctor/rx?patient="+url.QueryEscape(p.ID), http.StatusSeeOther)
}

// HandleSavePrescription stores the submitted prescription.
func (s *Server) HandleSavePrescription(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}
	if s.opts.FailSaves {
		obs.From(r.Context()).Warn("prescription save rejected")
		http.Redirect(w, r, "/save-failed", http.StatusSeeOther)
		return
	}

	rx, err := s.store.SavePrescription(r.PostFormValue("patient_id"), r.PostFormValue("chief_complaint"), r.PostForm["item"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	obs.From(r.Context()).Info("prescription saved",
		"prescription_id", rx.ID,
		"patient_id", rx.PatientID,
		"items", len(rx.Items),
	)
	http.Redirect(w, r, "/doctor/rx?saved="+url.QueryEscape(rx.ID), http.StatusSeeOther)
}

// HandleSaveFailed is where failed saves land.
func (s *Server) HandleSaveFailed(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write([]byte("<!DOCTYPE html><title>Error</title><h1>Something went wrong</h1>"))
}

// HandlePatientList renders the patient list.
func (s *Server) HandlePatientList(w http.ResponseWriter, r *http.Request) {
	data := s.view()
	data.Patients = s.store.SearchPatients(r.URL.Query().Get("q"))
	s.render(w, r, http.StatusOK, "patients", data)
}

// HandleAddPatientPage renders the create-patient form.
func (s *Server) HandleAddPatientPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "patient_add", s.view())
}

// HandleAddPatient creates a patient and returns to the list.
func (s *Server) HandleAddPatient(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.createPatient(w, r, "patient_add"); !ok {
		return
	}
	http.Redirect(w, r, "/doctor/patient", http.StatusSeeOther)
}

// HandleHistory renders saved prescriptions.
func (s *Server) HandleHistory(w http.ResponseWriter, r *http.Request) {
	data := s.view()
	data.Prescriptions = s.store.Prescriptions()
	if r.PathValue("scope") == "today" {
		today := time.Now().Truncate(24 * time.Hour)
		kept := data.Prescriptions[:0]
		for _, rx := range data.Prescriptions {
			if !rx.SavedAt.Before(today) {
				kept = append(kept, rx)
			}
		}
		data.Prescriptions = kept
	}
	s.render(w, r, http.StatusOK, "history", data)
}

// createPatient handles a patient form post, re-rendering formTemplate on invalid input.
func (s *Server) createPatient(w http.ResponseWriter, r *http.Request, formTemplate string) (Patient, bool) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return Patient{}, false
	}
	p, err := s.store.AddPatient(r.PostFormValue("name"), r.PostFormValue("years"), r.PostFormValue("phone"))
	if err != nil {
		data := s.view()
		data.Error = strings.TrimPrefix(err.Error(), ErrInvalidPatient.Error()+"\n")
		data.DialogOpen = true
		s.render(w, r, http.StatusUnprocessableEntity, formTemplate, data)
		return Patient{}, false
	}
	obs.From(r.Context()).Info("patient created", "patient_id", p.ID, "name", p.Name)
	return p, true
}

func (s *Server) currentUser(r *http.Request) (string, bool) {
	id, err := GetFromRequest(r)
	if err != nil {
		return "", false
	}
	user, err := s.sessions.Validate(id)
	if err != nil {
		return "", false
	}
	return user, true
}

// requireSession redirects to the login page when no valid session is present.
func (s *Server) requireSession(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := s.currentUser(r); !ok {
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
		next(w, r)
	})
}

// sessionKey keys throttling by session cookie; anonymous requests are not throttled.
func sessionKey(r *http.Request) string {
	id, err := GetFromRequest(r)
	if err != nil {
		return ""
	}
	return id
}

func withLatency(d time.Duration, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(d):
		case <-r.Context().Done():
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Instance is a stub server listening on a real socket.
type Instance struct {
	*Server
	URL string
	srv *http.Server
}

// Listen starts the stub on addr ("127.0.0.1:0" picks a free port).
func Listen(opts Options, addr string) (*Instance, error) {
	s, err := New(opts)
	if err != nil {
		return nil, err
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("rxstub: listen %s: %w", addr, err)
	}
	inst := &Instance{
		Server: s,
		URL:    "http://" + ln.Addr().String() + "/",
		srv: &http.Server{
			Handler:           s.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
	go func() {
		if err := inst.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			obs.Pkg("rxstub").Error("stub server stopped", "error", err)
		}
	}()
	obs.Pkg("rxstub").Info("stub listening", "url", inst.URL)
	return inst, nil
}

// Close shuts the listener down, waiting for in-flight requests.
func (i *Instance) Close(ctx context.Context) error {
	defer i.Server.Close()
	return i.srv.Shutdown(ctx)
}
