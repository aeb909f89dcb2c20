// Package fixtures loads the test data store: login credentials, URL patterns,
// per-scenario patient and prescription fixtures, and named timeouts.
package fixtures

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sumitdasdk/DRX-pro/internal/errs"
)

// DefaultTimeout is returned by Store.Timeout for names the store does not define.
const DefaultTimeout = 10 * time.Second

// Category groups fixtures; ids are unique within a category.
type Category string

const (
	CategoryPatient      Category = "patient"
	CategoryPrescription Category = "prescription"
)

// Credentials is the doctor login used by every suite.
type Credentials struct {
	Username           string `json:"username"`
	Password           string `json:"password"`
	ExpectedDoctorName string `json:"expectedDoctorName"`
}

// URLs holds the base URL and the glob patterns the drivers wait on.
type URLs struct {
	BaseURL            string `json:"baseUrl"`
	RXPagePattern      string `json:"rxPagePattern"`
	PatientPagePattern string `json:"patientPagePattern"`
	PatientAddPattern  string `json:"patientAddPattern"`
	HistoryPagePattern string `json:"historyPagePattern,omitempty"`
}

// Fixture is the literal input of one scenario.
type Fixture struct {
	Description       string `json:"description,omitempty"`
	PatientNamePrefix string `json:"patientNamePrefix"`
	Age               string `json:"age"`
	PhonePrefix       string `json:"phonePrefix"`
	SearchKeyword     string `json:"searchKeyword,omitempty"`
	ChiefComplaint    string `json:"chiefComplaint,omitempty"`
}

// Store is the parsed test data store. It is read-only once loaded.
type Store struct {
	Login        Credentials        `json:"login"`
	URLs         URLs               `json:"urls"`
	Patient      map[string]Fixture `json:"patient"`
	Prescription map[string]Fixture `json:"prescription"`
	Timeouts     map[string]int64   `json:"timeouts"`
}

// SchemaError lists every problem found while validating a store.
type SchemaError struct {
	Source   string
	Problems []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("test data store %s is invalid:\n  - %s", e.Source, strings.Join(e.Problems, "\n  - "))
}

var requiredSections = []string{"login", "urls", "patient", "prescription", "timeouts"}

// Parse decodes and validates a store. Unknown keys and missing required keys fail.
func Parse(source string, data []byte) (*Store, error) {
	var sections map[string]json.RawMessage
	if err := json.Unmarshal(data, &sections); err != nil {
		return nil, errs.Wrap(errs.ConfigurationError, "parse test data store "+source, err)
	}

	var problems []string
	for _, name := range requiredSections {
		if _, ok := sections[name]; !ok {
			problems = append(problems, fmt.Sprintf("missing section %q", name))
		}
	}
	if len(problems) > 0 {
		return nil, errs.Wrap(errs.ConfigurationError, "invalid test data store", &SchemaError{Source: source, Problems: problems})
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var store Store
	if err := dec.Decode(&store); err != nil {
		return nil, errs.Wrap(errs.ConfigurationError, "decode test data store "+source, err)
	}

	if err := store.Validate(); err != nil {
		if se, ok := err.(*SchemaError); ok {
			se.Source = source
		}
		return nil, errs.Wrap(errs.ConfigurationError, "invalid test data store", err)
	}
	return &store, nil
}

// Validate checks required keys and value ranges, returning a *SchemaError.
func (s *Store) Validate() error {
	var problems []string

	if s.Login.Username == "" {
		problems = append(problems, "login.username is required")
	}
	if s.Login.Password == "" {
		problems = append(problems, "login.password is required")
	}

	required := map[string]string{
		"urls.baseUrl":            s.URLs.BaseURL,
		"urls.rxPagePattern":      s.URLs.RXPagePattern,
		"urls.patientPagePattern": s.URLs.PatientPagePattern,
		"urls.patientAddPattern":  s.URLs.PatientAddPattern,
	}
	for _, key := range sortedKeys(required) {
		if strings.TrimSpace(required[key]) == "" {
			problems = append(problems, key+" is required")
		}
	}

	problems = append(problems, validateFixtures(CategoryPatient, s.Patient)...)
	problems = append(problems, validateFixtures(CategoryPrescription, s.Prescription)...)

	for _, name := range sortedKeys(s.Timeouts) {
		if s.Timeouts[name] <= 0 {
			problems = append(problems, fmt.Sprintf("timeouts.%s must be positive", name))
		}
	}

	if len(problems) > 0 {
		return &SchemaError{Problems: problems}
	}
	return nil
}

func validateFixtures(category Category, fixtures map[string]Fixture) []string {
	var problems []string
	for _, id := range sortedKeys(fixtures) {
		f := fixtures[id]
		prefix := fmt.Sprintf("%s.%s", category, id)
		if f.PatientNamePrefix == "" {
			problems = append(problems, prefix+".patientNamePrefix is required")
		}
		if f.Age == "" {
			problems = append(problems, prefix+".age is required")
		}
		if f.PhonePrefix == "" {
			problems = append(problems, prefix+".phonePrefix is required")
		}
	}
	return problems
}

// Get returns the fixture for category/id. An unknown id is a configuration error.
func (s *Store) Get(category Category, id string) (Fixture, error) {
	var set map[string]Fixture
	switch category {
	case CategoryPatient:
		set = s.Patient
	case CategoryPrescription:
		set = s.Prescription
	default:
		return Fixture{}, errs.New(errs.ConfigurationError, fmt.Sprintf("unknown fixture category %q", category))
	}
	f, ok := set[id]
	if !ok {
		return Fixture{}, errs.New(errs.ConfigurationError, fmt.Sprintf("no %s fixture %q in test data store", category, id))
	}
	return f, nil
}

// LoginData returns the doctor credentials.
func (s *Store) LoginData() Credentials {
	return s.Login
}

// GetURLs returns the URL pattern set.
func (s *Store) GetURLs() URLs {
	return s.URLs
}

// Timeout returns the named ceiling, or DefaultTimeout when the store does not define it.
// Validate rejects zero, which Playwright would read as "wait forever".
func (s *Store) Timeout(name string) time.Duration {
	ms, ok := s.Timeouts[name]
	if !ok {
		return DefaultTimeout
	}
	return time.Duration(ms) * time.Millisecond
}

// RequireField returns a named fixture field or a configuration error when it is empty.
func (f Fixture) RequireField(name string) (string, error) {
	var v string
	switch name {
	case "patientNamePrefix":
		v = f.PatientNamePrefix
	case "age":
		v = f.Age
	case "phonePrefix":
		v = f.PhonePrefix
	case "searchKeyword":
		v = f.SearchKeyword
	case "chiefComplaint":
		v = f.ChiefComplaint
	default:
		return "", errs.New(errs.ConfigurationError, fmt.Sprintf("unknown fixture field %q", name))
	}
	if v == "" {
		return "", errs.New(errs.ConfigurationError, fmt.Sprintf("fixture field %q is empty", name))
	}
	return v, nil
}

// PathSegment strips glob wildcards from a URL pattern: "**/doctor/rx" -> "doctor/rx".
func PathSegment(pattern string) string {
	seg := strings.TrimPrefix(pattern, "**")
	seg = strings.TrimSuffix(seg, "**")
	return strings.Trim(seg, "/")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
