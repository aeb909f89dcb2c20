package rxstub

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store errors
var (
	ErrPatientNotFound = errors.New("patient not found")
	ErrInvalidPatient  = errors.New("invalid patient")
)

// Patient is a patient record created through the UI.
type Patient struct {
	ID        string
	Name      string
	Age       string
	Phone     string
	CreatedAt time.Time
}

// Prescription is a saved prescription.
type Prescription struct {
	ID             string
	PatientID      string
	PatientName    string
	ChiefComplaint string
	Items          []string
	SavedAt        time.Time
}

// Store is the in-memory state of the stub application.
type Store struct {
	mu            sync.RWMutex
	patients      map[string]Patient
	prescriptions []Prescription
	now           func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		patients: make(map[string]Patient),
		now:      time.Now,
	}
}

// AddPatient validates and stores a new patient.
func (s *Store) AddPatient(name, age, phone string) (Patient, error) {
	name = strings.TrimSpace(name)
	age = strings.TrimSpace(age)
	phone = strings.TrimSpace(phone)

	var missing []string
	if name == "" {
		missing = append(missing, "Patient Name")
	}
	if age == "" {
		missing = append(missing, "Years")
	}
	if phone == "" {
		missing = append(missing, "Phone")
	}
	if len(missing) > 0 {
		return Patient{}, errors.Join(ErrInvalidPatient, errors.New(strings.Join(missing, ", ")+" required"))
	}

	p := Patient{
		ID:        uuid.NewString(),
		Name:      name,
		Age:       age,
		Phone:     phone,
		CreatedAt: s.now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.patients[p.ID] = p
	return p, nil
}

// Patient returns the patient with id.
func (s *Store) Patient(id string) (Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.patients[id]
	if !ok {
		return Patient{}, ErrPatientNotFound
	}
	return p, nil
}

// Patients returns all patients, newest first.
func (s *Store) Patients() []Patient {
	s.mu.RLock()
	out := make([]Patient, 0, len(s.patients))
	for _, p := range s.patients {
		out = append(out, p)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Name < out[j].Name
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// SearchPatients returns patients whose name or phone contains query, case-insensitively.
func (s *Store) SearchPatients(query string) []Patient {
	q := strings.ToLower(strings.TrimSpace(query))
	all := s.Patients()
	if q == "" {
		return all
	}
	out := all[:0]
	for _, p := range all {
		if strings.Contains(strings.ToLower(p.Name), q) || strings.Contains(p.Phone, q) {
			out = append(out, p)
		}
	}
	return out
}

// SavePrescription stores a prescription for an existing patient.
func (s *Store) SavePrescription(patientID, chiefComplaint string, items []string) (Prescription, error) {
	p, err := s.Patient(patientID)
	if err != nil {
		return Prescription{}, err
	}

	rx := Prescription{
		ID:             uuid.NewString(),
		PatientID:      p.ID,
		PatientName:    p.Name,
		ChiefComplaint: strings.TrimSpace(chiefComplaint),
		Items:          append([]string(nil), items...),
		SavedAt:        s.now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.prescriptions = append(s.prescriptions, rx)
	return rx, nil
}

// Prescriptions returns saved prescriptions, newest first.
func (s *Store) Prescriptions() []Prescription {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Prescription, len(s.prescriptions))
	for i, rx := range s.prescriptions {
		out[len(out)-1-i] = rx
	}
	return out
}
