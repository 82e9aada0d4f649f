// Package triage decides whether a conversation has enough information to
// be triaged and, once it has, produces the triage outcome.
package triage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ziadkadry99/medisur/internal/transcript"
)

// ErrExtractionFailed covers every oracle failure that prevents a round from
// completing: unreachable, timed out or unparsable.
var ErrExtractionFailed = errors.New("extraction failed")

// Urgency is the triage priority. The order is only used for display.
type Urgency string

const (
	UrgencyLow       Urgency = "low"
	UrgencyModerate  Urgency = "moderate"
	UrgencyHigh      Urgency = "high"
	UrgencyEmergency Urgency = "emergency"
)

var urgencies = map[Urgency]bool{
	UrgencyLow:       true,
	UrgencyModerate:  true,
	UrgencyHigh:      true,
	UrgencyEmergency: true,
}

// ParseUrgency accepts any casing of the four levels.
func ParseUrgency(s string) (Urgency, error) {
	u := Urgency(strings.ToLower(strings.TrimSpace(s)))
	if !urgencies[u] {
		return "", fmt.Errorf("unknown urgency %q", s)
	}
	return u, nil
}

// Specialty is one of the fixed medical specialties a case can be routed to.
type Specialty string

// Specialties is the closed set of routable specialties.
var Specialties = []Specialty{
	"Anestesiología",
	"Cardiología",
	"Dermatología",
	"Cirugía General",
	"Medicina de Emergencias",
	"Endocrinología",
	"Medicina Familiar",
	"Gastroenterología",
	"Geriatría",
	"Hematología",
	"Enfermedades Infecciosas",
	"Medicina Interna",
	"Nefrología",
	"Neumología",
	"Neurología",
	"Obstetricia y Ginecología",
	"Oncología",
	"Oftalmología",
	"Otorrinolaringología",
	"Ortopedia",
	"Patología",
	"Pediatría",
	"Psiquiatría",
	"Radiología",
	"Reumatología",
	"Urología",
	"Medicina Nuclear",
	"Cirugía Plástica",
	"Cirugía Cardiovascular",
	"Neurocirugía",
}

// ParseSpecialty maps s onto the canonical spelling in Specialties.
func ParseSpecialty(s string) (Specialty, error) {
	s = strings.TrimSpace(s)
	for _, sp := range Specialties {
		if strings.EqualFold(string(sp), s) {
			return sp, nil
		}
	}
	return "", fmt.Errorf("unknown specialty %q", s)
}

// Record is the structured symptom record extracted from a transcript.
type Record struct {
	Symptoms       []string `json:"symptoms"`
	Duration       string   `json:"duration,omitempty"`
	Severity       string   `json:"severity,omitempty"`
	MedicalHistory string   `json:"medical_history,omitempty"`
	Age            *int     `json:"age,omitempty"`
	Gender         string   `json:"gender,omitempty"`
}

// Assessment is the triage oracle's verdict.
type Assessment struct {
	Urgency    Urgency   `json:"urgency"`
	Specialty  Specialty `json:"specialty"`
	Contagious bool      `json:"contagious"`
}

// Suggestions is informational clinical guidance. It never drives routing.
type Suggestions struct {
	PossibleDiagnoses   []string `json:"possible_diagnoses"`
	TreatmentGuidelines []string `json:"treatment_guidelines"`
}

// Outcome is the terminal artifact of convergence.
type Outcome struct {
	Urgency      Urgency      `json:"urgency"`
	Specialty    Specialty    `json:"specialty"`
	Contagious   bool         `json:"contagious"`
	FacilityID   string       `json:"facility_id,omitempty"`
	FacilityName string       `json:"facility_name,omitempty"`
	Record       Record       `json:"record"`
	Suggestions  *Suggestions `json:"suggestions,omitempty"`
}

// Result is either a list of follow-up questions or a resolved outcome.
type Result struct {
	Questions []string
	Outcome   *Outcome
}

// Resolved reports whether the engine produced a triage outcome.
func (r *Result) Resolved() bool {
	return r.Outcome != nil
}

// Input is everything one evaluation looks at.
type Input struct {
	Transcript      []transcript.Contribution
	PriorRounds     int
	PatientLocation string
}
