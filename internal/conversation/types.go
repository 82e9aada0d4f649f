// Package conversation holds the persisted lifecycle of a triage
// conversation.
package conversation

import (
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned for unknown conversation ids.
	ErrNotFound = errors.New("conversation not found")
	// ErrInvalidTransition is returned when the stored status does not allow
	// the requested change.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Status is the lifecycle state of a conversation.
type Status string

const (
	StatusNeedsInfo Status = "NEEDS_INFO"
	StatusReady     Status = "READY"
	StatusScheduled Status = "SCHEDULED"
	StatusFinished  Status = "FINISHED"
)

// Open reports whether a channel may be opened in this status.
func (s Status) Open() bool {
	return s == StatusNeedsInfo || s == StatusReady
}

var transitions = map[Status][]Status{
	StatusNeedsInfo: {StatusNeedsInfo, StatusReady},
	StatusReady:     {StatusScheduled, StatusFinished},
	StatusScheduled: {StatusScheduled, StatusFinished},
}

// CanTransition reports whether from -> to is a legal move. FINISHED is
// terminal.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Conversation is one patient's triage session.
type Conversation struct {
	ID              string          `json:"id"`
	PatientID       string          `json:"patient_id"`
	Status          Status          `json:"status"`
	PatientLocation string          `json:"patient_location"`
	Reason          string          `json:"reason,omitempty"`
	FacilityID      string          `json:"facility_id,omitempty"`
	Priority        string          `json:"priority,omitempty"`
	Specialty       string          `json:"specialty,omitempty"`
	Contagious      bool            `json:"contagious"`
	ClinicalNotes   json.RawMessage `json:"clinical_notes,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	ScheduledAt     *time.Time      `json:"scheduled_at,omitempty"`
}

// Resolution is the triage outcome written when a conversation becomes READY.
type Resolution struct {
	Priority      string
	Specialty     string
	Contagious    bool
	FacilityID    string
	Reason        string
	ClinicalNotes json.RawMessage
}

// ListFilter controls which conversations List returns.
type ListFilter struct {
	Status    Status
	PatientID string
	Limit     int
}
