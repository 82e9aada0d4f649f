// Package handoff notifies the chosen facility once a conversation has been
// triaged.
package handoff

import (
	"errors"
	"time"
)

var (
	// ErrAlreadyDispatched is returned when the conversation has already
	// been handed off. Nothing is sent.
	ErrAlreadyDispatched = errors.New("handoff already dispatched")
	// ErrFacilityNotFound is returned when the facility id is empty or
	// unknown.
	ErrFacilityNotFound = errors.New("facility not found")
	// ErrFacilityAddressMissing is returned when the facility has no intake
	// URI to deliver to.
	ErrFacilityAddressMissing = errors.New("facility has no intake address")
	// ErrDeliveryFailed wraps any transport failure while notifying.
	ErrDeliveryFailed = errors.New("handoff delivery failed")
)

// Status is the delivery state of a handoff.
type Status string

const (
	StatusPending   Status = "pending"
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"
)

// Request describes a triaged conversation to hand off.
type Request struct {
	ConversationID string
	FacilityID     string
	PatientID      string
	Urgency        string
	Specialty      string
	Reason         string
	Notes          string
}

// Handoff is the persisted record of one dispatch attempt.
type Handoff struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	FacilityID     string     `json:"facility_id"`
	PatientID      string     `json:"patient_id"`
	Urgency        string     `json:"urgency"`
	Specialty      string     `json:"specialty"`
	Reason         string     `json:"reason"`
	Status         Status     `json:"status"`
	Error          string     `json:"error,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	DeliveredAt    *time.Time `json:"delivered_at,omitempty"`
}

// Payload is the body sent to a facility's intake endpoint.
type Payload struct {
	PatientID       string `json:"patient_id"`
	Specialty       string `json:"specialty"`
	AppointmentType string `json:"appointment_type"`
	Urgency         string `json:"urgency"`
	Reason          string `json:"reason"`
	Notes           string `json:"notes"`
}

// ListFilter controls which handoffs List returns.
type ListFilter struct {
	Status Status
	Limit  int
}
