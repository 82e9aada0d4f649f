// Package audit records the lifecycle of conversations and handoffs.
package audit

import "time"

// ActorType identifies who triggered the audited change.
type ActorType string

const (
	ActorPatient ActorType = "patient"
	ActorSystem  ActorType = "system"
	ActorStaff   ActorType = "staff"
)

// Action is the kind of audited change.
type Action string

const (
	ActionConversationCreated  Action = "conversation_created"
	ActionQuestionsAsked       Action = "questions_asked"
	ActionTriageResolved       Action = "triage_resolved"
	ActionAppointmentScheduled Action = "appointment_scheduled"
	ActionConversationFinished Action = "conversation_finished"
	ActionHandoffDelivered     Action = "handoff_delivered"
	ActionHandoffFailed        Action = "handoff_failed"
)

// Entry is one audit record.
type Entry struct {
	ID             string    `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	ActorType      ActorType `json:"actor_type"`
	ActorID        string    `json:"actor_id"`
	Action         Action    `json:"action"`
	ConversationID string    `json:"conversation_id"`
	Summary        string    `json:"summary"`
	PreviousValue  string    `json:"previous_value,omitempty"`
	NewValue       string    `json:"new_value,omitempty"`
}
