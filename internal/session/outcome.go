package session

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ziadkadry99/medisur/internal/transcript"
	"github.com/ziadkadry99/medisur/internal/triage"
)

// confirmation is the human-readable text of the done event.
func confirmation(urgency, specialty string, hasFacility bool) string {
	msg := fmt.Sprintf("Gracias. Su caso fue clasificado con prioridad %s para %s.", urgency, specialty)
	if hasFacility {
		return msg + " Hemos notificado al centro de salud más cercano, que se comunicará con usted para coordinar su cita."
	}
	return msg + " Un miembro del equipo se comunicará con usted para asignarle un centro de salud."
}

// patientReason is the patient's own account, used as the appointment
// reason.
func patientReason(cs []transcript.Contribution) string {
	var parts []string
	for _, c := range cs {
		if c.Role == transcript.RolePatient {
			parts = append(parts, strings.TrimSpace(c.Content))
		}
	}
	return strings.Join(parts, "\n")
}

type notes struct {
	Record      triage.Record       `json:"record"`
	Suggestions *triage.Suggestions `json:"suggestions,omitempty"`
}

func clinicalNotes(out *triage.Outcome) (json.RawMessage, error) {
	b, err := json.Marshal(notes{Record: out.Record, Suggestions: out.Suggestions})
	if err != nil {
		return nil, fmt.Errorf("encoding clinical notes: %w", err)
	}
	return b, nil
}
