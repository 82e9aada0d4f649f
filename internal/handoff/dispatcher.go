package handoff

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/ziadkadry99/medisur/internal/audit"
	"github.com/ziadkadry99/medisur/internal/facilities"
	"github.com/ziadkadry99/medisur/internal/metrics"
)

// AppointmentType is the appointment kind requested from every facility.
const AppointmentType = "consulta"

// FacilityDirectory resolves facility ids.
type FacilityDirectory interface {
	Get(ctx context.Context, id string) (*facilities.Facility, error)
}

// Dispatcher hands triaged conversations off to facilities, at most once per
// conversation.
type Dispatcher struct {
	store      *Store
	facilities FacilityDirectory
	notifier   Notifier
	audit      *audit.Store
}

// NewDispatcher creates a Dispatcher. auditLog may be nil.
func NewDispatcher(store *Store, directory FacilityDirectory, notifier Notifier, auditLog *audit.Store) *Dispatcher {
	return &Dispatcher{store: store, facilities: directory, notifier: notifier, audit: auditLog}
}

// Notify claims the conversation and sends exactly one intake request to the
// facility. A conversation that was already claimed yields
// ErrAlreadyDispatched and nothing is sent. Failures are recorded on the
// handoff row and are not retried.
func (d *Dispatcher) Notify(ctx context.Context, req Request) error {
	h, err := d.store.Claim(ctx, req)
	if err != nil {
		if errors.Is(err, ErrAlreadyDispatched) {
			metrics.HandoffsTotal.WithLabelValues("duplicate").Inc()
		}
		return err
	}

	uri, err := d.intakeURI(ctx, req.FacilityID)
	if err == nil {
		err = d.notifier.Send(ctx, uri, Payload{
			PatientID:       req.PatientID,
			Specialty:       req.Specialty,
			AppointmentType: AppointmentType,
			Urgency:         req.Urgency,
			Reason:          req.Reason,
			Notes:           req.Notes,
		})
		if err != nil {
			err = fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
		}
	}

	if err != nil {
		d.fail(ctx, h, err)
		return err
	}

	if merr := d.store.MarkDelivered(ctx, h.ID); merr != nil {
		log.Error().Err(merr).Str("handoff_id", h.ID).Msg("recording delivered handoff")
	}
	metrics.HandoffsTotal.WithLabelValues("delivered").Inc()
	d.record(ctx, req, audit.ActionHandoffDelivered, "Facility notified")
	log.Info().
		Str("conversation_id", req.ConversationID).
		Str("facility_id", req.FacilityID).
		Str("urgency", req.Urgency).
		Msg("handoff delivered")
	return nil
}

func (d *Dispatcher) intakeURI(ctx context.Context, facilityID string) (string, error) {
	if facilityID == "" {
		return "", ErrFacilityNotFound
	}
	f, err := d.facilities.Get(ctx, facilityID)
	if errors.Is(err, facilities.ErrNotFound) {
		return "", ErrFacilityNotFound
	}
	if err != nil {
		return "", fmt.Errorf("resolving facility: %w", err)
	}
	if f.IntakeURI == "" {
		return "", ErrFacilityAddressMissing
	}
	return f.IntakeURI, nil
}

func (d *Dispatcher) fail(ctx context.Context, h *Handoff, cause error) {
	if err := d.store.MarkFailed(ctx, h.ID, cause.Error()); err != nil {
		log.Error().Err(err).Str("handoff_id", h.ID).Msg("recording failed handoff")
	}
	metrics.HandoffsTotal.WithLabelValues("failed").Inc()
	d.record(ctx, Request{ConversationID: h.ConversationID, FacilityID: h.FacilityID}, audit.ActionHandoffFailed, cause.Error())

	// Operators pick these up from the alert and GET /api/handoffs?status=failed.
	log.Error().
		Err(cause).
		Str("alert", "handoff_failed").
		Str("conversation_id", h.ConversationID).
		Str("facility_id", h.FacilityID).
		Str("urgency", h.Urgency).
		Msg("facility handoff failed; manual follow-up required")
}

func (d *Dispatcher) record(ctx context.Context, req Request, action audit.Action, summary string) {
	if d.audit == nil {
		return
	}
	err := d.audit.Log(ctx, audit.Entry{
		ActorType:      audit.ActorSystem,
		Action:         action,
		ConversationID: req.ConversationID,
		Summary:        summary,
		NewValue:       req.FacilityID,
	})
	if err != nil {
		log.Warn().Err(err).Msg("writing handoff audit entry")
	}
}
