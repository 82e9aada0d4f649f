// Package session drives the conversation channel: it accepts patient input
// over a websocket, runs each unit through normalization and convergence,
// and hands resolved conversations off to a facility.
package session

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/ziadkadry99/medisur/internal/audit"
	"github.com/ziadkadry99/medisur/internal/conversation"
	"github.com/ziadkadry99/medisur/internal/db"
	"github.com/ziadkadry99/medisur/internal/handoff"
	"github.com/ziadkadry99/medisur/internal/metrics"
	"github.com/ziadkadry99/medisur/internal/normalizer"
	"github.com/ziadkadry99/medisur/internal/transcript"
	"github.com/ziadkadry99/medisur/internal/triage"
)

// Normalizer turns a raw frame into text.
type Normalizer interface {
	Normalize(ctx context.Context, ev normalizer.RawEvent) (*normalizer.Normalized, error)
}

// Evaluator decides between asking questions and resolving.
type Evaluator interface {
	Evaluate(ctx context.Context, in triage.Input) (*triage.Result, error)
}

// Dispatcher notifies the assigned facility.
type Dispatcher interface {
	Notify(ctx context.Context, req handoff.Request) error
}

// Dependencies are the collaborators a Manager drives.
type Dependencies struct {
	DB            *db.DB
	Conversations *conversation.Store
	Transcripts   *transcript.Store
	Audit         *audit.Store
	Normalizer    Normalizer
	Engine        Evaluator
	Dispatcher    Dispatcher
}

// Options tunes the channel.
type Options struct {
	MaxMessageBytes int64
	WriteTimeout    time.Duration
	AllowAllOrigins bool
}

// Manager owns every open conversation channel.
type Manager struct {
	deps     Dependencies
	opts     Options
	registry *Registry
	locks    *keyedMutex
	upgrader websocket.Upgrader
	active   sync.WaitGroup
}

// NewManager creates a Manager.
func NewManager(deps Dependencies, opts Options) *Manager {
	if opts.MaxMessageBytes <= 0 {
		opts.MaxMessageBytes = 10 << 20
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	m := &Manager{
		deps:     deps,
		opts:     opts,
		registry: NewRegistry(),
		locks:    newKeyedMutex(),
	}
	if opts.AllowAllOrigins {
		m.upgrader.CheckOrigin = func(r *http.Request) bool { return true }
	}
	return m
}

// Registry exposes the active channel registry.
func (m *Manager) Registry() *Registry { return m.registry }

// RegisterRoutes mounts the conversation channel.
func (m *Manager) RegisterRoutes(r chi.Router) {
	r.Get("/ws/appointments/{id}", m.ServeWS)
}

// Shutdown closes every open channel and waits for their workers, including
// any handoff still in flight, until ctx expires.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.registry.CloseAll(websocket.CloseGoingAway, "server shutting down")

	done := make(chan struct{})
	go func() {
		m.active.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ServeWS upgrades the request and runs the conversation worker until the
// client disconnects or the conversation resolves.
func (m *Manager) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	m.active.Add(1)
	defer m.active.Done()

	ch := newChannel(conn, m.opts.WriteTimeout)
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	conv, reason := m.admit(ctx, id)
	if conv == nil {
		metrics.ChannelRejections.WithLabelValues(reason).Inc()
		log.Info().Str("conversation_id", id).Str("reason", reason).Msg("channel rejected")
		ch.Close(websocket.ClosePolicyViolation, reason)
		return
	}

	if prev := m.registry.Register(conv.ID, ch); prev != nil {
		prev.Close(websocket.CloseGoingAway, "replaced by a newer connection")
	}
	defer m.registry.Unregister(conv.ID, ch)

	logger := log.With().Str("conversation_id", conv.ID).Logger()
	logger.Debug().Msg("channel opened")

	if finished := m.replay(ctx, ch, conv.ID); finished {
		return
	}

	conn.SetReadLimit(m.opts.MaxMessageBytes)
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && !ch.Closed() {
				logger.Warn().Err(err).Msg("channel read failed")
			}
			return
		}

		frame := normalizer.FrameText
		if kind == websocket.BinaryMessage {
			frame = normalizer.FrameBinary
		}

		req, closeChannel := m.handleUnit(ctx, ch, conv.ID, normalizer.RawEvent{Kind: frame, Data: data})
		if !closeChannel {
			continue
		}

		ch.Close(websocket.CloseNormalClosure, "conversation complete")
		m.registry.Unregister(conv.ID, ch)
		if req != nil {
			m.dispatch(context.WithoutCancel(ctx), *req)
		}
		return
	}
}

// admit checks the connection precondition and returns the conversation, or
// nil and the rejection reason.
func (m *Manager) admit(ctx context.Context, id string) (*conversation.Conversation, string) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, "invalid conversation id"
	}
	conv, err := m.deps.Conversations.Get(ctx, id)
	if errors.Is(err, conversation.ErrNotFound) {
		return nil, "unknown conversation"
	}
	if err != nil {
		log.Error().Err(err).Str("conversation_id", id).Msg("loading conversation")
		return nil, "conversation unavailable"
	}
	if !conv.Status.Open() {
		return nil, "conversation is " + string(conv.Status)
	}
	return conv, ""
}

// replay sends the stored transcript in sequence order. A conversation that
// is already READY then gets its confirmation again and the channel closes;
// the return value reports that case.
func (m *Manager) replay(ctx context.Context, ch *Channel, id string) bool {
	unlock := m.locks.Lock(id)
	defer unlock()

	conv, err := m.deps.Conversations.Get(ctx, id)
	if err != nil {
		ch.Close(websocket.CloseInternalServerErr, "conversation unavailable")
		return true
	}
	history, err := m.deps.Transcripts.List(ctx, id)
	if err != nil {
		log.Error().Err(err).Str("conversation_id", id).Msg("loading transcript for replay")
		ch.Close(websocket.CloseInternalServerErr, "transcript unavailable")
		return true
	}
	for _, c := range history {
		err := ch.Send(Event{
			Type:     EventHistory,
			Role:     string(c.Role),
			Modality: string(c.Modality),
			Text:     c.Content,
			Sequence: c.Sequence,
		})
		if err != nil {
			return true
		}
	}

	if conv.Status != conversation.StatusNeedsInfo {
		ch.Send(Event{Type: EventDone, Value: confirmation(conv.Priority, conv.Specialty, conv.FacilityID != "")})
		ch.Close(websocket.CloseNormalClosure, "conversation complete")
		return true
	}
	return false
}

// handleUnit processes one inbound unit to completion while holding the
// conversation's lock. It returns a handoff request when the conversation
// resolved, and whether the channel should close.
func (m *Manager) handleUnit(ctx context.Context, ch *Channel, id string, ev normalizer.RawEvent) (*handoff.Request, bool) {
	unlock := m.locks.Lock(id)
	defer unlock()

	logger := log.With().Str("conversation_id", id).Logger()

	conv, err := m.deps.Conversations.Get(ctx, id)
	if err != nil {
		logger.Error().Err(err).Msg("loading conversation")
		m.sendError(ch, "conversation unavailable, please try again")
		return nil, false
	}
	if conv.Status != conversation.StatusNeedsInfo {
		// Resolved from another channel while this one was open.
		ch.Send(Event{Type: EventDone, Value: confirmation(conv.Priority, conv.Specialty, conv.FacilityID != "")})
		return nil, true
	}

	norm, err := m.deps.Normalizer.Normalize(ctx, ev)
	if err != nil {
		metrics.RoundsTotal.WithLabelValues("rejected").Inc()
		logger.Info().Err(err).Msg("inbound unit rejected")
		m.sendError(ch, normalizeErrorText(err))
		return nil, false
	}
	if norm.Modality == transcript.ModalityAudio {
		ch.Send(Event{Type: EventTranscription, Text: norm.Text})
	}

	history, err := m.deps.Transcripts.List(ctx, id)
	if err != nil {
		logger.Error().Err(err).Msg("loading transcript")
		m.sendError(ch, "conversation unavailable, please try again")
		return nil, false
	}
	prior := transcript.Rounds(history)
	pending := transcript.Contribution{
		ConversationID: id,
		Role:           transcript.RolePatient,
		Modality:       norm.Modality,
		Content:        norm.Text,
	}
	if n := len(history); n > 0 {
		pending.Sequence = history[n-1].Sequence + 1
	} else {
		pending.Sequence = 1
	}
	full := append(history, pending)

	res, err := m.deps.Engine.Evaluate(ctx, triage.Input{
		Transcript:      full,
		PriorRounds:     prior,
		PatientLocation: conv.PatientLocation,
	})
	if err != nil {
		metrics.RoundsTotal.WithLabelValues("failed").Inc()
		logger.Error().Err(err).Int("round", prior).Msg("convergence failed")
		m.sendError(ch, "we could not process your message right now, please try again")
		return nil, false
	}

	if !res.Resolved() {
		if err := m.commitQuestions(ctx, conv, pending, res.Questions, prior+1); err != nil {
			metrics.RoundsTotal.WithLabelValues("failed").Inc()
			logger.Error().Err(err).Msg("persisting question round")
			m.sendError(ch, "we could not process your message right now, please try again")
			return nil, false
		}
		metrics.RoundsTotal.WithLabelValues("questions").Inc()
		ch.Send(Event{Type: EventQuestions, Value: res.Questions})
		return nil, false
	}

	req, err := m.commitResolution(ctx, conv, pending, full, res.Outcome)
	if err != nil {
		metrics.RoundsTotal.WithLabelValues("failed").Inc()
		logger.Error().Err(err).Msg("persisting triage outcome")
		m.sendError(ch, "we could not process your message right now, please try again")
		return nil, false
	}
	metrics.RoundsTotal.WithLabelValues("resolved").Inc()
	logger.Info().
		Str("urgency", string(res.Outcome.Urgency)).
		Str("specialty", string(res.Outcome.Specialty)).
		Str("facility_id", res.Outcome.FacilityID).
		Msg("conversation resolved")

	ch.Send(Event{Type: EventDone, Value: confirmation(string(res.Outcome.Urgency), string(res.Outcome.Specialty), res.Outcome.FacilityID != "")})
	return req, true
}

func (m *Manager) commitQuestions(ctx context.Context, conv *conversation.Conversation, pending transcript.Contribution, questions []string, round int) error {
	return m.deps.DB.InTx(ctx, func(tx *sql.Tx) error {
		transcripts := m.deps.Transcripts.WithTx(tx)
		if _, err := transcripts.Append(ctx, conv.ID, pending.Content, transcript.RolePatient, pending.Modality); err != nil {
			return err
		}
		for _, q := range questions {
			if _, err := transcripts.AppendQuestion(ctx, conv.ID, q, round); err != nil {
				return err
			}
		}
		if err := m.deps.Conversations.WithTx(tx).AwaitInfo(ctx, conv.ID); err != nil {
			return err
		}
		return m.recordAudit(ctx, tx, audit.Entry{
			ActorType:      audit.ActorSystem,
			Action:         audit.ActionQuestionsAsked,
			ConversationID: conv.ID,
			Summary:        "Clarifying questions asked",
			NewValue:       strings.Join(questions, " | "),
		})
	})
}

func (m *Manager) commitResolution(ctx context.Context, conv *conversation.Conversation, pending transcript.Contribution, full []transcript.Contribution, out *triage.Outcome) (*handoff.Request, error) {
	notes, err := clinicalNotes(out)
	if err != nil {
		return nil, err
	}
	reason := patientReason(full)

	err = m.deps.DB.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := m.deps.Transcripts.WithTx(tx).Append(ctx, conv.ID, pending.Content, transcript.RolePatient, pending.Modality); err != nil {
			return err
		}
		err := m.deps.Conversations.WithTx(tx).Resolve(ctx, conv.ID, conversation.Resolution{
			Priority:      string(out.Urgency),
			Specialty:     string(out.Specialty),
			Contagious:    out.Contagious,
			FacilityID:    out.FacilityID,
			Reason:        reason,
			ClinicalNotes: notes,
		})
		if err != nil {
			return err
		}
		return m.recordAudit(ctx, tx, audit.Entry{
			ActorType:      audit.ActorSystem,
			Action:         audit.ActionTriageResolved,
			ConversationID: conv.ID,
			Summary:        "Triage resolved",
			PreviousValue:  string(conversation.StatusNeedsInfo),
			NewValue:       string(out.Urgency) + " / " + string(out.Specialty),
		})
	})
	if err != nil {
		return nil, err
	}

	return &handoff.Request{
		ConversationID: conv.ID,
		FacilityID:     out.FacilityID,
		PatientID:      conv.PatientID,
		Urgency:        string(out.Urgency),
		Specialty:      string(out.Specialty),
		Reason:         reason,
		Notes:          string(notes),
	}, nil
}

func (m *Manager) recordAudit(ctx context.Context, tx *sql.Tx, e audit.Entry) error {
	if m.deps.Audit == nil {
		return nil
	}
	return m.deps.Audit.WithTx(tx).Log(ctx, e)
}

// dispatch runs after the channel has closed and the lock is released.
func (m *Manager) dispatch(ctx context.Context, req handoff.Request) {
	if m.deps.Dispatcher == nil {
		return
	}
	err := m.deps.Dispatcher.Notify(ctx, req)
	switch {
	case err == nil:
	case errors.Is(err, handoff.ErrAlreadyDispatched):
		log.Debug().Str("conversation_id", req.ConversationID).Msg("handoff already dispatched")
	default:
		log.Warn().Err(err).Str("conversation_id", req.ConversationID).Msg("handoff did not complete")
	}
}

func (m *Manager) sendError(ch *Channel, text string) {
	if err := ch.Send(Event{Type: EventError, Text: text}); err != nil {
		log.Debug().Err(err).Msg("sending error event")
	}
}

func normalizeErrorText(err error) string {
	switch {
	case errors.Is(err, normalizer.ErrTranscriptionFailed):
		return "we could not transcribe your audio, please try again or type your message"
	case errors.Is(err, normalizer.ErrUnsupportedPayload):
		return "unsupported message, send text or an audio recording"
	default:
		return "we could not read your message, please try again"
	}
}
