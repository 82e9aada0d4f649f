package conversation

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/ziadkadry99/medisur/internal/audit"
	"github.com/ziadkadry99/medisur/internal/transcript"
)

// RegisterRoutes mounts conversation endpoints under /api/conversations.
func RegisterRoutes(r chi.Router, store *Store, transcripts *transcript.Store, auditLog *audit.Store) {
	r.Route("/api/conversations", func(r chi.Router) {
		r.Get("/", handleList(store))
		r.Post("/", handleCreate(store, auditLog))
		r.Get("/{id}", handleGet(store))
		r.Get("/{id}/transcript", handleTranscript(store, transcripts))
		r.Post("/{id}/schedule", handleSchedule(store, auditLog))
		r.Post("/{id}/finish", handleFinish(store, auditLog))
	})
}

type createRequest struct {
	PatientID string `json:"patient_id"`
	Location  string `json:"location"`
}

type scheduleRequest struct {
	ScheduledAt time.Time `json:"scheduled_at"`
	Staff       string    `json:"staff"`
}

func handleCreate(store *Store, auditLog *audit.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.PatientID == "" {
			http.Error(w, "patient_id is required", http.StatusBadRequest)
			return
		}

		c, err := store.Create(r.Context(), req.PatientID, req.Location)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		record(r, auditLog, audit.Entry{
			ActorType:      audit.ActorPatient,
			ActorID:        c.PatientID,
			Action:         audit.ActionConversationCreated,
			ConversationID: c.ID,
			NewValue:       string(c.Status),
		})
		writeJSON(w, http.StatusCreated, c)
	}
}

func handleList(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := ListFilter{
			Status:    Status(q.Get("status")),
			PatientID: q.Get("patient_id"),
		}
		if v := q.Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				filter.Limit = n
			}
		}

		list, err := store.List(r.Context(), filter)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if list == nil {
			list = []Conversation{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func handleGet(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := store.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func handleTranscript(store *Store, transcripts *transcript.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, err := store.Get(r.Context(), id); err != nil {
			writeStoreError(w, err)
			return
		}
		list, err := transcripts.List(r.Context(), id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if list == nil {
			list = []transcript.Contribution{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func handleSchedule(store *Store, auditLog *audit.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req scheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.ScheduledAt.IsZero() {
			http.Error(w, "scheduled_at is required", http.StatusBadRequest)
			return
		}

		id := chi.URLParam(r, "id")
		from, err := precheck(r, store, id, StatusScheduled)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		if err := store.Schedule(r.Context(), id, req.ScheduledAt); err != nil {
			writeStoreError(w, err)
			return
		}
		record(r, auditLog, audit.Entry{
			ActorType:      audit.ActorStaff,
			ActorID:        req.Staff,
			Action:         audit.ActionAppointmentScheduled,
			ConversationID: id,
			PreviousValue:  string(from),
			NewValue:       req.ScheduledAt.UTC().Format(time.RFC3339),
		})

		c, err := store.Get(r.Context(), id)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func handleFinish(store *Store, auditLog *audit.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		from, err := precheck(r, store, id, StatusFinished)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		if err := store.Finish(r.Context(), id); err != nil {
			writeStoreError(w, err)
			return
		}
		record(r, auditLog, audit.Entry{
			ActorType:      audit.ActorStaff,
			Action:         audit.ActionConversationFinished,
			ConversationID: id,
			PreviousValue:  string(from),
			NewValue:       string(StatusFinished),
		})
		writeJSON(w, http.StatusOK, map[string]string{"status": string(StatusFinished)})
	}
}

// precheck returns the current status, or ErrInvalidTransition when it
// cannot move to. The store's guarded UPDATE still decides under races.
func precheck(r *http.Request, store *Store, id string, to Status) (Status, error) {
	c, err := store.Get(r.Context(), id)
	if err != nil {
		return "", err
	}
	if !CanTransition(c.Status, to) {
		return c.Status, fmt.Errorf("%w: conversation is %s", ErrInvalidTransition, c.Status)
	}
	return c.Status, nil
}

func record(r *http.Request, auditLog *audit.Store, e audit.Entry) {
	if auditLog == nil {
		return
	}
	if err := auditLog.Log(r.Context(), e); err != nil {
		log.Warn().Err(err).Str("conversation_id", e.ConversationID).Msg("audit write failed")
	}
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, ErrInvalidTransition):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
