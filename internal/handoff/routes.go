package handoff

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts handoff endpoints under /api/handoffs.
func RegisterRoutes(r chi.Router, store *Store) {
	r.Route("/api/handoffs", func(r chi.Router) {
		r.Get("/", handleList(store))
		r.Get("/conversation/{id}", handleGetByConversation(store))
	})
}

func handleList(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := ListFilter{Status: Status(q.Get("status"))}
		if v := q.Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				filter.Limit = n
			}
		}

		handoffs, err := store.List(r.Context(), filter)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if handoffs == nil {
			handoffs = []Handoff{}
		}
		writeJSON(w, http.StatusOK, handoffs)
	}
}

func handleGetByConversation(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h, err := store.GetByConversation(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if h == nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, h)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
