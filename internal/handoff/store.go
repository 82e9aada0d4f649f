package handoff

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ziadkadry99/medisur/internal/db"
)

// Store persists handoff records.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Claim records a pending handoff for req.ConversationID. It returns
// ErrAlreadyDispatched if one already exists.
func (s *Store) Claim(ctx context.Context, req Request) (*Handoff, error) {
	h := &Handoff{
		ID:             uuid.New().String(),
		ConversationID: req.ConversationID,
		FacilityID:     req.FacilityID,
		PatientID:      req.PatientID,
		Urgency:        req.Urgency,
		Specialty:      req.Specialty,
		Reason:         req.Reason,
		Status:         StatusPending,
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO handoffs (id, conversation_id, facility_id, patient_id, urgency, specialty, reason, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(conversation_id) DO NOTHING`,
		h.ID, h.ConversationID, h.FacilityID, h.PatientID, h.Urgency, h.Specialty, h.Reason, string(h.Status),
	)
	if err != nil {
		return nil, fmt.Errorf("claiming handoff: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrAlreadyDispatched
	}
	return h, nil
}

// MarkDelivered records a successful delivery.
func (s *Store) MarkDelivered(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE handoffs SET status = ?, error = '', delivered_at = datetime('now') WHERE id = ?`,
		string(StatusDelivered), id)
	if err != nil {
		return fmt.Errorf("marking handoff delivered: %w", err)
	}
	return nil
}

// MarkFailed records a failed delivery and its cause.
func (s *Store) MarkFailed(ctx context.Context, id, cause string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE handoffs SET status = ?, error = ? WHERE id = ?`,
		string(StatusFailed), cause, id)
	if err != nil {
		return fmt.Errorf("marking handoff failed: %w", err)
	}
	return nil
}

const handoffColumns = `id, conversation_id, facility_id, patient_id, urgency, specialty,
	reason, status, error, created_at, delivered_at`

// GetByConversation returns the handoff for a conversation, or nil if none
// was claimed.
func (s *Store) GetByConversation(ctx context.Context, conversationID string) (*Handoff, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+handoffColumns+` FROM handoffs WHERE conversation_id = ?`, conversationID)
	h, err := scanHandoff(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return h, err
}

// List returns handoffs matching filter, newest first.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]Handoff, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(filter.Status))
	}

	query := "SELECT " + handoffColumns + " FROM handoffs"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing handoffs: %w", err)
	}
	defer rows.Close()

	var out []Handoff
	for rows.Next() {
		h, err := scanHandoff(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *h)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanHandoff(sc scanner) (*Handoff, error) {
	var (
		h         Handoff
		status    string
		created   string
		delivered sql.NullString
	)
	err := sc.Scan(&h.ID, &h.ConversationID, &h.FacilityID, &h.PatientID, &h.Urgency, &h.Specialty,
		&h.Reason, &status, &h.Error, &created, &delivered)
	if err != nil {
		return nil, err
	}
	h.Status = Status(status)
	h.CreatedAt = db.ParseTime(created)
	if delivered.Valid {
		t := db.ParseTime(delivered.String)
		h.DeliveredAt = &t
	}
	return &h, nil
}
