package conversation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ziadkadry99/medisur/internal/db"
)

// Store persists conversations. Status changes are guarded in SQL so a
// concurrent writer can never move a conversation backwards.
type Store struct {
	q db.Querier
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{q: database}
}

// WithTx returns a Store whose statements run inside tx.
func (s *Store) WithTx(tx db.Querier) *Store {
	return &Store{q: tx}
}

const columns = `id, patient_id, status, patient_location, reason, facility_id,
	priority, specialty, contagious, clinical_notes, created_at, updated_at, scheduled_at`

// Create starts a conversation in NEEDS_INFO.
func (s *Store) Create(ctx context.Context, patientID, location string) (*Conversation, error) {
	if strings.TrimSpace(patientID) == "" {
		return nil, fmt.Errorf("patient id is required")
	}
	now := time.Now().UTC().Truncate(time.Second)
	c := &Conversation{
		ID:              uuid.New().String(),
		PatientID:       patientID,
		Status:          StatusNeedsInfo,
		PatientLocation: location,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO conversations (id, patient_id, status, patient_location, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.PatientID, string(c.Status), c.PatientLocation, db.FormatTime(now), db.FormatTime(now))
	if err != nil {
		return nil, fmt.Errorf("inserting conversation: %w", err)
	}
	return c, nil
}

// Get returns a conversation by id.
func (s *Store) Get(ctx context.Context, id string) (*Conversation, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+columns+` FROM conversations WHERE id = ?`, id)
	c, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

// List returns conversations, newest first.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]Conversation, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.PatientID != "" {
		clauses = append(clauses, "patient_id = ?")
		args = append(args, filter.PatientID)
	}
	query := `SELECT ` + columns + ` FROM conversations`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// AwaitInfo records that another question round was asked. The status stays
// NEEDS_INFO.
func (s *Store) AwaitInfo(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE conversations SET status = ?, updated_at = datetime('now')
		WHERE id = ? AND status = ?`,
		string(StatusNeedsInfo), id, string(StatusNeedsInfo))
	if err != nil {
		return fmt.Errorf("updating conversation: %w", err)
	}
	return s.checkTransition(ctx, res, id)
}

// Resolve moves a NEEDS_INFO conversation to READY and stores the triage
// outcome. It succeeds at most once per conversation.
func (s *Store) Resolve(ctx context.Context, id string, r Resolution) error {
	notes := string(r.ClinicalNotes)
	if notes == "" {
		notes = "{}"
	}
	res, err := s.q.ExecContext(ctx, `
		UPDATE conversations SET status = ?, priority = ?, specialty = ?, contagious = ?,
			facility_id = ?, reason = ?, clinical_notes = ?, updated_at = datetime('now')
		WHERE id = ? AND status = ?`,
		string(StatusReady), r.Priority, r.Specialty, boolInt(r.Contagious),
		nullString(r.FacilityID), r.Reason, notes,
		id, string(StatusNeedsInfo))
	if err != nil {
		return fmt.Errorf("resolving conversation: %w", err)
	}
	return s.checkTransition(ctx, res, id)
}

// Schedule records the appointment time set by the facility.
func (s *Store) Schedule(ctx context.Context, id string, at time.Time) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE conversations SET status = ?, scheduled_at = ?, updated_at = datetime('now')
		WHERE id = ? AND status IN (?, ?)`,
		string(StatusScheduled), db.FormatTime(at), id, string(StatusReady), string(StatusScheduled))
	if err != nil {
		return fmt.Errorf("scheduling conversation: %w", err)
	}
	return s.checkTransition(ctx, res, id)
}

// Finish closes the conversation for good.
func (s *Store) Finish(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE conversations SET status = ?, updated_at = datetime('now')
		WHERE id = ? AND status IN (?, ?)`,
		string(StatusFinished), id, string(StatusReady), string(StatusScheduled))
	if err != nil {
		return fmt.Errorf("finishing conversation: %w", err)
	}
	return s.checkTransition(ctx, res, id)
}

// checkTransition distinguishes an unknown id from a guarded status miss.
func (s *Store) checkTransition(ctx context.Context, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	c, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: conversation is %s", ErrInvalidTransition, c.Status)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanConversation(sc scanner) (*Conversation, error) {
	var (
		c                               Conversation
		status, notes                   string
		facilityID, priority, specialty sql.NullString
		contagious                      int
		createdAt, updatedAt            string
		scheduledAt                     sql.NullString
	)
	err := sc.Scan(&c.ID, &c.PatientID, &status, &c.PatientLocation, &c.Reason, &facilityID,
		&priority, &specialty, &contagious, &notes, &createdAt, &updatedAt, &scheduledAt)
	if err != nil {
		return nil, err
	}
	c.Status = Status(status)
	c.FacilityID = facilityID.String
	c.Priority = priority.String
	c.Specialty = specialty.String
	c.Contagious = contagious != 0
	if notes != "" && notes != "{}" {
		c.ClinicalNotes = []byte(notes)
	}
	c.CreatedAt = db.ParseTime(createdAt)
	c.UpdatedAt = db.ParseTime(updatedAt)
	if scheduledAt.Valid {
		t := db.ParseTime(scheduledAt.String)
		c.ScheduledAt = &t
	}
	return &c, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
