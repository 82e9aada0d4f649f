// Package transcript is the append-only log of contributions to a
// conversation.
package transcript

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ziadkadry99/medisur/internal/db"
)

// Role identifies who produced a contribution.
type Role string

const (
	RolePatient   Role = "patient"
	RoleAssistant Role = "assistant"
)

// Modality records how the patient supplied the content.
type Modality string

const (
	ModalityText  Modality = "text"
	ModalityAudio Modality = "audio"
)

// Contribution is one immutable unit of transcript content.
type Contribution struct {
	ID             int64     `json:"-"`
	ConversationID string    `json:"conversation_id"`
	Sequence       int       `json:"sequence"`
	Role           Role      `json:"role"`
	Modality       Modality  `json:"modality"`
	Content        string    `json:"content"`
	Round          int       `json:"round,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Store appends and lists contributions.
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

// Append adds a contribution and returns it with its sequence number
// assigned. The sequence is 1 + the current maximum for the conversation.
func (s *Store) Append(ctx context.Context, conversationID, content string, role Role, modality Modality) (*Contribution, error) {
	return s.insert(ctx, conversationID, content, role, modality, 0)
}

// AppendQuestion records a clarifying question produced by round.
func (s *Store) AppendQuestion(ctx context.Context, conversationID, question string, round int) (*Contribution, error) {
	if round < 1 {
		return nil, fmt.Errorf("question round must be positive, got %d", round)
	}
	return s.insert(ctx, conversationID, question, RoleAssistant, ModalityText, round)
}

func (s *Store) insert(ctx context.Context, conversationID, content string, role Role, modality Modality, round int) (*Contribution, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("contribution content is empty")
	}
	if role != RolePatient && role != RoleAssistant {
		return nil, fmt.Errorf("invalid role %q", role)
	}
	if modality != ModalityText && modality != ModalityAudio {
		return nil, fmt.Errorf("invalid modality %q", modality)
	}

	c := &Contribution{
		ConversationID: conversationID,
		Role:           role,
		Modality:       modality,
		Content:        content,
		Round:          round,
		CreatedAt:      time.Now().UTC().Truncate(time.Second),
	}

	err := s.q.QueryRowContext(ctx, `
		INSERT INTO contributions (conversation_id, seq, role, modality, content, round, created_at)
		SELECT ?, COALESCE(MAX(seq), 0) + 1, ?, ?, ?, ?, ?
		FROM contributions WHERE conversation_id = ?
		RETURNING id, seq`,
		conversationID, string(role), string(modality), content, round, db.FormatTime(c.CreatedAt),
		conversationID,
	).Scan(&c.ID, &c.Sequence)
	if err != nil {
		return nil, fmt.Errorf("appending contribution: %w", err)
	}
	return c, nil
}

// List returns the transcript ordered by sequence number.
func (s *Store) List(ctx context.Context, conversationID string) ([]Contribution, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, conversation_id, seq, role, modality, content, round, created_at
		FROM contributions WHERE conversation_id = ?
		ORDER BY seq`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("listing contributions: %w", err)
	}
	defer rows.Close()

	var out []Contribution
	for rows.Next() {
		var (
			c              Contribution
			role, modality string
			createdAt      string
		)
		if err := rows.Scan(&c.ID, &c.ConversationID, &c.Sequence, &role, &modality, &c.Content, &c.Round, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning contribution: %w", err)
		}
		c.Role = Role(role)
		c.Modality = Modality(modality)
		c.CreatedAt = db.ParseTime(createdAt)
		out = append(out, c)
	}
	return out, rows.Err()
}

// AssistantRounds counts the question rounds already recorded.
func (s *Store) AssistantRounds(ctx context.Context, conversationID string) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT round) FROM contributions
		WHERE conversation_id = ? AND role = 'assistant'`, conversationID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting rounds: %w", err)
	}
	return n, nil
}

// Rounds counts distinct assistant rounds in an in-memory transcript.
func Rounds(cs []Contribution) int {
	seen := make(map[int]struct{})
	for _, c := range cs {
		if c.Role == RoleAssistant {
			seen[c.Round] = struct{}{}
		}
	}
	return len(seen)
}

// Render flattens a transcript into the "role: content" lines the oracle
// prompts consume.
func Render(cs []Contribution) string {
	var b strings.Builder
	for i, c := range cs {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(string(c.Role))
		b.WriteString(": ")
		b.WriteString(c.Content)
	}
	return b.String()
}
