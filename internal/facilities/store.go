package facilities

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

// Store persists the facility directory.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

const facilityColumns = `id, name, address, latitude, longitude, intake_uri,
	phone_number, email, contact_person, status, created_at, updated_at`

// Create registers a facility. If f.ID is empty a UUID is generated and an
// empty status defaults to ACTIVE.
func (s *Store) Create(ctx context.Context, f *Facility) error {
	if strings.TrimSpace(f.Name) == "" {
		return fmt.Errorf("facility name is required")
	}
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	if f.Status == "" {
		f.Status = StatusActive
	}
	now := time.Now().UTC().Truncate(time.Second)
	f.CreatedAt, f.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO facilities (`+facilityColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.Name, f.Address, nullFloat(f.Latitude), nullFloat(f.Longitude), f.IntakeURI,
		f.PhoneNumber, f.Email, f.ContactPerson, string(f.Status),
		db.FormatTime(now), db.FormatTime(now),
	)
	if err != nil {
		return fmt.Errorf("inserting facility: %w", err)
	}
	return nil
}

// Get returns a facility by id.
func (s *Store) Get(ctx context.Context, id string) (*Facility, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+facilityColumns+` FROM facilities WHERE id = ?`, id)
	f, err := scanFacility(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return f, err
}

// GetByName returns a facility by its unique name.
func (s *Store) GetByName(ctx context.Context, name string) (*Facility, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+facilityColumns+` FROM facilities WHERE name = ?`, name)
	f, err := scanFacility(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return f, err
}

// List returns facilities in registration order.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]Facility, error) {
	query := `SELECT ` + facilityColumns + ` FROM facilities`
	var args []any
	if filter.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY rowid`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying facilities: %w", err)
	}
	defer rows.Close()

	var out []Facility
	for rows.Next() {
		f, err := scanFacility(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning facility: %w", err)
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

// Update overwrites the mutable fields of an existing facility.
func (s *Store) Update(ctx context.Context, f *Facility) error {
	if f.Status == "" {
		f.Status = StatusActive
	}
	f.UpdatedAt = time.Now().UTC().Truncate(time.Second)
	res, err := s.db.ExecContext(ctx, `
		UPDATE facilities SET name = ?, address = ?, latitude = ?, longitude = ?,
			intake_uri = ?, phone_number = ?, email = ?, contact_person = ?,
			status = ?, updated_at = ?
		WHERE id = ?`,
		f.Name, f.Address, nullFloat(f.Latitude), nullFloat(f.Longitude),
		f.IntakeURI, f.PhoneNumber, f.Email, f.ContactPerson,
		string(f.Status), db.FormatTime(f.UpdatedAt), f.ID,
	)
	if err != nil {
		return fmt.Errorf("updating facility: %w", err)
	}
	return expectOne(res)
}

// SetStatus flips a facility between ACTIVE and INACTIVE.
func (s *Store) SetStatus(ctx context.Context, id string, status Status) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE facilities SET status = ?, updated_at = datetime('now') WHERE id = ?`,
		string(status), id)
	if err != nil {
		return fmt.Errorf("updating facility status: %w", err)
	}
	return expectOne(res)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFacility(sc scanner) (*Facility, error) {
	var (
		f                  Facility
		lat, lon           sql.NullFloat64
		status             string
		createdAt, updated string
	)
	err := sc.Scan(&f.ID, &f.Name, &f.Address, &lat, &lon, &f.IntakeURI,
		&f.PhoneNumber, &f.Email, &f.ContactPerson, &status, &createdAt, &updated)
	if err != nil {
		return nil, err
	}
	if lat.Valid {
		f.Latitude = &lat.Float64
	}
	if lon.Valid {
		f.Longitude = &lon.Float64
	}
	f.Status = Status(status)
	f.CreatedAt = db.ParseTime(createdAt)
	f.UpdatedAt = db.ParseTime(updated)
	return &f, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
