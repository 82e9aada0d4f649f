package facilities

import (
	"errors"
	"time"
)

// ErrNotFound is returned when no facility matches the lookup.
var ErrNotFound = errors.New("facility not found")

// Status reports whether a facility currently accepts handoffs.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
)

// Facility is a registered care facility that can receive triaged patients.
type Facility struct {
	ID            string    `json:"id" yaml:"id"`
	Name          string    `json:"name" yaml:"name"`
	Address       string    `json:"address" yaml:"address"`
	Latitude      *float64  `json:"latitude,omitempty" yaml:"latitude"`
	Longitude     *float64  `json:"longitude,omitempty" yaml:"longitude"`
	IntakeURI     string    `json:"intake_uri" yaml:"intake_uri"`
	PhoneNumber   string    `json:"phone_number" yaml:"phone_number"`
	Email         string    `json:"email" yaml:"email"`
	ContactPerson string    `json:"contact_person" yaml:"contact_person"`
	Status        Status    `json:"status" yaml:"status"`
	CreatedAt     time.Time `json:"created_at" yaml:"-"`
	UpdatedAt     time.Time `json:"updated_at" yaml:"-"`
}

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Lat float64
	Lon float64
}

// Coordinates returns the facility location, or false when either axis is
// unset or both are zero.
func (f *Facility) Coordinates() (Point, bool) {
	if f.Latitude == nil || f.Longitude == nil {
		return Point{}, false
	}
	if *f.Latitude == 0 && *f.Longitude == 0 {
		return Point{}, false
	}
	return Point{Lat: *f.Latitude, Lon: *f.Longitude}, true
}

// ListFilter controls which facilities List returns.
type ListFilter struct {
	Status Status
}
