package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Venue struct {
	bun.BaseModel `bun:"table:venues"`

	ID            string    `bun:"id,pk" json:"id"`
	Name          string    `bun:"name,notnull" json:"name"`
	StreetAddress string    `bun:"street_address" json:"street_address"`
	City          string    `bun:"city" json:"city"`
	State         string    `bun:"state" json:"state"`
	PostalCode    string    `bun:"postal_code" json:"postal_code"`
	Capacity      int       `bun:"capacity,notnull" json:"capacity"`
	ContactEmail  string    `bun:"contact_email" json:"contact_email"`
	ContactPhone  string    `bun:"contact_phone,nullzero" json:"contact_phone,omitempty"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt     time.Time `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

// VenueSection is a fixed seating block inside a venue. Capacity is the hard
// upper bound for any event's ticket allotment against this section.
type VenueSection struct {
	bun.BaseModel `bun:"table:venue_sections"`

	ID        string    `bun:"id,pk" json:"id"`
	VenueID   string    `bun:"venue_id,notnull" json:"venue_id"`
	Name      string    `bun:"name,notnull" json:"name"`
	Capacity  int       `bun:"capacity,notnull" json:"capacity"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}
