package models

import (
	"time"

	"github.com/uptrace/bun"
)

type EventStatus string

const (
	EventUpcoming  EventStatus = "upcoming"
	EventCompleted EventStatus = "completed"
	EventCanceled  EventStatus = "canceled"
)

type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID             string      `bun:"id,pk" json:"id"`
	VenueID        string      `bun:"venue_id,notnull" json:"venue_id"`
	ArtistName     string      `bun:"artist_name,notnull" json:"artist_name"`
	EventDate      time.Time   `bun:"event_date,notnull" json:"event_date"`
	TicketPrice    float64     `bun:"ticket_price,notnull" json:"ticket_price"`
	Status         EventStatus `bun:"status,notnull,default:'upcoming'" json:"status"`
	Description    string      `bun:"description,nullzero" json:"description,omitempty"`
	IsRefundable   bool        `bun:"is_refundable" json:"is_refundable"`
	RefundDeadline *time.Time  `bun:"refund_deadline,nullzero" json:"refund_deadline,omitempty"`
	CreatedAt      time.Time   `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

// RefundAvailable reports whether tickets for this event can still be
// refunded at the given instant.
func (e *Event) RefundAvailable(now time.Time) bool {
	return e.IsRefundable && e.RefundDeadline != nil && now.Before(*e.RefundDeadline)
}

// EventSection is the sellable unit: one venue section's ticket allotment for
// one event. TicketsAvailable is mutated only through the inventory ledger.
type EventSection struct {
	bun.BaseModel `bun:"table:event_sections"`

	ID               string    `bun:"id,pk" json:"id"`
	EventID          string    `bun:"event_id,notnull" json:"event_id"`
	VenueSectionID   string    `bun:"venue_section_id,notnull" json:"venue_section_id"`
	TicketsAvailable int       `bun:"tickets_available,notnull" json:"tickets_available"`
	TicketPrice      float64   `bun:"ticket_price,notnull" json:"ticket_price"`
	CreatedAt        time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}
