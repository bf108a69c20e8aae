package models

import (
	"time"

	"github.com/uptrace/bun"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCanceled  BookingStatus = "canceled"
	BookingCompleted BookingStatus = "completed"
)

type GroupStatus string

const (
	GroupPending   GroupStatus = "pending"
	GroupConfirmed GroupStatus = "confirmed"
	GroupPaid      GroupStatus = "paid"
	GroupCanceled  GroupStatus = "canceled"
	GroupCompleted GroupStatus = "completed"
)

// Booking is a single line-item reservation: N tickets in one event section.
// TotalPrice is recomputed from the live section price on every persistence
// and never trusted from client input.
type Booking struct {
	bun.BaseModel `bun:"table:bookings"`

	ID              string        `bun:"id,pk" json:"id"`
	Reference       string        `bun:"reference,notnull,unique" json:"reference"`
	UserID          string        `bun:"user_id,notnull" json:"user_id"`
	EventSectionID  string        `bun:"event_section_id,notnull" json:"event_section_id"`
	BookingGroupID  string        `bun:"booking_group_id,nullzero" json:"booking_group_id,omitempty"`
	NumberOfTickets int           `bun:"number_of_tickets,notnull" json:"number_of_tickets"`
	TotalPrice      float64       `bun:"total_price,notnull" json:"total_price"`
	Status          BookingStatus `bun:"status,notnull,default:'pending'" json:"status"`
	BookingDate     time.Time     `bun:"booking_date,notnull" json:"booking_date"`
	CreatedAt       time.Time     `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt       time.Time     `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

// BookingGroup aggregates one or more bookings into a single payable
// transaction. TotalPrice and Status are derivative: the total is recomputed
// whenever membership changes and the status is written only by the lifecycle
// operations and the settlement coordinator.
type BookingGroup struct {
	bun.BaseModel `bun:"table:booking_groups"`

	ID          string      `bun:"id,pk" json:"id"`
	Reference   string      `bun:"reference,notnull,unique" json:"reference"`
	UserID      string      `bun:"user_id,notnull" json:"user_id"`
	TotalPrice  float64     `bun:"total_price,notnull" json:"total_price"`
	Status      GroupStatus `bun:"status,notnull,default:'pending'" json:"status"`
	PaymentDate *time.Time  `bun:"payment_date,nullzero" json:"payment_date,omitempty"`
	CreatedAt   time.Time   `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt   time.Time   `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

type BookingRequest struct {
	EventSectionID  string `json:"event_section_id"`
	NumberOfTickets int    `json:"number_of_tickets"`
}

type BookingStatusRequest struct {
	Status BookingStatus `json:"status"`
}

type BookingResponse struct {
	Booking        *Booking `json:"booking"`
	GroupReference string   `json:"group_reference"`
	QRCode         string   `json:"qr_code,omitempty"`
}

type BookingGroupResponse struct {
	Group    *BookingGroup `json:"group"`
	Bookings []Booking     `json:"bookings"`
}
