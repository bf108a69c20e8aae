package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/ubongpr7/music-booking/internal/models"
)

// DB is the relational store for bookings, booking groups, event sections and
// payment records. Methods take a bun.IDB so they can run either against the
// root connection (pass nil) or inside a transaction started with RunInTx.
type DB struct {
	Bun *bun.DB
}

func (d *DB) conn(idb bun.IDB) bun.IDB {
	if idb == nil {
		return d.Bun
	}
	return idb
}

// RunInTx executes fn inside a single database transaction. Every multi-row
// mutation in the booking core goes through here so partial application is
// impossible.
func (d *DB) RunInTx(ctx context.Context, fn func(ctx context.Context, idb bun.IDB) error) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, tx)
	})
}

// ---------------- EVENT SECTIONS ----------------

func (d *DB) GetEventSection(ctx context.Context, idb bun.IDB, id string) (*models.EventSection, error) {
	var section models.EventSection
	err := d.conn(idb).NewSelect().
		Model(&section).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &section, nil
}

func (d *DB) GetVenueSection(ctx context.Context, idb bun.IDB, id string) (*models.VenueSection, error) {
	var section models.VenueSection
	err := d.conn(idb).NewSelect().
		Model(&section).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &section, nil
}

func (d *DB) InsertEventSection(ctx context.Context, idb bun.IDB, section *models.EventSection) error {
	_, err := d.conn(idb).NewInsert().Model(section).Exec(ctx)
	return err
}

// ---------------- BOOKINGS ----------------

func (d *DB) GetBooking(ctx context.Context, idb bun.IDB, id string) (*models.Booking, error) {
	var booking models.Booking
	err := d.conn(idb).NewSelect().
		Model(&booking).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (d *DB) InsertBooking(ctx context.Context, idb bun.IDB, booking *models.Booking) error {
	_, err := d.conn(idb).NewInsert().Model(booking).Exec(ctx)
	return err
}

func (d *DB) UpdateBooking(ctx context.Context, idb bun.IDB, booking *models.Booking) error {
	_, err := d.conn(idb).NewUpdate().
		Model(booking).
		Column("status", "total_price", "booking_group_id", "updated_at").
		Where("id = ?", booking.ID).
		Exec(ctx)
	return err
}

func (d *DB) BookingReferenceExists(ctx context.Context, idb bun.IDB, reference string) (bool, error) {
	return d.conn(idb).NewSelect().
		Model((*models.Booking)(nil)).
		Where("reference = ?", reference).
		Exists(ctx)
}

func (d *DB) BookingsForUser(ctx context.Context, idb bun.IDB, userID string) ([]models.Booking, error) {
	var bookings []models.Booking
	err := d.conn(idb).NewSelect().
		Model(&bookings).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

// ---------------- BOOKING GROUPS ----------------

func (d *DB) GetGroup(ctx context.Context, idb bun.IDB, id string) (*models.BookingGroup, error) {
	var group models.BookingGroup
	err := d.conn(idb).NewSelect().
		Model(&group).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &group, nil
}

func (d *DB) GetGroupByReference(ctx context.Context, idb bun.IDB, reference string) (*models.BookingGroup, error) {
	var group models.BookingGroup
	err := d.conn(idb).NewSelect().
		Model(&group).
		Where("reference = ?", reference).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &group, nil
}

// GetPendingGroupForUser returns the user's open pending group, or nil when
// the user has none.
func (d *DB) GetPendingGroupForUser(ctx context.Context, idb bun.IDB, userID string) (*models.BookingGroup, error) {
	var group models.BookingGroup
	err := d.conn(idb).NewSelect().
		Model(&group).
		Where("user_id = ?", userID).
		Where("status = ?", models.GroupPending).
		Order("created_at ASC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &group, nil
}

func (d *DB) InsertGroup(ctx context.Context, idb bun.IDB, group *models.BookingGroup) error {
	_, err := d.conn(idb).NewInsert().Model(group).Exec(ctx)
	return err
}

func (d *DB) UpdateGroup(ctx context.Context, idb bun.IDB, group *models.BookingGroup) error {
	_, err := d.conn(idb).NewUpdate().
		Model(group).
		Column("status", "total_price", "payment_date", "updated_at").
		Where("id = ?", group.ID).
		Exec(ctx)
	return err
}

func (d *DB) GroupBookings(ctx context.Context, idb bun.IDB, groupID string) ([]models.Booking, error) {
	var bookings []models.Booking
	err := d.conn(idb).NewSelect().
		Model(&bookings).
		Where("booking_group_id = ?", groupID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

// RecomputeGroupTotal sums total_price over the group's member bookings and
// persists the result on the group row. Summing twice yields the same value,
// so callers may invoke it freely after any membership change.
func (d *DB) RecomputeGroupTotal(ctx context.Context, idb bun.IDB, groupID string) (float64, error) {
	conn := d.conn(idb)

	var total sql.NullFloat64
	err := conn.NewSelect().
		Model((*models.Booking)(nil)).
		ColumnExpr("SUM(total_price)").
		Where("booking_group_id = ?", groupID).
		Scan(ctx, &total)
	if err != nil {
		return 0, fmt.Errorf("sum group %s: %w", groupID, err)
	}

	_, err = conn.NewUpdate().
		Model((*models.BookingGroup)(nil)).
		Set("total_price = ?", total.Float64).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", groupID).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("update group %s total: %w", groupID, err)
	}
	return total.Float64, nil
}

// ComputeGroupTotalFromSections recomputes the payable total from the live
// event section prices, independently of the cached group total. Settlement
// uses this so a stale or tampered cache never reaches the payment ledger.
func (d *DB) ComputeGroupTotalFromSections(ctx context.Context, idb bun.IDB, groupID string) (float64, error) {
	var total sql.NullFloat64
	err := d.conn(idb).NewSelect().
		Model((*models.Booking)(nil)).
		ColumnExpr("SUM(booking.number_of_tickets * event_section.ticket_price)").
		Join("JOIN event_sections AS event_section ON event_section.id = booking.event_section_id").
		Where("booking.booking_group_id = ?", groupID).
		Scan(ctx, &total)
	if err != nil {
		return 0, err
	}
	return total.Float64, nil
}

func (d *DB) CountGroupTickets(ctx context.Context, idb bun.IDB, groupID string) (int, error) {
	var count sql.NullInt64
	err := d.conn(idb).NewSelect().
		Model((*models.Booking)(nil)).
		ColumnExpr("SUM(number_of_tickets)").
		Where("booking_group_id = ?", groupID).
		Scan(ctx, &count)
	if err != nil {
		return 0, err
	}
	return int(count.Int64), nil
}

func (d *DB) MarkGroupBookingsCompleted(ctx context.Context, idb bun.IDB, groupID string) error {
	_, err := d.conn(idb).NewUpdate().
		Model((*models.Booking)(nil)).
		Set("status = ?", models.BookingCompleted).
		Set("updated_at = ?", time.Now()).
		Where("booking_group_id = ?", groupID).
		Exec(ctx)
	return err
}

// ---------------- PAYMENTS ----------------

func (d *DB) InsertPayment(ctx context.Context, idb bun.IDB, payment *models.Payment) error {
	_, err := d.conn(idb).NewInsert().Model(payment).Exec(ctx)
	return err
}

// GetSuccessfulPaymentByReference returns the successful payment recorded for
// an external transaction id, or nil when none exists.
func (d *DB) GetSuccessfulPaymentByReference(ctx context.Context, idb bun.IDB, reference string) (*models.Payment, error) {
	var payment models.Payment
	err := d.conn(idb).NewSelect().
		Model(&payment).
		Where("reference = ?", reference).
		Where("status = ?", models.PaymentSuccess).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (d *DB) GetSuccessfulPaymentForGroup(ctx context.Context, idb bun.IDB, groupID string) (*models.Payment, error) {
	var payment models.Payment
	err := d.conn(idb).NewSelect().
		Model(&payment).
		Where("booking_group_id = ?", groupID).
		Where("status = ?", models.PaymentSuccess).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}
