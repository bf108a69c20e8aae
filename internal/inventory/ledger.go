package inventory

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"github.com/ubongpr7/music-booking/internal/models"
)

// Ledger applies reservation and release deltas to event section inventory.
// Every mutation runs against the caller's transaction so the triggering
// booking status change commits or rolls back together with the counter
// update. Under Postgres the section row is locked for the duration of the
// transaction; SQLite serializes writers on its own, so the lock clause is
// gated by dialect.
type Ledger struct{}

func NewLedger() *Ledger {
	return &Ledger{}
}

func (l *Ledger) lockSection(ctx context.Context, idb bun.IDB, sectionID string) (*models.EventSection, error) {
	var section models.EventSection
	q := idb.NewSelect().
		Model(&section).
		Where("id = ?", sectionID)
	if idb.Dialect().Name() == dialect.PG {
		q = q.For("UPDATE")
	}
	if err := q.Limit(1).Scan(ctx); err != nil {
		return nil, fmt.Errorf("event section %s: %w", sectionID, err)
	}
	return &section, nil
}

// Reserve atomically decrements tickets_available by count. It fails with
// ErrInsufficientInventory when count exceeds availability, leaving the
// counter untouched.
func (l *Ledger) Reserve(ctx context.Context, idb bun.IDB, sectionID string, count int) (*models.EventSection, error) {
	if count <= 0 {
		return nil, ErrInvalidQuantity
	}

	section, err := l.lockSection(ctx, idb, sectionID)
	if err != nil {
		return nil, err
	}

	if count > section.TicketsAvailable {
		return nil, ErrInsufficientInventory
	}

	section.TicketsAvailable -= count
	if _, err := idb.NewUpdate().
		Model(section).
		Column("tickets_available").
		Where("id = ?", section.ID).
		Exec(ctx); err != nil {
		return nil, fmt.Errorf("reserve %d tickets on section %s: %w", count, sectionID, err)
	}

	return section, nil
}

// Release atomically increments tickets_available by count, capped at the
// venue section capacity so a double release can never push availability
// past the seating limit.
func (l *Ledger) Release(ctx context.Context, idb bun.IDB, sectionID string, count int) (*models.EventSection, error) {
	if count <= 0 {
		return nil, ErrInvalidQuantity
	}

	section, err := l.lockSection(ctx, idb, sectionID)
	if err != nil {
		return nil, err
	}

	var venueSection models.VenueSection
	if err := idb.NewSelect().
		Model(&venueSection).
		Where("id = ?", section.VenueSectionID).
		Limit(1).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("venue section %s: %w", section.VenueSectionID, err)
	}

	section.TicketsAvailable += count
	if section.TicketsAvailable > venueSection.Capacity {
		section.TicketsAvailable = venueSection.Capacity
	}

	if _, err := idb.NewUpdate().
		Model(section).
		Column("tickets_available").
		Where("id = ?", section.ID).
		Exec(ctx); err != nil {
		return nil, fmt.Errorf("release %d tickets on section %s: %w", count, sectionID, err)
	}

	return section, nil
}

// Apply routes a signed delta to Reserve or Release. A zero delta is a no-op.
func (l *Ledger) Apply(ctx context.Context, idb bun.IDB, sectionID string, delta int) (*models.EventSection, error) {
	switch {
	case delta < 0:
		return l.Reserve(ctx, idb, sectionID, -delta)
	case delta > 0:
		return l.Release(ctx, idb, sectionID, delta)
	default:
		return nil, nil
	}
}
