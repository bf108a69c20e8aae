package inventory_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/ubongpr7/music-booking/internal/inventory"
	"github.com/ubongpr7/music-booking/internal/models"
)

func setupLedgerDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:?cache=shared")
	require.NoError(t, err)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { bunDB.Close() })

	require.NoError(t, bunDB.ResetModel(context.Background(),
		(*models.VenueSection)(nil),
		(*models.EventSection)(nil),
	))
	return bunDB
}

func seedSection(t *testing.T, bunDB *bun.DB, capacity, available int) *models.EventSection {
	t.Helper()
	ctx := context.Background()

	venueSection := &models.VenueSection{
		ID:       "vs-1",
		VenueID:  "venue-1",
		Name:     "Floor",
		Capacity: capacity,
	}
	_, err := bunDB.NewInsert().Model(venueSection).Exec(ctx)
	require.NoError(t, err)

	section := &models.EventSection{
		ID:               "es-1",
		EventID:          "event-1",
		VenueSectionID:   venueSection.ID,
		TicketsAvailable: available,
		TicketPrice:      25.00,
	}
	_, err = bunDB.NewInsert().Model(section).Exec(ctx)
	require.NoError(t, err)

	return section
}

func TestLedgerReserve(t *testing.T) {
	bunDB := setupLedgerDB(t)
	seedSection(t, bunDB, 100, 100)
	ledger := inventory.NewLedger()
	ctx := context.Background()

	section, err := ledger.Reserve(ctx, bunDB, "es-1", 60)
	require.NoError(t, err)
	require.Equal(t, 40, section.TicketsAvailable)

	// A request above availability fails and leaves the counter alone.
	_, err = ledger.Reserve(ctx, bunDB, "es-1", 50)
	require.ErrorIs(t, err, inventory.ErrInsufficientInventory)

	var got models.EventSection
	require.NoError(t, bunDB.NewSelect().Model(&got).Where("id = ?", "es-1").Scan(ctx))
	require.Equal(t, 40, got.TicketsAvailable)

	// Exactly the remaining tickets can still be reserved.
	section, err = ledger.Reserve(ctx, bunDB, "es-1", 40)
	require.NoError(t, err)
	require.Equal(t, 0, section.TicketsAvailable)
}

func TestLedgerReserveInvalidCount(t *testing.T) {
	bunDB := setupLedgerDB(t)
	seedSection(t, bunDB, 100, 100)
	ledger := inventory.NewLedger()

	_, err := ledger.Reserve(context.Background(), bunDB, "es-1", 0)
	require.ErrorIs(t, err, inventory.ErrInvalidQuantity)

	_, err = ledger.Reserve(context.Background(), bunDB, "es-1", -5)
	require.ErrorIs(t, err, inventory.ErrInvalidQuantity)
}

func TestLedgerReleaseCapsAtCapacity(t *testing.T) {
	bunDB := setupLedgerDB(t)
	seedSection(t, bunDB, 100, 95)
	ledger := inventory.NewLedger()
	ctx := context.Background()

	// Releasing more than the headroom clamps to the venue capacity.
	section, err := ledger.Release(ctx, bunDB, "es-1", 10)
	require.NoError(t, err)
	require.Equal(t, 100, section.TicketsAvailable)

	// A second release cannot push past it either.
	section, err = ledger.Release(ctx, bunDB, "es-1", 1)
	require.NoError(t, err)
	require.Equal(t, 100, section.TicketsAvailable)
}

func TestLedgerApplyRoundTrip(t *testing.T) {
	bunDB := setupLedgerDB(t)
	seedSection(t, bunDB, 100, 80)
	ledger := inventory.NewLedger()
	ctx := context.Background()

	// Reserve then release the same quantity nets to no change.
	_, err := ledger.Apply(ctx, bunDB, "es-1", -30)
	require.NoError(t, err)
	section, err := ledger.Apply(ctx, bunDB, "es-1", 30)
	require.NoError(t, err)
	require.Equal(t, 80, section.TicketsAvailable)

	// Zero delta is a no-op and returns nothing.
	section, err = ledger.Apply(ctx, bunDB, "es-1", 0)
	require.NoError(t, err)
	require.Nil(t, section)
}

func TestLedgerUnknownSection(t *testing.T) {
	bunDB := setupLedgerDB(t)
	ledger := inventory.NewLedger()

	_, err := ledger.Reserve(context.Background(), bunDB, "missing", 1)
	require.Error(t, err)
}
