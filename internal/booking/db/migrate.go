package db

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/ubongpr7/music-booking/internal/models"
)

// tables in dependency order; drops run in reverse.
var tables = []interface{}{
	(*models.Venue)(nil),
	(*models.VenueSection)(nil),
	(*models.Event)(nil),
	(*models.EventSection)(nil),
	(*models.BookingGroup)(nil),
	(*models.Booking)(nil),
	(*models.Payment)(nil),
}

// CreateSchema creates every table the booking core persists to. Used by
// development setups and the in-memory test databases; production schemas go
// through the SQL migration runner instead.
func CreateSchema(ctx context.Context, bunDB *bun.DB) error {
	for _, model := range tables {
		if _, err := bunDB.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", model, err)
		}
	}
	return nil
}

// ResetSchema drops and recreates every table.
func ResetSchema(ctx context.Context, bunDB *bun.DB) error {
	for i := len(tables) - 1; i >= 0; i-- {
		if _, err := bunDB.NewDropTable().
			Model(tables[i]).
			IfExists().
			Exec(ctx); err != nil {
			return fmt.Errorf("drop table for %T: %w", tables[i], err)
		}
	}
	return CreateSchema(ctx, bunDB)
}
