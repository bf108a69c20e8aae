package storage

import "github.com/ubongpr7/music-booking/internal/models"

// Store is the read side of the payment ledger. Writes happen inside the
// settlement coordinator's transaction; this store only answers queries.
type Store interface {
	GetPaymentByReference(reference string) (*models.Payment, error)
	ListPaymentsForGroup(groupID string, limit, offset int) ([]*models.Payment, error)

	Close() error
	HealthCheck() error
}
