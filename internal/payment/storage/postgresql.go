package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/ubongpr7/music-booking/internal/config"
	"github.com/ubongpr7/music-booking/internal/logger"
	"github.com/ubongpr7/music-booking/internal/models"
)

type PostgreSQLStore struct {
	db  *sql.DB
	log *logger.Logger
}

// NewPostgreSQLStoreWithDB wraps an existing connection, typically the one
// the bun store already holds.
func NewPostgreSQLStoreWithDB(db *sql.DB, log *logger.Logger) *PostgreSQLStore {
	return &PostgreSQLStore{db: db, log: log}
}

// NewPostgreSQLStore opens its own connection from config. Used when the
// payment queries are served by a separate process.
func NewPostgreSQLStore(cfg config.DatabaseConfig, log *logger.Logger) (*PostgreSQLStore, error) {
	log.LogDatabase("CONNECT", "payments", "Connecting to PostgreSQL")

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MaxLifetime)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.LogDatabase("SUCCESS", "payments", "PostgreSQL connection established")
	return &PostgreSQLStore{db: db, log: log}, nil
}

// GetPaymentByReference returns the payment recorded for an external
// transaction reference.
func (s *PostgreSQLStore) GetPaymentByReference(reference string) (*models.Payment, error) {
	query := `
    SELECT id, booking_group_id, amount, status, reference, method, payment_date
    FROM payments WHERE reference = $1
    `

	payment := &models.Payment{}
	err := s.db.QueryRow(query, reference).Scan(
		&payment.ID, &payment.BookingGroupID, &payment.Amount, &payment.Status,
		&payment.Reference, &payment.Method, &payment.PaymentDate,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("payment not found")
		}
		s.log.Error("DATABASE", fmt.Sprintf("Failed to get payment %s: %s", reference, err.Error()))
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	return payment, nil
}

// ListPaymentsForGroup returns the payment attempts recorded against a
// booking group, newest first.
func (s *PostgreSQLStore) ListPaymentsForGroup(groupID string, limit, offset int) ([]*models.Payment, error) {
	query := `
    SELECT id, booking_group_id, amount, status, reference, method, payment_date
    FROM payments
    WHERE booking_group_id = $1
    ORDER BY payment_date DESC
    LIMIT $2 OFFSET $3
    `

	rows, err := s.db.Query(query, groupID, limit, offset)
	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to list payments: %s", err.Error()))
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		payment := &models.Payment{}
		if err := rows.Scan(
			&payment.ID, &payment.BookingGroupID, &payment.Amount, &payment.Status,
			&payment.Reference, &payment.Method, &payment.PaymentDate,
		); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, payment)
	}
	return payments, rows.Err()
}

func (s *PostgreSQLStore) HealthCheck() error {
	return s.db.Ping()
}

func (s *PostgreSQLStore) Close() error {
	return s.db.Close()
}
