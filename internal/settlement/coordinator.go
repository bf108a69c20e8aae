package settlement

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/ubongpr7/music-booking/internal/logger"
	"github.com/ubongpr7/music-booking/internal/models"
)

var (
	// ErrGroupNotFound means the confirmation references a booking group
	// this system has never issued. Callers should not invite redelivery.
	ErrGroupNotFound = errors.New("booking group not found")

	// ErrAlreadyProcessed means the confirmation was applied before. It is
	// benign: at-least-once delivery makes duplicates routine.
	ErrAlreadyProcessed = errors.New("payment confirmation already processed")

	// ErrPaymentDeclined reports a confirmed payment failure. Bookings and
	// inventory are left untouched; tickets were reserved at confirmation
	// time, not payment time.
	ErrPaymentDeclined = errors.New("payment failed")

	// ErrEmptyGroup rejects a checkout for a group with no payable tickets.
	ErrEmptyGroup = errors.New("booking group must have at least one ticket and a positive total")
)

// Event types the coordinator understands, mirroring the processor's wire
// names.
const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventPaymentFailed     = "invoice.payment_failed"
)

type DBLayer interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, idb bun.IDB) error) error
	GetGroupByReference(ctx context.Context, idb bun.IDB, reference string) (*models.BookingGroup, error)
	CountGroupTickets(ctx context.Context, idb bun.IDB, groupID string) (int, error)
	ComputeGroupTotalFromSections(ctx context.Context, idb bun.IDB, groupID string) (float64, error)
	MarkGroupBookingsCompleted(ctx context.Context, idb bun.IDB, groupID string) error
	UpdateGroup(ctx context.Context, idb bun.IDB, group *models.BookingGroup) error
	InsertPayment(ctx context.Context, idb bun.IDB, payment *models.Payment) error
	GetSuccessfulPaymentByReference(ctx context.Context, idb bun.IDB, reference string) (*models.Payment, error)
	GetSuccessfulPaymentForGroup(ctx context.Context, idb bun.IDB, groupID string) (*models.Payment, error)
}

// PaymentGateway is the slice of the payment processor this core consumes:
// opening a checkout and nothing else. Confirmations come back through
// HandlePaymentEvent.
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, group *models.BookingGroup, ticketCount int, successURL, cancelURL string) (string, error)
}

type Publisher interface {
	PublishGroupSettled(group models.BookingGroup) error
}

// Coordinator reconciles external payment confirmations with booking group
// state, exactly once per confirmation.
type Coordinator struct {
	DB      DBLayer
	Gateway PaymentGateway
	Kafka   Publisher
	logger  *logger.Logger
}

func NewCoordinator(db DBLayer, gateway PaymentGateway, kafka Publisher, log *logger.Logger) *Coordinator {
	return &Coordinator{DB: db, Gateway: gateway, Kafka: kafka, logger: log}
}

// CreateCheckout opens a payment session for a booking group and returns the
// processor's redirect URL.
func (c *Coordinator) CreateCheckout(ctx context.Context, reference, successURL, cancelURL string) (string, error) {
	group, err := c.DB.GetGroupByReference(ctx, nil, reference)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrGroupNotFound
		}
		return "", err
	}

	tickets, err := c.DB.CountGroupTickets(ctx, nil, group.ID)
	if err != nil {
		return "", err
	}
	if tickets < 1 || group.TotalPrice <= 0 {
		return "", ErrEmptyGroup
	}

	url, err := c.Gateway.CreateCheckoutSession(ctx, group, tickets, successURL, cancelURL)
	if err != nil {
		return "", fmt.Errorf("create checkout session for group %s: %w", reference, err)
	}

	c.logger.Info("CHECKOUT", fmt.Sprintf("session opened for group %s (%d tickets, %.2f)", reference, tickets, group.TotalPrice))
	return url, nil
}

// HandlePaymentEvent applies one payment confirmation. Duplicates are
// detected by external transaction id and by group status, and reported as
// ErrAlreadyProcessed without touching any row. On success the group, its
// member bookings and the payment record are updated in one transaction.
func (c *Coordinator) HandlePaymentEvent(ctx context.Context, event models.PaymentEvent) error {
	if event.Type == EventPaymentFailed {
		c.logger.Warn("SETTLEMENT", fmt.Sprintf("payment failed for group %s (txn %s)", event.GroupReference, event.TransactionID))
		return ErrPaymentDeclined
	}
	if event.Type != EventCheckoutCompleted {
		c.logger.Info("SETTLEMENT", fmt.Sprintf("ignoring event type %s", event.Type))
		return nil
	}

	group, err := c.DB.GetGroupByReference(ctx, nil, event.GroupReference)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrGroupNotFound
		}
		return err
	}

	if group.Status == models.GroupPaid {
		return ErrAlreadyProcessed
	}
	if existing, err := c.DB.GetSuccessfulPaymentByReference(ctx, nil, event.TransactionID); err != nil {
		return err
	} else if existing != nil {
		return ErrAlreadyProcessed
	}

	var settled models.BookingGroup

	err = c.DB.RunInTx(ctx, func(ctx context.Context, idb bun.IDB) error {
		// Re-check inside the transaction; two deliveries can race past the
		// checks above.
		current, err := c.DB.GetGroupByReference(ctx, idb, event.GroupReference)
		if err != nil {
			return err
		}
		if current.Status == models.GroupPaid {
			return ErrAlreadyProcessed
		}
		if existing, err := c.DB.GetSuccessfulPaymentForGroup(ctx, idb, current.ID); err != nil {
			return err
		} else if existing != nil {
			return ErrAlreadyProcessed
		}

		// The payable amount is recomputed from live section prices, never
		// taken from the cached group total or the event payload.
		total, err := c.DB.ComputeGroupTotalFromSections(ctx, idb, current.ID)
		if err != nil {
			return err
		}

		now := time.Now()
		current.Status = models.GroupPaid
		current.PaymentDate = &now
		current.UpdatedAt = now
		if err := c.DB.UpdateGroup(ctx, idb, current); err != nil {
			return fmt.Errorf("mark group %s paid: %w", current.Reference, err)
		}

		if err := c.DB.MarkGroupBookingsCompleted(ctx, idb, current.ID); err != nil {
			return fmt.Errorf("complete bookings of group %s: %w", current.Reference, err)
		}

		payment := &models.Payment{
			ID:             uuid.NewString(),
			BookingGroupID: current.ID,
			Amount:         total,
			Status:         models.PaymentSuccess,
			Reference:      event.TransactionID,
			Method:         models.MethodStripe,
			PaymentDate:    now,
		}
		if err := c.DB.InsertPayment(ctx, idb, payment); err != nil {
			return fmt.Errorf("record payment %s: %w", event.TransactionID, err)
		}

		settled = *current
		return nil
	})
	if err != nil {
		return err
	}

	c.logger.Info("SETTLEMENT", fmt.Sprintf("group %s settled (txn %s)", settled.Reference, event.TransactionID))
	if pubErr := c.Kafka.PublishGroupSettled(settled); pubErr != nil {
		c.logger.Error("KAFKA", fmt.Sprintf("publish settlement for group %s: %v", settled.Reference, pubErr))
	}
	return nil
}
