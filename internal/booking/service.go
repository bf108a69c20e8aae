package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/ubongpr7/music-booking/internal/inventory"
	"github.com/ubongpr7/music-booking/internal/logger"
	"github.com/ubongpr7/music-booking/internal/models"
	"github.com/ubongpr7/music-booking/internal/utils"
)

// referenceAttempts bounds the retry loop for reference collisions. The
// unique constraint is the real guarantee; collisions inside one day are
// already vanishingly rare.
const referenceAttempts = 5

var (
	ErrBookingNotFound = errors.New("booking not found")
	ErrGroupNotFound   = errors.New("booking group not found")
)

type DBLayer interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, idb bun.IDB) error) error
	GetEventSection(ctx context.Context, idb bun.IDB, id string) (*models.EventSection, error)
	GetVenueSection(ctx context.Context, idb bun.IDB, id string) (*models.VenueSection, error)
	InsertEventSection(ctx context.Context, idb bun.IDB, section *models.EventSection) error
	GetBooking(ctx context.Context, idb bun.IDB, id string) (*models.Booking, error)
	InsertBooking(ctx context.Context, idb bun.IDB, booking *models.Booking) error
	UpdateBooking(ctx context.Context, idb bun.IDB, booking *models.Booking) error
	BookingReferenceExists(ctx context.Context, idb bun.IDB, reference string) (bool, error)
	BookingsForUser(ctx context.Context, idb bun.IDB, userID string) ([]models.Booking, error)
	GetGroup(ctx context.Context, idb bun.IDB, id string) (*models.BookingGroup, error)
	GetGroupByReference(ctx context.Context, idb bun.IDB, reference string) (*models.BookingGroup, error)
	GetPendingGroupForUser(ctx context.Context, idb bun.IDB, userID string) (*models.BookingGroup, error)
	InsertGroup(ctx context.Context, idb bun.IDB, group *models.BookingGroup) error
	GroupBookings(ctx context.Context, idb bun.IDB, groupID string) ([]models.Booking, error)
	RecomputeGroupTotal(ctx context.Context, idb bun.IDB, groupID string) (float64, error)
}

// SectionLock is an advisory lock taken around a confirmation to keep
// concurrent confirmations of the same section from piling up on the
// database row lock. The row lock stays the correctness authority.
type SectionLock interface {
	Lock(ctx context.Context, sectionID, ownerID string) (bool, error)
	Unlock(ctx context.Context, sectionID, ownerID string) error
}

type Publisher interface {
	PublishBookingConfirmed(booking models.Booking) error
	PublishBookingCanceled(booking models.Booking) error
}

type QRGenerator interface {
	ConfirmationQR(booking models.Booking) (string, error)
}

// Ledger applies inventory deltas inside the caller's transaction.
type Ledger interface {
	Apply(ctx context.Context, idb bun.IDB, sectionID string, delta int) (*models.EventSection, error)
}

type Service struct {
	DB     DBLayer
	Locks  SectionLock
	Kafka  Publisher
	QR     QRGenerator
	ledger Ledger
	logger *logger.Logger
}

func NewService(db DBLayer, locks SectionLock, kafka Publisher, qrGen QRGenerator, log *logger.Logger) *Service {
	return &Service{
		DB:     db,
		Locks:  locks,
		Kafka:  kafka,
		QR:     qrGen,
		ledger: inventory.NewLedger(),
		logger: log,
	}
}

// CreateBooking records a pending reservation of n tickets in one event
// section and attaches it to the user's open booking group, opening a new
// group when the user has none. The booking insert, the group write and the
// group total recompute commit together.
func (s *Service) CreateBooking(ctx context.Context, userID, eventSectionID string, n int) (*models.BookingResponse, error) {
	if n <= 0 {
		return nil, inventory.ErrInvalidQuantity
	}

	var (
		booking *models.Booking
		group   *models.BookingGroup
	)

	err := s.DB.RunInTx(ctx, func(ctx context.Context, idb bun.IDB) error {
		section, err := s.DB.GetEventSection(ctx, idb, eventSectionID)
		if err != nil {
			return fmt.Errorf("event section %s: %w", eventSectionID, err)
		}

		now := time.Now()

		reference, err := s.uniqueBookingReference(ctx, idb, now)
		if err != nil {
			return err
		}

		group, err = s.DB.GetPendingGroupForUser(ctx, idb, userID)
		if err != nil {
			return fmt.Errorf("pending group for user %s: %w", userID, err)
		}
		if group == nil {
			group = &models.BookingGroup{
				ID:        uuid.NewString(),
				Reference: utils.GroupReference(now),
				UserID:    userID,
				Status:    models.GroupPending,
				CreatedAt: now,
			}
			if err := s.DB.InsertGroup(ctx, idb, group); err != nil {
				return fmt.Errorf("open booking group: %w", err)
			}
		}

		booking = &models.Booking{
			ID:              uuid.NewString(),
			Reference:       reference,
			UserID:          userID,
			EventSectionID:  section.ID,
			BookingGroupID:  group.ID,
			NumberOfTickets: n,
			TotalPrice:      float64(n) * section.TicketPrice,
			Status:          models.BookingPending,
			BookingDate:     now,
			CreatedAt:       now,
		}
		if err := s.DB.InsertBooking(ctx, idb, booking); err != nil {
			return fmt.Errorf("insert booking: %w", err)
		}

		total, err := s.DB.RecomputeGroupTotal(ctx, idb, group.ID)
		if err != nil {
			return err
		}
		group.TotalPrice = total
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.LogBooking("CREATE", booking.Reference, fmt.Sprintf("%d tickets in section %s for user %s", n, eventSectionID, userID))

	return &models.BookingResponse{
		Booking:        booking,
		GroupReference: group.Reference,
	}, nil
}

// SetBookingStatus moves a booking through its state machine. Transitions
// with an inventory effect apply the delta through the ledger in the same
// transaction as the status write, so a crash can never leave availability
// inconsistent with recorded bookings.
func (s *Service) SetBookingStatus(ctx context.Context, bookingID string, next models.BookingStatus) (*models.BookingResponse, error) {
	var (
		booking  *models.Booking
		groupRef string
	)

	// Peek at the booking outside the transaction to take the advisory
	// section lock before contending on the row lock.
	current, err := s.DB.GetBooking(ctx, nil, bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	if locked, lockErr := s.Locks.Lock(ctx, current.EventSectionID, bookingID); lockErr != nil {
		s.logger.Warn("REDIS", fmt.Sprintf("section lock for %s unavailable: %v", current.EventSectionID, lockErr))
	} else if locked {
		defer func() {
			if unlockErr := s.Locks.Unlock(ctx, current.EventSectionID, bookingID); unlockErr != nil {
				s.logger.Warn("REDIS", fmt.Sprintf("section unlock for %s failed: %v", current.EventSectionID, unlockErr))
			}
		}()
	}

	err = s.DB.RunInTx(ctx, func(ctx context.Context, idb bun.IDB) error {
		var err error
		booking, err = s.DB.GetBooking(ctx, idb, bookingID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrBookingNotFound
			}
			return err
		}

		delta, err := inventory.Delta(booking.Status, next, booking.NumberOfTickets)
		if err != nil {
			return err
		}

		// The ledger locks the section row; the status write below commits
		// or rolls back with the counter update.
		if _, err := s.ledger.Apply(ctx, idb, booking.EventSectionID, delta); err != nil {
			return err
		}

		section, err := s.DB.GetEventSection(ctx, idb, booking.EventSectionID)
		if err != nil {
			return err
		}

		booking.Status = next
		booking.TotalPrice = float64(booking.NumberOfTickets) * section.TicketPrice
		booking.UpdatedAt = time.Now()
		if err := s.DB.UpdateBooking(ctx, idb, booking); err != nil {
			return fmt.Errorf("update booking %s: %w", booking.ID, err)
		}

		if booking.BookingGroupID != "" {
			if _, err := s.DB.RecomputeGroupTotal(ctx, idb, booking.BookingGroupID); err != nil {
				return err
			}
			group, err := s.DB.GetGroup(ctx, idb, booking.BookingGroupID)
			if err != nil {
				return err
			}
			groupRef = group.Reference
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.LogBooking("STATUS", booking.Reference, fmt.Sprintf("now %s", next))
	s.publishTransition(*booking, next)

	resp := &models.BookingResponse{Booking: booking, GroupReference: groupRef}
	if next == models.BookingConfirmed {
		code, qrErr := s.QR.ConfirmationQR(*booking)
		if qrErr != nil {
			s.logger.Warn("QR", fmt.Sprintf("confirmation QR for %s: %v", booking.Reference, qrErr))
		} else {
			resp.QRCode = code
		}
	}
	return resp, nil
}

func (s *Service) publishTransition(booking models.Booking, next models.BookingStatus) {
	var err error
	switch next {
	case models.BookingConfirmed:
		err = s.Kafka.PublishBookingConfirmed(booking)
	case models.BookingCanceled:
		err = s.Kafka.PublishBookingCanceled(booking)
	default:
		return
	}
	if err != nil {
		s.logger.Error("KAFKA", fmt.Sprintf("publish for booking %s: %v", booking.Reference, err))
	}
}

func (s *Service) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	booking, err := s.DB.GetBooking(ctx, nil, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	return booking, err
}

func (s *Service) ListBookingsForUser(ctx context.Context, userID string) ([]models.Booking, error) {
	return s.DB.BookingsForUser(ctx, nil, userID)
}

// GetBookingGroup resolves a group by its reference along with its member
// bookings.
func (s *Service) GetBookingGroup(ctx context.Context, reference string) (*models.BookingGroupResponse, error) {
	group, err := s.DB.GetGroupByReference(ctx, nil, reference)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}
	bookings, err := s.DB.GroupBookings(ctx, nil, group.ID)
	if err != nil {
		return nil, err
	}
	return &models.BookingGroupResponse{Group: group, Bookings: bookings}, nil
}

// CreateEventSection opens a section's ticket allotment for an event,
// rejecting allotments above the venue section's seating capacity.
func (s *Service) CreateEventSection(ctx context.Context, eventID, venueSectionID string, ticketsAvailable int, ticketPrice float64) (*models.EventSection, error) {
	venueSection, err := s.DB.GetVenueSection(ctx, nil, venueSectionID)
	if err != nil {
		return nil, fmt.Errorf("venue section %s: %w", venueSectionID, err)
	}

	if err := inventory.ValidateAllotment(ticketsAvailable, venueSection.Capacity); err != nil {
		return nil, err
	}

	section := &models.EventSection{
		ID:               uuid.NewString(),
		EventID:          eventID,
		VenueSectionID:   venueSectionID,
		TicketsAvailable: ticketsAvailable,
		TicketPrice:      ticketPrice,
		CreatedAt:        time.Now(),
	}
	if err := s.DB.InsertEventSection(ctx, nil, section); err != nil {
		return nil, fmt.Errorf("insert event section: %w", err)
	}
	return section, nil
}

func (s *Service) uniqueBookingReference(ctx context.Context, idb bun.IDB, now time.Time) (string, error) {
	for i := 0; i < referenceAttempts; i++ {
		reference := utils.BookingReference(now)
		exists, err := s.DB.BookingReferenceExists(ctx, idb, reference)
		if err != nil {
			return "", err
		}
		if !exists {
			return reference, nil
		}
	}
	return "", fmt.Errorf("could not generate a unique booking reference after %d attempts", referenceAttempts)
}
