package inventory

import "github.com/ubongpr7/music-booking/internal/models"

// Delta returns the change to apply to an event section's tickets_available
// when a booking of qty tickets moves from one status to another. A negative
// delta reserves tickets, a positive delta releases them, zero means the
// transition has no inventory effect.
//
// The state machine:
//
//	pending   -> confirmed, canceled
//	confirmed -> completed, canceled
//	canceled, completed are terminal
func Delta(current, next models.BookingStatus, qty int) (int, error) {
	if qty <= 0 {
		return 0, ErrInvalidQuantity
	}

	switch current {
	case models.BookingPending:
		switch next {
		case models.BookingConfirmed:
			return -qty, nil
		case models.BookingCanceled:
			// Nothing was reserved yet.
			return 0, nil
		}
	case models.BookingConfirmed:
		switch next {
		case models.BookingCanceled:
			return qty, nil
		case models.BookingCompleted:
			return 0, nil
		}
	}

	return 0, ErrInvalidTransition
}

// ValidateAllotment checks an event section's ticket allotment against the
// venue section capacity at creation time.
func ValidateAllotment(ticketsAvailable, capacity int) error {
	if ticketsAvailable < 0 {
		return ErrInvalidQuantity
	}
	if ticketsAvailable > capacity {
		return ErrCapacityExceeded
	}
	return nil
}
