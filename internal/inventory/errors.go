package inventory

import "errors"

var (
	// ErrInvalidQuantity is returned when a reserve or release is attempted
	// with a zero or negative ticket count.
	ErrInvalidQuantity = errors.New("ticket quantity must be positive")

	// ErrInsufficientInventory is returned when a reservation asks for more
	// tickets than the event section has available.
	ErrInsufficientInventory = errors.New("not enough tickets available for this event section")

	// ErrCapacityExceeded is returned when an event section's ticket
	// allotment would exceed the venue section's seating capacity.
	ErrCapacityExceeded = errors.New("tickets available exceed the capacity of the venue section")

	// ErrInvalidTransition is returned for a booking status change the state
	// machine does not allow.
	ErrInvalidTransition = errors.New("invalid booking status transition")
)
