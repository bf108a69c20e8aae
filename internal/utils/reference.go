package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BookingReference returns a human-readable booking reference in the format
// BKG-YYYYMMDD-RANDOM. Uniqueness is enforced by the database constraint;
// callers retry on collision.
func BookingReference(now time.Time) string {
	return reference("BKG", now)
}

// GroupReference returns a booking group reference in the format
// GRP-YYYYMMDD-RANDOM.
func GroupReference(now time.Time) string {
	return reference("GRP", now)
}

func reference(prefix string, now time.Time) string {
	code := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("%s-%s-%s", prefix, now.Format("20060102"), code)
}
