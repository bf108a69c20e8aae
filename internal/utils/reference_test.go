package utils_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ubongpr7/music-booking/internal/utils"
)

func TestBookingReferenceFormat(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	ref := utils.BookingReference(now)
	assert.True(t, strings.HasPrefix(ref, "BKG-20260831-"), ref)
	assert.Len(t, ref, len("BKG-20260831-")+6)

	code := ref[len("BKG-20260831-"):]
	assert.Equal(t, strings.ToUpper(code), code)
}

func TestGroupReferenceFormat(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	ref := utils.GroupReference(now)
	assert.True(t, strings.HasPrefix(ref, "GRP-20260831-"), ref)
	assert.Len(t, ref, len("GRP-20260831-")+6)
}

func TestReferencesAreDistinct(t *testing.T) {
	now := time.Now()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		ref := utils.BookingReference(now)
		assert.False(t, seen[ref], "duplicate reference %s", ref)
		seen[ref] = true
	}
}
