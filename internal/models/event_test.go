package models_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ubongpr7/music-booking/internal/models"
)

func TestRefundAvailable(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	before := now.Add(-24 * time.Hour)
	after := now.Add(24 * time.Hour)

	event := models.Event{IsRefundable: true, RefundDeadline: &after}
	assert.True(t, event.RefundAvailable(now))

	event.RefundDeadline = &before
	assert.False(t, event.RefundAvailable(now))

	// Non-refundable events never qualify, deadline or not.
	event = models.Event{IsRefundable: false, RefundDeadline: &after}
	assert.False(t, event.RefundAvailable(now))

	// A refundable event without a deadline is treated as closed.
	event = models.Event{IsRefundable: true}
	assert.False(t, event.RefundAvailable(now))
}
