package qr

import (
	"encoding/base64"
	"encoding/json"

	"github.com/skip2/go-qrcode"

	"github.com/ubongpr7/music-booking/internal/models"
)

// Payload is what ends up inside a confirmation QR: enough for gate staff to
// look the booking up and cross-check the ticket count.
type Payload struct {
	Reference       string `json:"reference"`
	EventSectionID  string `json:"event_section_id"`
	NumberOfTickets int    `json:"number_of_tickets"`
}

type Generator struct {
	size int
}

func NewGenerator() *Generator {
	return &Generator{size: 256}
}

// ConfirmationQR renders a booking's reference payload as a base64-encoded
// PNG suitable for embedding in an API response.
func (g *Generator) ConfirmationQR(booking models.Booking) (string, error) {
	payload := Payload{
		Reference:       booking.Reference,
		EventSectionID:  booking.EventSectionID,
		NumberOfTickets: booking.NumberOfTickets,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	png, err := qrcode.Encode(string(data), qrcode.Medium, g.size)
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(png), nil
}
