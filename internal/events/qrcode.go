package events

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
)

const qrSize = 300

type ticket struct {
	EventID   uuid.UUID `json:"eventId"`
	UserID    uuid.UUID `json:"userId"`
	Timestamp int64     `json:"timestamp"`
}

// ticketQRCode renders the entry ticket for a join as a PNG data URL.
func ticketQRCode(eventID, userID uuid.UUID, at time.Time) (string, error) {
	payload, err := json.Marshal(ticket{
		EventID:   eventID,
		UserID:    userID,
		Timestamp: at.UnixMilli(),
	})
	if err != nil {
		return "", err
	}

	png, err := qrcode.Encode(string(payload), qrcode.Medium, qrSize)
	if err != nil {
		return "", fmt.Errorf("encoding qr code: %w", err)
	}

	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
