package events

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateShortCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		code := generateShortCode()
		assert.True(t, ValidShortCode(code), code)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 190)
}

func TestValidShortCode(t *testing.T) {
	assert.True(t, ValidShortCode("abc234"))
	assert.False(t, ValidShortCode("abl234"))
	assert.False(t, ValidShortCode("abc10z"))
	assert.False(t, ValidShortCode("ABC234"))
	assert.False(t, ValidShortCode("abc2345"))
	assert.False(t, ValidShortCode(""))
}

func TestTicketQRCode(t *testing.T) {
	qr, err := ticketQRCode(uuid.New(), uuid.New(), time.Now())
	require.NoError(t, err)
	assert.Contains(t, qr, "data:image/png;base64,")
	assert.Greater(t, len(qr), 100)
}
