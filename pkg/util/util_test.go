package util

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextCronTime(t *testing.T) {
	from := time.Date(2026, 3, 1, 10, 15, 0, 0, time.UTC)

	t.Run("hourly", func(t *testing.T) {
		next, err := NextCronTime("0 * * * *", from)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC), next)
	})

	t.Run("invalid expression", func(t *testing.T) {
		_, err := NextCronTime("every hour", from)
		assert.Error(t, err)
	})
}

func TestValidateCronExpr(t *testing.T) {
	assert.NoError(t, ValidateCronExpr("*/15 * * * *"))
	assert.Error(t, ValidateCronExpr("* * *"))
	assert.Error(t, ValidateCronExpr(""))
}

func TestNewLogger_ProductionIsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "production", "poolparty")

	logger.Debug("hidden")
	logger.Info("visible", "key", "value")

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "visible", record["msg"])
	assert.Equal(t, "poolparty", record["service"])
	assert.Equal(t, "value", record["key"])
}

func TestNewLogger_DevelopmentLogsDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "development", "poolparty")

	logger.Debug("details")
	assert.Contains(t, buf.String(), "msg=details")
	assert.Contains(t, buf.String(), "service=poolparty")
}
