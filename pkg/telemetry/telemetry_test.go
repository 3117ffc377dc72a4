package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hugh/poolparty/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_NoEndpointIsNoop(t *testing.T) {
	tr, err := Init(context.Background(), &config.TelemetryConfig{ServiceName: "poolparty"})
	require.NoError(t, err)
	assert.False(t, tr.Enabled())

	called := false
	h := tr.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	assert.True(t, called)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.NoError(t, tr.Shutdown(context.Background()))
}

func TestExporterOptions(t *testing.T) {
	assert.Len(t, exporterOptions("http://collector:4318/v1/traces"), 3)
	assert.Len(t, exporterOptions("https://collector:4318"), 1)
	assert.Len(t, exporterOptions("collector:4318"), 2)
}
