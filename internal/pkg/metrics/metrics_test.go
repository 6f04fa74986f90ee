package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestHandler(t *testing.T) {
	ResetCommands.WithLabelValues(ResetResult(nil)).Inc()
	ResetCommands.WithLabelValues(ResetResult(errors.New("x"))).Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `counter_dashboard_reset_commands_total{result="success"}`)
	assert.Contains(t, rec.Body.String(), `counter_dashboard_reset_commands_total{result="failure"}`)
	assert.GreaterOrEqual(t, testutil.ToFloat64(ResetCommands.WithLabelValues("success")), 1.0)
}
