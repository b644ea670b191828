package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/ohand/dtugateway/internal/dtu"
	"github.com/stretchr/testify/assert"
)

func TestRecorderExposesMetricsOverHTTP(t *testing.T) {
	r := NewRecorder()
	r.ConnectAttempt()
	r.DTUReset(dtu.ResetReasonNoTime)
	r.SetOnline(true)
	r.ObserveGrid(230.5, 400)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	assert.Contains(t, body, "dtugateway_connect_attempts_total 1")
	assert.Contains(t, body, `dtugateway_dtu_resets_total{reason="NO_TIME"} 1`)
	assert.Contains(t, body, "dtugateway_online 1")
	assert.Contains(t, body, "dtugateway_grid_voltage_volts 230.5")
}
