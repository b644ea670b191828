// Package metrics records gateway telemetry through prometheus/client_golang
// directly, rather than reproducing the teacher's dynamic-registration
// PrometheusProvider abstraction (engine/telemetry/metrics/prometheus.go) —
// this package's metric set is small and known at compile time, so the
// cardinality-tracking registry that abstraction solves for has no problem
// to solve here (see DESIGN.md).
package metrics

import (
	"net/http"

	"github.com/ohand/dtugateway/internal/dtu"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder holds every collector the gateway updates. Construct one per
// process and pass it to dtu.NewClient via dtu.WithMetrics.
type Recorder struct {
	registry *prometheus.Registry

	connectAttempts    prometheus.Counter
	connectFailures    prometheus.Counter
	reconnectPauses    prometheus.Counter
	dtuResets          *prometheus.CounterVec
	cloudPauses        prometheus.Counter
	online             prometheus.Gauge
	powerLimitPercent  prometheus.Gauge
	gridVoltage        prometheus.Gauge
	gridPower          prometheus.Gauge
	temperature        prometheus.Gauge
	rssi               prometheus.Gauge
	txrxWatchdogResets prometheus.Counter
}

// NewRecorder builds a Recorder registered against a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	r := &Recorder{
		registry: reg,
		connectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dtugateway_connect_attempts_total", Help: "Total DTU connection attempts.",
		}),
		connectFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dtugateway_connect_failures_total", Help: "Total DTU connection failures.",
		}),
		reconnectPauses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dtugateway_reconnect_pauses_total", Help: "Total times the client entered a long-retry pause.",
		}),
		dtuResets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dtugateway_dtu_resets_total", Help: "Total forced data-store resets, by reason.",
		}, []string{"reason"}),
		cloudPauses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dtugateway_cloud_pauses_total", Help: "Total cloud-coexistence pauses entered.",
		}),
		online: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dtugateway_online", Help: "1 if the debounced connection state is online, else 0.",
		}),
		powerLimitPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dtugateway_power_limit_percent", Help: "Last power limit percent reported by the inverter.",
		}),
		gridVoltage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dtugateway_grid_voltage_volts", Help: "Last grid voltage reading.",
		}),
		gridPower: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dtugateway_grid_power_watts", Help: "Last grid power reading.",
		}),
		temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dtugateway_inverter_temperature_celsius", Help: "Last inverter temperature reading.",
		}),
		rssi: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dtugateway_dtu_rssi_percent", Help: "Last DTU wifi signal strength reading.",
		}),
		txrxWatchdogResets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dtugateway_txrx_watchdog_resets_total", Help: "Total transaction watchdog resets.",
		}),
	}
	reg.MustRegister(
		r.connectAttempts, r.connectFailures, r.reconnectPauses, r.dtuResets,
		r.cloudPauses, r.online, r.powerLimitPercent, r.gridVoltage, r.gridPower,
		r.temperature, r.rssi, r.txrxWatchdogResets,
	)
	return r
}

// Handler exposes the registry over HTTP for Prometheus to scrape.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) ConnectAttempt() { r.connectAttempts.Inc() }
func (r *Recorder) ConnectFailure() { r.connectFailures.Inc() }
func (r *Recorder) ReconnectPause() { r.reconnectPauses.Inc() }
func (r *Recorder) DTUReset(reason dtu.ResetReason) {
	r.dtuResets.WithLabelValues(string(reason)).Inc()
}
func (r *Recorder) CloudPause()        { r.cloudPauses.Inc() }
func (r *Recorder) SetOnline(on bool) {
	if on {
		r.online.Set(1)
		return
	}
	r.online.Set(0)
}
func (r *Recorder) ObservePowerLimit(percent float64)    { r.powerLimitPercent.Set(percent) }
func (r *Recorder) ObserveGrid(voltage, power float64) {
	r.gridVoltage.Set(voltage)
	r.gridPower.Set(power)
}
func (r *Recorder) ObserveTemperature(celsius float64) { r.temperature.Set(celsius) }
func (r *Recorder) ObserveRSSI(percent float64)        { r.rssi.Set(percent) }
func (r *Recorder) TxRxWatchdogReset()                 { r.txrxWatchdogResets.Inc() }
