// Package obs exposes the engine's Prometheus metrics.
//
//   - engine_orders_total{side}          orders submitted to the broker
//   - engine_decisions_total{signal}     signals derived per gated tick
//   - engine_deactivations_total{reason} credentials parked for the day
//   - engine_ticks_skipped_total         ticks dropped by the busy guard
//   - engine_credential_errors_total     per-credential failures contained
//     by the tick loop
//   - engine_day_pnl                     last evaluated day P&L
//   - engine_catalog_rows                cached scrip-master size
//
// Registered in init() and served by the control server at /metrics.
package obs

import "github.com/prometheus/client_golang/prometheus"

var (
	mtxOrders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_orders_total",
			Help: "Orders submitted to the broker",
		},
		[]string{"side"},
	)

	mtxDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_decisions_total",
			Help: "Signals derived",
		},
		[]string{"signal"},
	)

	mtxDeactivations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_deactivations_total",
			Help: "Credentials deactivated for the day",
		},
		[]string{"reason"},
	)

	mtxTicksSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_ticks_skipped_total",
			Help: "Ticks skipped because the previous tick was still running",
		},
	)

	mtxCredentialErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_credential_errors_total",
			Help: "Per-credential failures contained by the tick loop",
		},
	)

	mtxDayPnL = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "engine_day_pnl",
			Help: "Most recently evaluated day P&L",
		},
	)

	mtxCatalogRows = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "engine_catalog_rows",
			Help: "Cached scrip-master rows",
		},
	)
)

func init() {
	prometheus.MustRegister(mtxOrders, mtxDecisions, mtxDeactivations)
	prometheus.MustRegister(mtxTicksSkipped, mtxCredentialErrors)
	prometheus.MustRegister(mtxDayPnL, mtxCatalogRows)
}

func OrderPlaced(side string) { mtxOrders.WithLabelValues(side).Inc() }

func Decision(signal string) { mtxDecisions.WithLabelValues(signal).Inc() }

func CredentialDeactivated(reason string) { mtxDeactivations.WithLabelValues(reason).Inc() }

func TickSkipped() { mtxTicksSkipped.Inc() }

func CredentialError() { mtxCredentialErrors.Inc() }

func SetDayPnL(v float64) { mtxDayPnL.Set(v) }

func SetCatalogRows(n int) { mtxCatalogRows.Set(float64(n)) }
