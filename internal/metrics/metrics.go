package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	cyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radar_cycles_total",
			Help: "Total number of generation cycles by result.",
		},
		[]string{"result"},
	)

	stationOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radar_station_outcomes_total",
			Help: "Per-station pipeline outcomes.",
		},
		[]string{"station", "outcome"},
	)

	cycleDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "radar_cycle_duration_seconds",
			Help:    "Wall time of a full generation cycle in seconds.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	lastSuccessTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "radar_last_success_timestamp_seconds",
			Help: "Unix time of the last cycle that published a result.",
		},
	)
)

func init() {
	prometheus.MustRegister(cyclesTotal)
	prometheus.MustRegister(stationOutcomesTotal)
	prometheus.MustRegister(cycleDurationSeconds)
	prometheus.MustRegister(lastSuccessTimestamp)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveCycle records a finished cycle. result is "ok" or "error".
func ObserveCycle(result string, took time.Duration) {
	cyclesTotal.WithLabelValues(result).Inc()
	cycleDurationSeconds.Observe(took.Seconds())
}

// IncStationOutcome counts one station outcome (produced, skipped, failed).
func IncStationOutcome(station, outcome string) {
	stationOutcomesTotal.WithLabelValues(station, outcome).Inc()
}

// SetLastSuccess records when a cycle last published a result.
func SetLastSuccess(t time.Time) {
	lastSuccessTimestamp.Set(float64(t.Unix()))
}
