package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "concert_booking"

// Outcome labels
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Metrics holds the Prometheus collectors for the reservation lifecycle.
// All methods are safe on a nil receiver so metrics can be switched off.
type Metrics struct {
	registry *prometheus.Registry

	reservations     *prometheus.CounterVec
	confirmations    *prometheus.CounterVec
	expirations      *prometheus.CounterVec
	seatsHeld        *prometheus.CounterVec
	seatsBooked      *prometheus.CounterVec
	conflicts        *prometheus.CounterVec
	operationLatency *prometheus.HistogramVec
	eventsPublished  *prometheus.CounterVec
	sweepRuns        prometheus.Counter
}

// New creates the collectors on a dedicated registry along with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		reservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservations_total",
			Help:      "Reservation attempts by price band and outcome.",
		}, []string{"band", "outcome"}),
		confirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "confirmations_total",
			Help:      "Booking confirmations by outcome.",
		}, []string{"outcome"}),
		expirations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservations_expired_total",
			Help:      "Reservations expired, by what triggered the expiry.",
		}, []string{"trigger"}),
		seatsHeld: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "seats_held_total",
			Help:      "Seats placed on hold.",
		}, []string{"band"}),
		seatsBooked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "seats_booked_total",
			Help:      "Seats permanently booked.",
		}, []string{"band"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "concurrency_conflicts_total",
			Help:      "Optimistic concurrency conflicts observed per operation.",
		}, []string{"operation"}),
		operationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Latency of lifecycle operations.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"operation"}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Lifecycle events handed to the event bus.",
		}, []string{"type", "outcome"}),
		sweepRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expiry_sweeps_total",
			Help:      "Background expiry sweeps run.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.reservations,
		m.confirmations,
		m.expirations,
		m.seatsHeld,
		m.seatsBooked,
		m.conflicts,
		m.operationLatency,
		m.eventsPublished,
		m.sweepRuns,
	)
	return m
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ReservationAttempt(band, outcome string, seats int) {
	if m == nil {
		return
	}
	m.reservations.WithLabelValues(band, outcome).Inc()
	if outcome == OutcomeSuccess {
		m.seatsHeld.WithLabelValues(band).Add(float64(seats))
	}
}

func (m *Metrics) ConfirmAttempt(band, outcome string, seats int) {
	if m == nil {
		return
	}
	m.confirmations.WithLabelValues(outcome).Inc()
	if outcome == OutcomeSuccess {
		m.seatsBooked.WithLabelValues(band).Add(float64(seats))
	}
}

// ReservationsExpired counts expiries; trigger is "sweep", "confirm" or "worker"
func (m *Metrics) ReservationsExpired(trigger string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.expirations.WithLabelValues(trigger).Add(float64(n))
}

func (m *Metrics) Conflict(operation string) {
	if m == nil {
		return
	}
	m.conflicts.WithLabelValues(operation).Inc()
}

// ObserveDuration records the time since start for operation
func (m *Metrics) ObserveDuration(operation string, start time.Time) {
	if m == nil {
		return
	}
	m.operationLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (m *Metrics) EventPublished(eventType, outcome string) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(eventType, outcome).Inc()
}

func (m *Metrics) SweepRun() {
	if m == nil {
		return
	}
	m.sweepRuns.Inc()
}
