// Package metrics eksportuje liczniki silnika wypożyczeń do Prometheusa.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Lending implementuje lending.Recorder
type Lending struct {
	checkouts *prometheus.CounterVec
	checkins  prometheus.Counter
	resolved  *prometheus.CounterVec
	lockWait  prometheus.Histogram
}

// NewLending rejestruje metryki w reg
func NewLending(reg prometheus.Registerer) *Lending {
	f := promauto.With(reg)
	return &Lending{
		checkouts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "digilib_checkouts_total",
			Help: "Próby wypożyczenia według wyniku.",
		}, []string{"outcome"}),
		checkins: f.NewCounter(prometheus.CounterOpts{
			Name: "digilib_checkins_total",
			Help: "Przyjęte zwroty.",
		}),
		resolved: f.NewCounterVec(prometheus.CounterOpts{
			Name: "digilib_requests_resolved_total",
			Help: "Rozpatrzone prośby według decyzji.",
		}, []string{"decision"}),
		lockWait: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "digilib_lock_wait_seconds",
			Help:    "Czas oczekiwania na blokadę książki lub egzemplarza.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
	}
}

func (m *Lending) Checkout(outcome string) {
	m.checkouts.WithLabelValues(outcome).Inc()
}

func (m *Lending) Checkin() {
	m.checkins.Inc()
}

func (m *Lending) RequestResolved(decision string) {
	m.resolved.WithLabelValues(decision).Inc()
}

func (m *Lending) LockWait(d time.Duration) {
	m.lockWait.Observe(d.Seconds())
}

// Handler udostępnia metryki z rejestru g
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
