// Package metrics exposes the watcher's Prometheus instruments.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ad outcomes counted per site.
const (
	OutcomeDiscovered = "discovered"
	OutcomeSeen       = "seen"
	OutcomeExtracted  = "extracted"
	OutcomeIrrelevant = "irrelevant"
	OutcomeNotified   = "notified"
	OutcomeFailed     = "failed"
)

// Metrics owns its registry so tests and the liveness server never share
// global state. All methods are safe on a nil receiver.
type Metrics struct {
	Registry *prometheus.Registry

	cyclesTotal    *prometheus.CounterVec
	cycleDuration  prometheus.Histogram
	lastCycle      prometheus.Gauge
	listingFetches *prometheus.CounterVec
	adsTotal       *prometheus.CounterVec
	deliveries     *prometheus.CounterVec
	seenSetSize    prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		cyclesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adhunter_cycles_total",
				Help: "Total number of poll cycles by final status.",
			},
			[]string{"status"},
		),
		cycleDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "adhunter_cycle_duration_seconds",
				Help:    "Duration of poll cycles.",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
			},
		),
		lastCycle: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "adhunter_last_cycle_timestamp_seconds",
				Help: "Unix time the last poll cycle finished.",
			},
		),
		listingFetches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adhunter_listing_fetches_total",
				Help: "Listing page fetches by site and status.",
			},
			[]string{"site", "status"},
		),
		adsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adhunter_ads_total",
				Help: "Ads processed by site and outcome.",
			},
			[]string{"site", "outcome"},
		),
		deliveries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adhunter_deliveries_total",
				Help: "Notification deliveries by result.",
			},
			[]string{"result"},
		),
		seenSetSize: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "adhunter_seen_ads",
				Help: "Number of identities in the seen set.",
			},
		),
	}
}

func (m *Metrics) ObserveCycle(status string, d time.Duration, finished time.Time) {
	if m == nil {
		return
	}
	m.cyclesTotal.WithLabelValues(status).Inc()
	m.cycleDuration.Observe(d.Seconds())
	m.lastCycle.Set(float64(finished.Unix()))
}

func (m *Metrics) ListingFetched(site string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.listingFetches.WithLabelValues(site, status).Inc()
}

func (m *Metrics) Ad(site, outcome string) {
	if m == nil {
		return
	}
	m.adsTotal.WithLabelValues(site, outcome).Inc()
}

func (m *Metrics) Delivery(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.deliveries.WithLabelValues(result).Inc()
}

func (m *Metrics) SeenSetSize(n int) {
	if m == nil {
		return
	}
	m.seenSetSize.Set(float64(n))
}
