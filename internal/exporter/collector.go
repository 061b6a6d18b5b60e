// Package exporter exposes SLO snapshots as Prometheus metrics.
package exporter

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/samijaber1/aegis-tracker/internal/policy"
	"github.com/samijaber1/aegis-tracker/internal/registry"
)

// Source is the read side the collector scrapes. *registry.Registry
// satisfies it.
type Source interface {
	Summaries(registry.SummaryOptions) registry.Report
	Stats() registry.Stats
}

// Collector computes every metric from a fresh set of snapshots on each
// scrape, so the exported values always match the read API.
type Collector struct {
	source Source

	requests        *prometheus.Desc
	availability    *prometheus.Desc
	burnRate        *prometheus.Desc
	budgetRemaining *prometheus.Desc
	status          *prometheus.Desc
	latency         *prometheus.Desc
	target          *prometheus.Desc
	discarded       *prometheus.Desc
	cacheHits       *prometheus.Desc
	cacheMisses     *prometheus.Desc
}

// NewCollector creates a collector over source.
func NewCollector(source Source) *Collector {
	slo := []string{"slo"}
	return &Collector{
		source: source,
		requests: prometheus.NewDesc("aegis_slo_requests",
			"Requests in the live window by outcome.", []string{"slo", "outcome"}, nil),
		availability: prometheus.NewDesc("aegis_slo_availability",
			"Measured availability over the live window.", slo, nil),
		burnRate: prometheus.NewDesc("aegis_slo_burn_rate",
			"Error budget burn rate over the live window.", slo, nil),
		budgetRemaining: prometheus.NewDesc("aegis_slo_error_budget_remaining",
			"Failures the live window can still absorb.", slo, nil),
		status: prometheus.NewDesc("aegis_slo_status",
			"Current SLO status; 1 for the active status.", []string{"slo", "status"}, nil),
		latency: prometheus.NewDesc("aegis_slo_latency_ms",
			"Latency percentile estimate in milliseconds.", []string{"slo", "quantile"}, nil),
		target: prometheus.NewDesc("aegis_slo_target",
			"Target availability.", slo, nil),
		discarded: prometheus.NewDesc("aegis_observations_discarded_total",
			"Malformed observations dropped by the registry.", nil, nil),
		cacheHits: prometheus.NewDesc("aegis_route_cache_hits_total",
			"Route match cache hits.", nil, nil),
		cacheMisses: prometheus.NewDesc("aegis_route_cache_misses_total",
			"Route match cache misses.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.requests
	ch <- c.availability
	ch <- c.burnRate
	ch <- c.budgetRemaining
	ch <- c.status
	ch <- c.latency
	ch <- c.target
	ch <- c.discarded
	ch <- c.cacheHits
	ch <- c.cacheMisses
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	report := c.source.Summaries(registry.SummaryOptions{})

	for _, s := range report.SLO {
		ch <- prometheus.MustNewConstMetric(c.requests, prometheus.GaugeValue, float64(s.SuccessCount), s.ID, "success")
		ch <- prometheus.MustNewConstMetric(c.requests, prometheus.GaugeValue, float64(s.ErrorCount), s.ID, "error")
		ch <- prometheus.MustNewConstMetric(c.burnRate, prometheus.GaugeValue, s.BurnRate, s.ID)
		ch <- prometheus.MustNewConstMetric(c.target, prometheus.GaugeValue, s.TargetAvailability, s.ID)

		if s.MeasuredAvailability != nil {
			ch <- prometheus.MustNewConstMetric(c.availability, prometheus.GaugeValue, *s.MeasuredAvailability, s.ID)
		}
		if s.ErrorBudgetRemaining != nil {
			ch <- prometheus.MustNewConstMetric(c.budgetRemaining, prometheus.GaugeValue, *s.ErrorBudgetRemaining, s.ID)
		}

		for _, st := range policy.Statuses {
			v := 0.0
			if st == s.Status {
				v = 1
			}
			ch <- prometheus.MustNewConstMetric(c.status, prometheus.GaugeValue, v, s.ID, string(st))
		}

		if l := s.Latency; l != nil {
			ch <- prometheus.MustNewConstMetric(c.latency, prometheus.GaugeValue, l.P50Ms, s.ID, "0.5")
			ch <- prometheus.MustNewConstMetric(c.latency, prometheus.GaugeValue, l.P95Ms, s.ID, "0.95")
			ch <- prometheus.MustNewConstMetric(c.latency, prometheus.GaugeValue, l.P99Ms, s.ID, "0.99")
		}
	}

	stats := c.source.Stats()
	ch <- prometheus.MustNewConstMetric(c.discarded, prometheus.CounterValue, float64(stats.Discarded))
	ch <- prometheus.MustNewConstMetric(c.cacheHits, prometheus.CounterValue, float64(stats.CacheHits))
	ch <- prometheus.MustNewConstMetric(c.cacheMisses, prometheus.CounterValue, float64(stats.CacheMisses))
}
