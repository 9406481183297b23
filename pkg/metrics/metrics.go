// Package metrics exports run counters and series gauges for Prometheus.
//
// A run is a batch job, so metrics are either written for the node_exporter
// textfile collector or pushed to a Pushgateway rather than scraped.
package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/ccollicutt/restplot/pkg/parser"
	"github.com/ccollicutt/restplot/pkg/series"
)

const namespace = "restplot"

// Metrics holds the collectors for one run on a private registry.
type Metrics struct {
	reg *prometheus.Registry

	linesRead         prometheus.Counter
	linesMatched      prometheus.Counter
	records           prometheus.Counter
	timestampFailures prometheus.Counter
	durationAnomalies prometheus.Counter

	requestDuration prometheus.Histogram

	seriesPoints *prometheus.GaugeVec
	seriesMax    *prometheus.GaugeVec
	seriesMean   *prometheus.GaugeVec

	lastRun prometheus.Gauge
}

// New creates a Metrics with all collectors registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		})
	}
	gaugeVec := func(name, help string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, []string{"series"})
	}

	m := &Metrics{
		reg:               reg,
		linesRead:         counter("lines_read_total", "Lines read from all sources."),
		linesMatched:      counter("lines_matched_total", "Lines that passed the filter."),
		records:           counter("records_total", "Records extracted."),
		timestampFailures: counter("timestamp_failures_total", "Matched lines skipped because the timestamp could not be parsed."),
		durationAnomalies: counter("duration_anomalies_total", "Records kept with a zero duration because the token could not be parsed."),
		requestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Request execution time of extracted records.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16),
		}),
		seriesPoints: gaugeVec("series_points", "Points in the aggregated series."),
		seriesMax:    gaugeVec("series_max_duration_milliseconds", "Largest point of the aggregated series."),
		seriesMean:   gaugeVec("series_mean_duration_milliseconds", "Mean point of the aggregated series."),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last completed run.",
		}),
	}

	reg.MustRegister(
		m.linesRead, m.linesMatched, m.records,
		m.timestampFailures, m.durationAnomalies,
		m.requestDuration,
		m.seriesPoints, m.seriesMax, m.seriesMean,
		m.lastRun,
	)
	return m
}

// Registry returns the registry holding every collector.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// ObserveStats adds the extraction counters of one run.
func (m *Metrics) ObserveStats(s parser.Stats) {
	m.linesRead.Add(float64(s.LinesRead))
	m.linesMatched.Add(float64(s.LinesMatched))
	m.records.Add(float64(s.Records))
	m.timestampFailures.Add(float64(s.TimestampFailures))
	m.durationAnomalies.Add(float64(s.DurationAnomalies))
}

// ObserveRecords feeds every record duration into the histogram.
func (m *Metrics) ObserveRecords(records []parser.Record) {
	for _, r := range records {
		m.requestDuration.Observe(float64(r.DurationMillis) / 1000)
	}
}

// ObserveSeries sets the gauges for an aggregated series.
func (m *Metrics) ObserveSeries(label string, sum series.Summary) {
	m.seriesPoints.WithLabelValues(label).Set(float64(sum.Count))
	m.seriesMax.WithLabelValues(label).Set(float64(sum.MaxMillis))
	m.seriesMean.WithLabelValues(label).Set(float64(sum.MeanMillis))
}

// MarkRun records the current time as the last completed run.
func (m *Metrics) MarkRun() {
	m.lastRun.SetToCurrentTime()
}

// WriteTextfile writes all metrics in the text exposition format to path.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.reg); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}

// Push sends all metrics to the Pushgateway at url under job, replacing
// any metrics previously pushed for that job.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if err := push.New(url, job).Gatherer(m.reg).PushContext(ctx); err != nil {
		return fmt.Errorf("pushing metrics: %w", err)
	}
	return nil
}
