// Package metrics defines the Prometheus collectors of the index build and
// exposes them for scraping while a build runs or pushes them to a
// Pushgateway once it finishes.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Pass labels.
const (
	PassVocabulary = "vocabulary"
	PassPhrase     = "phrase"
)

// Metrics holds all Prometheus collectors for the build.
type Metrics struct {
	RecordsScanned     *prometheus.CounterVec
	PartitionsScanned  *prometheus.CounterVec
	NamesExtracted     *prometheus.CounterVec
	VocabularyWords    prometheus.Gauge
	UniqueSequences    prometheus.Gauge
	Fingerprints       prometheus.Gauge
	PassDuration       *prometheus.HistogramVec
	ArtifactBytes      *prometheus.GaugeVec
	BuildsTotal        *prometheus.CounterVec
	AnnouncementsTotal *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with reg. A nil reg uses a
// fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		RecordsScanned: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "phraseindex_records_scanned_total",
				Help: "Records delivered to scan workers, by pass.",
			},
			[]string{"pass"},
		),
		PartitionsScanned: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "phraseindex_partitions_scanned_total",
				Help: "Source partitions processed by scan workers, by pass.",
			},
			[]string{"pass"},
		),
		NamesExtracted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "phraseindex_names_extracted_total",
				Help: "Names extracted from records, by pass.",
			},
			[]string{"pass"},
		),
		VocabularyWords: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "phraseindex_vocabulary_words",
				Help: "Unique words in the last built vocabulary.",
			},
		),
		UniqueSequences: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "phraseindex_unique_sequences",
				Help: "Unique token sequences seen by the phrase pass.",
			},
		),
		Fingerprints: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "phraseindex_fingerprints",
				Help: "Unique phrase fingerprints inserted into the filter.",
			},
		),
		PassDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "phraseindex_pass_duration_seconds",
				Help:    "Wall time of each build pass.",
				Buckets: []float64{1, 10, 60, 300, 900, 1800, 3600, 7200, 14400},
			},
			[]string{"pass"},
		),
		ArtifactBytes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "phraseindex_artifact_bytes",
				Help: "Size of each written artifact.",
			},
			[]string{"artifact"},
		),
		BuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "phraseindex_builds_total",
				Help: "Finished builds by status (success, failure).",
			},
			[]string{"status"},
		),
		AnnouncementsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "phraseindex_announcements_total",
				Help: "Manifest announcements by target and status.",
			},
			[]string{"target", "status"},
		),
		gatherer: reg,
	}

	reg.MustRegister(
		m.RecordsScanned,
		m.PartitionsScanned,
		m.NamesExtracted,
		m.VocabularyWords,
		m.UniqueSequences,
		m.Fingerprints,
		m.PassDuration,
		m.ArtifactBytes,
		m.BuildsTotal,
		m.AnnouncementsTotal,
	)

	return m
}

// Handler returns the scrape HTTP handler for these metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Push sends the current values to a Pushgateway under the given job and
// run ID grouping.
func (m *Metrics) Push(ctx context.Context, url, job, runID string) error {
	return push.New(url, job).
		Gatherer(m.gatherer).
		Grouping("run_id", runID).
		PushContext(ctx)
}
