// Package scanner drives a Source with a bounded pool of workers. Records
// reach the handler in no particular order; the first handler or source
// error cancels the scan and is returned.
package scanner

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/internal/element"
	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/internal/source"
	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/pkg/metrics"
)

// HandlerFunc processes one record. It runs on a worker goroutine.
type HandlerFunc func(ctx context.Context, rec element.Record) error

// Stats summarises a finished scan.
type Stats struct {
	Records    int64
	Partitions int64
	Duration   time.Duration
}

type Scanner struct {
	workers int
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(workers int, m *metrics.Metrics) *Scanner {
	if workers <= 0 {
		workers = 1
	}
	return &Scanner{
		workers: workers,
		metrics: m,
		logger:  slog.Default().With("component", "scanner"),
	}
}

// Workers reports the size of the worker pool.
func (s *Scanner) Workers() int {
	return s.workers
}

// Metrics returns the collectors scans report to, or nil.
func (s *Scanner) Metrics() *metrics.Metrics {
	return s.metrics
}

// Scan delivers every record of src to fn. pass labels the metrics.
func (s *Scanner) Scan(ctx context.Context, src source.Source, pass string, fn HandlerFunc) (Stats, error) {
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	parts := make(chan source.Partition, s.workers)

	g.Go(func() error {
		defer close(parts)
		return src.Partitions(gctx, parts)
	})

	var records, partitions atomic.Int64
	for i := 0; i < s.workers; i++ {
		g.Go(func() error {
			for part := range parts {
				for _, rec := range part {
					if err := fn(gctx, rec); err != nil {
						return err
					}
				}
				records.Add(int64(len(part)))
				partitions.Add(1)
				if s.metrics != nil {
					s.metrics.RecordsScanned.WithLabelValues(pass).Add(float64(len(part)))
					s.metrics.PartitionsScanned.WithLabelValues(pass).Inc()
				}
			}
			return nil
		})
	}

	err := g.Wait()
	stats := Stats{
		Records:    records.Load(),
		Partitions: partitions.Load(),
		Duration:   time.Since(start),
	}
	if err != nil {
		s.logger.Error("scan aborted",
			"pass", pass,
			"records", stats.Records,
			"error", err,
		)
		return stats, err
	}
	s.logger.Info("scan complete",
		"pass", pass,
		"records", stats.Records,
		"partitions", stats.Partitions,
		"workers", s.workers,
		"duration", stats.Duration,
	)
	return stats, nil
}
