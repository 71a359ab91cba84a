// Package announce publishes the manifest of a finished build to downstream
// systems. Announcing happens after every artifact is durable, so a failed
// announcement never leaves the artifacts inconsistent.
package announce

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/internal/artifact"
	apperrors "github.com/Adithya-Monish-Kumar-K/osm-phrase-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/pkg/resilience"
)

// Announcer publishes a manifest to one target.
type Announcer interface {
	Name() string
	Announce(ctx context.Context, m *artifact.Manifest) error
}

// Multi fans a manifest out to several announcers, each under its own
// deadline and retry budget.
type Multi struct {
	announcers []Announcer
	timeout    time.Duration
	retry      resilience.RetryConfig
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewMulti wraps announcers. m may be nil.
func NewMulti(timeout time.Duration, maxAttempts int, m *metrics.Metrics, announcers ...Announcer) *Multi {
	return &Multi{
		announcers: announcers,
		timeout:    timeout,
		retry:      resilience.RetryConfig{MaxAttempts: maxAttempts},
		metrics:    m,
		logger:     slog.Default().With("component", "announce"),
	}
}

// Len reports how many targets are configured.
func (a *Multi) Len() int {
	return len(a.announcers)
}

// Announce publishes m to every target. All targets are attempted; their
// failures are joined and wrapped in ErrAnnounce.
func (a *Multi) Announce(ctx context.Context, m *artifact.Manifest) error {
	var errs []error
	for _, target := range a.announcers {
		err := resilience.Retry(ctx, "announce "+target.Name(), a.retry, func(ctx context.Context) error {
			return resilience.WithTimeout(ctx, a.timeout, target.Name(), func(ctx context.Context) error {
				return target.Announce(ctx, m)
			})
		})
		status := "success"
		if err != nil {
			status = "failure"
			errs = append(errs, fmt.Errorf("%s: %w", target.Name(), err))
			a.logger.Error("announcement failed", "target", target.Name(), "run_id", m.RunID, "error", err)
		} else {
			a.logger.Info("build announced", "target", target.Name(), "run_id", m.RunID)
		}
		if a.metrics != nil {
			a.metrics.AnnouncementsTotal.WithLabelValues(target.Name(), status).Inc()
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", apperrors.ErrAnnounce, errors.Join(errs...))
	}
	return nil
}
