package announce

import (
	"context"
	"errors"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/pkg/redis"
)

// FromConfig connects to every target that cfg enables. The returned close
// function releases the connections.
func FromConfig(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*Multi, func() error, error) {
	var (
		targets []Announcer
		closers []func() error
	)
	closeAll := func() error {
		var errs []error
		for _, c := range closers {
			errs = append(errs, c())
		}
		return errors.Join(errs...)
	}

	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
		closers = append(closers, producer.Close)
		targets = append(targets, NewKafka(producer))
	}
	if cfg.Redis.Addr != "" {
		client, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("connecting to redis: %w", err)
		}
		closers = append(closers, client.Close)
		targets = append(targets, NewRedis(client, cfg.Redis.ManifestKey, cfg.Redis.ManifestTTL))
	}
	if cfg.Postgres.Host != "" {
		client, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		closers = append(closers, client.Close)
		targets = append(targets, NewPostgres(client))
	}
	return NewMulti(cfg.Announce.Timeout, cfg.Announce.MaxAttempts, m, targets...), closeAll, nil
}
