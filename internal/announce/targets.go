package announce

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/internal/artifact"
	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/pkg/postgres"
)

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// KafkaAnnouncer publishes the manifest keyed by run ID.
type KafkaAnnouncer struct {
	pub Publisher
}

func NewKafka(pub Publisher) *KafkaAnnouncer {
	return &KafkaAnnouncer{pub: pub}
}

func (k *KafkaAnnouncer) Name() string { return "kafka" }

func (k *KafkaAnnouncer) Announce(ctx context.Context, m *artifact.Manifest) error {
	return k.pub.Publish(ctx, kafka.Event{Key: m.RunID, Value: m})
}

// Setter is satisfied by *redis.Client.
type Setter interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// RedisAnnouncer stores the manifest JSON under a well-known key so readers
// can discover the latest build.
type RedisAnnouncer struct {
	client Setter
	key    string
	ttl    time.Duration
}

func NewRedis(client Setter, key string, ttl time.Duration) *RedisAnnouncer {
	return &RedisAnnouncer{client: client, key: key, ttl: ttl}
}

func (r *RedisAnnouncer) Name() string { return "redis" }

func (r *RedisAnnouncer) Announce(ctx context.Context, m *artifact.Manifest) error {
	doc, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	if err := r.client.Set(ctx, r.key, doc, r.ttl); err != nil {
		return fmt.Errorf("setting %s: %w", r.key, err)
	}
	return nil
}

// Transactor is satisfied by *postgres.Client.
type Transactor interface {
	InTx(ctx context.Context, fn func(tx postgres.Execer) error) error
}

const insertBuild = `INSERT INTO index_builds (run_id, manifest, built_at)
VALUES ($1, $2, $3)
ON CONFLICT (run_id) DO UPDATE SET manifest = EXCLUDED.manifest, built_at = EXCLUDED.built_at`

// Schema creates the table PostgresAnnouncer writes to.
const Schema = `CREATE TABLE IF NOT EXISTS index_builds (
	run_id   TEXT PRIMARY KEY,
	manifest JSONB NOT NULL,
	built_at TIMESTAMPTZ NOT NULL
)`

// PostgresAnnouncer records each build as a row of index_builds.
type PostgresAnnouncer struct {
	db Transactor
}

func NewPostgres(db Transactor) *PostgresAnnouncer {
	return &PostgresAnnouncer{db: db}
}

func (p *PostgresAnnouncer) Name() string { return "postgres" }

func (p *PostgresAnnouncer) Announce(ctx context.Context, m *artifact.Manifest) error {
	doc, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	return p.db.InTx(ctx, func(tx postgres.Execer) error {
		if _, err := tx.ExecContext(ctx, Schema); err != nil {
			return fmt.Errorf("ensuring index_builds: %w", err)
		}
		if _, err := tx.ExecContext(ctx, insertBuild, m.RunID, string(doc), m.FinishedAt); err != nil {
			return fmt.Errorf("inserting build %s: %w", m.RunID, err)
		}
		return nil
	})
}
