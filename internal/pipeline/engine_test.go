package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/internal/artifact"
	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/internal/element"
	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/internal/filter"
	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/internal/phrase"
	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/internal/query"
	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/internal/source"
	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/internal/vocab"
	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/osm-phrase-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/pkg/metrics"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Source.Path = "memory"
	cfg.Scan.Workers = 3
	cfg.Scan.QueueSize = 4
	cfg.Output.Dir = t.TempDir()
	cfg.Tracing.Enabled = true
	return cfg
}

func named(name string) element.Tags {
	return element.Tags{{Key: "name", Value: name}}
}

func vocabulary(t *testing.T, path string) ([]string, []uint64) {
	t.Helper()
	idx, err := vocab.Open(path)
	require.NoError(t, err)
	defer idx.Close()
	var words []string
	var ids []uint64
	require.NoError(t, idx.Words(func(w string, id uint64) bool {
		words = append(words, w)
		ids = append(ids, id)
		return true
	}))
	return words, ids
}

func TestRunCaseVariantsShareOnePhrase(t *testing.T) {
	cfg := testConfig(t)
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	src := source.NewSlice([]element.Record{
		element.Point{ID: 1, Tags: named("Rue De La Paix")},
		element.Point{ID: 2, Tags: named("rue de la paix")},
	}, 1)

	manifest, err := New(cfg, src, m).Run(context.Background())
	require.NoError(t, err)

	words, ids := vocabulary(t, filepath.Join(cfg.Output.Dir, "vocab.fst"))
	assert.Equal(t, []string{"de", "la", "paix", "rue"}, words)
	assert.Equal(t, []uint64{1, 2, 3, 4}, ids)

	assert.Equal(t, 4, manifest.Words)
	assert.Equal(t, 1, manifest.UniqueSequences)
	assert.Equal(t, 1, manifest.Fingerprints)
	assert.NotEmpty(t, manifest.RunID)

	f, err := filter.Load(filepath.Join(cfg.Output.Dir, "phrase.filter"))
	require.NoError(t, err)
	assert.Equal(t, 1, f.Len())
	assert.True(t, f.Contains(phrase.Fingerprint([]uint64{4, 1, 2, 3})))

	onDisk, err := artifact.ReadManifest(filepath.Join(cfg.Output.Dir, "manifest.json"))
	require.NoError(t, err)
	assert.Equal(t, manifest.RunID, onDisk.RunID)
	assert.Equal(t, manifest.Vocabulary, onDisk.Vocabulary)
	assert.Equal(t, manifest.Filter, onDisk.Filter)
	require.Len(t, onDisk.Passes, 2)
	assert.Equal(t, int64(2), onDisk.Passes[0].Records)
	assert.Equal(t, int64(2), onDisk.Passes[1].Names)

	sum, err := artifact.Checksum(filepath.Join(cfg.Output.Dir, "vocab.fst"))
	require.NoError(t, err)
	assert.Equal(t, manifest.Vocabulary, sum)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.BuildsTotal.WithLabelValues("success")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.VocabularyWords))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Fingerprints))
}

func TestRunSkipsRecordsWithoutNames(t *testing.T) {
	cfg := testConfig(t)
	src := source.NewSlice([]element.Record{
		element.Way{ID: 1, Tags: element.Tags{{Key: "highway", Value: "residential"}}},
		element.Relation{ID: 2},
		element.Point{ID: 3, Tags: named("Main Street")},
	}, 2)

	manifest, err := New(cfg, src, nil).Run(context.Background())
	require.NoError(t, err)

	words, _ := vocabulary(t, filepath.Join(cfg.Output.Dir, "vocab.fst"))
	assert.Equal(t, []string{"main", "street"}, words)
	assert.Equal(t, 1, manifest.Fingerprints)
}

func TestRunUsesFirstNameTagOnly(t *testing.T) {
	cfg := testConfig(t)
	src := source.NewSlice([]element.Record{
		element.Point{ID: 1, Tags: element.Tags{
			{Key: "name", Value: "Alpha Road"},
			{Key: "name", Value: "Beta Lane"},
		}},
	}, 1)

	manifest, err := New(cfg, src, nil).Run(context.Background())
	require.NoError(t, err)

	words, _ := vocabulary(t, filepath.Join(cfg.Output.Dir, "vocab.fst"))
	assert.Equal(t, []string{"alpha", "road"}, words)
	assert.Equal(t, 1, manifest.UniqueSequences)
}

func TestRunEmptyDataset(t *testing.T) {
	for _, kind := range []string{"xor8", "bloom"} {
		t.Run(kind, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Filter.Kind = kind
			cfg.Filter.FalsePositiveRate = 0.01

			manifest, err := New(cfg, source.NewSlice(nil, 10), nil).Run(context.Background())
			require.NoError(t, err)
			assert.Zero(t, manifest.Words)
			assert.Zero(t, manifest.Fingerprints)

			words, _ := vocabulary(t, filepath.Join(cfg.Output.Dir, "vocab.fst"))
			assert.Empty(t, words)

			f, err := filter.Load(filepath.Join(cfg.Output.Dir, "phrase.filter"))
			require.NoError(t, err)
			assert.Zero(t, f.Len())
			assert.False(t, f.Contains(phrase.Fingerprint([]uint64{1})))
		})
	}
}

func TestIdentifiersAreStableAcrossRuns(t *testing.T) {
	records := []element.Record{
		element.Point{ID: 1, Tags: named("Grand Place")},
		element.Way{ID: 2, Tags: named("Place du Marché")},
		element.DensePointBatch{Entries: []element.DenseEntry{{ID: 3, Tags: named("Grand Canal")}}},
	}

	var firstIDs []uint64
	var firstVocab []byte
	for run, workers := range []int{1, 4} {
		cfg := testConfig(t)
		cfg.Scan.Workers = workers
		manifest, err := New(cfg, source.NewSlice(records, 1), nil).Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 3, manifest.Fingerprints)

		words, ids := vocabulary(t, filepath.Join(cfg.Output.Dir, "vocab.fst"))
		assert.Equal(t, []string{"canal", "du", "grand", "marché", "place"}, words)
		vocabBytes, err := os.ReadFile(filepath.Join(cfg.Output.Dir, "vocab.fst"))
		require.NoError(t, err)

		f, err := filter.Load(filepath.Join(cfg.Output.Dir, "phrase.filter"))
		require.NoError(t, err)
		assert.True(t, f.Contains(phrase.Fingerprint([]uint64{3, 5})), "grand place")
		assert.True(t, f.Contains(phrase.Fingerprint([]uint64{5, 2, 4})), "place du marché")
		assert.True(t, f.Contains(phrase.Fingerprint([]uint64{3, 1})), "grand canal")

		if run == 0 {
			firstIDs, firstVocab = ids, vocabBytes
			continue
		}
		assert.Equal(t, firstIDs, ids)
		assert.Equal(t, firstVocab, vocabBytes)
	}
}

// staleSource yields a different name in the phrase pass than in the
// vocabulary pass, as a source mutated between passes would.
type staleSource struct {
	vocabName  string
	phraseName string
	calls      int
}

func (s *staleSource) Partitions(ctx context.Context, out chan<- source.Partition) error {
	s.calls++
	name := s.vocabName
	if s.calls > 1 {
		name = s.phraseName
	}
	select {
	case out <- source.Partition{element.Point{ID: 1, Tags: named(name)}}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestRunFailsOnVocabularyMiss(t *testing.T) {
	cfg := testConfig(t)
	m := metrics.New(prometheus.NewRegistry())

	manifest, err := New(cfg, &staleSource{vocabName: "Old Road", phraseName: "New Road"}, m).Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, manifest)
	assert.True(t, errors.Is(err, apperrors.ErrUnknownWord))
	assert.Equal(t, apperrors.StagePhrase, apperrors.StageOf(err))
	assert.Equal(t, 4, apperrors.ExitCode(err))

	assert.NoFileExists(t, filepath.Join(cfg.Output.Dir, "vocab.fst"))
	assert.NoFileExists(t, filepath.Join(cfg.Output.Dir, "phrase.filter"))
	assert.NoFileExists(t, filepath.Join(cfg.Output.Dir, "manifest.json"))
	assertNothingStaged(t, cfg.Output.Dir)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BuildsTotal.WithLabelValues("failure")))
}

func assertNothingStaged(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.NotContains(t, entry.Name(), artifact.StagedSuffix)
	}
}

func TestFailedRebuildKeepsPublishedIndex(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	e := New(cfg, source.NewSlice([]element.Record{
		element.Point{ID: 1, Tags: named("Main Street")},
	}, 1), nil)

	first, err := e.Run(ctx)
	require.NoError(t, err)
	before, err := query.Open(e.VocabPath(), e.FilterPath())
	require.NoError(t, err)
	mainID, ok, err := before.WordID("main")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, before.Close())

	// The rebuild's vocabulary shifts every identifier, then its phrase pass
	// misses.
	_, err = New(cfg, &staleSource{vocabName: "Avenue Main Street", phraseName: "zzz"}, nil).Run(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrUnknownWord))

	idx, err := query.Open(e.VocabPath(), e.FilterPath())
	require.NoError(t, err)
	defer idx.Close()
	found, err := idx.ContainsPhrase("main street")
	require.NoError(t, err)
	assert.True(t, found)
	id, ok, err := idx.WordID("main")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, mainID, id)

	m, err := artifact.ReadManifest(e.ManifestPath())
	require.NoError(t, err)
	assert.Equal(t, first.RunID, m.RunID)
	sum, err := artifact.Checksum(e.VocabPath())
	require.NoError(t, err)
	assert.Equal(t, m.Vocabulary, sum)
	assertNothingStaged(t, cfg.Output.Dir)
}

func TestRunPhrasesWritesManifest(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	e := New(cfg, source.NewSlice([]element.Record{
		element.Point{ID: 1, Tags: named("Harbour View")},
		element.Way{ID: 2, Tags: named("View Harbour")},
	}, 1), nil)

	idx, err := e.BuildVocabulary(ctx)
	require.NoError(t, err)
	require.NoError(t, idx.Close())
	assert.NoFileExists(t, e.ManifestPath())

	m, err := e.RunPhrases(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Words)
	assert.Equal(t, 2, m.Fingerprints)
	require.Len(t, m.Passes, 1)
	assert.Equal(t, metrics.PassPhrase, m.Passes[0].Name)

	got, err := artifact.ReadManifest(e.ManifestPath())
	require.NoError(t, err)
	assert.Equal(t, m.RunID, got.RunID)
	vsum, err := artifact.Checksum(e.VocabPath())
	require.NoError(t, err)
	assert.Equal(t, vsum, got.Vocabulary)
	fsum, err := artifact.Checksum(e.FilterPath())
	require.NoError(t, err)
	assert.Equal(t, fsum, got.Filter)
	assertNothingStaged(t, cfg.Output.Dir)
}

func TestRunPhrasesWithoutVocabulary(t *testing.T) {
	cfg := testConfig(t)
	_, err := New(cfg, source.NewSlice(nil, 1), nil).RunPhrases(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrCorrupt))
	assert.NoFileExists(t, filepath.Join(cfg.Output.Dir, "manifest.json"))
}

func TestRunRejectsConcurrentBuild(t *testing.T) {
	cfg := testConfig(t)
	held, err := artifact.Lock(cfg.Output.Dir)
	require.NoError(t, err)
	defer held.Unlock()

	_, err = New(cfg, source.NewSlice(nil, 1), nil).Run(context.Background())
	assert.True(t, errors.Is(err, apperrors.ErrLocked))
}

func TestRunRejectsUnknownFilterKind(t *testing.T) {
	cfg := testConfig(t)
	cfg.Filter.Kind = "cuckoo"
	_, err := New(cfg, source.NewSlice(nil, 1), nil).Run(context.Background())
	assert.True(t, errors.Is(err, apperrors.ErrInvalidConfig))
	assert.Equal(t, apperrors.StageFilter, apperrors.StageOf(err))
}

type recordingAnnouncer struct {
	got *artifact.Manifest
	err error
}

func (r *recordingAnnouncer) Announce(_ context.Context, m *artifact.Manifest) error {
	r.got = m
	return r.err
}

func TestRunAnnounces(t *testing.T) {
	cfg := testConfig(t)
	ann := &recordingAnnouncer{}
	src := source.NewSlice([]element.Record{element.Point{ID: 1, Tags: named("Main Street")}}, 1)

	manifest, err := New(cfg, src, nil).WithAnnouncer(ann).Run(context.Background())
	require.NoError(t, err)
	assert.Same(t, manifest, ann.got)
}

func TestRunAnnouncementFailureKeepsArtifacts(t *testing.T) {
	cfg := testConfig(t)
	ann := &recordingAnnouncer{err: apperrors.Newf(apperrors.ErrAnnounce, "kafka: broker down")}
	src := source.NewSlice([]element.Record{element.Point{ID: 1, Tags: named("Main Street")}}, 1)

	manifest, err := New(cfg, src, nil).WithAnnouncer(ann).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrAnnounce))
	assert.Equal(t, apperrors.StageAnnounce, apperrors.StageOf(err))
	require.NotNil(t, manifest)
	assert.FileExists(t, filepath.Join(cfg.Output.Dir, "manifest.json"))
}

func TestSeparatePasses(t *testing.T) {
	cfg := testConfig(t)
	src := source.NewSlice([]element.Record{
		element.Point{ID: 1, Tags: named("Harbour View")},
		element.Way{ID: 2, Tags: named("View Harbour")},
	}, 1)
	e := New(cfg, src, nil)

	idx, err := e.BuildVocabulary(context.Background())
	require.NoError(t, err)
	defer idx.Close()
	assert.Equal(t, 2, idx.Len())
	assert.FileExists(t, e.VocabPath())
	assert.NoFileExists(t, e.FilterPath())

	f, err := e.BuildPhraseFilter(context.Background(), idx)
	require.NoError(t, err)
	assert.Equal(t, 2, f.Len())
	assert.FileExists(t, e.FilterPath())
}
