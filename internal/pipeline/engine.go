// Package pipeline runs the two-pass index build. The vocabulary pass
// finishes, and its FST is durable and mapped, before the phrase pass reads
// a single record; the *vocab.Index handle is the boundary between them.
package pipeline

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/internal/artifact"
	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/internal/filter"
	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/internal/phrase"
	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/internal/scanner"
	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/internal/source"
	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/internal/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/internal/vocab"
	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/osm-phrase-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/pkg/tracing"
)

// Announcer publishes the manifest of a finished build.
type Announcer interface {
	Announce(ctx context.Context, m *artifact.Manifest) error
}

type Engine struct {
	cfg       *config.Config
	src       source.Source
	scanner   *scanner.Scanner
	metrics   *metrics.Metrics
	announcer Announcer
	logger    *slog.Logger
}

// New creates an engine reading from src. m may be nil.
func New(cfg *config.Config, src source.Source, m *metrics.Metrics) *Engine {
	return &Engine{
		cfg:     cfg,
		src:     src,
		scanner: scanner.New(cfg.Scan.Workers, m),
		metrics: m,
		logger:  slog.Default().With("component", "pipeline"),
	}
}

// WithAnnouncer makes Run publish the manifest of every successful build.
func (e *Engine) WithAnnouncer(a Announcer) *Engine {
	e.announcer = a
	return e
}

func (e *Engine) VocabPath() string {
	return filepath.Join(e.cfg.Output.Dir, e.cfg.Output.VocabFile)
}

func (e *Engine) FilterPath() string {
	return filepath.Join(e.cfg.Output.Dir, e.cfg.Output.FilterFile)
}

func (e *Engine) ManifestPath() string {
	return filepath.Join(e.cfg.Output.Dir, e.cfg.Output.ManifestFile)
}

type vocabularyResult struct {
	index *vocab.Index
	words int
	info  artifact.Info
	pass  artifact.PassSummary
}

type phraseResult struct {
	filter    filter.Filter
	sequences int
	info      artifact.Info
	pass      artifact.PassSummary
}

// BuildVocabulary runs the vocabulary pass, writes the FST and maps it. The
// caller owns the returned index. It replaces the published vocabulary, so
// the filter and manifest stay stale until RunPhrases follows.
func (e *Engine) BuildVocabulary(ctx context.Context) (*vocab.Index, error) {
	res, err := e.vocabularyPass(ctx, e.VocabPath())
	if err != nil {
		return nil, err
	}
	return res.index, nil
}

// BuildPhraseFilter runs the phrase pass against a finished vocabulary and
// writes the filter without touching the manifest.
func (e *Engine) BuildPhraseFilter(ctx context.Context, idx *vocab.Index) (filter.Filter, error) {
	res, err := e.phrasePass(ctx, idx, e.FilterPath())
	if err != nil {
		return nil, err
	}
	return res.filter, nil
}

// vocabularyPass writes the FST to dst, which may be a staged path.
func (e *Engine) vocabularyPass(ctx context.Context, dst string) (vocabularyResult, error) {
	ctx, span := tracing.Start(ctx, metrics.PassVocabulary)
	log := logger.FromContext(ctx).With("component", "pipeline", "pass", metrics.PassVocabulary)
	log.Info("pass starting", "source", e.cfg.Source.Path, "workers", e.scanner.Workers())

	words, stats, err := vocab.Collect(ctx, e.scanner, e.src, e.cfg.Scan.QueueSize)
	if err != nil {
		span.End(err)
		return vocabularyResult{}, apperrors.InStage(apperrors.StageVocabulary, err)
	}

	_, fstSpan := tracing.Start(ctx, "fst")
	info, err := vocab.Build(dst, words)
	fstSpan.End(err)
	if err != nil {
		span.End(err)
		return vocabularyResult{}, apperrors.InStage(apperrors.StageVocabulary, err)
	}
	info = artifact.Published(info)
	idx, err := vocab.Open(dst)
	if err != nil {
		span.End(err)
		return vocabularyResult{}, apperrors.InStage(apperrors.StageVocabulary, err)
	}

	span.SetAttr("words", len(words))
	span.SetAttr("records", stats.Scan.Records)
	span.End(nil)
	if e.metrics != nil {
		e.metrics.VocabularyWords.Set(float64(len(words)))
		e.metrics.PassDuration.WithLabelValues(metrics.PassVocabulary).Observe(span.Duration.Seconds())
		e.metrics.ArtifactBytes.WithLabelValues(info.Name).Set(float64(info.Size))
	}
	log.Info("vocabulary ready",
		"words", len(words),
		"path", dst,
		"bytes", info.Size,
		"duration", span.Duration,
	)
	return vocabularyResult{
		index: idx,
		words: len(words),
		info:  info,
		pass:  passSummary(metrics.PassVocabulary, stats.Scan, stats.Names, span.Duration),
	}, nil
}

// phrasePass writes the filter to dst, which may be a staged path.
func (e *Engine) phrasePass(ctx context.Context, idx *vocab.Index, dst string) (phraseResult, error) {
	kind, err := filter.ParseKind(e.cfg.Filter.Kind)
	if err != nil {
		return phraseResult{}, apperrors.InStage(apperrors.StageFilter, err)
	}

	ctx, span := tracing.Start(ctx, metrics.PassPhrase)
	log := logger.FromContext(ctx).With("component", "pipeline", "pass", metrics.PassPhrase)
	log.Info("pass starting", "vocabulary", idx.Path(), "words", idx.Len())

	res, err := phrase.Collect(ctx, e.scanner, e.src, tokenizer.New(idx), e.cfg.Scan.QueueSize)
	if err != nil {
		span.End(err)
		return phraseResult{}, apperrors.InStage(apperrors.StagePhrase, err)
	}

	_, filterSpan := tracing.Start(ctx, "filter")
	f, err := filter.Build(kind, res.Fingerprints, e.cfg.Filter.FalsePositiveRate)
	var info artifact.Info
	if err == nil {
		info, err = filter.Save(dst, f)
		info = artifact.Published(info)
	}
	filterSpan.End(err)
	if err != nil {
		span.End(err)
		return phraseResult{}, apperrors.InStage(apperrors.StageFilter, err)
	}

	span.SetAttr("sequences", res.UniqueSequences)
	span.SetAttr("fingerprints", len(res.Fingerprints))
	span.End(nil)
	if e.metrics != nil {
		e.metrics.UniqueSequences.Set(float64(res.UniqueSequences))
		e.metrics.Fingerprints.Set(float64(len(res.Fingerprints)))
		e.metrics.PassDuration.WithLabelValues(metrics.PassPhrase).Observe(span.Duration.Seconds())
		e.metrics.ArtifactBytes.WithLabelValues(info.Name).Set(float64(info.Size))
	}
	log.Info("phrase filter written",
		"kind", kind,
		"sequences", res.UniqueSequences,
		"fingerprints", len(res.Fingerprints),
		"path", dst,
		"bytes", info.Size,
		"duration", span.Duration,
	)
	return phraseResult{
		filter:    f,
		sequences: res.UniqueSequences,
		info:      info,
		pass:      passSummary(metrics.PassPhrase, res.Scan, res.Names, span.Duration),
	}, nil
}

// Run performs a complete build under the output-directory lock and returns
// its manifest. The vocabulary, filter and manifest are staged and published
// together once the manifest is written; a failed build leaves the previous
// artifacts in place. An announcement failure is reported after publishing,
// together with the manifest.
func (e *Engine) Run(ctx context.Context) (*artifact.Manifest, error) {
	return e.run(ctx, "build", e.build)
}

// RunPhrases rebuilds the filter and manifest against the published
// vocabulary, under the same lock and staging as Run.
func (e *Engine) RunPhrases(ctx context.Context) (*artifact.Manifest, error) {
	return e.run(ctx, "phrases", e.buildPhrases)
}

func (e *Engine) run(ctx context.Context, name string, build func(context.Context, string) (*artifact.Manifest, error)) (*artifact.Manifest, error) {
	lock, err := artifact.Lock(e.cfg.Output.Dir)
	if err != nil {
		return nil, err
	}
	defer lock.Unlock()

	runID := uuid.NewString()
	ctx = logger.WithRunID(ctx, runID)
	ctx, root := tracing.StartRun(ctx, name, runID)
	log := logger.FromContext(ctx).With("component", "pipeline")
	log.Info("build starting", "kind", name, "source", e.cfg.Source.Path, "output", e.cfg.Output.Dir)

	m, err := build(ctx, runID)
	root.End(err)
	if e.cfg.Tracing.Enabled {
		root.Log(log)
	}
	e.recordBuild(err)
	e.push(ctx, runID)
	if err != nil {
		log.Error("build failed", "stage", apperrors.StageOf(err), "error", err)
		return nil, err
	}
	log.Info("build complete",
		"words", m.Words,
		"fingerprints", m.Fingerprints,
		"duration", root.Duration,
	)

	if e.announcer != nil {
		if err := e.announcer.Announce(ctx, m); err != nil {
			return m, apperrors.InStage(apperrors.StageAnnounce, err)
		}
	}
	return m, nil
}

func (e *Engine) build(ctx context.Context, runID string) (*artifact.Manifest, error) {
	started := time.Now().UTC()

	var staged artifact.Staging
	defer e.discard(ctx, &staged)
	vocabPath := staged.Path(e.VocabPath())
	filterPath := staged.Path(e.FilterPath())
	manifestPath := staged.Path(e.ManifestPath())

	vres, err := e.vocabularyPass(ctx, vocabPath)
	if err != nil {
		return nil, err
	}
	defer vres.index.Close()

	pres, err := e.phrasePass(ctx, vres.index, filterPath)
	if err != nil {
		return nil, err
	}

	m := e.manifest(runID, started, vres.words, vres.info, pres)
	m.Passes = []artifact.PassSummary{vres.pass, pres.pass}
	return m, e.publish(&staged, manifestPath, m)
}

func (e *Engine) buildPhrases(ctx context.Context, runID string) (*artifact.Manifest, error) {
	started := time.Now().UTC()

	idx, err := vocab.Open(e.VocabPath())
	if err != nil {
		return nil, apperrors.InStage(apperrors.StagePhrase, err)
	}
	defer idx.Close()
	vinfo, err := artifact.Checksum(e.VocabPath())
	if err != nil {
		return nil, apperrors.InStage(apperrors.StagePhrase, err)
	}
	logger.FromContext(ctx).Info("using existing vocabulary", "component", "pipeline", "path", idx.Path(), "words", idx.Len())

	var staged artifact.Staging
	defer e.discard(ctx, &staged)
	filterPath := staged.Path(e.FilterPath())
	manifestPath := staged.Path(e.ManifestPath())

	pres, err := e.phrasePass(ctx, idx, filterPath)
	if err != nil {
		return nil, err
	}

	m := e.manifest(runID, started, idx.Len(), vinfo, pres)
	m.Passes = []artifact.PassSummary{pres.pass}
	return m, e.publish(&staged, manifestPath, m)
}

func (e *Engine) manifest(runID string, started time.Time, words int, vinfo artifact.Info, pres phraseResult) *artifact.Manifest {
	m := &artifact.Manifest{
		Version:         artifact.ManifestVersion,
		RunID:           runID,
		Source:          e.cfg.Source.Path,
		StartedAt:       started,
		FinishedAt:      time.Now().UTC(),
		Words:           words,
		UniqueSequences: pres.sequences,
		Fingerprints:    pres.filter.Len(),
		FilterKind:      string(pres.filter.Kind()),
		Vocabulary:      vinfo,
		Filter:          pres.info,
	}
	if pres.filter.Kind() == filter.KindBloom {
		m.FalsePositiveRate = e.cfg.Filter.FalsePositiveRate
	}
	return m
}

// publish writes the manifest to its staged path and renames every staged
// artifact into place, manifest last.
func (e *Engine) publish(staged *artifact.Staging, manifestPath string, m *artifact.Manifest) error {
	if _, err := artifact.WriteManifest(manifestPath, m); err != nil {
		return apperrors.InStage(apperrors.StageManifest, err)
	}
	if err := staged.Commit(); err != nil {
		return apperrors.InStage(apperrors.StageManifest, err)
	}
	return nil
}

func (e *Engine) discard(ctx context.Context, staged *artifact.Staging) {
	if err := staged.Discard(); err != nil {
		logger.FromContext(ctx).Warn("removing staged artifacts failed", "component", "pipeline", "error", err)
	}
}

func (e *Engine) recordBuild(err error) {
	if e.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	e.metrics.BuildsTotal.WithLabelValues(status).Inc()
}

func (e *Engine) push(ctx context.Context, runID string) {
	if e.metrics == nil || e.cfg.Metrics.PushgatewayURL == "" {
		return
	}
	pushCtx, cancel := context.WithTimeout(ctx, e.cfg.Announce.Timeout)
	defer cancel()
	if err := e.metrics.Push(pushCtx, e.cfg.Metrics.PushgatewayURL, e.cfg.Metrics.Job, runID); err != nil {
		e.logger.Warn("pushing metrics failed", "url", e.cfg.Metrics.PushgatewayURL, "error", err)
	}
}

func passSummary(name string, stats scanner.Stats, names int64, d time.Duration) artifact.PassSummary {
	return artifact.PassSummary{
		Name:       name,
		Records:    stats.Records,
		Names:      names,
		DurationMs: d.Milliseconds(),
	}
}
