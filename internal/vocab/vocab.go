// Package vocab builds the word vocabulary of the first pass and serves it as
// an exact-match FST mapping each word to its identifier. The word at sorted
// position i has identifier i+1; 0 never identifies a word.
package vocab

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync/atomic"

	"github.com/blevesearch/vellum"

	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/internal/aggregate"
	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/internal/artifact"
	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/internal/element"
	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/internal/scanner"
	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/internal/source"
	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/internal/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/osm-phrase-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/pkg/metrics"
)

// Stats describes a finished vocabulary pass.
type Stats struct {
	Scan  scanner.Stats
	Names int64
}

// Collect runs the vocabulary pass over src: every name of every record is
// split into words, and the returned words are unique and ascending.
func Collect(ctx context.Context, sc *scanner.Scanner, src source.Source, queueSize int) ([]string, Stats, error) {
	set := make(map[string]struct{})
	agg := aggregate.Start(queueSize,
		func(name string) {
			for _, w := range tokenizer.Split(name) {
				set[w] = struct{}{}
			}
		},
		func() []string {
			words := make([]string, 0, len(set))
			for w := range set {
				words = append(words, w)
			}
			slices.Sort(words)
			return words
		},
	)

	var names atomic.Int64
	scanStats, err := sc.Scan(ctx, src, metrics.PassVocabulary, func(ctx context.Context, rec element.Record) error {
		found := element.Names(rec)
		for _, name := range found {
			if err := agg.Send(ctx, name); err != nil {
				return err
			}
		}
		names.Add(int64(len(found)))
		return nil
	})
	stats := Stats{Scan: scanStats, Names: names.Load()}
	if m := sc.Metrics(); m != nil {
		m.NamesExtracted.WithLabelValues(metrics.PassVocabulary).Add(float64(stats.Names))
	}
	if err != nil {
		agg.Abandon()
		return nil, stats, err
	}

	agg.Close()
	words, err := agg.Result(ctx)
	if err != nil {
		return nil, stats, fmt.Errorf("collecting vocabulary: %w", err)
	}
	slog.Default().With("component", "vocab").Info("vocabulary collected",
		"words", len(words),
		"names", stats.Names,
		"records", scanStats.Records,
	)
	return words, stats, nil
}

// Write encodes words as an FST. words must be strictly ascending.
func Write(w io.Writer, words []string) error {
	builder, err := vellum.New(w, nil)
	if err != nil {
		return fmt.Errorf("%w: creating fst builder: %w", apperrors.ErrBuild, err)
	}
	for i, word := range words {
		if i > 0 && word <= words[i-1] {
			return apperrors.Newf(apperrors.ErrBuild, "word %q out of order after %q", word, words[i-1])
		}
		if word == "" {
			return apperrors.Newf(apperrors.ErrBuild, "empty word at position %d", i)
		}
		if err := builder.Insert([]byte(word), uint64(i+1)); err != nil {
			return fmt.Errorf("%w: inserting %q: %w", apperrors.ErrBuild, word, err)
		}
	}
	if err := builder.Close(); err != nil {
		return fmt.Errorf("%w: finishing fst: %w", apperrors.ErrBuild, err)
	}
	return nil
}

// Build writes the vocabulary FST to path atomically.
func Build(path string, words []string) (artifact.Info, error) {
	return artifact.WriteFile(path, func(w io.Writer) error {
		return Write(w, words)
	})
}
