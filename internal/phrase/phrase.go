// Package phrase runs the second pass: names are tokenized against the
// finished vocabulary and every distinct token sequence is reduced to a
// 64-bit fingerprint.
package phrase

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/internal/aggregate"
	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/internal/element"
	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/internal/scanner"
	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/internal/source"
	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/internal/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/pkg/metrics"
)

// Encode concatenates the 8-byte little-endian encodings of seq.
func Encode(seq []uint64) []byte {
	buf := make([]byte, 8*len(seq))
	for i, id := range seq {
		binary.LittleEndian.PutUint64(buf[i*8:], id)
	}
	return buf
}

// Fingerprint hashes the encoding of seq.
func Fingerprint(seq []uint64) uint64 {
	return xxhash.Sum64(Encode(seq))
}

// Result is the output of the phrase pass.
type Result struct {
	// Fingerprints are unique and ascending.
	Fingerprints    []uint64
	UniqueSequences int
	Scan            scanner.Stats
	Names           int64
}

// Collect runs the phrase pass over src. A name containing a word the
// vocabulary does not know aborts the pass.
func Collect(ctx context.Context, sc *scanner.Scanner, src source.Source, tok *tokenizer.Tokenizer, queueSize int) (Result, error) {
	sequences := make(map[string]struct{})
	agg := aggregate.Start(queueSize,
		func(encoded []byte) {
			sequences[string(encoded)] = struct{}{}
		},
		func() Result {
			seen := make(map[uint64]struct{}, len(sequences))
			fps := make([]uint64, 0, len(sequences))
			for seq := range sequences {
				fp := xxhash.Sum64String(seq)
				if _, dup := seen[fp]; dup {
					continue
				}
				seen[fp] = struct{}{}
				fps = append(fps, fp)
			}
			slices.Sort(fps)
			return Result{Fingerprints: fps, UniqueSequences: len(sequences)}
		},
	)

	var names atomic.Int64
	scanStats, err := sc.Scan(ctx, src, metrics.PassPhrase, func(ctx context.Context, rec element.Record) error {
		found := element.Names(rec)
		names.Add(int64(len(found)))
		for _, name := range found {
			seq, err := tok.Tokenize(name)
			if err != nil {
				return fmt.Errorf("record %s: %w", rec.Kind(), err)
			}
			if len(seq) == 0 {
				continue
			}
			if err := agg.Send(ctx, Encode(seq)); err != nil {
				return err
			}
		}
		return nil
	})
	if m := sc.Metrics(); m != nil {
		m.NamesExtracted.WithLabelValues(metrics.PassPhrase).Add(float64(names.Load()))
	}
	if err != nil {
		agg.Abandon()
		return Result{Scan: scanStats, Names: names.Load()}, err
	}

	agg.Close()
	res, err := agg.Result(ctx)
	if err != nil {
		return Result{Scan: scanStats}, fmt.Errorf("collecting phrases: %w", err)
	}
	res.Scan = scanStats
	res.Names = names.Load()
	slog.Default().With("component", "phrase").Info("phrases collected",
		"sequences", res.UniqueSequences,
		"fingerprints", len(res.Fingerprints),
		"names", res.Names,
	)
	return res, nil
}
