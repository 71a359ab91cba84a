// Package filter holds the approximate-membership filters over phrase
// fingerprints. A filter never reports a false negative for a key it was
// built from; false positives occur at a rate set by its kind.
package filter

import (
	"encoding/binary"
	"fmt"

	"github.com/FastFilter/xorfilter"
	"github.com/bits-and-blooms/bloom/v3"

	apperrors "github.com/Adithya-Monish-Kumar-K/osm-phrase-index/pkg/errors"
)

// Kind selects the filter implementation.
type Kind string

const (
	// KindXor8 uses 8-bit fingerprints, roughly 0.39% false positives.
	KindXor8 Kind = "xor8"
	// KindBloom uses a Bloom filter sized for a configured false-positive rate.
	KindBloom Kind = "bloom"
)

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindXor8, KindBloom:
		return Kind(s), nil
	default:
		return "", apperrors.Newf(apperrors.ErrInvalidConfig, "unknown filter kind %q", s)
	}
}

// Filter answers membership queries over 64-bit keys.
type Filter interface {
	Contains(key uint64) bool
	Kind() Kind
	// Len is the number of keys the filter was built from.
	Len() int
}

// Build constructs a filter of the given kind over keys. fpRate is only
// used by bloom filters. An empty key set yields a filter that contains
// nothing.
func Build(kind Kind, keys []uint64, fpRate float64) (Filter, error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return emptyFilter{kind: kind}, nil
	}
	switch kind {
	case KindBloom:
		if fpRate <= 0 || fpRate >= 1 {
			return nil, apperrors.Newf(apperrors.ErrInvalidConfig, "false positive rate %v outside (0,1)", fpRate)
		}
		bf := bloom.NewWithEstimates(uint(len(keys)), fpRate)
		var buf [8]byte
		for _, k := range keys {
			binary.LittleEndian.PutUint64(buf[:], k)
			bf.Add(buf[:])
		}
		return &bloomFilter{bf: bf, n: len(keys)}, nil
	default:
		xf, err := xorfilter.Populate(keys)
		if err != nil {
			return nil, fmt.Errorf("%w: populating xor filter: %w", apperrors.ErrBuild, err)
		}
		return &xor8Filter{xf: xf, n: len(keys)}, nil
	}
}

type emptyFilter struct {
	kind Kind
}

func (emptyFilter) Contains(uint64) bool { return false }
func (f emptyFilter) Kind() Kind        { return f.kind }
func (emptyFilter) Len() int            { return 0 }

type xor8Filter struct {
	xf *xorfilter.Xor8
	n  int
}

func (f *xor8Filter) Contains(key uint64) bool { return f.xf.Contains(key) }
func (f *xor8Filter) Kind() Kind               { return KindXor8 }
func (f *xor8Filter) Len() int                 { return f.n }

type bloomFilter struct {
	bf *bloom.BloomFilter
	n  int
}

func (f *bloomFilter) Contains(key uint64) bool {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], key)
	return f.bf.Test(buf[:])
}

func (f *bloomFilter) Kind() Kind { return KindBloom }
func (f *bloomFilter) Len() int   { return f.n }
