// Package query answers questions against a finished build: the identifier
// of a word, and whether a phrase probably appears as a name.
package query

import (
	"errors"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/internal/filter"
	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/internal/phrase"
	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/internal/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/internal/vocab"
)

var errNoFilter = errors.New("index opened without a phrase filter")

type Index struct {
	vocab  *vocab.Index
	filter filter.Filter
	tok    *tokenizer.Tokenizer
}

// Open loads the vocabulary and filter written by one build.
func Open(vocabPath, filterPath string) (*Index, error) {
	v, err := vocab.Open(vocabPath)
	if err != nil {
		return nil, err
	}
	f, err := filter.Load(filterPath)
	if err != nil {
		v.Close()
		return nil, fmt.Errorf("loading phrase filter: %w", err)
	}
	return &Index{vocab: v, filter: f, tok: tokenizer.New(v)}, nil
}

// OpenVocabulary loads only the vocabulary. ContainsPhrase fails on the
// returned index.
func OpenVocabulary(vocabPath string) (*Index, error) {
	v, err := vocab.Open(vocabPath)
	if err != nil {
		return nil, err
	}
	return &Index{vocab: v, tok: tokenizer.New(v)}, nil
}

// WordID returns the identifier of word after case folding.
func (i *Index) WordID(word string) (uint64, bool, error) {
	return i.tok.Lookup(word)
}

// ContainsPhrase reports whether text, tokenized like a name, may be one of
// the indexed phrases. A word outside the vocabulary means it is not. A true
// answer can be a false positive; a false answer is definite.
func (i *Index) ContainsPhrase(text string) (bool, error) {
	if i.filter == nil {
		return false, errNoFilter
	}
	words := tokenizer.Split(text)
	if len(words) == 0 {
		return false, nil
	}
	seq := make([]uint64, 0, len(words))
	for _, w := range words {
		id, ok, err := i.vocab.Lookup(w)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		seq = append(seq, id)
	}
	return i.filter.Contains(phrase.Fingerprint(seq)), nil
}

func (i *Index) Close() error {
	return i.vocab.Close()
}
