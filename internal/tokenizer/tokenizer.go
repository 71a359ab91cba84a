// Package tokenizer turns names into words and words into vocabulary
// identifiers. Both build passes normalise through Split, so a word the
// vocabulary pass stored is exactly the word the phrase pass looks up.
package tokenizer

import (
	"fmt"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/osm-phrase-index/pkg/errors"
)

// Split breaks a name on Unicode whitespace and lower-cases every piece.
func Split(name string) []string {
	words := strings.Fields(name)
	for i, w := range words {
		words[i] = strings.ToLower(w)
	}
	return words
}

// Lookuper resolves a normalised word to its identifier.
type Lookuper interface {
	Lookup(word string) (uint64, bool, error)
}

// Tokenizer maps names onto token sequences against a finished vocabulary.
type Tokenizer struct {
	vocab Lookuper
}

func New(vocab Lookuper) *Tokenizer {
	return &Tokenizer{vocab: vocab}
}

// Tokenize returns one identifier per word of name, in word order. A word
// missing from the vocabulary means the vocabulary was built from different
// input, and fails with ErrUnknownWord.
func (t *Tokenizer) Tokenize(name string) ([]uint64, error) {
	words := Split(name)
	seq := make([]uint64, 0, len(words))
	for _, word := range words {
		id, ok, err := t.vocab.Lookup(word)
		if err != nil {
			return nil, fmt.Errorf("looking up %q: %w", word, err)
		}
		if !ok {
			return nil, apperrors.Newf(apperrors.ErrUnknownWord, "%q in name %q", word, name)
		}
		seq = append(seq, id)
	}
	return seq, nil
}

// Lookup resolves a single query word. Unlike Tokenize, a miss is an
// ordinary negative answer.
func (t *Tokenizer) Lookup(word string) (uint64, bool, error) {
	return t.vocab.Lookup(strings.ToLower(strings.TrimSpace(word)))
}
