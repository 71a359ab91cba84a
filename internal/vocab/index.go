package vocab

import (
	"errors"
	"fmt"

	"github.com/blevesearch/vellum"

	apperrors "github.com/Adithya-Monish-Kumar-K/osm-phrase-index/pkg/errors"
)

// Index is a read-only, memory-mapped vocabulary. It is safe for concurrent
// lookups and must be closed when no longer needed.
type Index struct {
	fst  *vellum.FST
	path string
}

// Open maps the FST at path.
func Open(path string) (*Index, error) {
	fst, err := vellum.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening vocabulary %s: %w", apperrors.ErrCorrupt, path, err)
	}
	return &Index{fst: fst, path: path}, nil
}

// Lookup returns the identifier of word. Words are matched exactly; callers
// normalise through tokenizer.Split first.
func (i *Index) Lookup(word string) (uint64, bool, error) {
	id, ok, err := i.fst.Get([]byte(word))
	if err != nil {
		return 0, false, fmt.Errorf("vocabulary lookup: %w", err)
	}
	return id, ok, nil
}

// Len returns the number of words.
func (i *Index) Len() int {
	return i.fst.Len()
}

// Path returns the file the index was opened from.
func (i *Index) Path() string {
	return i.path
}

// Words calls fn for every word in ascending order until fn returns false.
func (i *Index) Words(fn func(word string, id uint64) bool) error {
	itr, err := i.fst.Iterator(nil, nil)
	for err == nil {
		key, val := itr.Current()
		if !fn(string(key), val) {
			return nil
		}
		err = itr.Next()
	}
	if errors.Is(err, vellum.ErrIteratorDone) {
		return nil
	}
	return fmt.Errorf("iterating vocabulary: %w", err)
}

// Close unmaps the index.
func (i *Index) Close() error {
	if err := i.fst.Close(); err != nil {
		return fmt.Errorf("closing vocabulary: %w", err)
	}
	return nil
}
