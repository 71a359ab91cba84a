// Package source delivers the records of an extract to the scanner in
// partitions. A Source hands out every record exactly once; the order of
// partitions and of records across partitions carries no meaning.
package source

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/internal/element"
)

// Partition is a batch of records processed by one worker.
type Partition []element.Record

// Source streams partitions into out until the extract is exhausted. It must
// return ctx.Err() if ctx is cancelled while it is blocked on out, and it must
// not close out.
type Source interface {
	Partitions(ctx context.Context, out chan<- Partition) error
}

// Slice is an in-memory Source.
type Slice struct {
	records       []element.Record
	partitionSize int
}

// NewSlice returns a Source over records split into partitions of at most
// partitionSize records.
func NewSlice(records []element.Record, partitionSize int) *Slice {
	if partitionSize <= 0 {
		partitionSize = 1
	}
	return &Slice{records: records, partitionSize: partitionSize}
}

func (s *Slice) Partitions(ctx context.Context, out chan<- Partition) error {
	for start := 0; start < len(s.records); start += s.partitionSize {
		end := min(start+s.partitionSize, len(s.records))
		if err := send(ctx, out, Partition(s.records[start:end])); err != nil {
			return err
		}
	}
	return nil
}

func send(ctx context.Context, out chan<- Partition, part Partition) error {
	select {
	case out <- part:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
