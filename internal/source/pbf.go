package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"

	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/internal/element"
	apperrors "github.com/Adithya-Monish-Kumar-K/osm-phrase-index/pkg/errors"
)

// PBF reads an OSM PBF extract. The file is reopened on every call to
// Partitions, so one PBF serves both passes of a build.
//
// osmpbf flattens dense node groups into individual nodes, so every node
// arrives as an element.Point.
type PBF struct {
	path          string
	procs         int
	partitionSize int
	logger        *slog.Logger
}

// NewPBF returns a Source over the extract at path, decoded by procs
// goroutines and grouped into partitions of partitionSize records.
func NewPBF(path string, procs, partitionSize int) *PBF {
	if procs <= 0 {
		procs = 1
	}
	if partitionSize <= 0 {
		partitionSize = 8000
	}
	return &PBF{
		path:          path,
		procs:         procs,
		partitionSize: partitionSize,
		logger:        slog.Default().With("component", "pbf-source", "path", path),
	}
}

func (p *PBF) Partitions(ctx context.Context, out chan<- Partition) error {
	f, err := os.Open(p.path)
	if err != nil {
		return fmt.Errorf("%w: opening extract: %w", apperrors.ErrSource, err)
	}
	defer f.Close()

	scanner := osmpbf.New(ctx, f, p.procs)
	defer scanner.Close()

	part := make(Partition, 0, p.partitionSize)
	var partitions, skipped int
	for scanner.Scan() {
		rec, ok := Convert(scanner.Object())
		if !ok {
			skipped++
			continue
		}
		part = append(part, rec)
		if len(part) < p.partitionSize {
			continue
		}
		if err := send(ctx, out, part); err != nil {
			return err
		}
		partitions++
		part = make(Partition, 0, p.partitionSize)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%w: decoding extract: %w", apperrors.ErrSource, err)
	}
	if len(part) > 0 {
		if err := send(ctx, out, part); err != nil {
			return err
		}
		partitions++
	}
	p.logger.Debug("extract exhausted",
		"partitions", partitions,
		"skipped_objects", skipped,
	)
	return nil
}

// Convert maps a decoded OSM object onto a Record. Objects that are not
// nodes, ways or relations are reported as not convertible.
func Convert(o osm.Object) (element.Record, bool) {
	switch v := o.(type) {
	case *osm.Node:
		return element.Point{
			ID:    int64(v.ID),
			Coord: element.Coord{Lat: v.Lat, Lon: v.Lon},
			Tags:  convertTags(v.Tags),
		}, true
	case *osm.Way:
		var coords []element.Coord
		for _, wn := range v.Nodes {
			if wn.Lat == 0 && wn.Lon == 0 {
				continue
			}
			coords = append(coords, element.Coord{Lat: wn.Lat, Lon: wn.Lon})
		}
		return element.Way{
			ID:     int64(v.ID),
			Coords: coords,
			Tags:   convertTags(v.Tags),
		}, true
	case *osm.Relation:
		return element.Relation{
			ID:   int64(v.ID),
			Tags: convertTags(v.Tags),
		}, true
	default:
		return nil, false
	}
}

func convertTags(tags osm.Tags) element.Tags {
	if len(tags) == 0 {
		return nil
	}
	out := make(element.Tags, len(tags))
	for i, t := range tags {
		out[i] = element.Tag{Key: t.Key, Value: t.Value}
	}
	return out
}
