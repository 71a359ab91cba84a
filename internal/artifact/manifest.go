package artifact

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/osm-phrase-index/pkg/errors"
)

// ManifestVersion is bumped whenever the artifact formats change.
const ManifestVersion = 1

// Manifest describes one finished build.
type Manifest struct {
	Version           int           `json:"version"`
	RunID             string        `json:"run_id"`
	Source            string        `json:"source"`
	StartedAt         time.Time     `json:"started_at"`
	FinishedAt        time.Time     `json:"finished_at"`
	Words             int           `json:"words"`
	UniqueSequences   int           `json:"unique_sequences"`
	Fingerprints      int           `json:"fingerprints"`
	FilterKind        string        `json:"filter_kind"`
	FalsePositiveRate float64       `json:"false_positive_rate,omitempty"`
	Vocabulary        Info          `json:"vocabulary"`
	Filter            Info          `json:"filter"`
	Passes            []PassSummary `json:"passes"`
}

// PassSummary records what one pass scanned.
type PassSummary struct {
	Name       string `json:"name"`
	Records    int64  `json:"records"`
	Names      int64  `json:"names"`
	DurationMs int64  `json:"duration_ms"`
}

// WriteManifest atomically writes m as indented JSON.
func WriteManifest(path string, m *Manifest) (Info, error) {
	return WriteFile(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(m); err != nil {
			return fmt.Errorf("encoding manifest: %w", err)
		}
		return nil
	})
}

// ReadManifest loads a manifest written by WriteManifest.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: parsing manifest %s: %w", apperrors.ErrCorrupt, path, err)
	}
	if m.Version != ManifestVersion {
		return nil, apperrors.Newf(apperrors.ErrCorrupt, "manifest version %d, want %d", m.Version, ManifestVersion)
	}
	return &m, nil
}
