package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// StagedSuffix marks an artifact written by a build that has not been
// published yet.
const StagedSuffix = ".next"

// Staging tracks artifacts written under staged names so a build can publish
// all of them together, or none.
type Staging struct {
	entries []stagedFile
}

type stagedFile struct {
	staged string
	final  string
}

// Path registers final and returns the staged path to write it to. Commit
// publishes staged files in registration order.
func (s *Staging) Path(final string) string {
	staged := final + StagedSuffix
	s.entries = append(s.entries, stagedFile{staged: staged, final: final})
	return staged
}

// Commit renames every staged file over its final path. Register the file
// readers trust last (the manifest) so it is the last to change.
func (s *Staging) Commit() error {
	for i, e := range s.entries {
		if err := os.Rename(e.staged, e.final); err != nil {
			s.entries = s.entries[i:]
			return fmt.Errorf("publishing %s: %w", filepath.Base(e.final), err)
		}
	}
	s.entries = nil
	return nil
}

// Discard removes staged files that were not committed. Final paths are
// never touched.
func (s *Staging) Discard() error {
	var errs []error
	for _, e := range s.entries {
		if err := os.Remove(e.staged); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	s.entries = nil
	return errors.Join(errs...)
}

// Published rewrites info to name the final artifact rather than its staged
// file.
func Published(info Info) Info {
	info.Name = strings.TrimSuffix(info.Name, StagedSuffix)
	return info
}
