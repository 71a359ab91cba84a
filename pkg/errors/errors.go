// Package errors defines the failure taxonomy of the index build. Every
// failure inside a pass is fatal; the sentinels let callers tell which kind
// of failure ended the run.
package errors

import (
	"errors"
	"fmt"
)

var (
	ErrSource        = errors.New("source error")
	ErrUnknownWord   = errors.New("word missing from vocabulary")
	ErrChannelClosed = errors.New("aggregator channel closed")
	ErrBuild         = errors.New("build error")
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrLocked        = errors.New("output directory locked by another build")
	ErrAnnounce      = errors.New("announcement failed")
	ErrCorrupt       = errors.New("corrupt artifact")
)

// Stages reported by StageError.
const (
	StageVocabulary = "vocabulary"
	StagePhrase     = "phrase"
	StageFilter     = "filter"
	StageManifest   = "manifest"
	StageAnnounce   = "announce"
)

// StageError records which stage of the build produced Err.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %s", e.Stage, e.Err.Error())
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// InStage wraps err with the given stage. A nil err stays nil.
func InStage(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

// Newf wraps a sentinel with a formatted message.
func Newf(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}

// StageOf returns the stage recorded on err, or "" when there is none.
func StageOf(err error) string {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Stage
	}
	return ""
}

// ExitCode maps an error to a process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrInvalidConfig):
		return 2
	case errors.Is(err, ErrSource):
		return 3
	case errors.Is(err, ErrUnknownWord):
		return 4
	case errors.Is(err, ErrBuild), errors.Is(err, ErrCorrupt):
		return 5
	case errors.Is(err, ErrLocked):
		return 6
	case errors.Is(err, ErrAnnounce):
		return 7
	default:
		return 1
	}
}
