package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: 0},
		{name: "config", err: Newf(ErrInvalidConfig, "scan.workers must be positive"), want: 2},
		{name: "source", err: fmt.Errorf("opening: %w", ErrSource), want: 3},
		{name: "unknown word", err: InStage(StagePhrase, Newf(ErrUnknownWord, "%q", "paix")), want: 4},
		{name: "build", err: ErrBuild, want: 5},
		{name: "corrupt", err: ErrCorrupt, want: 5},
		{name: "locked", err: ErrLocked, want: 6},
		{name: "announce", err: ErrAnnounce, want: 7},
		{name: "other", err: errors.New("boom"), want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestStageError(t *testing.T) {
	err := InStage(StageVocabulary, fmt.Errorf("scanning: %w", ErrSource))

	assert.True(t, errors.Is(err, ErrSource))
	assert.Equal(t, StageVocabulary, StageOf(err))
	assert.Equal(t, "vocabulary stage: scanning: source error", err.Error())
	assert.Nil(t, InStage(StagePhrase, nil))
	assert.Equal(t, "", StageOf(errors.New("plain")))
}
