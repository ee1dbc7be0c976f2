package domain

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_MatchesSentinelByKind(t *testing.T) {
	err := E(KindParseFailure, "load report.pdf", io.ErrUnexpectedEOF)

	assert.ErrorIs(t, err, ErrParseFailure)
	assert.NotErrorIs(t, err, ErrUnsupportedFormat)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestError_SurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("ingest: %w", E(KindIndexBuildFailure, "build", errors.New("disk full")))

	assert.ErrorIs(t, err, ErrIndexBuildFailure)
	assert.Equal(t, KindIndexBuildFailure, KindOf(err))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
}

func TestError_Message(t *testing.T) {
	err := E(KindHighlightFailure, "highlight", errors.New("cannot open"))
	assert.Equal(t, "highlight: highlight failure: cannot open", err.Error())

	assert.Equal(t, "index is empty", ErrEmptyIndex.Error())
}
