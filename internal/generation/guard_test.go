package generation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
)

type scriptedGenerator struct {
	calls int
	fail  bool
	// streamErr ends every opened stream with this error.
	streamErr error
}

func (g *scriptedGenerator) Name() string { return "scripted" }

func (g *scriptedGenerator) Complete(ctx context.Context, prompt string, opts Options) (*Stream, error) {
	g.calls++
	if g.fail {
		return nil, errors.New("upstream 503")
	}
	if g.streamErr != nil {
		err := g.streamErr
		return NewStream(ctx, 0, func(ctx context.Context, emit Emit) error {
			if err := emit("partial "); err != nil {
				return err
			}
			return err
		}), nil
	}
	return Fragments("echo: ", prompt), nil
}

func TestGuard_PassesThrough(t *testing.T) {
	next := &scriptedGenerator{}
	g := NewGuard(next, GuardConfig{RequestsPerMinute: 600})
	assert.Equal(t, "scripted", g.Name())

	s, err := g.Complete(context.Background(), "hi", Options{})
	require.NoError(t, err)
	text, err := s.Collect()
	require.NoError(t, err)
	assert.Equal(t, "echo: hi", text)
}

func TestGuard_OpensAfterRepeatedFailuresAndFailsFast(t *testing.T) {
	next := &scriptedGenerator{fail: true}
	g := NewGuard(next, GuardConfig{MinRequests: 2, FailureRatio: 0.5, OpenTimeout: time.Minute})

	for i := 0; i < 2; i++ {
		_, err := g.Complete(context.Background(), "q", Options{})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrGenerationFailure)
	}
	assert.Equal(t, gobreaker.StateOpen, g.State())

	_, err := g.Complete(context.Background(), "q", Options{})
	assert.ErrorIs(t, err, domain.ErrGenerationFailure)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, next.calls, "open breaker must not call the backend")
}

func TestGuard_CancelledContextWhileRateLimited(t *testing.T) {
	g := NewGuard(&scriptedGenerator{}, GuardConfig{RequestsPerMinute: 1})
	_, err := g.Complete(context.Background(), "first", Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = g.Complete(ctx, "second", Options{})
	assert.ErrorIs(t, err, domain.ErrGenerationFailure)
}

func TestGuard_StreamErrorsOpenBreaker(t *testing.T) {
	next := &scriptedGenerator{streamErr: errors.New("upstream 500")}
	g := NewGuard(next, GuardConfig{MinRequests: 2, FailureRatio: 0.5, OpenTimeout: time.Minute})

	for i := 0; i < 2; i++ {
		s, err := g.Complete(context.Background(), "q", Options{})
		require.NoError(t, err)
		text, err := s.Collect()
		assert.Equal(t, "partial ", text)
		require.EqualError(t, err, "upstream 500")
	}
	assert.Equal(t, gobreaker.StateOpen, g.State())

	_, err := g.Complete(context.Background(), "q", Options{})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, next.calls)
}

func TestGuard_ClosedStreamsCountAsSuccess(t *testing.T) {
	next := &scriptedGenerator{}
	g := NewGuard(next, GuardConfig{MinRequests: 1, FailureRatio: 0.1})

	for i := 0; i < 3; i++ {
		s, err := g.Complete(context.Background(), "q", Options{})
		require.NoError(t, err)
		require.NoError(t, s.Close())
	}
	assert.Equal(t, gobreaker.StateClosed, g.State())
}
