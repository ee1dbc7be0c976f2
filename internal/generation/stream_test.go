package generation

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFragments_NextThenEOF(t *testing.T) {
	s := Fragments("a", "b")
	f, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, "a", f)
	f, err = s.Next()
	require.NoError(t, err)
	assert.Equal(t, "b", f)
	_, err = s.Next()
	assert.ErrorIs(t, err, io.EOF)
	_, err = s.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestCollect_JoinsFragments(t *testing.T) {
	text, err := Fragments("The ", "answer", ".").Collect()
	require.NoError(t, err)
	assert.Equal(t, "The answer.", text)
}

func TestStream_ProducerErrorSurfacesAfterFragments(t *testing.T) {
	boom := errors.New("connection reset")
	s := NewStream(context.Background(), 0, func(ctx context.Context, emit Emit) error {
		if err := emit("half"); err != nil {
			return err
		}
		return boom
	})
	text, err := s.Collect()
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "half", text)
}

func TestStream_IdleTimeoutCancelsProducer(t *testing.T) {
	stopped := make(chan struct{})
	s := NewStream(context.Background(), 50*time.Millisecond, func(ctx context.Context, emit Emit) error {
		defer close(stopped)
		if err := emit("first"); err != nil {
			return err
		}
		<-ctx.Done()
		return ctx.Err()
	})
	text, err := s.Collect()
	assert.ErrorIs(t, err, ErrIdleTimeout)
	assert.Equal(t, "first", text)

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("producer was not cancelled")
	}
}

func TestStream_CloseStopsEndlessProducer(t *testing.T) {
	stopped := make(chan struct{})
	s := NewStream(context.Background(), 0, func(ctx context.Context, emit Emit) error {
		defer close(stopped)
		for {
			if err := emit("x"); err != nil {
				return err
			}
		}
	})
	for i := 0; i < 3; i++ {
		f, err := s.Next()
		require.NoError(t, err)
		assert.Equal(t, "x", f)
	}
	require.NoError(t, s.Close())
	_, err := s.Next()
	assert.ErrorIs(t, err, io.EOF)

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("producer still running after Close")
	}
}

func TestStream_ParentCancellationEndsStream(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewStream(ctx, 0, func(ctx context.Context, emit Emit) error {
		<-ctx.Done()
		return ctx.Err()
	})
	cancel()
	_, err := s.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestStream_FinishReportsTerminalResultOnce(t *testing.T) {
	var got []error
	record := func(err error) { got = append(got, err) }

	s := Fragments("a")
	s.onFinish(record)
	_, err := s.Collect()
	require.NoError(t, err)
	require.NoError(t, s.Close())

	stalled := NewStream(context.Background(), 20*time.Millisecond, func(ctx context.Context, emit Emit) error {
		<-ctx.Done()
		return ctx.Err()
	})
	stalled.onFinish(record)
	_, err = stalled.Next()
	require.ErrorIs(t, err, ErrIdleTimeout)
	require.NoError(t, stalled.Close())

	require.Len(t, got, 2)
	assert.NoError(t, got[0])
	assert.ErrorIs(t, got[1], ErrIdleTimeout)
}

func TestStream_FinishAfterEndRunsImmediately(t *testing.T) {
	s := Fragments()
	require.NoError(t, s.Close())
	called := false
	s.onFinish(func(err error) {
		called = true
		assert.NoError(t, err)
	})
	assert.True(t, called)
}
