package generation

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"
)

// ErrIdleTimeout is returned by Next when no fragment arrived within the
// stream's idle timeout. Fragments received before it remain valid.
var ErrIdleTimeout = errors.New("generation stream stalled")

// Emit hands one fragment to the consumer. It fails once the stream is
// closed or its context is done.
type Emit func(fragment string) error

// Producer writes fragments through emit and returns when the output is
// complete. A nil return ends the stream with io.EOF.
type Producer func(ctx context.Context, emit Emit) error

// Stream is a lazy, finite sequence of text fragments. Consumers call Next
// until it returns an error; io.EOF marks normal completion. Close stops
// the producer and may be called at any time.
type Stream struct {
	frags  chan string
	cancel context.CancelFunc
	idle   time.Duration

	// perr is written by the producer before frags is closed.
	perr error

	mu        sync.Mutex
	err       error
	closeOnce sync.Once
	ended     bool
	endErr    error
	finish    func(err error)
}

// NewStream runs produce in its own goroutine. An idle timeout of zero
// waits indefinitely between fragments.
func NewStream(ctx context.Context, idle time.Duration, produce Producer) *Stream {
	ctx, cancel := context.WithCancel(ctx)
	s := &Stream{
		frags:  make(chan string),
		cancel: cancel,
		idle:   idle,
	}
	go func() {
		defer close(s.frags)
		s.perr = produce(ctx, func(fragment string) error {
			select {
			case s.frags <- fragment:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()
	return s
}

// Fragments returns a stream that yields the given fragments.
func Fragments(fragments ...string) *Stream {
	return NewStream(context.Background(), 0, func(ctx context.Context, emit Emit) error {
		for _, f := range fragments {
			if err := emit(f); err != nil {
				return err
			}
		}
		return nil
	})
}

// Next returns the next fragment.
func (s *Stream) Next() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}

	var timeout <-chan time.Time
	if s.idle > 0 {
		t := time.NewTimer(s.idle)
		defer t.Stop()
		timeout = t.C
	}
	select {
	case f, ok := <-s.frags:
		if ok {
			return f, nil
		}
		s.err = io.EOF
		if s.perr != nil && !errors.Is(s.perr, context.Canceled) {
			s.err = s.perr
		}
		s.cancel()
	case <-timeout:
		s.err = ErrIdleTimeout
		s.cancel()
	}
	s.end(s.err)
	return "", s.err
}

// end records the terminal result once. io.EOF counts as success. Callers
// hold s.mu.
func (s *Stream) end(err error) {
	if s.ended {
		return
	}
	if errors.Is(err, io.EOF) {
		err = nil
	}
	s.ended, s.endErr = true, err
	if s.finish != nil {
		s.finish(err)
	}
}

// onFinish registers fn to receive the stream's terminal result: nil after
// normal completion or Close, otherwise the error Next returned. fn runs
// at most once.
func (s *Stream) onFinish(fn func(err error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		fn(s.endErr)
		return
	}
	s.finish = fn
}

// Close cancels the producer. Later Next calls return io.EOF unless the
// stream already ended with another error.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.mu.Lock()
		if s.err == nil {
			s.err = io.EOF
		}
		s.end(s.err)
		s.mu.Unlock()
	})
	return nil
}

// Collect drains the stream into one string. On failure it returns the
// text received so far together with the error.
func (s *Stream) Collect() (string, error) {
	defer s.Close()
	var b strings.Builder
	for {
		f, err := s.Next()
		if errors.Is(err, io.EOF) {
			return b.String(), nil
		}
		if err != nil {
			return b.String(), err
		}
		b.WriteString(f)
	}
}
