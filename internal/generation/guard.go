package generation

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"docqa/internal/domain"
	"docqa/internal/logger"
)

// GuardConfig tunes Guard. Zero values take defaults.
type GuardConfig struct {
	// RequestsPerMinute paces calls. Zero disables pacing.
	RequestsPerMinute int
	// MinRequests is the number of calls in an interval before the failure
	// ratio can open the breaker.
	MinRequests  uint32
	FailureRatio float64
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
}

// Guard wraps a Generator with a circuit breaker and a rate limiter. It
// never retries: an open breaker fails fast with ErrGenerationFailure.
type Guard struct {
	next    Generator
	breaker *gobreaker.TwoStepCircuitBreaker
	limiter *rate.Limiter
}

// NewGuard decorates next.
func NewGuard(next Generator, cfg GuardConfig) *Guard {
	if cfg.MinRequests == 0 {
		cfg.MinRequests = 3
	}
	if cfg.FailureRatio <= 0 || cfg.FailureRatio > 1 {
		cfg.FailureRatio = 0.6
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 60 * time.Second
	}
	g := &Guard{next: next}
	g.breaker = gobreaker.NewTwoStepCircuitBreaker(gobreaker.Settings{
		Name:        next.Name(),
		MaxRequests: 1,
		Interval:    10 * time.Second,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= cfg.MinRequests && ratio >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Generation circuit breaker changed state", "generator", name, "from", from.String(), "to", to.String())
		},
	})
	if cfg.RequestsPerMinute > 0 {
		burst := cfg.RequestsPerMinute / 10
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), burst)
	}
	return g
}

func (g *Guard) Name() string { return g.next.Name() }

// State exposes the breaker state.
func (g *Guard) State() gobreaker.State { return g.breaker.State() }

// Complete opens a stream on the wrapped generator. A failure to open the
// stream and an error ending it both count against the breaker; a stream
// completed or closed by the consumer counts as a success.
func (g *Guard) Complete(ctx context.Context, prompt string, opts Options) (*Stream, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, domain.E(domain.KindGenerationFailure, "rate limit "+g.Name(), err)
		}
	}
	done, err := g.breaker.Allow()
	if err != nil {
		logger.Warn("Generation rejected by open circuit breaker", "generator", g.Name())
		return nil, domain.E(domain.KindGenerationFailure, "complete "+g.Name(), err)
	}
	s, err := g.next.Complete(ctx, prompt, opts)
	if err != nil {
		done(false)
		var de *domain.Error
		if errors.As(err, &de) {
			return nil, err
		}
		return nil, domain.E(domain.KindGenerationFailure, "complete "+g.Name(), err)
	}
	s.onFinish(func(err error) {
		done(err == nil || errors.Is(err, context.Canceled))
	})
	return s, nil
}
