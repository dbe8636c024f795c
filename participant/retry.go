package participant

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/hupe1980/roundtable/core"
	"github.com/hupe1980/roundtable/logging"
)

// Classifier determines if an error should be retried.
type Classifier func(error) bool

// RetryOptions configures WithRetry.
type RetryOptions struct {
	MaxAttempts   int           // Maximum number of attempts (including initial)
	InitialDelay  time.Duration // Delay before the first retry
	MaxDelay      time.Duration // Maximum delay between retries
	BackoffFactor float64       // Multiplier for exponential backoff
	Jitter        bool          // Add up to ±10% random jitter
	Classifier    Classifier
	Logger        logging.Logger
}

// ShouldRetry is the default classifier. Cancellation, configuration errors
// and client errors are final; per-attempt timeouts, network failures, rate
// limiting and 5xx responses are retried.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrEmptyReply) {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, core.ErrInvalidConfiguration) || errors.Is(err, core.ErrCallLimitExceeded) {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, s := range []string{"timeout", "connection", "network", "temporary", "rate", "429", "500", "502", "503", "504", "overloaded"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// Retrying wraps a participant and retries failed turns with exponential backoff.
type Retrying struct {
	core.Participant
	opts RetryOptions
}

// WithRetry returns p wrapped in a retry policy (3 attempts, 200ms initial
// delay doubling up to 10s, with jitter).
func WithRetry(p core.Participant, optFns ...func(o *RetryOptions)) *Retrying {
	opts := RetryOptions{
		MaxAttempts:   3,
		InitialDelay:  200 * time.Millisecond,
		MaxDelay:      10 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
		Classifier:    ShouldRetry,
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Classifier == nil {
		opts.Classifier = ShouldRetry
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Retrying{Participant: p, opts: opts}
}

// Respond implements core.Participant.
func (r *Retrying) Respond(ctx context.Context, history []core.Message) (core.Message, error) {
	var lastErr error

	for attempt := 1; attempt <= r.opts.MaxAttempts; attempt++ {
		if attempt > 1 {
			if delay := r.delay(attempt); delay > 0 {
				select {
				case <-ctx.Done():
					return core.Message{}, ctx.Err()
				case <-time.After(delay):
				}
			}
		}

		msg, err := r.Participant.Respond(ctx, history)
		if err == nil {
			return msg, nil
		}
		lastErr = err

		if ctx.Err() != nil || !r.opts.Classifier(err) {
			return core.Message{}, err
		}
		r.opts.Logger.Warn("Participant turn failed, retrying", "participant", r.Name(), "attempt", attempt, "max_attempts", r.opts.MaxAttempts, "error", err)
	}

	return core.Message{}, fmt.Errorf("giving up after %d attempts: %w", r.opts.MaxAttempts, lastErr)
}

// delay computes the backoff before the given attempt.
func (r *Retrying) delay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	d := time.Duration(float64(r.opts.InitialDelay) * math.Pow(r.opts.BackoffFactor, float64(attempt-2)))
	if r.opts.MaxDelay > 0 && d > r.opts.MaxDelay {
		d = r.opts.MaxDelay
	}
	if r.opts.Jitter && d > 0 {
		d += time.Duration(float64(d) * 0.1 * (2*rand.Float64() - 1))
	}
	return d
}
