// Package retry implements exponential backoff for connection attempts.
package retry

import (
	"context"
	"math"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

type Settings struct {
	InitialBackoff time.Duration
	Multiplier     int
	MaxBackoff     time.Duration
	// MaxAttempts bounds the total number of attempts. Zero means a single
	// attempt with no retries.
	MaxAttempts int
}

func (s Settings) Verify() error {
	if s.InitialBackoff <= 0 {
		return errors.Newf("initial backoff must be set to > 0, got %s", s.InitialBackoff)
	}
	if s.Multiplier < 1 {
		return errors.Newf("multiplier must be >= 1, got %d", s.Multiplier)
	}
	if s.MaxBackoff > 0 && s.InitialBackoff > s.MaxBackoff {
		return errors.Newf("initial backoff (%s) must be less than max backoff (%s)", s.InitialBackoff, s.MaxBackoff)
	}
	return nil
}

func DefaultSettings() Settings {
	return Settings{
		InitialBackoff: time.Second,
		Multiplier:     2,
		MaxAttempts:    3,
	}
}

// Backoff returns the sleep duration before the given 1-indexed retry.
func (s Settings) Backoff(retry int) time.Duration {
	d := time.Duration(float64(s.InitialBackoff) * math.Pow(float64(s.Multiplier), float64(retry-1)))
	if s.MaxBackoff > 0 && d > s.MaxBackoff {
		d = s.MaxBackoff
	}
	return d
}

// Do runs fn up to MaxAttempts times, sleeping the backoff schedule between
// attempts. The context cancels the sleep; the last attempt's error is
// returned when the budget is exhausted.
func (s Settings) Do(ctx context.Context, logger zerolog.Logger, what string, fn func(context.Context) error) error {
	if err := s.Verify(); err != nil {
		return err
	}
	attempts := s.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		backoff := s.Backoff(attempt)
		logger.Warn().
			Err(lastErr).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Msgf("%s failed; retrying", what)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return errors.CombineErrors(ctx.Err(), lastErr)
		}
	}
	return errors.Wrapf(lastErr, "%s failed after %d attempts", what, attempts)
}
