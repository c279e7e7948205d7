// Package retry re-runs flaky startup and I/O steps with capped exponential backoff.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// Policy controls how often and how patiently an operation is retried.
type Policy struct {
	Attempts int
	Base     time.Duration
	Cap      time.Duration
	// Jitter is the fraction of each delay that is randomised, in [0, 1].
	Jitter float64
	Name   string
	Logger *zap.Logger
}

func DefaultPolicy(name string) Policy {
	return Policy{
		Attempts: 3,
		Base:     100 * time.Millisecond,
		Cap:      5 * time.Second,
		Jitter:   0.1,
		Name:     name,
		Logger:   zap.NewNop(),
	}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. Do returns the unwrapped error.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Backoff returns the delay before the given retry, counting from 1, without jitter.
func (p Policy) Backoff(retry int) time.Duration {
	d := p.Base
	for i := 1; i < retry && d < p.Cap; i++ {
		d *= 2
	}
	if d > p.Cap {
		d = p.Cap
	}
	return d
}

// Do runs op until it succeeds, returns a Permanent error, the attempts run out or
// ctx is done. op receives the attempt number starting at 1.
func Do(ctx context.Context, p Policy, op func(attempt int) error) error {
	p = p.withDefaults()

	var err error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if err = op(attempt); err == nil {
			if attempt > 1 {
				p.Logger.Info("Retried operation succeeded", zap.String("operation", p.Name), zap.Int("attempt", attempt))
			}
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if attempt == p.Attempts {
			break
		}

		delay := p.jittered(p.Backoff(attempt))
		p.Logger.Warn("Operation failed, retrying",
			zap.String("operation", p.Name),
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

func (p Policy) withDefaults() Policy {
	if p.Attempts <= 0 {
		p.Attempts = 3
	}
	if p.Base <= 0 {
		p.Base = 100 * time.Millisecond
	}
	if p.Cap < p.Base {
		p.Cap = p.Base
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	return p
}

func (p Policy) jittered(d time.Duration) time.Duration {
	if p.Jitter <= 0 {
		return d
	}
	spread := float64(d) * p.Jitter
	return d + time.Duration((rand.Float64()*2-1)*spread)
}
