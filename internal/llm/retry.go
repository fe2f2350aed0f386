package llm

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// Retrying wraps an Oracle with bounded retries and exponential backoff
// plus jitter. Context cancellation is never retried.
type Retrying struct {
	inner   Oracle
	retries int
	backoff time.Duration
	log     *zap.Logger

	// injectable for tests
	sleep  func(time.Duration)
	jitter func() float64
}

// WithRetries wraps an oracle. A retries value below 1 is treated as 1.
func WithRetries(inner Oracle, retries int, backoff time.Duration, log *zap.Logger) *Retrying {
	if retries < 1 {
		retries = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Retrying{
		inner:   inner,
		retries: retries,
		backoff: backoff,
		log:     log,
		sleep:   time.Sleep,
		jitter:  rand.Float64,
	}
}

func (r *Retrying) Complete(ctx context.Context, system string, payload any) (string, error) {
	var out string
	err := r.do(ctx, "complete", func() error {
		var callErr error
		out, callErr = r.inner.Complete(ctx, system, payload)
		return callErr
	})
	return out, err
}

func (r *Retrying) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := r.do(ctx, "embed", func() error {
		var callErr error
		out, callErr = r.inner.Embed(ctx, texts)
		return callErr
	})
	return out, err
}

func (r *Retrying) do(ctx context.Context, op string, call func() error) error {
	backoff := r.backoff
	var lastErr error

	for attempt := 0; attempt < r.retries; attempt++ {
		if attempt > 0 {
			r.log.Debug("retrying oracle call",
				zap.String("op", op),
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", backoff))
			r.sleep(backoff + time.Duration(r.jitter()*0.2*float64(time.Second)))
			backoff *= 2
		}

		lastErr = call()
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return lastErr
}
