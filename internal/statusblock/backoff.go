package statusblock

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"
)

// Backoff defines the redial schedule for an unreachable status slave.
type Backoff struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

func DefaultBackoff() Backoff {
	return Backoff{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     30 * time.Second,
		Jitter:       true,
	}
}

// Delay returns the wait before attempt N (1-based). Jitter scales the delay
// into [0.5, 1.5); a nil rng uses the low end.
func (b Backoff) Delay(attempt int, rng *rand.Rand) time.Duration {
	if attempt <= 1 || b.InitialDelay <= 0 {
		return max(b.InitialDelay, 0)
	}
	if b.Multiplier < 1.0 {
		b.Multiplier = 1.0
	}
	delay := float64(b.InitialDelay) * math.Pow(b.Multiplier, float64(attempt-1))
	if b.MaxDelay > 0 && delay > float64(b.MaxDelay) {
		delay = float64(b.MaxDelay)
	}
	if b.Jitter {
		f := 0.5
		if rng != nil {
			f = 0.5 + rng.Float64()
		}
		delay *= f
	}
	return time.Duration(delay)
}

// retry calls fn until it succeeds or ctx ends, sleeping per b between
// attempts. onFail sees each failure with the delay before the next try.
func retry(ctx context.Context, b Backoff, rng *rand.Rand, fn func() error, onFail func(attempt int, wait time.Duration, err error)) error {
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		wait := b.Delay(attempt, rng)
		if onFail != nil {
			onFail(attempt, wait, err)
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// DialRetry dials the status slave until it answers or ctx is cancelled.
// Later connection drops are redialed by the modbus handler on the next write.
func DialRetry(ctx context.Context, cfg ClientConfig, b Backoff, logger zerolog.Logger) (*Client, error) {
	rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	var cli *Client
	err := retry(ctx, b, rng, func() error {
		c, err := Dial(cfg)
		if err != nil {
			return err
		}
		cli = c
		return nil
	}, func(attempt int, wait time.Duration, err error) {
		ev := logger.Warn()
		if attempt > 1 {
			ev = logger.Debug()
		}
		ev.Err(err).Int("attempt", attempt).Dur("retry_in", wait).Msg("status block dial failed")
	})
	if err != nil {
		return nil, err
	}
	return cli, nil
}
