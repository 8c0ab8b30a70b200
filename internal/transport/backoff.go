package transport

import (
	"math"
	"math/rand"
	"time"
)

// readBackoff spaces out retries while the channel keeps failing reads.
type readBackoff struct {
	cfg      BackoffConfig
	rng      *rand.Rand
	failures int
}

func newReadBackoff(cfg BackoffConfig) *readBackoff {
	return &readBackoff{cfg: cfg, rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (b *readBackoff) next() time.Duration {
	b.failures++
	return backoffDelay(b.cfg, b.failures, b.rng)
}

func (b *readBackoff) reset() {
	b.failures = 0
}

// backoffDelay grows InitialDelay by Multiplier per consecutive failure,
// capped at MaxDelay. Jitter scales the result into [0.5, 1.5) and is
// capped again.
func backoffDelay(cfg BackoffConfig, failures int, rng *rand.Rand) time.Duration {
	if cfg.InitialDelay <= 0 || failures <= 0 {
		return 0
	}
	mult := math.Max(cfg.Multiplier, 1.0)
	delay := float64(cfg.InitialDelay) * math.Pow(mult, float64(failures-1))
	if cfg.MaxDelay > 0 {
		delay = math.Min(delay, float64(cfg.MaxDelay))
	}
	if cfg.Jitter && rng != nil {
		delay *= 0.5 + rng.Float64()
		if cfg.MaxDelay > 0 {
			delay = math.Min(delay, float64(cfg.MaxDelay))
		}
	}
	return time.Duration(delay)
}
