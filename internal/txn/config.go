package txn

import (
	"math"
	"math/rand"
	"time"
)

// BackoffConfig defines confirmation poll spacing.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// Config defines orchestrator polling behavior.
type Config struct {
	Backoff BackoffConfig
	// MaxReadFailures is how many consecutive failed status or height reads
	// are tolerated before the submission is reported as expired.
	MaxReadFailures int
}

func DefaultConfig() Config {
	return Config{
		Backoff: BackoffConfig{
			InitialDelay: 500 * time.Millisecond,
			Multiplier:   1.5,
			MaxDelay:     4 * time.Second,
			Jitter:       true,
		},
		MaxReadFailures: 10,
	}
}

// NextBackoffDelay returns the poll delay for attempt N (1-based).
func NextBackoffDelay(cfg BackoffConfig, attempt int, rng *rand.Rand) time.Duration {
	if attempt <= 1 {
		return cfg.InitialDelay
	}
	if cfg.InitialDelay <= 0 {
		return 0
	}
	if cfg.Multiplier < 1.0 {
		cfg.Multiplier = 1.0
	}
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt-1))
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	if cfg.Jitter {
		f := 0.5
		if rng != nil {
			f = 0.5 + rng.Float64()
		}
		delay = delay * f
	}
	return time.Duration(delay)
}
