package resilience

import "time"

// Circuit breaker configuration constants
const (
	DefaultThreshold         = 5
	DefaultResetTimeout      = 30 * time.Second
	DefaultHalfOpenSuccesses = 3
)

// Config holds circuit breaker settings.
type Config struct {
	Name              string           // used in logs
	Threshold         int              // failures before opening
	ResetTimeout      time.Duration    // wait before half-open attempt
	HalfOpenSuccesses int              // successes needed to close
	IsFailure         func(error) bool // which errors count against the breaker; nil counts all
	Now               func() time.Time // clock; nil means time.Now
}

// DefaultConfig returns production-ready defaults for a breaker called name.
func DefaultConfig(name string) Config {
	return Config{
		Name:              name,
		Threshold:         DefaultThreshold,
		ResetTimeout:      DefaultResetTimeout,
		HalfOpenSuccesses: DefaultHalfOpenSuccesses,
	}
}

func (c Config) withDefaults() Config {
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = DefaultResetTimeout
	}
	if c.HalfOpenSuccesses <= 0 {
		c.HalfOpenSuccesses = DefaultHalfOpenSuccesses
	}
	if c.IsFailure == nil {
		c.IsFailure = func(error) bool { return true }
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}
