// Package randval draws bounded pseudo-random values for synthetic readings.
package randval

import (
	"math/rand"
	"time"
)

// DefaultMinValue and DefaultMaxValue bound draws for which no usable
// range was configured.
const (
	DefaultMinValue = 0
	DefaultMaxValue = 100
)

// Config is the configuration for a value source.
type Config struct {
	// RandSeed is the random number generator seed. Use `0` for
	// the seed based on current time and completely random
	// sequences.
	RandSeed int64 `yaml:"randSeed"`
}

// DefaultConfig returns a copy of default config.
// The random seed is based on current time.
func DefaultConfig() Config {
	return Config{
		RandSeed: 0,
	}
}

// Source draws uniformly distributed values. It is not safe for
// concurrent use: each sensor runner owns its own Source.
type Source struct {
	rand *rand.Rand
}

// NewSource creates new uniform value source.
func NewSource(config Config) *Source {
	seed := config.RandSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &Source{
		rand: rand.New(rand.NewSource(seed)),
	}
}

// Uniform returns a value in [min, max]. Swapped bounds are tolerated,
// the value then lies in [max, min].
func (s *Source) Uniform(min, max float64) float64 {
	return min + (max-min)*s.rand.Float64()
}

// Fork returns a new Source seeded from this one. Forked sources are
// deterministic when the parent is, and can be handed to another goroutine.
func (s *Source) Fork() *Source {
	return &Source{
		rand: rand.New(rand.NewSource(s.rand.Int63())),
	}
}
