package busy

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"k8s.io/utils/clock"
)

const (
	// DefaultMinVisible is how long the indicator stays up at minimum once shown.
	DefaultMinVisible = time.Second
	// DefaultWatchdogTimeout bounds how long the indicator can stay up without
	// the in-flight count returning to zero.
	DefaultWatchdogTimeout = 15 * time.Second
)

// Config holds the fixed settings of a Coordinator. Zero fields take defaults.
type Config struct {
	MinVisible      time.Duration
	WatchdogTimeout time.Duration

	// Clock drives both timers. Defaults to the real clock.
	Clock clock.WithDelayedExecution
	// Logger defaults to the global zerolog logger.
	Logger *zerolog.Logger
	// Metrics may be nil.
	Metrics *Metrics
}

func (c Config) withDefaults() Config {
	if c.MinVisible <= 0 {
		c.MinVisible = DefaultMinVisible
	}
	if c.WatchdogTimeout <= 0 {
		c.WatchdogTimeout = DefaultWatchdogTimeout
	}
	if c.Clock == nil {
		c.Clock = clock.RealClock{}
	}
	if c.Logger == nil {
		l := log.Logger
		c.Logger = &l
	}
	return c
}
