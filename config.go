package burst

import (
	"math"
	"time"
)

// Config holds scenario and delivery configuration shared by the engine,
// runner and senders.
type Config struct {
	// DurationBound is the scenario ceiling. Entries whose offset exceeds
	// it are dropped during compilation.
	DurationBound time.Duration

	// CollisionEpsilon is how far a same-template entry is nudged forward
	// when it would land on an offset already taken by that template.
	CollisionEpsilon time.Duration

	// StartTime anchors relative timestamp resolution. When zero, tokens
	// resolve against the wall clock at delivery time.
	StartTime time.Time

	// TimeScale compresses (>1) or stretches (<1) the scenario timeline.
	TimeScale float64

	// DeliveryTimeout bounds a single sender call.
	DeliveryTimeout time.Duration

	// ShutdownTimeout is the maximum time to wait for in-flight deliveries
	// when the engine stops.
	ShutdownTimeout time.Duration

	// MaxEntries caps the entries of one compiled plan.
	MaxEntries int

	// StrictTokens rejects a schedule at compile time when any template
	// names an unknown generator or carries bad token arguments. When
	// false those problems are logged and the affected entries are
	// skipped at delivery.
	StrictTokens bool
}

// DefaultMaxEntries is the default plan entry cap.
const DefaultMaxEntries = 10000

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DurationBound:    420 * time.Second,
		CollisionEpsilon: time.Second,
		TimeScale:        1,
		DeliveryTimeout:  10 * time.Second,
		ShutdownTimeout:  30 * time.Second,
		MaxEntries:       DefaultMaxEntries,
	}
}

// Seconds converts a possibly fractional number of seconds to a Duration,
// saturating at the Duration range.
func Seconds(s float64) time.Duration {
	ns := s * float64(time.Second)
	switch {
	case ns >= math.MaxInt64:
		return math.MaxInt64
	case ns <= math.MinInt64:
		return math.MinInt64
	}
	return time.Duration(ns)
}
