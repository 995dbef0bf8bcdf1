// Package clock resolves "now" for rule evaluation.
//
// The rule window is time-dependent, so every component that needs the
// current time takes a Clock instead of calling time.Now directly. This
// keeps RuleEvaluator deterministic under test and lets demos replay a
// fixed instant via EXTENDERD_DEMO_NOW.
package clock

import (
	"fmt"
	"os"
	"time"
)

// DemoNowEnv pins the clock to a fixed UTC instant when set.
// Format: 2006-01-02T15:04:05Z
const DemoNowEnv = "EXTENDERD_DEMO_NOW"

// Clock resolves the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// System returns a Clock backed by wall-clock time in UTC.
func System() Clock {
	return systemClock{}
}

type fixedClock struct {
	at time.Time
}

func (c fixedClock) Now() time.Time {
	return c.at
}

// Fixed returns a Clock pinned to the given instant.
func Fixed(at time.Time) Clock {
	return fixedClock{at: at.UTC()}
}

// FromEnv returns a pinned clock if DemoNowEnv is set, otherwise the
// system clock. An unparseable pin is an error rather than a silent
// fallback: a demo running on the wrong clock is worse than one that
// fails to start.
func FromEnv() (Clock, error) {
	raw := os.Getenv(DemoNowEnv)
	if raw == "" {
		return System(), nil
	}
	return Parse(raw)
}

// Parse builds a pinned clock from an RFC 3339 UTC timestamp.
func Parse(raw string) (Clock, error) {
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("parsing demo clock %q: %w", raw, err)
	}
	return Fixed(at), nil
}
