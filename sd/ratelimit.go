package sd

import (
	"math/rand"
	"time"
)

const (
	// Above this consumed fraction of the quota window, gated calls
	// wait out a cooldown before proceeding.
	rateHighWater = 0.95
	rateCooldown  = 15 * time.Minute

	// Randomized delay after each binary download, to avoid bursty
	// request patterns that look abusive to the remote service.
	jitterMin = 2 * time.Second
	jitterMax = 5 * time.Second
)

// RateReader reports the consumed fraction of the current rate-limit
// window, as tracked by the API client.
type RateReader interface {
	RateLimitFraction() float64
}

// RateGate is a blunt admission-control gate: a single check-then-wait
// before each remote call, not a token bucket. The client already
// tracks the consumed fraction, so precision is traded for simplicity.
type RateGate struct {
	limits RateReader
	logger Logger
	sleep  func(time.Duration)
}

// NewRateGate creates a new rate gate
func NewRateGate(limits RateReader, logger Logger) *RateGate {
	return &RateGate{
		limits: limits,
		logger: logger,
		sleep:  time.Sleep,
	}
}

// Wait suspends the caller for the cooldown period when the quota is
// nearly consumed. After the wait the call proceeds unconditionally;
// there is no re-check loop.
func (g *RateGate) Wait() {
	fraction := g.limits.RateLimitFraction()
	if fraction <= rateHighWater {
		return
	}

	g.logger.Warn("rate limit nearly consumed, cooling down",
		"fraction", fraction,
		"cooldown", rateCooldown.String())
	g.sleep(rateCooldown)
}

// Jitter sleeps a uniformly random delay between jitterMin and
// jitterMax. Called after each binary download.
func (g *RateGate) Jitter() {
	d := jitterMin + time.Duration(rand.Int63n(int64(jitterMax-jitterMin)))
	g.sleep(d)
}
