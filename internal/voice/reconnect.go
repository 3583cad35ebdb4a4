package voice

import "time"

// Reconnect backoff defaults.
const (
	DefaultReconnectInitialDelay = time.Second
	DefaultReconnectMaxDelay     = time.Minute
)

// reconnectPolicy tracks connected/disconnected transitions and decides when
// the next connection attempt may start. Delays grow exponentially until a
// connection succeeds.
type reconnectPolicy struct {
	initial time.Duration
	max     time.Duration

	delay       time.Duration
	nextAttempt time.Time
}

func newReconnectPolicy(initial, max time.Duration) *reconnectPolicy {
	if initial <= 0 {
		initial = DefaultReconnectInitialDelay
	}
	if max < initial {
		max = DefaultReconnectMaxDelay
	}
	return &reconnectPolicy{initial: initial, max: max, delay: initial}
}

// markConnected resets the backoff after a successful connection.
func (p *reconnectPolicy) markConnected() {
	p.delay = p.initial
	p.nextAttempt = time.Time{}
}

// markDisconnected schedules the next attempt and doubles the delay.
func (p *reconnectPolicy) markDisconnected(now time.Time) {
	p.nextAttempt = now.Add(p.delay)
	p.delay *= 2
	if p.delay > p.max {
		p.delay = p.max
	}
}

// shouldAttempt reports whether a new connection attempt may start.
func (p *reconnectPolicy) shouldAttempt(now time.Time) bool {
	return !now.Before(p.nextAttempt)
}
