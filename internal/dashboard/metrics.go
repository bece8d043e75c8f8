package dashboard

import (
	"math"
	"time"
)

// CounterDuration is how long a metric takes to count up to a new value.
const CounterDuration = time.Second

// Counter animates a displayed integer towards a target.
type Counter struct {
	From  int
	To    int
	Start time.Time
}

// Set retargets the counter, starting from whatever it shows at now.
func (c *Counter) Set(to int, now time.Time) {
	c.From = c.Value(now)
	c.To = to
	c.Start = now
}

// Value is the number to display at now. The curve eases out.
func (c Counter) Value(now time.Time) int {
	if c.Start.IsZero() {
		return c.To
	}
	elapsed := now.Sub(c.Start)
	if elapsed >= CounterDuration {
		return c.To
	}
	if elapsed <= 0 {
		return c.From
	}
	p := float64(elapsed) / float64(CounterDuration)
	p = 1 - math.Pow(1-p, 3)
	return c.From + int(math.Round(float64(c.To-c.From)*p))
}

// Animating reports whether the counter is still moving at now.
func (c Counter) Animating(now time.Time) bool {
	return !c.Start.IsZero() && c.From != c.To && now.Sub(c.Start) < CounterDuration
}

// Metrics are the four dashboard counters.
type Metrics struct {
	Contracts     Counter
	Templates     Counter
	Analyses      Counter
	PendingReview Counter
}

// Animating reports whether any counter is still moving.
func (m Metrics) Animating(now time.Time) bool {
	return m.Contracts.Animating(now) || m.Templates.Animating(now) ||
		m.Analyses.Animating(now) || m.PendingReview.Animating(now)
}
