package cooldown

import (
	"testing"
	"time"
)

// fakeClock lets tests advance time deterministically.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time            { return c.t }
func (c *fakeClock) advance(d time.Duration)   { c.t = c.t.Add(d) }

func newTestGate(base, max time.Duration) (*Gate, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	g := New(base, max)
	g.now = clock.now
	return g, clock
}

func TestAllowByDefault(t *testing.T) {
	g, _ := newTestGate(time.Second, time.Minute)
	if !g.Allow("gemini", "gemini-2.5-pro") {
		t.Error("fresh channel blocked")
	}
	if g.Retry("gemini", "gemini-2.5-pro") != 0 {
		t.Error("fresh channel has retry delay")
	}
}

func TestFailureBlocksThenExpires(t *testing.T) {
	g, clock := newTestGate(time.Second, time.Minute)

	g.Failure("gemini", "m")
	if g.Allow("gemini", "m") {
		t.Error("channel open immediately after failure")
	}
	if got := g.Retry("gemini", "m"); got != time.Second {
		t.Errorf("retry = %v, want 1s", got)
	}

	clock.advance(time.Second)
	if !g.Allow("gemini", "m") {
		t.Error("channel still blocked after backoff elapsed")
	}
}

func TestConsecutiveFailuresDouble(t *testing.T) {
	g, clock := newTestGate(time.Second, time.Minute)

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}
	for i, w := range want {
		g.Failure("gemini", "m")
		if got := g.Retry("gemini", "m"); got != w {
			t.Errorf("failure %d: retry = %v, want %v", i+1, got, w)
		}
		clock.advance(w)
	}
}

func TestBackoffCapped(t *testing.T) {
	g, _ := newTestGate(time.Second, 4*time.Second)

	for i := 0; i < 10; i++ {
		g.Failure("gemini", "m")
	}
	if got := g.Retry("gemini", "m"); got != 4*time.Second {
		t.Errorf("retry = %v, want cap 4s", got)
	}
}

func TestSuccessResets(t *testing.T) {
	g, _ := newTestGate(time.Second, time.Minute)

	g.Failure("gemini", "m")
	g.Failure("gemini", "m")
	g.Success("gemini", "m")

	if !g.Allow("gemini", "m") {
		t.Error("channel blocked after success")
	}

	// The next failure starts over at the base interval.
	g.Failure("gemini", "m")
	if got := g.Retry("gemini", "m"); got != time.Second {
		t.Errorf("retry = %v, want base after reset", got)
	}
}

func TestChannelsIndependent(t *testing.T) {
	g, _ := newTestGate(time.Second, time.Minute)

	g.Failure("gemini", "a")
	if !g.Allow("gemini", "b") {
		t.Error("unrelated model blocked")
	}
	if !g.Allow("cloudcode", "a") {
		t.Error("same model on another provider blocked")
	}
}
