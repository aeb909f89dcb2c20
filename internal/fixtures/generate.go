package fixtures

import (
	"fmt"
	"sync"
	"time"
)

// Clock abstracts time.Now for the generators.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Generator builds unique patient values from a millisecond timestamp.
// Two calls within the same millisecond collide.
type Generator struct {
	clock Clock
}

// NewGenerator returns a generator reading from clock (system clock when nil).
func NewGenerator(clock Clock) *Generator {
	if clock == nil {
		clock = systemClock{}
	}
	return &Generator{clock: clock}
}

// PatientName returns prefix_<unix-ms>.
func (g *Generator) PatientName(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, g.clock.Now().UnixMilli())
}

// PatientPhone returns prefix followed by the last four digits of the unix-ms timestamp.
func (g *Generator) PatientPhone(prefix string) string {
	return fmt.Sprintf("%s%04d", prefix, g.clock.Now().UnixMilli()%10000)
}

var systemGenerator = NewGenerator(nil)

// GeneratePatientName is PatientName on the system clock.
func GeneratePatientName(prefix string) string {
	return systemGenerator.PatientName(prefix)
}

// GeneratePatientPhone is PatientPhone on the system clock.
func GeneratePatientPhone(prefix string) string {
	return systemGenerator.PatientPhone(prefix)
}

// FakeClock is a controllable Clock for tests.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock creates a FakeClock frozen at t.
func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{now: t}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
