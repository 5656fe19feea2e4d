package clock

import (
	"sync"
	"time"

	"github.com/example/studytracker/pkg/models"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// Real is the system clock.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

// Today returns the current calendar day of c.
func Today(c Clock) models.Date {
	return models.DateOf(c.Now())
}

// Fixed is a settable clock for tests.
type Fixed struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixed returns a clock frozen at t.
func NewFixed(t time.Time) *Fixed {
	return &Fixed{now: t}
}

// AtDate returns a clock frozen at noon of d.
func AtDate(d models.Date) *Fixed {
	return NewFixed(d.Start(time.UTC).Add(12 * time.Hour))
}

func (f *Fixed) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Set moves the clock to t.
func (f *Fixed) Set(t time.Time) {
	f.mu.Lock()
	f.now = t
	f.mu.Unlock()
}

// SetDate moves the clock to noon of d.
func (f *Fixed) SetDate(d models.Date) {
	f.Set(d.Start(time.UTC).Add(12 * time.Hour))
}
