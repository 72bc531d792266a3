// Package quota enforces the daily caps on kudos and WTF feedback events.
//
// Both counters share one reset timestamp. A call that finds the window
// elapsed resets the counters before it evaluates the limit, so a stale
// window never suppresses a legitimate reset.
package quota

import (
	"fmt"
	"time"

	"github.com/MikeSquared-Agency/roster/internal/persona"
)

// DefaultWindow is the length of one quota window.
const DefaultWindow = 24 * time.Hour

// Kind selects the counter an event consumes.
type Kind string

const (
	Kudos Kind = "kudos"
	Wtf   Kind = "wtf"
)

// KindFor maps a quota-gated activity type to its counter.
func KindFor(t persona.ActivityType) (Kind, bool) {
	switch t {
	case persona.ActivityKudosReceived:
		return Kudos, true
	case persona.ActivityWtfReceived:
		return Wtf, true
	default:
		return "", false
	}
}

// Tracker applies quota rules to a persona record. It does no locking; the
// caller holds the persona's critical section.
type Tracker struct {
	Window time.Duration
	Clock  persona.Clock
}

// New returns a Tracker. A non-positive window falls back to DefaultWindow.
func New(window time.Duration, clock persona.Clock) *Tracker {
	if window <= 0 {
		window = DefaultWindow
	}
	if clock == nil {
		clock = persona.SystemClock{}
	}
	return &Tracker{Window: window, Clock: clock}
}

// CheckAndConsume resets p's counters if the window has elapsed, then takes
// one slot of kind. It returns the counter value after consumption. When the
// counter is already at or above dailyLimit it returns ErrQuotaExceeded and
// leaves the counters as they were after any reset. A negative limit is
// unlimited.
func (t *Tracker) CheckAndConsume(p *persona.ProjectPersona, kind Kind, dailyLimit int) (int, error) {
	counter, err := counterFor(p, kind)
	if err != nil {
		return 0, err
	}

	now := t.Clock.Now()
	if t.windowElapsed(p.LastQuotaReset, now) {
		p.KudosQuotaUsed = 0
		p.WtfQuotaUsed = 0
		p.LastQuotaReset = now
	}

	if dailyLimit >= 0 && *counter >= dailyLimit {
		return *counter, fmt.Errorf("%s %d/%d: %w", kind, *counter, dailyLimit, persona.ErrQuotaExceeded)
	}

	*counter++
	return *counter, nil
}

// Remaining reports how many events of kind p can still receive in the
// current window without mutating p. Unlimited quotas report -1.
func (t *Tracker) Remaining(p persona.ProjectPersona, kind Kind, dailyLimit int) int {
	if dailyLimit < 0 {
		return persona.UnlimitedQuota
	}
	used := p.KudosQuotaUsed
	if kind == Wtf {
		used = p.WtfQuotaUsed
	}
	if t.windowElapsed(p.LastQuotaReset, t.Clock.Now()) {
		used = 0
	}
	if used >= dailyLimit {
		return 0
	}
	return dailyLimit - used
}

// NextReset returns when p's current window ends. Like Remaining it reports
// the post-reset view: an elapsed window is treated as restarting now.
func (t *Tracker) NextReset(p persona.ProjectPersona) time.Time {
	now := t.Clock.Now()
	if t.windowElapsed(p.LastQuotaReset, now) {
		return now.Add(t.Window)
	}
	return p.LastQuotaReset.Add(t.Window)
}

func (t *Tracker) windowElapsed(last, now time.Time) bool {
	return !now.Before(last.Add(t.Window))
}

func counterFor(p *persona.ProjectPersona, kind Kind) (*int, error) {
	switch kind {
	case Kudos:
		return &p.KudosQuotaUsed, nil
	case Wtf:
		return &p.WtfQuotaUsed, nil
	default:
		return nil, fmt.Errorf("quota kind %q: %w", kind, persona.ErrInvalidInput)
	}
}
