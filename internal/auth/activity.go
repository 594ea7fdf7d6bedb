package auth

import (
	"math"
	"time"
)

const DefaultInactivityThresholdDays = 30

// RecordLogin shifts the login window: the previous current login becomes the
// last login. On a first login both are set to now.
func (a *Account) RecordLogin(now time.Time) {
	now = now.UTC()
	if a.LastLoginAt == nil || a.CurrentLoginAt == nil {
		a.LastLoginAt = &now
		a.CurrentLoginAt = &now
		return
	}

	previous := *a.CurrentLoginAt
	a.LastLoginAt = &previous
	a.CurrentLoginAt = &now
}

// GapDays returns the whole days between the last and current login. ok is
// false while either timestamp is unknown.
func (a Account) GapDays() (days int, ok bool) {
	if a.LastLoginAt == nil || a.CurrentLoginAt == nil {
		return 0, false
	}

	gap := a.CurrentLoginAt.Sub(*a.LastLoginAt)
	if gap <= 0 {
		return 0, true
	}
	return int(math.Floor(gap.Hours() / 24)), true
}

// ActivityPolicy deactivates accounts whose login gap exceeds ThresholdDays.
// It never reactivates an account.
type ActivityPolicy struct {
	ThresholdDays int
}

func DefaultActivityPolicy() ActivityPolicy {
	return ActivityPolicy{ThresholdDays: DefaultInactivityThresholdDays}
}

// Apply reports whether it changed the account from active to inactive.
func (p ActivityPolicy) Apply(a *Account) bool {
	if a.Status == StatusInactive {
		return false
	}

	gap, ok := a.GapDays()
	if !ok || gap <= p.ThresholdDays {
		return false
	}

	a.Status = StatusInactive
	return true
}
