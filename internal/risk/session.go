package risk

import (
	"time"

	"forexbot/internal/domain"
)

// SessionState is the only mutable state of the trading loop. It is never persisted.
type SessionState struct {
	DailyRealizedLoss float64
	LastResetDate     time.Time // Local midnight of the day the accumulator was last reset
}

// NewSessionState starts a session on the calendar day of now with an empty accumulator.
func NewSessionState(now time.Time) *SessionState {
	return &SessionState{LastResetDate: StartOfDay(now)}
}

// ResetIfDue zeroes the accumulator when the calendar date of now is past LastResetDate
// and the hour has reached resetHour. It reports whether a reset happened; after one
// reset the same day it is a no-op.
func (s *SessionState) ResetIfDue(now time.Time, resetHour int) bool {
	today := StartOfDay(now)
	if !today.After(s.LastResetDate) || now.Hour() < resetHour {
		return false
	}
	s.DailyRealizedLoss = 0
	s.LastResetDate = today
	return true
}

// LimitReached reports whether the accumulator is at or above maxLoss.
func (s *SessionState) LimitReached(maxLoss float64) bool {
	return s.DailyRealizedLoss >= maxLoss
}

// RealizedLoss sums the magnitude of the losing trade deals tagged with magic.
// Profitable deals, balance operations and other strategies' deals contribute nothing.
func RealizedLoss(deals []*domain.Deal, magic int64) float64 {
	var loss float64
	for _, d := range deals {
		if d == nil || d.Magic != magic || !d.IsTrade() {
			continue
		}
		if d.Profit < 0 {
			loss += -d.Profit
		}
	}
	return loss
}

// StartOfDay returns local midnight of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
