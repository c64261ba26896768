package domain

import (
	"time"
)

const Day = 24 * time.Hour

// DayRelation describes how far apart two instants are in claim windows.
type DayRelation int

const (
	SameDay DayRelation = iota
	Consecutive
	Gap
)

func (r DayRelation) String() string {
	switch r {
	case SameDay:
		return "same_day"
	case Consecutive:
		return "consecutive"
	default:
		return "gap"
	}
}

type Outcome string

const (
	OutcomeClaimed        Outcome = "CLAIMED"
	OutcomeAlreadyClaimed Outcome = "ALREADY_CLAIMED"
	OutcomeStreakLost     Outcome = "STREAK_LOST"
)

func (o Outcome) Message() string {
	switch o {
	case OutcomeClaimed:
		return "streak claimed, keep it up"
	case OutcomeAlreadyClaimed:
		return "streak already claimed for today"
	case OutcomeStreakLost:
		return "streak lost, starting again from day one"
	default:
		return ""
	}
}

type StreakState struct {
	Streak          int
	LastLogin       *time.Time
	StreakClaimedOn *time.Time
}

type DayClassifier interface {
	Classify(reference, previous time.Time) DayRelation
}

// Classify measures the absolute elapsed time between the two instants in
// 24h units: under one is SameDay, under two is Consecutive, anything else
// is Gap. Wall-clock dates are ignored.
func Classify(reference, previous time.Time) DayRelation {
	diff := reference.Sub(previous)
	if diff < 0 {
		diff = -diff
	}

	switch {
	case diff < Day:
		return SameDay
	case diff < 2*Day:
		return Consecutive
	default:
		return Gap
	}
}

type ElapsedDayClassifier struct{}

func (ElapsedDayClassifier) Classify(reference, previous time.Time) DayRelation {
	return Classify(reference, previous)
}

// ActiveSince is the earliest last claim that is not a Gap at now.
func (ElapsedDayClassifier) ActiveSince(now time.Time) time.Time {
	return now.Add(-2 * Day).Add(time.Nanosecond)
}

// CalendarDayClassifier compares calendar dates in Location, so 23:50 and
// 00:10 the next morning are Consecutive rather than SameDay.
type CalendarDayClassifier struct {
	Location *time.Location
}

func (c CalendarDayClassifier) Classify(reference, previous time.Time) DayRelation {
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}

	days := calendarDaysBetween(reference.In(loc), previous.In(loc))
	if days < 0 {
		days = -days
	}

	switch days {
	case 0:
		return SameDay
	case 1:
		return Consecutive
	default:
		return Gap
	}
}

// ActiveSince is midnight of the previous calendar day in Location.
func (c CalendarDayClassifier) ActiveSince(now time.Time) time.Time {
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := now.In(loc).Date()
	return time.Date(y, m, d-1, 0, 0, 0, 0, loc)
}

func calendarDaysBetween(a, b time.Time) int {
	// Dates are rebuilt at UTC midnight so DST shifts do not skew the count.
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(da.Sub(db) / Day)
}

// StreakPolicy is the streak state machine bound to a DayClassifier.
// The zero value classifies by elapsed time.
type StreakPolicy struct {
	Classifier DayClassifier
}

func NewStreakPolicy(c DayClassifier) StreakPolicy {
	return StreakPolicy{Classifier: c}
}

func (p StreakPolicy) classify(reference, previous time.Time) DayRelation {
	if p.Classifier == nil {
		return Classify(reference, previous)
	}
	return p.Classifier.Classify(reference, previous)
}

// ActivityWindow is implemented by classifiers that can tell how far back a
// last claim may lie and still be continued at now.
type ActivityWindow interface {
	ActiveSince(now time.Time) time.Time
}

// ActiveSince returns the cutoff below which a streak is already lost at
// now. Classifiers without an ActivityWindow fall back to elapsed time.
func (p StreakPolicy) ActiveSince(now time.Time) time.Time {
	if w, ok := p.Classifier.(ActivityWindow); ok {
		return w.ActiveSince(now)
	}
	return ElapsedDayClassifier{}.ActiveSince(now)
}

// Decide computes the state a claim at now would produce. It never fails
// and has no side effects.
func (p StreakPolicy) Decide(now time.Time, state StreakState) (StreakState, Outcome) {
	if state.LastLogin == nil || p.classify(now, *state.LastLogin) == Gap {
		return freshState(now, 1), OutcomeStreakLost
	}

	if state.StreakClaimedOn != nil && p.classify(now, *state.StreakClaimedOn) == SameDay {
		return state, OutcomeAlreadyClaimed
	}

	return freshState(now, state.Streak+1), OutcomeClaimed
}

// Decide runs the default elapsed-time policy.
func Decide(now time.Time, state StreakState) (StreakState, Outcome) {
	return StreakPolicy{}.Decide(now, state)
}

func freshState(now time.Time, streak int) StreakState {
	lastLogin := now
	claimedOn := now
	return StreakState{
		Streak:          streak,
		LastLogin:       &lastLogin,
		StreakClaimedOn: &claimedOn,
	}
}
