// Package deadline computes when a student must hand in a proof for their last unjustified absence.
package deadline

import "time"

const (
	returnHour      = 8 // students are expected back at 08:00
	gracePeriodDays = 2 // business days granted after the return date
)

// Result of a deadline computation. When Applicable is false, there is nothing to justify.
type Result struct {
	Applicable  bool      `json:"applicable"`
	LastAbsence time.Time `json:"last_absence,omitempty"`
	ReturnDate  time.Time `json:"return_date,omitempty"`
	Deadline    time.Time `json:"deadline,omitempty"`
	IsLate      bool      `json:"is_late"`
}

// Remaining returns the time left before the deadline (negative once late).
func (res Result) Remaining(now time.Time) time.Duration {
	if !res.Applicable {
		return 0
	}
	return res.Deadline.Sub(now)
}

// HoursRemaining is Remaining rounded down to whole hours.
func (res Result) HoursRemaining(now time.Time) int {
	return int(res.Remaining(now) / time.Hour)
}

// Compute evaluates the deadline for the last unjustified absence in loc.
// A nil last absence yields a non applicable result.
func Compute(last *time.Time, now time.Time, loc *time.Location) Result {
	if last == nil {
		return Result{}
	}
	if loc == nil {
		loc = time.UTC
	}

	ret := ReturnDate(*last, loc)
	dl := AddBusinessDays(ret, gracePeriodDays)
	return Result{
		Applicable:  true,
		LastAbsence: last.In(loc),
		ReturnDate:  ret,
		Deadline:    dl,
		IsLate:      now.After(dl),
	}
}

// ReturnDate is the next class day after t, at 08:00 in loc.
// Friday +3 days, Saturday +2, any other day +1.
func ReturnDate(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)

	days := 1
	switch t.Weekday() {
	case time.Friday:
		days = 3
	case time.Saturday:
		days = 2
	}
	return time.Date(t.Year(), t.Month(), t.Day()+days, returnHour, 0, 0, 0, loc)
}

// AddBusinessDays advances t one calendar day at a time, counting only Monday to Friday.
// The time of day is preserved across DST changes.
func AddBusinessDays(t time.Time, n int) time.Time {
	for added := 0; added < n; {
		t = t.AddDate(0, 0, 1)
		if !IsWeekend(t) {
			added++
		}
	}
	return t
}

func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
