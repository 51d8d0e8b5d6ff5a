package service

import (
	"time"
)

// daysOverdue counts whole calendar days between due and returned, both
// truncated to UTC dates first (DATEDIFF semantics, so DST shifts and
// time-of-day never change the count). Returns on or before the due date
// count as zero.
func daysOverdue(due, returned time.Time) int {
	days := int(utcDate(returned).Sub(utcDate(due)).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

func utcDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// calcFine is the only fine rule in the system: overdue days times the
// per-day rate, zero floored.
func calcFine(due, returned time.Time, finePerDay float64) float64 {
	return float64(daysOverdue(due, returned)) * finePerDay
}
