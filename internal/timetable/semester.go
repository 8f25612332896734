package timetable

import (
	"fmt"
	"time"
)

// Cutover is the date on which the second semester starts: the first
// semester runs from April through ChangeMonth/ChangeDay inclusive.
type Cutover struct {
	ChangeMonth int
	ChangeDay   int
}

func (c Cutover) Validate() error {
	if c.ChangeMonth < 4 || c.ChangeMonth > 12 {
		return fmt.Errorf("semester change month %d must be in 4..12", c.ChangeMonth)
	}
	if c.ChangeDay < 1 || c.ChangeDay > 31 {
		return fmt.Errorf("semester change day %d must be in 1..31", c.ChangeDay)
	}
	return nil
}

// FirstHalf reports whether t falls in the first semester.
func (c Cutover) FirstHalf(t time.Time) bool {
	m := int(t.Month())
	switch {
	case m <= 3:
		return false
	case m < c.ChangeMonth:
		return true
	case m == c.ChangeMonth:
		return t.Day() <= c.ChangeDay
	default:
		return false
	}
}

func (c Cutover) Current(t time.Time) Semester {
	if c.FirstHalf(t) {
		return SemesterFirst
	}
	return SemesterSecond
}
