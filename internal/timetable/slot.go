package timetable

import (
	"fmt"
	"strconv"
	"time"
)

const (
	Days       = 5
	PeriodsDay = 6
	SlotCount  = Days * PeriodsDay

	// KeyOffset maps slot 0 to the stored field key "101".
	KeyOffset = 101
)

// Empty marks a slot without a course.
const Empty = "空きコマ"

var DayNames = [Days]string{"月曜日", "火曜日", "水曜日", "木曜日", "金曜日"}

// Slot is a cell of the weekly grid, 0..29.
type Slot int

func SlotAt(day, period int) Slot {
	return Slot(day*PeriodsDay + period)
}

func (s Slot) Valid() bool { return s >= 0 && s < SlotCount }

func (s Slot) Day() int    { return int(s) / PeriodsDay }
func (s Slot) Period() int { return int(s) % PeriodsDay }

// Key is the external field key, 101..130.
func (s Slot) Key() string { return strconv.Itoa(int(s) + KeyOffset) }

// PeriodLabel renders the displayed period range, e.g. "3-4限".
func (s Slot) PeriodLabel() string {
	p := s.Period()
	return fmt.Sprintf("%d-%d限", 2*p+1, 2*p+2)
}

func (s Slot) String() string {
	if !s.Valid() {
		return fmt.Sprintf("slot(%d)", int(s))
	}
	return DayNames[s.Day()] + " " + s.PeriodLabel()
}

// SlotFromKey parses an external key ("101".."130").
func SlotFromKey(key string) (Slot, error) {
	n, err := strconv.Atoi(key)
	if err != nil {
		return 0, &InvalidSlotError{Input: key}
	}
	s := Slot(n - KeyOffset)
	if !s.Valid() {
		return 0, &InvalidSlotError{Input: key}
	}
	return s, nil
}

// DayIndex converts a weekday into a grid day, false on weekends.
func DayIndex(w time.Weekday) (int, bool) {
	if w < time.Monday || w > time.Friday {
		return 0, false
	}
	return int(w - time.Monday), true
}
