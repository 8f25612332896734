package timetable

import (
	"testing"
	"time"
)

func TestCutoverFirstHalf(t *testing.T) {
	c := Cutover{ChangeMonth: 10, ChangeDay: 9}

	tests := []struct {
		month time.Month
		day   int
		want  bool
	}{
		{time.October, 9, true},
		{time.October, 10, false},
		{time.February, 1, false},
		{time.April, 1, true},
		{time.September, 30, true},
		{time.March, 31, false},
		{time.October, 1, true},
		{time.November, 1, false},
		{time.December, 31, false},
		{time.January, 15, false},
	}
	for _, tt := range tests {
		at := time.Date(2025, tt.month, tt.day, 12, 0, 0, 0, time.UTC)
		if got := c.FirstHalf(at); got != tt.want {
			t.Errorf("FirstHalf(%s) = %v, want %v", at.Format("01-02"), got, tt.want)
		}
	}

	if got := c.Current(time.Date(2025, time.October, 10, 0, 0, 0, 0, time.UTC)); got != SemesterSecond {
		t.Errorf("Current(Oct 10) = %v, want second", got)
	}
}

func TestCutoverValidate(t *testing.T) {
	if err := (Cutover{ChangeMonth: 10, ChangeDay: 9}).Validate(); err != nil {
		t.Errorf("valid cutover rejected: %v", err)
	}
	for _, c := range []Cutover{{3, 1}, {13, 1}, {10, 0}, {10, 32}} {
		if err := c.Validate(); err == nil {
			t.Errorf("Validate(%+v) should fail", c)
		}
	}
}
