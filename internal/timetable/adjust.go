package timetable

import "fmt"

// Adjust changes a course's count by sign*scale. A decrement that would go
// below zero is ignored and yields an empty delta.
func Adjust(ledger Ledger, name string, sign, scale int) (Delta, error) {
	if sign != 1 && sign != -1 {
		return Delta{}, fmt.Errorf("adjust sign must be +1 or -1, got %d", sign)
	}
	if scale <= 0 {
		return Delta{}, fmt.Errorf("adjust scale must be positive, got %d", scale)
	}
	current, ok := ledger[name]
	if !ok {
		return Delta{}, fmt.Errorf("%q: %w", name, ErrNotScheduled)
	}
	if sign < 0 && current-scale < 0 {
		return Delta{}, nil
	}
	var d Delta
	d.set(name, current+sign*scale)
	return d, nil
}
