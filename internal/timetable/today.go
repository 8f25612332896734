package timetable

import "time"

// RecordToday adds one day's absence for every course scheduled on weekday:
// 2 for even credit weights, 1 otherwise. Values in the delta are absolute.
func RecordToday(grid Grid, ledger Ledger, r Resolver, weekday time.Weekday) (Delta, error) {
	day, ok := DayIndex(weekday)
	if !ok {
		return Delta{}, ErrNoClassDay
	}

	var d Delta
	for _, s := range DaySlots(day) {
		name := grid[s]
		if name == Empty {
			continue
		}
		e, err := r.Resolve(name)
		if err != nil {
			return Delta{}, err
		}
		base, seen := d.Set[name]
		if !seen {
			base = ledger[name]
		}
		d.set(name, base+e.Weight())
	}
	return d, nil
}
