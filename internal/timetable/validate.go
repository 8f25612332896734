package timetable

import (
	"fmt"
	"sort"
)

// Problem describes one broken invariant in a user's state.
type Problem struct {
	Slot    Slot // -1 when not tied to a slot
	Course  string
	Message string
}

func (p Problem) String() string {
	if p.Slot >= 0 {
		return fmt.Sprintf("%s [%s]: %s", p.Slot, p.Course, p.Message)
	}
	return fmt.Sprintf("[%s]: %s", p.Course, p.Message)
}

// Validate checks a grid and one ledger partition against the catalog.
func Validate(grid Grid, ledger Ledger, r Resolver) []Problem {
	var out []Problem
	seen := make(map[string]bool)

	for i, name := range grid {
		s := Slot(i)
		if name == Empty {
			continue
		}
		if name == "" {
			out = append(out, Problem{Slot: s, Message: "blank slot value"})
			continue
		}
		e, err := r.Resolve(name)
		if err != nil {
			out = append(out, Problem{Slot: s, Course: name, Message: "not in catalog"})
			continue
		}
		if !e.IsDouble() || seen[name] {
			continue
		}
		seen[name] = true
		s1, s2 := e.CanonicalSlots()
		for _, at := range grid.SlotsOf(name) {
			if at != s1 && at != s2 {
				out = append(out, Problem{Slot: at, Course: name, Message: "outside canonical slots"})
			}
		}
		if grid[s1] != name || grid[s2] != name {
			out = append(out, Problem{Slot: -1, Course: name, Message: fmt.Sprintf("half pair: needs %s and %s", s1, s2)})
		}
	}

	placed := grid.Courses()
	for _, name := range sortedKeys(placed) {
		if _, ok := ledger[name]; !ok {
			out = append(out, Problem{Slot: -1, Course: name, Message: "missing ledger entry"})
		}
	}
	names := make([]string, 0, len(ledger))
	for name := range ledger {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !placed[name] {
			out = append(out, Problem{Slot: -1, Course: name, Message: "ledger entry for unscheduled course"})
		}
		if ledger[name] < 0 {
			out = append(out, Problem{Slot: -1, Course: name, Message: "negative count"})
		}
	}
	return out
}
