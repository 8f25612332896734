package timetable

import "sort"

// Grid is the weekly timetable; every cell holds a course name or Empty.
type Grid [SlotCount]string

func NewGrid() Grid {
	var g Grid
	for i := range g {
		g[i] = Empty
	}
	return g
}

func (g Grid) At(s Slot) string { return g[s] }

// Courses returns the set of non-empty course names in the grid.
func (g Grid) Courses() map[string]bool {
	set := make(map[string]bool)
	for _, name := range g {
		if name != Empty && name != "" {
			set[name] = true
		}
	}
	return set
}

// SlotsOf returns every slot holding name.
func (g Grid) SlotsOf(name string) []Slot {
	var out []Slot
	for i, n := range g {
		if n == name {
			out = append(out, Slot(i))
		}
	}
	return out
}

// DaySlots returns the six slots of a day in period order.
func DaySlots(day int) []Slot {
	out := make([]Slot, PeriodsDay)
	for p := range out {
		out[p] = SlotAt(day, p)
	}
	return out
}

// Fields converts the grid into its stored form, keyed "101".."130".
func (g Grid) Fields() map[string]string {
	m := make(map[string]string, SlotCount)
	for i, name := range g {
		m[Slot(i).Key()] = name
	}
	return m
}

// GridFromFields rebuilds a grid from stored fields. Missing keys are Empty.
func GridFromFields(fields map[string]string) Grid {
	g := NewGrid()
	for i := range g {
		if name, ok := fields[Slot(i).Key()]; ok && name != "" {
			g[i] = name
		}
	}
	return g
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
