package timetable

import (
	"fmt"
	"sort"
)

const (
	CreditSingle = 1
	CreditDouble = 4
)

// Entry is the scheduling metadata of one course.
type Entry struct {
	Name   string
	Credit int
	Day1   int
	Day2   int // only meaningful when Credit == CreditDouble
	Period int
	// Offered lists the slots where a single-credit course is shown as an
	// option. Double-credit courses are offered at their canonical slots.
	Offered []Slot
}

func (e Entry) IsDouble() bool { return e.Credit == CreditDouble }

// CanonicalSlots returns the two slots a double-credit course occupies.
func (e Entry) CanonicalSlots() (Slot, Slot) {
	return SlotAt(e.Day1, e.Period), SlotAt(e.Day2, e.Period)
}

// Partner returns the canonical slot other than s. Slots that are not
// canonical map to the first canonical slot.
func (e Entry) Partner(s Slot) Slot {
	s1, s2 := e.CanonicalSlots()
	if s == s1 {
		return s2
	}
	return s1
}

// Weight is the absence increment for one missed slot of this course.
func (e Entry) Weight() int {
	if e.Credit%2 == 0 {
		return 2
	}
	return 1
}

func (e Entry) validate() error {
	if e.Name == "" || e.Name == Empty {
		return fmt.Errorf("invalid course name %q", e.Name)
	}
	if e.Period < 0 || e.Period >= PeriodsDay {
		return fmt.Errorf("course %q: period %d out of range 0..%d", e.Name, e.Period, PeriodsDay-1)
	}
	switch e.Credit {
	case CreditSingle:
	case CreditDouble:
		if e.Day1 < 0 || e.Day1 >= Days || e.Day2 < 0 || e.Day2 >= Days {
			return fmt.Errorf("course %q: days %d/%d out of range 0..%d", e.Name, e.Day1, e.Day2, Days-1)
		}
		if e.Day1 == e.Day2 {
			return fmt.Errorf("course %q: day1 and day2 must differ", e.Name)
		}
	default:
		return fmt.Errorf("course %q: credit must be %d or %d, got %d", e.Name, CreditSingle, CreditDouble, e.Credit)
	}
	for _, s := range e.Offered {
		if !s.Valid() {
			return fmt.Errorf("course %q: %w", e.Name, &InvalidSlotError{Slot: s})
		}
	}
	return nil
}

// Resolver looks up course metadata by name.
type Resolver interface {
	Resolve(name string) (Entry, error)
}

// Catalog is an immutable set of courses. Safe for concurrent reads.
type Catalog struct {
	entries map[string]Entry
	offered [SlotCount][]string
}

func NewCatalog(entries []Entry) (*Catalog, error) {
	c := &Catalog{entries: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		if err := e.validate(); err != nil {
			return nil, err
		}
		if _, dup := c.entries[e.Name]; dup {
			return nil, fmt.Errorf("duplicate course %q", e.Name)
		}
		c.entries[e.Name] = e

		if e.IsDouble() {
			s1, s2 := e.CanonicalSlots()
			c.offered[s1] = append(c.offered[s1], e.Name)
			c.offered[s2] = append(c.offered[s2], e.Name)
			continue
		}
		for _, s := range e.Offered {
			c.offered[s] = append(c.offered[s], e.Name)
		}
	}
	for i := range c.offered {
		sort.Strings(c.offered[i])
	}
	return c, nil
}

func (c *Catalog) Resolve(name string) (Entry, error) {
	e, ok := c.entries[name]
	if !ok {
		return Entry{}, &UnknownCourseError{Name: name}
	}
	return e, nil
}

// Options returns the choices for a slot; index 0 is always Empty.
func (c *Catalog) Options(s Slot) ([]string, error) {
	if !s.Valid() {
		return nil, &InvalidSlotError{Slot: s}
	}
	out := make([]string, 0, len(c.offered[s])+1)
	out = append(out, Empty)
	return append(out, c.offered[s]...), nil
}

func (c *Catalog) Len() int { return len(c.entries) }

// Names returns all course names in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.entries))
	for n := range c.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
