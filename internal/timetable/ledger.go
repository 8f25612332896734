package timetable

import "sort"

// Ledger maps a course name to its absence count.
type Ledger map[string]int

func (l Ledger) Clone() Ledger {
	out := make(Ledger, len(l))
	for k, v := range l {
		out[k] = v
	}
	return out
}

func (l Ledger) Total() int {
	sum := 0
	for _, v := range l {
		sum += v
	}
	return sum
}

// Apply returns a copy of l with d applied. Deletes run before sets.
func (l Ledger) Apply(d Delta) Ledger {
	out := l.Clone()
	for _, name := range d.Delete {
		delete(out, name)
	}
	for name, v := range d.Set {
		out[name] = v
	}
	return out
}

// Snapshot returns the current values of the names d touches, as a delta
// that restores them: present names are set back, absent ones deleted.
func (l Ledger) Snapshot(d Delta) Delta {
	var undo Delta
	restore := func(name string) {
		if v, ok := l[name]; ok {
			undo.set(name, v)
		} else {
			undo.del(name)
		}
	}
	for _, name := range d.Delete {
		restore(name)
	}
	for _, name := range d.SetNames() {
		restore(name)
	}
	return undo
}

// Delta is a set of ledger upserts and field deletions.
type Delta struct {
	Set    map[string]int
	Delete []string
}

func (d Delta) IsEmpty() bool { return len(d.Set) == 0 && len(d.Delete) == 0 }

// SetNames returns the upserted names in sorted order.
func (d Delta) SetNames() []string {
	out := make([]string, 0, len(d.Set))
	for k := range d.Set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (d *Delta) set(name string, v int) {
	if d.Set == nil {
		d.Set = make(map[string]int)
	}
	d.Set[name] = v
	d.Delete = remove(d.Delete, name)
}

func (d *Delta) del(name string) {
	for _, n := range d.Delete {
		if n == name {
			return
		}
	}
	delete(d.Set, name)
	d.Delete = append(d.Delete, name)
	sort.Strings(d.Delete)
}

func remove(list []string, name string) []string {
	out := make([]string, 0, len(list))
	for _, n := range list {
		if n != name {
			out = append(out, n)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Semester selects a ledger partition.
type Semester int

const (
	SemesterNone Semester = iota
	SemesterFirst
	SemesterSecond
)

func (s Semester) String() string {
	switch s {
	case SemesterFirst:
		return "前期"
	case SemesterSecond:
		return "後期"
	default:
		return "通年"
	}
}

// Ledgers holds either a single ledger or a first/second semester pair.
type Ledgers struct {
	Split  bool
	Single Ledger
	First  Ledger
	Second Ledger
}

// Partitions lists the semesters a user's ledger is stored under.
func (ls Ledgers) Partitions() []Semester {
	if ls.Split {
		return []Semester{SemesterFirst, SemesterSecond}
	}
	return []Semester{SemesterNone}
}

func (ls Ledgers) Of(s Semester) Ledger {
	switch s {
	case SemesterFirst:
		return ls.First
	case SemesterSecond:
		return ls.Second
	default:
		return ls.Single
	}
}

// Active returns the partition that "now" edits target.
func (ls Ledgers) Active(current Semester) Semester {
	if !ls.Split {
		return SemesterNone
	}
	return current
}

// Annual merges the two semesters by summing per course.
func (ls Ledgers) Annual() Ledger {
	if !ls.Split {
		return ls.Single.Clone()
	}
	out := ls.First.Clone()
	for k, v := range ls.Second {
		out[k] += v
	}
	return out
}
