package timetable

// EditOptions tunes ledger reconciliation.
type EditOptions struct {
	// PreserveCount keeps an existing count when a course is placed again.
	// The default resets it to zero.
	PreserveCount bool
}

// Edit is the outcome of ApplyEdit: the full next grid and the ledger
// changes that must be persisted with it.
type Edit struct {
	Grid    Grid
	Delta   Delta
	Changed bool
}

// ApplyEdit places name at slot and reconciles the ledger. It performs no
// I/O and never returns a partially applied grid.
func ApplyEdit(grid Grid, ledger Ledger, slot Slot, name string, r Resolver, opts EditOptions) (Edit, error) {
	if !slot.Valid() {
		return Edit{}, &InvalidSlotError{Slot: slot}
	}

	var next Entry
	if name != Empty {
		e, err := r.Resolve(name)
		if err != nil {
			return Edit{}, err
		}
		next = e
	}

	current := grid[slot]
	if name == current {
		return Edit{Grid: grid}, nil
	}

	var cur Entry
	if current != Empty {
		e, err := r.Resolve(current)
		if err != nil {
			return Edit{}, err
		}
		cur = e
	}

	out := grid
	var partner Slot
	if cur.IsDouble() {
		partner = cur.Partner(slot)
	}

	if next.IsDouble() {
		s1, s2 := next.CanonicalSlots()
		if slot != s1 && slot != s2 {
			return Edit{}, &InvalidPlacementError{Course: name, Slot: slot}
		}

		// Anything double-credit that loses a slot to the new course, or
		// that sits in the current course's partner slot, is evicted whole.
		// A 4-credit course in the grid always holds both its canonical
		// slots, so the ledger never keeps a course with only half a pair.
		evict := []string{out[s1], out[s2]}
		if cur.IsDouble() {
			evict = append(evict, out[partner])
		}
		for _, victim := range evict {
			if victim == Empty || victim == name {
				continue
			}
			ve, err := r.Resolve(victim)
			if err != nil {
				return Edit{}, err
			}
			if !ve.IsDouble() {
				continue
			}
			v1, v2 := ve.CanonicalSlots()
			if out[v1] == victim {
				out[v1] = Empty
			}
			if out[v2] == victim {
				out[v2] = Empty
			}
		}

		out[s1] = name
		out[s2] = name
		if cur.IsDouble() && partner != s1 && partner != s2 {
			out[partner] = Empty
		}
	} else if cur.IsDouble() {
		out[partner] = Empty
	}

	out[slot] = name

	return Edit{
		Grid:    out,
		Delta:   reconcile(grid, out, ledger, name, opts),
		Changed: true,
	}, nil
}

// reconcile deletes every course that left the grid and registers the
// placed course. For well-formed grids the removed set is exactly the
// displaced pair of a double-credit placement, or the replaced course.
func reconcile(before, after Grid, ledger Ledger, placed string, opts EditOptions) Delta {
	var d Delta
	remaining := after.Courses()
	for _, name := range sortedKeys(before.Courses()) {
		if !remaining[name] {
			d.del(name)
		}
	}
	if placed != Empty {
		if _, ok := ledger[placed]; !ok || !opts.PreserveCount {
			d.set(placed, 0)
		}
	}
	return d
}
