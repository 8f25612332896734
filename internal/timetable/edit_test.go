package timetable

import (
	"errors"
	"math/rand"
	"reflect"
	"testing"
)

func mustEdit(t *testing.T, c *Catalog, g Grid, l Ledger, s Slot, name string) Edit {
	t.Helper()
	ed, err := ApplyEdit(g, l, s, name, c, EditOptions{})
	if err != nil {
		t.Fatalf("ApplyEdit(%d, %q): %v", s, name, err)
	}
	return ed
}

func assertCoverage(t *testing.T, g Grid, l Ledger) {
	t.Helper()
	placed := g.Courses()
	if len(placed) != len(l) {
		t.Fatalf("ledger %v does not cover grid courses %v", l, placed)
	}
	for name := range l {
		if !placed[name] {
			t.Fatalf("ledger has %q which is not in the grid", name)
		}
	}
}

func TestApplyEditDoublePlacement(t *testing.T) {
	c := testCatalog(t)
	for _, name := range []string{"B", "D", "E"} {
		e, _ := c.Resolve(name)
		s1, s2 := e.CanonicalSlots()
		for _, s := range []Slot{s1, s2} {
			ed := mustEdit(t, c, NewGrid(), Ledger{}, s, name)
			if ed.Grid[s1] != name || ed.Grid[s2] != name {
				t.Errorf("%s at %d: canonical slots hold %q/%q", name, s, ed.Grid[s1], ed.Grid[s2])
			}
			if got := len(ed.Grid.SlotsOf(name)); got != 2 {
				t.Errorf("%s occupies %d slots, want 2", name, got)
			}
		}
	}
}

func TestApplyEditNoOp(t *testing.T) {
	c := testCatalog(t)
	g := NewGrid()
	g[5] = "A"
	l := Ledger{"A": 3}

	for _, s := range []Slot{5, 0} {
		ed := mustEdit(t, c, g, l, s, g[s])
		if ed.Changed || ed.Grid != g || !ed.Delta.IsEmpty() {
			t.Errorf("slot %d: expected no-op, got %+v", s, ed)
		}
	}
}

func TestApplyEditIdempotent(t *testing.T) {
	c := testCatalog(t)
	g, l := NewGrid(), Ledger{}

	first := mustEdit(t, c, g, l, 14, "D")
	second := mustEdit(t, c, first.Grid, l.Apply(first.Delta), 14, "D")
	if second.Changed || !second.Delta.IsEmpty() || second.Grid != first.Grid {
		t.Errorf("second edit should be a no-op, got %+v", second)
	}
}

func TestApplyEditRemoveSingle(t *testing.T) {
	c := testCatalog(t)
	g := NewGrid()
	g[5] = "A"

	ed := mustEdit(t, c, g, Ledger{"A": 2}, 5, Empty)
	if ed.Grid[5] != Empty {
		t.Errorf("grid[5] = %q, want Empty", ed.Grid[5])
	}
	want := Delta{Delete: []string{"A"}}
	if !reflect.DeepEqual(ed.Delta, want) {
		t.Errorf("delta = %+v, want %+v", ed.Delta, want)
	}
}

func TestApplyEditReplaceDoubleWithSingle(t *testing.T) {
	c := testCatalog(t)
	g := NewGrid()
	g[2], g[14] = "B", "B"

	ed := mustEdit(t, c, g, Ledger{"B": 4}, 2, "C")
	if ed.Grid[2] != "C" || ed.Grid[14] != Empty {
		t.Errorf("grid[2]=%q grid[14]=%q, want C and Empty", ed.Grid[2], ed.Grid[14])
	}
	want := Delta{Set: map[string]int{"C": 0}, Delete: []string{"B"}}
	if !reflect.DeepEqual(ed.Delta, want) {
		t.Errorf("delta = %+v, want %+v", ed.Delta, want)
	}
}

func TestApplyEditCascade(t *testing.T) {
	c := testCatalog(t)

	t.Run("double replaces double through shared slot", func(t *testing.T) {
		g := NewGrid()
		g[2], g[14] = "B", "B"
		ed := mustEdit(t, c, g, Ledger{"B": 1}, 14, "D")

		if ed.Grid[8] != "D" || ed.Grid[14] != "D" || ed.Grid[2] != Empty {
			t.Errorf("grid 2/8/14 = %q/%q/%q", ed.Grid[2], ed.Grid[8], ed.Grid[14])
		}
		want := Delta{Set: map[string]int{"D": 0}, Delete: []string{"B"}}
		if !reflect.DeepEqual(ed.Delta, want) {
			t.Errorf("delta = %+v, want %+v", ed.Delta, want)
		}
	})

	t.Run("displaced double loses both halves", func(t *testing.T) {
		g := NewGrid()
		g[2], g[26] = "E", "E" // Mon/Fri
		g[14] = "C"
		l := Ledger{"E": 2, "C": 1}

		// B takes Mon(2) from E and Wed(14) from C; Fri(26) must not keep half of E.
		ed := mustEdit(t, c, g, l, 14, "B")
		if ed.Grid[2] != "B" || ed.Grid[14] != "B" || ed.Grid[26] != Empty {
			t.Errorf("grid 2/14/26 = %q/%q/%q", ed.Grid[2], ed.Grid[14], ed.Grid[26])
		}
		want := Delta{Set: map[string]int{"B": 0}, Delete: []string{"C", "E"}}
		if !reflect.DeepEqual(ed.Delta, want) {
			t.Errorf("delta = %+v, want %+v", ed.Delta, want)
		}
		assertCoverage(t, ed.Grid, l.Apply(ed.Delta))
	})

	t.Run("double placed over its own other half", func(t *testing.T) {
		g := NewGrid()
		g[2], g[14] = "B", "B"
		ed := mustEdit(t, c, g, Ledger{"B": 1}, 2, "E")
		if ed.Grid[2] != "E" || ed.Grid[26] != "E" || ed.Grid[14] != Empty {
			t.Errorf("grid 2/14/26 = %q/%q/%q", ed.Grid[2], ed.Grid[14], ed.Grid[26])
		}
	})
}

func TestApplyEditDuplicateSingleKeepsLedger(t *testing.T) {
	c := testCatalog(t)
	g := NewGrid()
	g[2], g[14] = "C", "C"

	ed := mustEdit(t, c, g, Ledger{"C": 5}, 2, Empty)
	if !ed.Delta.IsEmpty() {
		t.Errorf("C is still at slot 14, delta should be empty, got %+v", ed.Delta)
	}
}

func TestApplyEditPreserveCount(t *testing.T) {
	c := testCatalog(t)
	g := NewGrid()
	g[14] = "C"
	l := Ledger{"C": 5}

	reset := mustEdit(t, c, g, l, 2, "C")
	if reset.Delta.Set["C"] != 0 {
		t.Errorf("default should reset C to 0, got %+v", reset.Delta)
	}

	kept, err := ApplyEdit(g, l, 2, "C", c, EditOptions{PreserveCount: true})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := kept.Delta.Set["C"]; ok {
		t.Errorf("PreserveCount should not touch C, got %+v", kept.Delta)
	}
}

func TestApplyEditErrors(t *testing.T) {
	c := testCatalog(t)
	g := NewGrid()

	_, err := ApplyEdit(g, Ledger{}, 30, "A", c, EditOptions{})
	var badSlot *InvalidSlotError
	if !errors.As(err, &badSlot) {
		t.Errorf("slot 30: err = %v, want InvalidSlotError", err)
	}

	_, err = ApplyEdit(g, Ledger{}, -1, "A", c, EditOptions{})
	if !errors.As(err, &badSlot) {
		t.Errorf("slot -1: err = %v, want InvalidSlotError", err)
	}

	_, err = ApplyEdit(g, Ledger{}, 3, "Nope", c, EditOptions{})
	var unknown *UnknownCourseError
	if !errors.As(err, &unknown) {
		t.Errorf("unknown course: err = %v, want UnknownCourseError", err)
	}

	_, err = ApplyEdit(g, Ledger{}, 3, "B", c, EditOptions{})
	var placement *InvalidPlacementError
	if !errors.As(err, &placement) {
		t.Errorf("B at slot 3: err = %v, want InvalidPlacementError", err)
	}

	if g != NewGrid() {
		t.Error("input grid was mutated")
	}
}

func TestApplyEditRandomSequenceKeepsInvariants(t *testing.T) {
	c := testCatalog(t)
	rng := rand.New(rand.NewSource(42))
	slots := []Slot{2, 5, 8, 14, 26}

	g, l := NewGrid(), Ledger{}
	for step := 0; step < 500; step++ {
		s := slots[rng.Intn(len(slots))]
		opts, err := c.Options(s)
		if err != nil {
			t.Fatal(err)
		}
		name := opts[rng.Intn(len(opts))]

		ed := mustEdit(t, c, g, l, s, name)
		if ed.Grid[s] != name {
			t.Fatalf("step %d: grid[%d] = %q, want %q", step, s, ed.Grid[s], name)
		}
		g, l = ed.Grid, l.Apply(ed.Delta)

		assertCoverage(t, g, l)
		if problems := Validate(g, l, c); len(problems) > 0 {
			t.Fatalf("step %d: %v", step, problems)
		}
	}
}
