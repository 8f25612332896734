package store

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
)

// testDB opens a temporary SQLite store and registers cleanup.
func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestDocumentOps(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)

	t.Run("get missing", func(t *testing.T) {
		if _, err := db.Get(ctx, "u1", "absence"); !errors.Is(err, ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("set and merge", func(t *testing.T) {
		if err := db.Set(ctx, "u1", "absence", map[string]any{"A": 1, "B": 2}, false); err != nil {
			t.Fatal(err)
		}
		if err := db.Set(ctx, "u1", "absence", map[string]any{"B": 5, "C": 0}, true); err != nil {
			t.Fatal(err)
		}
		doc, err := db.Get(ctx, "u1", "absence")
		if err != nil {
			t.Fatal(err)
		}
		got, err := Decode[int](doc)
		if err != nil {
			t.Fatal(err)
		}
		if want := map[string]int{"A": 1, "B": 5, "C": 0}; !reflect.DeepEqual(got, want) {
			t.Errorf("merged = %v, want %v", got, want)
		}
	})

	t.Run("set replaces", func(t *testing.T) {
		if err := db.Set(ctx, "u1", "absence", map[string]any{"Z": 9}, false); err != nil {
			t.Fatal(err)
		}
		doc, _ := db.Get(ctx, "u1", "absence")
		if len(doc) != 1 {
			t.Errorf("replace left %d fields", len(doc))
		}
	})

	t.Run("update deletes and sets", func(t *testing.T) {
		if err := db.Update(ctx, "u1", "absence", map[string]any{"Y": 1}, []string{"Z", "missing"}); err != nil {
			t.Fatal(err)
		}
		doc, _ := db.Get(ctx, "u1", "absence")
		got, _ := Decode[int](doc)
		if !reflect.DeepEqual(got, map[string]int{"Y": 1}) {
			t.Errorf("after update = %v", got)
		}
	})

	t.Run("listing", func(t *testing.T) {
		db.Set(ctx, "u2", "timetable", map[string]any{"101": "A"}, false)
		db.Set(ctx, "u1", "timetable", map[string]any{"101": "B"}, false)

		users, err := db.CollectionsWithDoc(ctx, "timetable")
		if err != nil || !reflect.DeepEqual(users, []string{"u1", "u2"}) {
			t.Errorf("CollectionsWithDoc = %v, %v", users, err)
		}
		docs, err := db.Docs(ctx, "u1")
		if err != nil || !reflect.DeepEqual(docs, []string{"absence", "timetable"}) {
			t.Errorf("Docs = %v, %v", docs, err)
		}

		doc, _ := db.Get(ctx, "u2", "timetable")
		if s, ok := doc.String("101"); !ok || s != "A" {
			t.Errorf("String(101) = %q, %v", s, ok)
		}
	})

	t.Run("delete doc", func(t *testing.T) {
		if err := db.DeleteDoc(ctx, "u2", "timetable"); err != nil {
			t.Fatal(err)
		}
		if _, err := db.Get(ctx, "u2", "timetable"); !errors.Is(err, ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})
}

func TestBatchRollsBack(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)
	boom := errors.New("boom")

	err := db.Batch(ctx, func(tx *Tx) error {
		if err := tx.Merge(ctx, "u1", "absence", map[string]any{"A": 1}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if _, err := db.Get(ctx, "u1", "absence"); !errors.Is(err, ErrNotFound) {
		t.Errorf("batch was not rolled back: %v", err)
	}
}
