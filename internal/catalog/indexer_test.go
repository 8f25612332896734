package catalog

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/eliseohh/jikanwaribot/internal/store"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func testStore(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestIndexerSync(t *testing.T) {
	ctx := context.Background()
	db := testStore(t)
	dir := t.TempDir()
	idx := NewIndexer(db, zaptest.NewLogger(t))

	writeFile(t, dir, "a.toml", validCatalog)
	writeFile(t, dir, "b.toml", "[[course]]\nname = \"数学I\"\ncredit = 1\noffered = [103]\n")
	writeFile(t, dir, "notes.txt", "ignored")
	os.Mkdir(filepath.Join(dir, ".hidden"), 0755)
	writeFile(t, filepath.Join(dir, ".hidden"), "x.toml", "[[course]]\nname = \"X\"\ncredit = 1\n")

	t.Run("initial", func(t *testing.T) {
		rep, err := idx.Sync(ctx, dir)
		if err != nil {
			t.Fatal(err)
		}
		if rep != (Report{Added: 2}) {
			t.Errorf("report = %s", rep)
		}
		cat, err := Load(ctx, db)
		if err != nil {
			t.Fatal(err)
		}
		if want := []string{"体育", "国語総合", "数学I"}; !reflect.DeepEqual(cat.Names(), want) {
			t.Errorf("names = %v, want %v", cat.Names(), want)
		}
		opts, _ := cat.Options(14)
		if !reflect.DeepEqual(opts, []string{"空きコマ", "体育", "国語総合"}) {
			t.Errorf("options(14) = %v", opts)
		}
	})

	t.Run("unchanged", func(t *testing.T) {
		rep, err := idx.Sync(ctx, dir)
		if err != nil {
			t.Fatal(err)
		}
		if rep != (Report{Unchanged: 2}) {
			t.Errorf("report = %s", rep)
		}
	})

	t.Run("changed drops removed courses", func(t *testing.T) {
		writeFile(t, dir, "b.toml", "[[course]]\nname = \"数学II\"\ncredit = 1\n")
		rep, err := idx.Sync(ctx, dir)
		if err != nil {
			t.Fatal(err)
		}
		if rep != (Report{Changed: 1, Unchanged: 1}) {
			t.Errorf("report = %s", rep)
		}
		cat, _ := Load(ctx, db)
		if _, err := cat.Resolve("数学I"); err == nil {
			t.Error("数学I should be gone")
		}
		if _, err := cat.Resolve("数学II"); err != nil {
			t.Error(err)
		}
	})

	t.Run("duplicate across files rejected", func(t *testing.T) {
		writeFile(t, dir, "c.toml", "[[course]]\nname = \"体育\"\ncredit = 1\n")
		rep, err := idx.Sync(ctx, dir)
		if err != nil {
			t.Fatal(err)
		}
		if rep.Failed != 1 {
			t.Errorf("report = %s", rep)
		}
		os.Remove(filepath.Join(dir, "c.toml"))
	})

	t.Run("invalid file keeps previous courses", func(t *testing.T) {
		writeFile(t, dir, "b.toml", "[[course]]\nname = \"数学II\"\ncredit = 7\n")
		rep, err := idx.Sync(ctx, dir)
		if err != nil {
			t.Fatal(err)
		}
		if rep.Failed != 1 {
			t.Errorf("report = %s", rep)
		}
		cat, _ := Load(ctx, db)
		if _, err := cat.Resolve("数学II"); err != nil {
			t.Error("previous version should survive a bad edit")
		}
	})

	t.Run("prune", func(t *testing.T) {
		os.Remove(filepath.Join(dir, "b.toml"))
		rep, err := idx.Sync(ctx, dir)
		if err != nil {
			t.Fatal(err)
		}
		if rep.Removed != 1 {
			t.Errorf("report = %s", rep)
		}
		cat, _ := Load(ctx, db)
		if cat.Len() != 2 {
			t.Errorf("names after prune = %v", cat.Names())
		}
	})

	t.Run("course moves between files", func(t *testing.T) {
		source := func(name string) string {
			t.Helper()
			doc, err := db.Get(ctx, CourseCollection, name)
			if err != nil {
				t.Fatalf("%s: %v", name, err)
			}
			src, _ := doc.String("source")
			return src
		}

		writeFile(t, dir, "b.toml", "[[course]]\nname = \"物理\"\ncredit = 1\n\n[[course]]\nname = \"化学\"\ncredit = 1\n")
		if rep, err := idx.Sync(ctx, dir); err != nil || rep != (Report{Added: 1, Unchanged: 1}) {
			t.Fatalf("report = %s, %v", rep, err)
		}

		// a.toml takes 物理 while b.toml gives it up in the same edit.
		writeFile(t, dir, "a.toml", validCatalog+"\n[[course]]\nname = \"物理\"\ncredit = 1\n")
		writeFile(t, dir, "b.toml", "[[course]]\nname = \"化学\"\ncredit = 1\n\n[[course]]\nname = \"生物\"\ncredit = 1\n")
		rep, err := idx.Sync(ctx, dir)
		if err != nil {
			t.Fatal(err)
		}
		if rep != (Report{Changed: 2}) {
			t.Errorf("report = %s", rep)
		}
		cat, _ := Load(ctx, db)
		if want := []string{"体育", "化学", "国語総合", "物理", "生物"}; !reflect.DeepEqual(cat.Names(), want) {
			t.Errorf("names = %v, want %v", cat.Names(), want)
		}
		for _, name := range []string{"物理", "化学", "生物"} {
			if _, err := cat.Resolve(name); err != nil {
				t.Errorf("%s: %v", name, err)
			}
		}
		if got := source("物理"); got != "a.toml" {
			t.Errorf("物理 source = %q, want a.toml", got)
		}

		// And back again, this time towards the later file.
		writeFile(t, dir, "a.toml", validCatalog)
		writeFile(t, dir, "b.toml", "[[course]]\nname = \"物理\"\ncredit = 1\n\n[[course]]\nname = \"化学\"\ncredit = 1\n")
		if rep, err := idx.Sync(ctx, dir); err != nil || rep != (Report{Changed: 2}) {
			t.Fatalf("report = %s, %v", rep, err)
		}
		cat, _ = Load(ctx, db)
		if _, err := cat.Resolve("物理"); err != nil {
			t.Error(err)
		}
		if _, err := cat.Resolve("生物"); err == nil {
			t.Error("生物 should be gone")
		}
		if got := source("物理"); got != "b.toml" {
			t.Errorf("物理 source = %q, want b.toml", got)
		}
	})

	t.Run("missing dir", func(t *testing.T) {
		if _, err := idx.Sync(ctx, filepath.Join(dir, "nope")); err == nil {
			t.Error("expected error")
		}
	})
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, dir, 20*time.Millisecond, zaptest.NewLogger(t), func() {
			select {
			case changed <- struct{}{}:
			default:
			}
		})
	}()

	// Keep writing until the watcher is registered and fires.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-changed:
			cancel()
			if err := <-done; err != nil {
				t.Fatal(err)
			}
			return
		case <-tick.C:
			writeFile(t, dir, "a.toml", validCatalog)
		case <-deadline:
			t.Fatal("watcher never fired")
		}
	}
}
