package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/eliseohh/jikanwaribot/internal/catalog"
	"github.com/eliseohh/jikanwaribot/internal/store"
)

func main() {
	ctx := context.Background()
	log, _ := zap.NewDevelopment()
	defer log.Sync()

	testDir, err := os.MkdirTemp("", "test_sync")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(testDir)
	catalogDir := filepath.Join(testDir, "catalog")
	os.Mkdir(catalogDir, 0755)

	os.WriteFile(filepath.Join(catalogDir, "core.toml"), []byte(`
[[course]]
name = "国語"
credit = 4
day1 = 0
day2 = 2
period = 1
`), 0644)
	os.WriteFile(filepath.Join(catalogDir, "electives.toml"), []byte(`
[[course]]
name = "美術"
credit = 1
offered = [105]
`), 0644)

	db, err := store.Open(ctx, filepath.Join(testDir, "test_sync.db"))
	if err != nil {
		panic(err)
	}
	defer db.Close()

	idx := catalog.NewIndexer(db, log)
	report, err := idx.Sync(ctx, catalogDir)
	if err != nil {
		panic(err)
	}
	cat, err := catalog.Load(ctx, db)
	if err != nil {
		panic(err)
	}
	fmt.Printf("Initial sync: %s, %d courses (Expected 2)\n", report, cat.Len())
	if cat.Len() != 2 {
		fmt.Println("❌ Initial sync failed")
		os.Exit(1)
	}

	fmt.Println("Modifying electives.toml...")
	os.WriteFile(filepath.Join(catalogDir, "electives.toml"), []byte(`
[[course]]
name = "美術"
credit = 1
offered = [105]

[[course]]
name = "音楽"
credit = 1
offered = [106]
`), 0644)
	os.Remove(filepath.Join(catalogDir, "core.toml"))

	if report, err = idx.Sync(ctx, catalogDir); err != nil {
		panic(err)
	}
	if cat, err = catalog.Load(ctx, db); err != nil {
		panic(err)
	}
	fmt.Printf("Resync: %s, courses %v (Expected [美術 音楽])\n", report, cat.Names())
	if cat.Len() != 2 || report.Removed != 1 || report.Changed != 1 {
		fmt.Println("❌ Update sync failed")
		os.Exit(1)
	}

	fmt.Println("✔ Catalog Sync Test Passed")
}
