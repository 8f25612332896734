package main

import (
	"context"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eliseohh/jikanwaribot/internal/bot"
	"github.com/eliseohh/jikanwaribot/internal/catalog"
	"github.com/eliseohh/jikanwaribot/internal/store"
	"github.com/eliseohh/jikanwaribot/internal/timetable"
	"github.com/eliseohh/jikanwaribot/internal/tracker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Sync the catalog and run the Telegram bot (default)",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	defer log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.Store.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	idx := catalog.NewIndexer(db, log)
	if _, err := idx.Sync(ctx, cfg.Catalog.Dir); err != nil {
		log.Warn("initial catalog sync failed", zap.Error(err))
	}

	tr := tracker.New(store.NewUsers(db, cfg.Semester.Split), nil, tracker.Options{
		Cutover:  cfg.Semester.Cutover(),
		Location: cfg.Semester.Location(),
		Edit:     timetable.EditOptions{PreserveCount: cfg.Ledger.PreserveOnAdd},
	}, log)
	reload(ctx, db, idx, tr, false)

	var wg sync.WaitGroup
	defer wg.Wait()

	// Resync on file changes and on a fixed interval; the catalog is
	// swapped only after a successful load.
	var mu sync.Mutex
	resync := func() {
		mu.Lock()
		defer mu.Unlock()
		reload(ctx, db, idx, tr, true)
	}
	if cfg.Catalog.Watch {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := catalog.Watch(ctx, cfg.Catalog.Dir, cfg.Catalog.Debounce, log, resync); err != nil {
				log.Error("catalog watcher stopped", zap.Error(err))
			}
		}()
	}
	if cfg.Catalog.ResyncInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticker := time.NewTicker(cfg.Catalog.ResyncInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					resync()
				}
			}
		}()
	}

	if cfg.Telegram.Token == "" {
		log.Warn("no telegram.token configured; running in catalog-only mode")
		<-ctx.Done()
		return nil
	}

	b, err := bot.New(bot.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: cfg.Telegram.PollTimeout,
		Scales:      cfg.Absence.Scales,
	}, tr, log)
	if err != nil {
		return fmt.Errorf("bot init: %w", err)
	}
	go func() {
		<-ctx.Done()
		b.Stop()
	}()
	b.Start()
	return nil
}

// reload syncs the catalog directory when resync is set and swaps the loaded
// catalog into tr.
func reload(ctx context.Context, db *store.DB, idx *catalog.Indexer, tr *tracker.Tracker, resync bool) {
	if resync {
		if _, err := idx.Sync(ctx, cfg.Catalog.Dir); err != nil {
			log.Warn("catalog sync failed", zap.Error(err))
			return
		}
	}
	cat, err := catalog.Load(ctx, db)
	if err != nil {
		log.Error("catalog load failed; keeping previous catalog", zap.Error(err))
		return
	}
	tr.SetCatalog(cat)
}
