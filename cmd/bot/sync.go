package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eliseohh/jikanwaribot/internal/catalog"
	"github.com/eliseohh/jikanwaribot/internal/store"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync the course catalog directory into the store and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		defer log.Sync()
		ctx := cmd.Context()

		db, err := store.Open(ctx, cfg.Store.Path)
		if err != nil {
			return err
		}
		defer db.Close()

		report, err := catalog.NewIndexer(db, log).Sync(ctx, cfg.Catalog.Dir)
		if err != nil {
			return err
		}
		cat, err := catalog.Load(ctx, db)
		if err != nil {
			return err
		}
		log.Info("catalog synced", zap.Stringer("report", report), zap.Int("courses", cat.Len()))
		fmt.Printf("%s (%d courses)\n", report, cat.Len())
		if report.Failed > 0 {
			return fmt.Errorf("%d catalog file(s) rejected", report.Failed)
		}
		return nil
	},
}
