package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eliseohh/jikanwaribot/internal/catalog"
	"github.com/eliseohh/jikanwaribot/internal/config"
	"github.com/eliseohh/jikanwaribot/internal/logger"
	"github.com/eliseohh/jikanwaribot/internal/store"
	"github.com/eliseohh/jikanwaribot/internal/tracker"
)

var rootCmd = &cobra.Command{
	Use:          "audit [user-id...]",
	Short:        "Check stored timetables and absence ledgers against the catalog",
	SilenceUsage: true,
	RunE:         runAudit,
}

func main() {
	rootCmd.Flags().String("config", "", "config file (default ./config/config.yaml)")
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runAudit(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx := cmd.Context()
	db, err := store.Open(ctx, cfg.Store.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	cat, err := catalog.Load(ctx, db)
	if err != nil {
		return err
	}
	users := store.NewUsers(db, cfg.Semester.Split)
	tr := tracker.New(users, cat, tracker.Options{Cutover: cfg.Semester.Cutover()}, log)

	ids := args
	if len(ids) == 0 {
		if ids, err = users.IDs(ctx); err != nil {
			return err
		}
	}

	fmt.Printf("🛡️  Auditing %d user(s) against %d courses...\n", len(ids), cat.Len())
	violations := 0
	for _, id := range ids {
		problems, err := tr.Audit(ctx, id)
		if err != nil {
			log.Error("audit failed", zap.String("user", id), zap.Error(err))
			violations++
			continue
		}
		for sem, list := range problems {
			for _, p := range list {
				fmt.Printf("❌ user %s (%s): %s\n", id, sem, p)
				violations++
			}
		}
	}

	if violations > 0 {
		return fmt.Errorf("🚫 %d violation(s) found", violations)
	}
	fmt.Println("✅ All timetables consistent")
	return nil
}
