package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eliseohh/jikanwaribot/internal/config"
	"github.com/eliseohh/jikanwaribot/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:           "jikanwaribot",
	Short:         "Timetable and absence tracker bot",
	Long:          "jikanwaribot keeps a weekly timetable per user and counts absences per course over Telegram.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

var (
	cfg *config.Config
	log *zap.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default ./config/config.yaml)")
	rootCmd.PersistentPreRunE = setup

	rootCmd.AddCommand(serveCmd, syncCmd)
}

// setup loads configuration and the logger before any subcommand runs.
func setup(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	var err error
	cfg, err = config.Load(path)
	if err != nil {
		return err
	}
	log, err = logger.New(cfg.Log)
	if err != nil {
		return err
	}
	return nil
}
