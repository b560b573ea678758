package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/hedger/live"
)

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single cycle and print the verdict as JSON",
	Long: `Backfill history (when window.backfill is set), poll every source once
and print the resulting verdict. Useful from cron or to check a config.`,
	Args: cobra.NoArgs,
	RunE: runOnce,
}

func init() {
	rootCmd.AddCommand(onceCmd)
}

func runOnce(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	r, err := live.Build(cfg, log)
	if err != nil {
		return fmt.Errorf("build runner: %w", err)
	}
	defer r.Close()

	v, err := r.RunOnce(context.Background())
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
