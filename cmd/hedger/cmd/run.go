package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/hedger/api"
	"github.com/rustyeddy/hedger/live"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the decision engine and operator API",
	Long: `Poll quotes every poll.interval, evaluate the verdict and serve it on the
operator API (GET /verdict, /health, /risk, /metrics; POST /risk/pnl,
/risk/balance, /risk/reset, /history/reset, /trades). Stops cleanly on SIGINT or SIGTERM.

Example:
  hedger run --config hedger.yaml`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

var runNoAPI bool

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVar(&runNoAPI, "no-api", false, "do not start the operator API")
}

func runRun(cmd *cobra.Command, args []string) error {
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.Run(ctx) })
	if !runNoAPI {
		h := api.NewHandler(r, log.With().Str("component", "api").Logger())
		g.Go(func() error { return h.Serve(ctx, cfg.API.Addr) })
	}
	return g.Wait()
}
