package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/hedger/config"
	"github.com/rustyeddy/hedger/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Record or list confirmed trades",
	Long: `Append confirmed executions to the trade journal and read them back.

Subcommands:
  record - Record a trade confirmed at the broker
  list   - List trades recorded today or on a given day (Org-mode)
  trade  - Show one trade by ID (sqlite journals)

Examples:
  hedger journal record --direction buy --engine 950.12 --broker 950.50 --outcome filled
  hedger journal list
  hedger journal list 2026-01-12`,
}

var journalRecordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record a confirmed trade",
	Args:  cobra.NoArgs,
	RunE:  runJournalRecord,
}

var journalListCmd = &cobra.Command{
	Use:   "list [YYYY-MM-DD]",
	Short: "List trades recorded on a day (default today)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runJournalList,
}

var journalTradeCmd = &cobra.Command{
	Use:   "trade <trade-id>",
	Short: "Get details of a specific trade",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalTrade,
}

var (
	recDirection string
	recEngine    float64
	recBroker    float64
	recOutcome   string
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalRecordCmd)
	journalCmd.AddCommand(journalListCmd)
	journalCmd.AddCommand(journalTradeCmd)

	f := journalRecordCmd.Flags()
	f.StringVarP(&recDirection, "direction", "d", "", "BUY or SELL (required)")
	f.Float64Var(&recEngine, "engine", 0, "price the engine reported (required)")
	f.Float64Var(&recBroker, "broker", 0, "price filled at the broker (required)")
	f.StringVar(&recOutcome, "outcome", "", "free-text outcome")
	_ = journalRecordCmd.MarkFlagRequired("direction")
	_ = journalRecordCmd.MarkFlagRequired("engine")
	_ = journalRecordCmd.MarkFlagRequired("broker")
}

func runJournalRecord(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rec, err := journal.NewRecord(time.Now(), recDirection, recEngine, recBroker, recOutcome)
	if err != nil {
		return err
	}

	j, err := journal.New(cfg.Journal)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	if err := j.Record(rec); err != nil {
		return fmt.Errorf("record trade: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), journal.FormatTradeOrg(rec))
	return nil
}

func runJournalList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	loc, err := cfg.Blackout.Location()
	if err != nil {
		return err
	}

	day := time.Now().In(loc).Format("2006-01-02")
	if len(args) == 1 {
		day = args[0]
	}
	start, end, err := dayBounds(loc, day)
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}

	recs, err := listTrades(cfg.Journal, start, end)
	if err != nil {
		return fmt.Errorf("query trades: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), journal.FormatTradesOrg(recs))
	return nil
}

// listTrades reads the journal without opening it for writing. A CSV
// journal that does not exist yet has no trades.
func listTrades(jc config.JournalConfig, start, end time.Time) ([]journal.TradeRecord, error) {
	if jc.Type == "csv" {
		recs, err := journal.ReadCSV(jc.Path, start, end)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return recs, err
	}

	j, err := journal.New(jc)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	l, ok := j.(journal.Lister)
	if !ok {
		return nil, fmt.Errorf("%s journal cannot be listed", jc.Type)
	}
	return l.ListBetween(start, end)
}

func runJournalTrade(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Journal.Type != "sqlite" {
		return fmt.Errorf("trade lookup needs a sqlite journal")
	}
	j, err := journal.NewSQLite(cfg.Journal.Path)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	rec, err := j.Get(args[0])
	if err != nil {
		return fmt.Errorf("get trade: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), journal.FormatTradeOrg(rec))
	return nil
}

// dayBounds returns [start, end) of the calendar day in loc.
func dayBounds(loc *time.Location, day string) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)
	return start, end, nil
}
