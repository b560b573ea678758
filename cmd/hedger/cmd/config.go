package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/hedger/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate or validate configuration files",
	Long: `Manage configuration files.

Subcommands:
  init     - Generate a default configuration file
  validate - Validate an existing configuration file

Examples:
  hedger config init --output hedger.yaml
  hedger config validate --file hedger.yaml`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default configuration file",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

var (
	configInitOutput   string
	configValidatePath string
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)

	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", "hedger.yaml", "output config file path")
	configValidateCmd.Flags().StringVarP(&configValidatePath, "file", "f", "", "path to config file (required)")
	_ = configValidateCmd.MarkFlagRequired("file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if err := cfg.SaveToFile(configInitOutput); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Created default configuration: %s\n", configInitOutput)
	fmt.Fprintln(out, "\nSet OANDA_TOKEN and OANDA_ACCOUNT_ID, then run with:")
	fmt.Fprintf(out, "  hedger run --config %s\n", configInitOutput)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(configValidatePath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Configuration valid: %s\n", configValidatePath)
	for _, ic := range cfg.Instruments {
		var provs []string
		for _, s := range ic.Sources {
			provs = append(provs, s.Provider)
		}
		fmt.Fprintf(out, "  %-8s %-9s %v\n", ic.ID, ic.Role, provs)
	}
	fmt.Fprintf(out, "  Poll: every %s (cycle timeout %s)\n", cfg.Poll.Interval, cfg.Poll.CycleTimeout)
	fmt.Fprintf(out, "  Risk: capital %.2f, max daily loss %.1f%%\n", cfg.Account.StartingCapital, cfg.Account.MaxDailyLoss*100)
	fmt.Fprintf(out, "  Journal: %s (%s)\n", cfg.Journal.Type, cfg.Journal.Path)
	return nil
}
