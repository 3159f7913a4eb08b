package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/invar/cmd/invar/commands"
	"github.com/teranos/invar/logger"
)

var rootCmd = &cobra.Command{
	Use:   "invar",
	Short: "invar - Invariance verification engine",
	Long: `invar - Invariance verification engine

Canonicalizes structured scenario descriptions, measures how badly the
canonicalization pipeline fails to commute under a declared transform suite,
aggregates the defects into a calibrated Bond Index, and governs decisions
over candidate options with vetoes and priority tiers.

Available commands:
  canon  - Canonicalize one input document
  suite  - Inspect and lint the transform suite
  sweep  - Run the loop-test harness over a corpus
  bond   - Compute the Bond Index / gauge split
  govern - Aggregate recorded judgments into a decision
  audit  - Inspect the append-only audit log
  db     - Manage the invar database

Examples:
  invar canon scenario.json
  invar sweep corpus/*.json
  invar bond report <run-id>
  invar govern decision.yaml`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, _ := cmd.Root().PersistentFlags().GetBool("json")
		if err := logger.Initialize(jsonOutput); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().Bool("json", false, "Output JSON instead of human-readable text")
	rootCmd.PersistentFlags().StringVar(&commands.ConfigFileFlag, "config", "", "Path to config file (overrides discovery)")

	rootCmd.AddCommand(commands.CanonCmd)
	rootCmd.AddCommand(commands.SuiteCmd)
	rootCmd.AddCommand(commands.SweepCmd)
	rootCmd.AddCommand(commands.BondCmd)
	rootCmd.AddCommand(commands.GovernCmd)
	rootCmd.AddCommand(commands.AuditCmd)
	rootCmd.AddCommand(commands.DbCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	defer logger.Cleanup()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
