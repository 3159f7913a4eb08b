package commands

import (
	"github.com/spf13/cobra"

	"github.com/teranos/invar/display"
	"github.com/teranos/invar/errors"
	"github.com/teranos/invar/govern"
)

// GovernCmd aggregates recorded judgments into one decision.
var GovernCmd = &cobra.Command{
	Use:   "govern <replay-file>",
	Short: "Aggregate recorded judgments into a decision",
	Long: `govern — Governance aggregation over recorded judgments

Loads the governance config (weights, veto predicates, lexical tiers) and a
recorded-judgments file, runs the aggregation passes and persists the
decision outcome for audit.

Examples:
  invar govern decision.yaml
  invar govern --json decision.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runGovern,
}

func init() {
	GovernCmd.Flags().Bool("json", false, "Output the decision outcome as JSON")
}

func runGovern(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}
	govCfg, err := govern.LoadConfig(cfg.Governance.ConfigPath)
	if err != nil {
		return err
	}
	replay, err := govern.LoadReplay(args[0])
	if err != nil {
		return err
	}

	outcome, err := govern.Govern(replay.Options, replay.Judgments, govCfg)
	if err != nil {
		return err
	}

	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()
	if err := govern.NewStore(database).Append(outcome); err != nil {
		return err
	}

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(outcome)
	}
	display.RenderDecision(outcome)
	if outcome.NoAdmissibleOption {
		// Outcome is persisted either way; the nonzero exit is for callers
		// scripting on top of the CLI.
		return errors.Wrapf(errors.ErrNoAdmissibleOption, "trace %s", outcome.TraceID)
	}
	return nil
}
