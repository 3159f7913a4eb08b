package commands

import (
	"github.com/spf13/cobra"

	"github.com/teranos/invar/bond"
	"github.com/teranos/invar/canon"
	"github.com/teranos/invar/display"
	"github.com/teranos/invar/errors"
	"github.com/teranos/invar/harness"
	"github.com/teranos/invar/version"
)

// BondCmd computes the calibrated Bond Index.
var BondCmd = &cobra.Command{
	Use:   "bond",
	Short: "Compute the Bond Index over recorded defect samples",
	Long: `bond — Calibrated defect aggregation

Refuses to compute anything without a valid calibration record for the
configured domain. There is no default tau.

Examples:
  invar bond report <run-id>          # aggregate one sweep into a report
  invar bond split corpus/*.json      # gauge/intrinsic decomposition`,
}

var bondReportCmd = &cobra.Command{
	Use:   "report <run-id>",
	Short: "Aggregate one run's samples into a Bond Index report",
	Args:  cobra.ExactArgs(1),
	RunE:  runBondReport,
}

var bondSplitCmd = &cobra.Command{
	Use:   "split <corpus-file>...",
	Short: "Split defect into gauge-removable and intrinsic components",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runBondSplit,
}

func init() {
	BondCmd.AddCommand(bondReportCmd)
	BondCmd.AddCommand(bondSplitCmd)
	bondReportCmd.Flags().Bool("json", false, "Output the report as JSON")
	bondSplitCmd.Flags().Bool("json", false, "Output the decomposition as JSON")
}

func runBondReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}
	cal, err := loadCalibration(cfg)
	if err != nil {
		return err
	}

	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	samples, err := harness.NewSampleStore(database).ListByRun(args[0])
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return errors.Newf("no samples recorded for run %s", args[0])
	}

	report, err := bond.Compute(samples, cal)
	if err != nil {
		return err
	}

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(report)
	}
	display.RenderBondReport(report)
	return nil
}

func runBondSplit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}
	schema, err := loadSchema(cfg)
	if err != nil {
		return err
	}
	suite, err := loadSuite(cfg, schema)
	if err != nil {
		return err
	}
	cal, err := loadCalibration(cfg)
	if err != nil {
		return err
	}
	corpus, err := readCorpus(args)
	if err != nil {
		return err
	}

	// Alternative but still-valid canonicalizer choices: one precision step
	// coarser, and the alternative enum tag assignment.
	alternatives := []canon.Options{
		{CoarsenPrecision: 1},
		{AlternativeEnumTags: true},
	}

	base := canon.New(schema, canon.Options{}, nil, version.Producer())
	dec, err := bond.SplitGauge(cmd.Context(), base, alternatives, suite,
		cal.SeverityWeights(), cfg.Harness, corpus)
	if err != nil {
		return err
	}

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(dec)
	}
	display.RenderDecomposition(dec)
	return nil
}
