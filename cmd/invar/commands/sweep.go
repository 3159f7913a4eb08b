package commands

import (
	"github.com/spf13/cobra"

	"github.com/teranos/invar/canon"
	"github.com/teranos/invar/config"
	"github.com/teranos/invar/display"
	"github.com/teranos/invar/errors"
	"github.com/teranos/invar/harness"
	"github.com/teranos/invar/logger"
	"github.com/teranos/invar/version"
)

// SweepCmd runs a batch defect evaluation over a corpus.
var SweepCmd = &cobra.Command{
	Use:   "sweep <corpus-file>...",
	Short: "Run the loop-test harness over a corpus",
	Long: `sweep — Batch defect evaluation

Expands corpus × transform suite into commutator, mixed-context, permutation
and boundary-probe measurements, runs them over the worker pool, and
persists the raw samples. Canary transforms are evaluated on the side and
reported only to the canary telemetry channel.

Examples:
  invar sweep corpus/*.json
  invar sweep --json corpus/*.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSweep,
}

func init() {
	SweepCmd.Flags().Bool("json", false, "Output raw samples as JSON")
}

func runSweep(cmd *cobra.Command, args []string) error {
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

	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	// A suite file edit mid-run silently changes what the samples mean.
	watcher, err := config.NewFileWatcher(cfg.Harness.SuitePath)
	if err == nil {
		watcher.OnChange(func(path string) {
			logger.Warnw("transform suite changed during sweep; samples reflect the loaded version", "path", path)
		})
		watcher.Start()
		defer watcher.Stop()
	}

	c := canon.New(schema, canon.Options{}, nil, version.Producer())
	runner := harness.NewRunner(c, suite, cal.SeverityWeights(), cfg.Harness, harness.NewSampleStore(database))

	samples, err := runner.BatchRun(cmd.Context(), corpus)
	if err != nil {
		return err
	}

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(samples)
	}
	display.RenderSampleSummary(runner.RunID(), samples)
	return nil
}
