package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/invar/errors"
	"github.com/teranos/invar/transform"
)

// SuiteCmd manages the transform suite definition.
var SuiteCmd = &cobra.Command{
	Use:   "suite",
	Short: "Inspect the transform suite",
	Long: `suite — Inspect and lint the transform suite definition

Examples:
  invar suite lint    # static checks: probes parse, canaries present
  invar suite ls      # list declared transforms`,
}

var suiteLintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Run static checks on the suite definition",
	RunE:  runSuiteLint,
}

var suiteLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List declared transforms",
	RunE:  runSuiteLs,
}

func init() {
	SuiteCmd.AddCommand(suiteLintCmd)
	SuiteCmd.AddCommand(suiteLsCmd)
}

func loadSuiteFromConfig() (*transform.Suite, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load configuration")
	}
	schema, err := loadSchema(cfg)
	if err != nil {
		return nil, err
	}
	return loadSuite(cfg, schema)
}

func runSuiteLint(cmd *cobra.Command, args []string) error {
	suite, err := loadSuiteFromConfig()
	if err != nil {
		return err
	}

	findings := transform.Lint(suite)
	if len(findings) == 0 {
		pterm.Success.Printf("Suite %s: no findings (%d transforms, %d probes)\n",
			suite.Version, len(suite.Transforms), len(suite.Probes))
		return nil
	}
	for _, finding := range findings {
		pterm.Error.Println(finding.Error())
	}
	return errors.Newf("suite lint found %d problems", len(findings))
}

func runSuiteLs(cmd *cobra.Command, args []string) error {
	suite, err := loadSuiteFromConfig()
	if err != nil {
		return err
	}
	for _, t := range suite.Transforms {
		marker := " "
		if t.SemanticsPreserving {
			marker = "*"
		}
		pterm.Info.Printf("%s %-20s %-12s commutes_with=%v\n", marker, t.ID, t.Category, t.CommutesWith)
	}
	pterm.Info.Printf("(* = declared meaning-preserving; %d canaries withheld)\n", len(suite.Canaries))
	return nil
}
