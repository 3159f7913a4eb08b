package commands

import (
	"github.com/spf13/cobra"

	"github.com/teranos/invar/audit"
	"github.com/teranos/invar/canon"
	"github.com/teranos/invar/display"
	"github.com/teranos/invar/errors"
	"github.com/teranos/invar/signing"
	"github.com/teranos/invar/version"
)

// CanonCmd canonicalizes one input document.
var CanonCmd = &cobra.Command{
	Use:   "canon [file]",
	Short: "Canonicalize an input document",
	Long: `canon — Run the full canonicalization pipeline on one document

Parses, validates and normalizes the input, then prints the canonical form,
its state id and the audit artifact. Every attempt — veto or success — is
appended to the audit log.

Examples:
  invar canon scenario.json        # canonicalize a file
  cat scenario.json | invar canon - # canonicalize stdin
  invar canon --sign scenario.json # sign the artifact with a fresh key`,
	Args: cobra.ExactArgs(1),
	RunE: runCanon,
}

var canonSignFlag bool

func init() {
	CanonCmd.Flags().BoolVar(&canonSignFlag, "sign", false, "Sign the artifact with a freshly generated ed25519 key")
	CanonCmd.Flags().Bool("json", false, "Output the result as JSON")
}

func runCanon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}
	schema, err := loadSchema(cfg)
	if err != nil {
		return err
	}
	raw, err := readInput(args[0])
	if err != nil {
		return err
	}

	var signer canon.Signer
	if canonSignFlag {
		s, err := signing.GenerateSigner()
		if err != nil {
			return errors.Wrap(err, "failed to generate signing key")
		}
		signer = s
	}

	c := canon.New(schema, canon.Options{}, signer, version.Producer())
	res, err := c.Canonicalize(raw)
	if err != nil {
		return err
	}

	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()
	if err := audit.NewStore(database).Append(audit.EntryFromResult(res, version.Producer())); err != nil {
		return err
	}

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(res)
	}
	display.RenderResult(res)
	if res.Veto {
		// Nonzero exit on veto; the full failure chain stays in the audit
		// log, the public output carries only the coarse reason.
		return errors.Newf("input vetoed: %s", res.Reason)
	}
	return nil
}
