package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/invar/audit"
	"github.com/teranos/invar/display"
	"github.com/teranos/invar/errors"
	"github.com/teranos/invar/signing"
)

// AuditCmd inspects the append-only audit log.
var AuditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the audit log",
	Long: `audit — Append-only log of canonicalization attempts

Examples:
  invar audit ls                 # recent entries, vetoes included
  invar audit verify <id>        # re-verify an artifact signature`,
}

var auditLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List recent audit entries",
	RunE:  runAuditLs,
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify <artifact-id>",
	Short: "Re-verify a recorded artifact signature",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuditVerify,
}

var auditLimitFlag int

func init() {
	AuditCmd.AddCommand(auditLsCmd)
	AuditCmd.AddCommand(auditVerifyCmd)
	auditLsCmd.Flags().IntVar(&auditLimitFlag, "limit", 20, "Number of entries to show")
	auditLsCmd.Flags().Bool("json", false, "Output entries as JSON")
}

func runAuditLs(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}
	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	entries, err := audit.NewStore(database).List(auditLimitFlag)
	if err != nil {
		return err
	}
	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(entries)
	}
	display.RenderAuditEntries(entries)
	return nil
}

func runAuditVerify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}
	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	entry, err := audit.NewStore(database).Get(args[0])
	if err != nil {
		return err
	}
	artifact, err := entry.Artifact()
	if err != nil {
		return err
	}
	if artifact.Signature == nil {
		pterm.Warning.Printf("Artifact %s is unsigned\n", artifact.ID)
		return nil
	}
	if err := signing.Verify(artifact); err != nil {
		return errors.Wrapf(err, "artifact %s failed verification", artifact.ID)
	}
	pterm.Success.Printf("Artifact %s: signature valid (%s)\n", artifact.ID, artifact.SignerDID)
	return nil
}
