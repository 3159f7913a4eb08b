// Package display renders command output: JSON for machine consumption,
// pterm-styled text for humans.
package display

import (
	"encoding/json"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/invar/audit"
	"github.com/teranos/invar/bond"
	"github.com/teranos/invar/canon"
	"github.com/teranos/invar/govern"
	"github.com/teranos/invar/harness"
)

// ShouldOutputJSON determines whether a command should emit JSON, from the
// command's own --json flag or the global one.
func ShouldOutputJSON(cmd *cobra.Command) bool {
	if cmd == nil {
		return false
	}
	if cmd.Flags().Changed("json") {
		jsonFlag, _ := cmd.Flags().GetBool("json")
		return jsonFlag
	}
	globalFlag, _ := cmd.Root().PersistentFlags().GetBool("json")
	return globalFlag
}

// OutputJSON pretty-prints a value as JSON.
func OutputJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// RenderResult prints one canonicalization result.
func RenderResult(res *canon.Result) {
	if res.Veto {
		pterm.Error.Printf("Vetoed: %s\n", res.Reason)
		return
	}
	pterm.Success.Printf("Canonicalized\n")
	pterm.Info.Printf("StateID:  %s\n", res.StateID)
	pterm.Info.Printf("Artifact: %s\n", res.Artifact.ID)
	if res.Artifact.SignerDID != "" {
		pterm.Info.Printf("Signer:   %s\n", res.Artifact.SignerDID)
	}
	fmt.Println(string(res.Canonical.Bytes))
}

// RenderBondReport prints a Bond Index report.
func RenderBondReport(r *bond.Report) {
	header := pterm.Info
	switch r.Tier {
	case bond.TierHigh, bond.TierSevere:
		header = pterm.Error
	case bond.TierModerate:
		header = pterm.Warning
	}
	header.Printf("Deployment tier: %s (mean Bd %.4f)\n", r.Tier, r.Mean)

	pterm.Info.Printf("Samples: %d conclusive, %d inconclusive\n", r.ConclusiveCount, r.InconclusiveCount)
	pterm.Info.Printf("Bd distribution: median %.4f  p95 %.4f  p99 %.4f  max %.4f\n",
		r.Median, r.P95, r.P99, r.Max)
	pterm.Info.Printf("Calibration: %s (tau %.3f, %d raters, alpha %.2f)\n",
		r.Calibration.Domain, r.Calibration.Tau, r.Calibration.RaterCount, r.Calibration.Agreement)

	if r.ProbeCount > 0 {
		line := pterm.Success
		if len(r.ProbeFailures) > 0 {
			line = pterm.Error
		}
		line.Printf("Boundary probes: %.0f%% pass (%d total)\n", r.ProbePassRate*100, r.ProbeCount)
		for _, name := range r.ProbeFailures {
			pterm.Error.Printf("  probe %q collapsed: suite defect\n", name)
		}
	}

	for _, w := range r.Worst {
		pterm.Warning.Printf("worst: %s %v Bd=%.4f\n", w.Kind, w.Transforms, w.Bd)
	}
}

// RenderDecomposition prints a gauge/intrinsic split.
func RenderDecomposition(d *bond.Decomposition) {
	pterm.Info.Printf("Baseline mean defect:  %.6f\n", d.BaselineMean)
	pterm.Info.Printf("Best alternative:      %.6f (%+v)\n", d.AlternativeMean, d.BestAlternative)
	pterm.Info.Printf("Gauge-removable:       %.6f\n", d.GaugeRemovable)
	if d.Intrinsic > 0 {
		pterm.Warning.Printf("Intrinsic (conflict):  %.6f\n", d.Intrinsic)
	} else {
		pterm.Success.Printf("Intrinsic (conflict):  %.6f\n", d.Intrinsic)
	}
}

// RenderDecision prints a governance decision outcome.
func RenderDecision(o *govern.DecisionOutcome) {
	if o.NoAdmissibleOption {
		pterm.Error.Printf("No admissible option (trace %s)\n", o.TraceID)
	} else {
		pterm.Success.Printf("Selected: %s (trace %s)\n", o.SelectedOption, o.TraceID)
	}
	for _, opt := range o.Options {
		switch opt.State {
		case govern.StateForbidden:
			pterm.Error.Printf("  %s forbidden by %v\n", opt.ID, opt.VetoedBy)
		case govern.StateSelected:
			pterm.Success.Printf("  %s score %.4f (selected)\n", opt.ID, opt.Score)
		default:
			pterm.Info.Printf("  %s score %.4f\n", opt.ID, opt.Score)
		}
	}
	for _, line := range o.Rationale {
		pterm.Debug.Println("  " + line)
	}
}

// RenderSampleSummary prints per-kind counts for a harness run.
func RenderSampleSummary(runID string, samples []*harness.DefectSample) {
	kinds := make(map[string]int)
	inconclusive := 0
	for _, s := range samples {
		kinds[s.Kind]++
		if !s.Conclusive {
			inconclusive++
		}
	}
	pterm.Info.Printf("Run %s: %d samples (%d inconclusive)\n", runID, len(samples), inconclusive)
	for _, kind := range []string{harness.KindCommutator, harness.KindMixed, harness.KindPermutation, harness.KindProbe} {
		if kinds[kind] > 0 {
			pterm.Info.Printf("  %-12s %d\n", kind, kinds[kind])
		}
	}
}

// RenderAuditEntries prints audit log entries, newest first.
func RenderAuditEntries(entries []*audit.Entry) {
	for _, e := range entries {
		if e.Veto {
			pterm.Error.Printf("%s  %s  veto: %s\n", e.Timestamp.Format("2006-01-02 15:04:05"), e.ID, e.Reason)
			continue
		}
		pterm.Info.Printf("%s  %s  %s\n", e.Timestamp.Format("2006-01-02 15:04:05"), e.ID, e.StateID)
	}
}
