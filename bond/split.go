package bond

import (
	"context"

	"github.com/teranos/invar/canon"
	"github.com/teranos/invar/config"
	"github.com/teranos/invar/errors"
	"github.com/teranos/invar/harness"
	"github.com/teranos/invar/transform"
)

// Decomposition splits total defect into a gauge-removable component —
// attributable to a specific, fixable canonicalizer choice — and an
// intrinsic remainder that persists under every valid choice tried.
type Decomposition struct {
	BaselineMean    float64       `json:"baseline_mean"`    // mean defect under the primary canonicalizer
	AlternativeMean float64       `json:"alternative_mean"` // mean defect under the best alternative
	GaugeRemovable  float64       `json:"gauge_removable"`
	Intrinsic       float64       `json:"intrinsic"`
	BestAlternative canon.Options `json:"best_alternative"`
}

// SplitGauge re-runs the harness under each alternative valid canonicalizer
// configuration and attributes the reducible defect to gauge. Defect that
// survives every alternative is intrinsic: a genuine conflict in the declared
// semantics, not a fixable canonicalizer bug.
func SplitGauge(ctx context.Context, base *canon.Canonicalizer, alternatives []canon.Options,
	suite *transform.Suite, weights harness.Weights, cfg config.HarnessConfig, corpus [][]byte) (*Decomposition, error) {

	if len(alternatives) == 0 {
		return nil, errors.New("gauge split needs at least one alternative canonicalizer configuration")
	}

	baseline, err := meanDefect(ctx, base, suite, weights, cfg, corpus)
	if err != nil {
		return nil, errors.Wrap(err, "baseline harness run failed")
	}

	best := baseline
	bestOpts := base.Options()
	for _, opts := range alternatives {
		alt, err := meanDefect(ctx, base.WithOptions(opts), suite, weights, cfg, corpus)
		if err != nil {
			return nil, errors.Wrapf(err, "alternative harness run failed (%+v)", opts)
		}
		if alt < best {
			best = alt
			bestOpts = opts
		}
	}

	return &Decomposition{
		BaselineMean:    baseline,
		AlternativeMean: best,
		GaugeRemovable:  baseline - best,
		Intrinsic:       best,
		BestAlternative: bestOpts,
	}, nil
}

// meanDefect runs a full batch and averages the conclusive non-probe
// distances. Raw (un-normalized by τ): the split compares canonicalizer
// configurations, not deployment tiers.
func meanDefect(ctx context.Context, c *canon.Canonicalizer, suite *transform.Suite,
	weights harness.Weights, cfg config.HarnessConfig, corpus [][]byte) (float64, error) {

	runner := harness.NewRunner(c, suite, weights, cfg, nil)
	samples, err := runner.BatchRun(ctx, corpus)
	if err != nil {
		return 0, err
	}

	sum, n := 0.0, 0
	for _, s := range samples {
		if !s.Conclusive || s.Kind == harness.KindProbe {
			continue
		}
		sum += s.Distance
		n++
	}
	if n == 0 {
		return 0, nil
	}
	return sum / float64(n), nil
}
