package harness

import (
	"strings"

	"github.com/teranos/invar/canon"
	"github.com/teranos/invar/errors"
	"github.com/teranos/invar/transform"
)

// Tester runs individual defect measurements against one canonicalizer.
// Stateless apart from its configuration; safe for concurrent use.
type Tester struct {
	canon   *canon.Canonicalizer
	weights Weights
	runID   string
}

// NewTester creates a tester for one evaluation run.
func NewTester(c *canon.Canonicalizer, weights Weights, runID string) *Tester {
	return &Tester{canon: c, weights: weights, runID: runID}
}

// canonicalizeTree validates and canonicalizes a transformed tree. Transforms
// operate in AST space, so a transform is perfectly able to produce a tree
// the rule-set vetoes; that veto makes the surrounding sample inconclusive.
func (t *Tester) canonicalizeTree(n *canon.Node) (*canon.Result, error) {
	if err := canon.Validate(n, t.canon.Schema()); err != nil {
		return &canon.Result{Veto: true, Reason: canon.ReasonValidationFailure, Err: err}, nil
	}
	return t.canon.CanonicalizeTree(n)
}

// LoopTest measures the commutator Ω_op for one pair: canonical form of
// g2(g1(x)) against g1(g2(x)). Declared-commuting pairs are expected to land
// on Δ = 0; the caller decides what a nonzero value means.
func (t *Tester) LoopTest(x *canon.Node, g1, g2 *transform.Transform, strategy string) (*DefectSample, error) {
	sample := newSample(t.runID, KindCommutator, strategy, []string{g1.ID, g2.ID})
	return t.compare(sample, g2.Apply(g1.Apply(x)), g1.Apply(g2.Apply(x)))
}

// ChainTest measures the permutation defect π₃: a chain of k transforms
// (k ≥ 3) applied in declared order, against the identity on x. Chains
// composed entirely of meaning-preserving transforms are expected to hold
// the canonical form fixed.
func (t *Tester) ChainTest(x *canon.Node, chain []*transform.Transform) (*DefectSample, error) {
	ids := make([]string, len(chain))
	for i, g := range chain {
		ids[i] = g.ID
	}
	sample := newSample(t.runID, KindPermutation, StrategyCrossFamily, ids)
	if len(chain) < 3 {
		return nil, errors.Newf("permutation chain needs k >= 3, got %d", len(chain))
	}
	return t.compare(sample, transform.Compose(chain...)(x), x.Clone())
}

// MixedTest measures the mixed defect μ: the same transform applied to the
// same input embedded in two declared-equivalent contexts.
func (t *Tester) MixedTest(x *canon.Node, g *transform.Transform, ctx transform.ContextPair) (*DefectSample, error) {
	sample := newSample(t.runID, KindMixed, StrategyContext, []string{g.ID, "ctx:" + ctx.Name})
	return t.compare(sample, g.Apply(ctx.Embed[0](x)), g.Apply(ctx.Embed[1](x)))
}

// ProbeTest canonicalizes both sides of a declared-NOT-equivalent pair from
// raw bytes. Δ = 0 on a conclusive probe is a suite defect: the pipeline has
// collapsed two different meanings onto one canonical form.
func (t *Tester) ProbeTest(probe transform.ProbePair) (*DefectSample, error) {
	sample := newSample(t.runID, KindProbe, StrategyProbe, []string{probe.Name})

	left, err := t.canon.Canonicalize(probe.Left)
	if err != nil {
		return nil, err
	}
	right, err := t.canon.Canonicalize(probe.Right)
	if err != nil {
		return nil, err
	}
	return t.concludeOrVeto(sample, left, right), nil
}

func (t *Tester) compare(sample *DefectSample, leftTree, rightTree *canon.Node) (*DefectSample, error) {
	left, err := t.canonicalizeTree(leftTree)
	if err != nil {
		return nil, err
	}
	right, err := t.canonicalizeTree(rightTree)
	if err != nil {
		return nil, err
	}
	return t.concludeOrVeto(sample, left, right), nil
}

func (t *Tester) concludeOrVeto(sample *DefectSample, left, right *canon.Result) *DefectSample {
	if left.Veto || right.Veto {
		return sample.markInconclusive(vetoReason(left, right))
	}
	return sample.conclude(left, right, Delta(left.Canonical, right.Canonical, t.weights))
}

func vetoReason(left, right *canon.Result) string {
	var parts []string
	if left.Veto {
		parts = append(parts, "left: "+left.Reason)
	}
	if right.Veto {
		parts = append(parts, "right: "+right.Reason)
	}
	return strings.Join(parts, "; ")
}
