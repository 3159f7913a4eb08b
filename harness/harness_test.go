package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/invar/canon"
	"github.com/teranos/invar/config"
	"github.com/teranos/invar/errors"
	"github.com/teranos/invar/transform"
)

func testSchema() *canon.Schema {
	p2 := 2
	return &canon.Schema{
		Version:          "1.0.0",
		MaxDepth:         16,
		DefaultPrecision: 4,
		Fields: map[string]canon.FieldRule{
			"action":   {Type: "string", Required: true},
			"severity": {Type: "number", Precision: &p2, Default: float64(0)},
			"urgency":  {Type: "enum", Enum: "urgency"},
			"options":  {Type: "set"},
			"owner":    {Type: "entity"},
		},
		Enums: map[string]canon.EnumClass{
			"urgency": {
				Canonical:   "urgent",
				Alternative: "critical",
				Members:     []string{"urgent", "critical", "emergency"},
			},
		},
	}
}

func testWeights() Weights {
	return Weights{"action": 0.6, "severity": 0.3, "urgency": 0.1}
}

func testCanonicalizer() *canon.Canonicalizer {
	return canon.New(testSchema(), canon.Options{}, nil, "invar/test")
}

func testSuite(t *testing.T) *transform.Suite {
	t.Helper()
	reg := transform.NewRegistry(testSchema())
	mk := func(id, impl, category string, preserving bool, params transform.Params, commutes ...string) *transform.Transform {
		fn, err := reg.Resolve(impl, params)
		require.NoError(t, err)
		return &transform.Transform{
			ID:                  id,
			Version:             "1.0.0",
			Category:            category,
			SemanticsPreserving: preserving,
			CommutesWith:        commutes,
			Apply:               fn,
		}
	}
	embed, err := reg.Resolve("explicit_defaults", nil)
	require.NoError(t, err)
	identity := func(n *canon.Node) *canon.Node { return n.Clone() }

	return &transform.Suite{
		Version: "1.0.0",
		Transforms: []*transform.Transform{
			mk("permute_sets", "permute_sets", "structural", true, nil, "relabel_entities", "scale_x10"),
			mk("relabel_entities", "relabel_entities", "structural", true, nil),
			mk("reorder_fields", "reorder_fields", "structural", true, nil),
			mk("scale_x10", "scale_numbers", "numeric", false, transform.Params{"factor": float64(10)}, "relabel_entities"),
			mk("append_qualifier", "append_qualifier", "lexical", false, nil),
			mk("negate", "negate", "lexical", false, nil),
		},
		Canaries: []*transform.Transform{
			mk("canary_epsilon", "nudge_numbers", "numeric", true, transform.Params{"epsilon": 1e-9}),
		},
		Probes: []transform.ProbePair{
			{Name: "different_action", Left: []byte(`{"action":"allocate_to_patient_A"}`), Right: []byte(`{"action":"deny_patient_A"}`)},
		},
		Contexts: []transform.ContextPair{
			{Name: "explicit_defaults", Embed: [2]transform.Fn{identity, embed}},
		},
	}
}

func mustParse(t *testing.T, raw string) *canon.Node {
	t.Helper()
	n, err := canon.Parse([]byte(raw))
	require.NoError(t, err)
	return n
}

func canonForm(t *testing.T, raw string) *canon.CanonicalForm {
	t.Helper()
	res, err := testCanonicalizer().Canonicalize([]byte(raw))
	require.NoError(t, err)
	require.False(t, res.Veto, "fixture vetoed: %v", res.Err)
	return res.Canonical
}

func TestDelta_ZeroIffEqualStateID(t *testing.T) {
	a := canonForm(t, `{"action":"allocate","severity":1.5}`)
	b := canonForm(t, `{"severity":1.5,"action":"allocate"}`)
	c := canonForm(t, `{"action":"deny","severity":1.5}`)

	assert.Zero(t, Delta(a, b, testWeights()))
	assert.Positive(t, Delta(a, c, testWeights()))
}

func TestDelta_SeverityWeighted(t *testing.T) {
	base := canonForm(t, `{"action":"allocate","urgency":"urgent"}`)
	actionDiff := canonForm(t, `{"action":"deny","urgency":"urgent"}`)
	urgencyDiff := canonForm(t, `{"action":"allocate","urgency":"emergency"}`)

	w := testWeights()
	assert.Greater(t, Delta(base, actionDiff, w), Delta(base, urgencyDiff, w),
		"an action divergence outweighs an urgency divergence under calibration")
}

func TestDelta_NumericRelativeDifference(t *testing.T) {
	base := canonForm(t, `{"action":"dose","severity":10}`)
	near := canonForm(t, `{"action":"dose","severity":10.5}`)
	far := canonForm(t, `{"action":"dose","severity":100}`)

	w := testWeights()
	dNear, dFar := Delta(base, near, w), Delta(base, far, w)
	assert.Positive(t, dNear)
	assert.Greater(t, dFar, dNear)
}

func newTester(t *testing.T) *Tester {
	t.Helper()
	return NewTester(testCanonicalizer(), testWeights(), "run-test")
}

func TestLoopTest_DeclaredCommutingPairIsZero(t *testing.T) {
	suite := testSuite(t)
	tester := newTester(t)
	x := mustParse(t, `{"action":"dose","owner":"@alice","severity":1.5}`)

	sample, err := tester.LoopTest(x, suite.ByID("scale_x10"), suite.ByID("relabel_entities"), StrategyCrossFamily)
	require.NoError(t, err)
	require.True(t, sample.Conclusive)
	assert.Zero(t, sample.Distance)
	assert.Equal(t, sample.LeftState, sample.RightState)
}

func TestLoopTest_NonCommutingPairObserved(t *testing.T) {
	suite := testSuite(t)
	tester := newTester(t)
	x := mustParse(t, `{"action":"allocate"}`)

	sample, err := tester.LoopTest(x, suite.ByID("negate"), suite.ByID("append_qualifier"), StrategyWithinFamily)
	require.NoError(t, err)
	require.True(t, sample.Conclusive)
	assert.Positive(t, sample.Distance)
	assert.NotEqual(t, sample.LeftState, sample.RightState)
	assert.NotEmpty(t, sample.WitnessLeft)
}

func TestLoopTest_VetoMakesSampleInconclusive(t *testing.T) {
	suite := testSuite(t)
	tester := newTester(t)
	dropAction := &transform.Transform{
		ID:       "drop_action",
		Category: "structural",
		Apply: func(n *canon.Node) *canon.Node {
			out := n.Clone()
			out.DropField("action")
			return out
		},
	}
	x := mustParse(t, `{"action":"allocate"}`)

	sample, err := tester.LoopTest(x, dropAction, suite.ByID("append_qualifier"), StrategyWithinFamily)
	require.NoError(t, err)
	assert.False(t, sample.Conclusive)
	assert.Contains(t, sample.InconclusiveReason, canon.ReasonValidationFailure)
	assert.Zero(t, sample.Distance)
}

func TestChainTest_PreservingChainHoldsCanonicalForm(t *testing.T) {
	suite := testSuite(t)
	tester := newTester(t)
	x := mustParse(t, `{"action":"allocate","options":{"$set":["p1","p2","p3"]},"owner":"@alice"}`)

	sample, err := tester.ChainTest(x, suite.Preserving())
	require.NoError(t, err)
	require.True(t, sample.Conclusive)
	assert.Zero(t, sample.Distance)
}

func TestChainTest_RejectsShortChain(t *testing.T) {
	suite := testSuite(t)
	tester := newTester(t)
	x := mustParse(t, `{"action":"allocate"}`)

	_, err := tester.ChainTest(x, suite.Preserving()[:2])
	assert.Error(t, err)
}

func TestMixedTest_EquivalentContextsCollapse(t *testing.T) {
	suite := testSuite(t)
	tester := newTester(t)
	x := mustParse(t, `{"action":"allocate","owner":"@alice"}`)

	sample, err := tester.MixedTest(x, suite.ByID("relabel_entities"), suite.Contexts[0])
	require.NoError(t, err)
	require.True(t, sample.Conclusive)
	assert.Zero(t, sample.Distance, "stating a schema default must not change meaning")
}

func TestProbeTest_DistinctPairGivesPositiveDistance(t *testing.T) {
	suite := testSuite(t)
	tester := newTester(t)

	sample, err := tester.ProbeTest(suite.Probes[0])
	require.NoError(t, err)
	require.True(t, sample.Conclusive)
	assert.Positive(t, sample.Distance)
}

func TestProbeTest_CollapsedProbeIsSuiteDefect(t *testing.T) {
	tester := newTester(t)
	collapsed := transform.ProbePair{
		Name:  "only_field_order",
		Left:  []byte(`{"action":"x","severity":1}`),
		Right: []byte(`{"severity":1,"action":"x"}`),
	}

	sample, err := tester.ProbeTest(collapsed)
	require.NoError(t, err)
	require.True(t, sample.Conclusive)
	assert.Zero(t, sample.Distance, "a collapsing probe must surface as a zero-distance probe sample")
}

func harnessConfig() config.HarnessConfig {
	return config.HarnessConfig{
		Workers:             2,
		QueueSize:           64,
		ProbeFraction:       0.15,
		WorstCaseIterations: 8,
	}
}

func testCorpus() [][]byte {
	return [][]byte{
		[]byte(`{"action":"allocate","options":{"$set":["p1","p2"]},"owner":"@alice","severity":1.5}`),
		[]byte(`{"action":"deny","urgency":"critical"}`),
	}
}

func TestBatchRun(t *testing.T) {
	runner := NewRunner(testCanonicalizer(), testSuite(t), testWeights(), harnessConfig(), nil)

	samples, err := runner.BatchRun(context.Background(), testCorpus())
	require.NoError(t, err)
	require.NotEmpty(t, samples)

	kinds := make(map[string]int)
	var nonzeroCommutator, zeroCommuting bool
	for _, s := range samples {
		kinds[s.Kind]++
		assert.Equal(t, runner.RunID(), s.RunID)
		for _, id := range s.Transforms {
			assert.NotEqual(t, "canary_epsilon", id, "canaries must never enter the sample set")
		}
		if s.Kind == KindCommutator && s.Conclusive {
			if s.Distance > 0 {
				nonzeroCommutator = true
			}
			if s.Distance == 0 && len(s.Transforms) == 2 {
				zeroCommuting = true
			}
		}
	}

	assert.Positive(t, kinds[KindProbe])
	assert.Positive(t, kinds[KindCommutator])
	assert.Positive(t, kinds[KindPermutation])
	assert.Positive(t, kinds[KindMixed])
	assert.True(t, nonzeroCommutator, "the known non-commuting pair must be observed")
	assert.True(t, zeroCommuting)
}

func TestBatchRun_RejectsLowProbeFraction(t *testing.T) {
	suite := testSuite(t)
	suite.Probes = nil
	runner := NewRunner(testCanonicalizer(), suite, testWeights(), harnessConfig(), nil)

	_, err := runner.BatchRun(context.Background(), testCorpus())
	assert.True(t, errors.IsConfigInvalid(err), "got %v", err)
}

func TestBatchRun_Cancellation(t *testing.T) {
	runner := NewRunner(testCanonicalizer(), testSuite(t), testWeights(), harnessConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := runner.BatchRun(ctx, testCorpus())
	assert.Error(t, err)
}

func TestBatchRun_RejectsEmptyCorpus(t *testing.T) {
	runner := NewRunner(testCanonicalizer(), testSuite(t), testWeights(), harnessConfig(), nil)
	_, err := runner.BatchRun(context.Background(), [][]byte{[]byte(`not json`)})
	assert.Error(t, err)
}
