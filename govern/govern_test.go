package govern

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/invar/errors"
)

const testConfigTOML = `
version = "1.0.0"
tie_break = "lowest_option_id"
enforcement = "fail_closed"
base_judges = ["rights"]

[weights]
rights = 0.4
welfare = 0.35
fairness = 0.25

[[tiers]]
name = "safety"
judges = ["rights"]

[[tiers]]
name = "efficiency"
judges = ["welfare", "fairness"]

[[vetoes]]
tier = "safety"
max_verdict = "forbidden"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "governance.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func loadTestConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := LoadConfig(writeConfig(t, testConfigTOML))
	require.NoError(t, err)
	return cfg
}

func judgment(option, judge string, verdict Verdict, score float64) *Judgment {
	return &Judgment{OptionID: option, JudgeID: judge, Verdict: verdict, Score: score}
}

func fullBench(option string, rights, welfare, fairness float64) []*Judgment {
	return []*Judgment{
		judgment(option, "rights", VerdictPermissible, rights),
		judgment(option, "welfare", VerdictPermissible, welfare),
		judgment(option, "fairness", VerdictPermissible, fairness),
	}
}

func TestLoadConfig(t *testing.T) {
	cfg := loadTestConfig(t)
	assert.Equal(t, "1.0.0", cfg.Version)
	assert.Len(t, cfg.Tiers, 2)
	assert.Equal(t, []string{"rights"}, cfg.BaseJudges)
}

func TestLoadConfig_RejectsBadWeightSum(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `
version = "1.0.0"
[weights]
a = 0.5
b = 0.6
`))
	assert.True(t, errors.IsConfigInvalid(err), "weights summing to 1.1 must be rejected at load time")
}

func TestLoadConfig_RejectsVetoOnUndefinedTier(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `
version = "1.0.0"
[weights]
rights = 1.0
[[vetoes]]
tier = "ghost"
max_verdict = "forbidden"
`))
	assert.True(t, errors.IsConfigInvalid(err))
}

func TestLoadConfig_RejectsUnknownVerdict(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `
version = "1.0.0"
[weights]
rights = 1.0
[[tiers]]
name = "safety"
judges = ["rights"]
[[vetoes]]
tier = "safety"
max_verdict = "terrible"
`))
	assert.True(t, errors.IsConfigInvalid(err))
}

func TestLoadConfig_AcceptsWeightsWithinTolerance(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `
version = "1.0.0"
[weights]
a = 0.3333333
b = 0.3333333
c = 0.3333334
`))
	assert.NoError(t, err)
}

func TestGovern_VetoPrecedence(t *testing.T) {
	// The discriminatory option C carries the highest weighted score but a
	// rights hard veto; A must win regardless.
	cfg := loadTestConfig(t)

	judgments := append(fullBench("A", 0.80, 0.80, 0.80), fullBench("B", 0.60, 0.70, 0.70)...)
	judgments = append(judgments,
		&Judgment{OptionID: "C", JudgeID: "rights", Verdict: VerdictForbidden, Score: 0, HardVeto: true,
			Rationale: "protected attribute used in allocation"},
		judgment("C", "welfare", VerdictEncouraged, 0.95),
		judgment("C", "fairness", VerdictEncouraged, 0.95),
	)

	outcome, err := Govern([]string{"A", "B", "C"}, judgments, cfg)
	require.NoError(t, err)

	assert.Equal(t, "A", outcome.SelectedOption)
	assert.False(t, outcome.NoAdmissibleOption)

	var c OptionOutcome
	for _, opt := range outcome.Options {
		if opt.ID == "C" {
			c = opt
		}
	}
	assert.Equal(t, StateForbidden, c.State)
	assert.Equal(t, []string{"rights"}, c.VetoedBy)
}

func TestGovern_PredicateVeto(t *testing.T) {
	// No explicit hard-veto flag: the safety-tier predicate alone forbids a
	// forbidden-verdict option.
	cfg := loadTestConfig(t)
	judgments := append(fullBench("A", 0.5, 0.5, 0.5),
		judgment("B", "rights", VerdictForbidden, 0.9),
		judgment("B", "welfare", VerdictEncouraged, 0.9),
		judgment("B", "fairness", VerdictEncouraged, 0.9),
	)

	outcome, err := Govern([]string{"A", "B"}, judgments, cfg)
	require.NoError(t, err)
	assert.Equal(t, "A", outcome.SelectedOption)
}

func TestGovern_NoAdmissibleOption(t *testing.T) {
	cfg := loadTestConfig(t)
	judgments := []*Judgment{
		{OptionID: "A", JudgeID: "rights", Verdict: VerdictForbidden, Score: 0, HardVeto: true},
		{OptionID: "B", JudgeID: "rights", Verdict: VerdictForbidden, Score: 0, HardVeto: true},
	}

	outcome, err := Govern([]string{"A", "B"}, judgments, cfg)
	require.NoError(t, err)
	assert.True(t, outcome.NoAdmissibleOption)
	assert.Empty(t, outcome.SelectedOption)
	for _, opt := range outcome.Options {
		assert.Equal(t, StateForbidden, opt.State)
	}
}

func TestGovern_DeterministicTieBreak(t *testing.T) {
	cfg := loadTestConfig(t)
	judgments := append(fullBench("B", 0.7, 0.7, 0.7), fullBench("A", 0.7, 0.7, 0.7)...)

	// Identical judgment sets: the configured tie-break picks the lowest id,
	// never iteration order.
	for i := 0; i < 10; i++ {
		outcome, err := Govern([]string{"B", "A"}, judgments, cfg)
		require.NoError(t, err)
		assert.Equal(t, "A", outcome.SelectedOption)
	}
}

func TestGovern_LexicalTierDominates(t *testing.T) {
	// B has the better overall weighted score, but A dominates the safety
	// tier, which is consulted first.
	cfg := loadTestConfig(t)
	judgments := append(fullBench("A", 0.9, 0.5, 0.5), fullBench("B", 0.6, 1.0, 1.0)...)

	outcome, err := Govern([]string{"A", "B"}, judgments, cfg)
	require.NoError(t, err)
	assert.Equal(t, "A", outcome.SelectedOption)
}

func TestGovern_MissingBaseJudgeFailsClosed(t *testing.T) {
	cfg := loadTestConfig(t)
	judgments := []*Judgment{
		judgment("A", "welfare", VerdictPermissible, 0.8),
		judgment("A", "fairness", VerdictPermissible, 0.8),
	}

	_, err := Govern([]string{"A"}, judgments, cfg)
	assert.True(t, errors.Is(err, errors.ErrMissingJudge))
}

func TestGovern_MissingBaseJudgeExcludeMode(t *testing.T) {
	cfg := loadTestConfig(t)
	cfg.Enforcement = EnforcementExclude
	judgments := []*Judgment{
		judgment("A", "welfare", VerdictPermissible, 0.8),
		judgment("A", "fairness", VerdictPermissible, 0.8),
	}

	outcome, err := Govern([]string{"A"}, judgments, cfg)
	require.NoError(t, err)
	assert.Equal(t, "A", outcome.SelectedOption)
}

func TestGovern_RejectsStaleJudgment(t *testing.T) {
	cfg := loadTestConfig(t)
	judgments := append(fullBench("A", 0.8, 0.8, 0.8), judgment("Z", "rights", VerdictPermissible, 0.9))

	_, err := Govern([]string{"A"}, judgments, cfg)
	assert.Error(t, err, "a judgment over an option outside the candidate list is an invariant violation")
}

func TestGovern_RejectsOutOfRangeScore(t *testing.T) {
	cfg := loadTestConfig(t)
	judgments := fullBench("A", 0.8, 0.8, 0.8)
	judgments[0].Score = 1.5

	_, err := Govern([]string{"A"}, judgments, cfg)
	assert.Error(t, err)
}
