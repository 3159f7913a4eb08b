package govern

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/teranos/invar/errors"
)

const scoreEpsilon = 1e-9

// Govern aggregates judgments over the candidate options into one decision.
//
// Passes, in order: hard vetoes (flag or predicate), lexical priority tiers,
// weighted aggregation, deterministic selection. Forbidden options never
// re-enter consideration regardless of score. If every option is forbidden
// the outcome is no-admissible-option, never a forced choice.
func Govern(optionIDs []string, judgments []*Judgment, cfg *Config) (*DecisionOutcome, error) {
	if len(optionIDs) == 0 {
		return nil, errors.New("no candidate options")
	}

	byOption, err := partition(optionIDs, judgments)
	if err != nil {
		return nil, err
	}

	outcome := &DecisionOutcome{
		TraceID:       uuid.New().String(),
		ConfigVersion: cfg.Version,
		DecidedAt:     time.Now().UTC(),
	}
	trace := func(format string, args ...interface{}) {
		outcome.Rationale = append(outcome.Rationale, fmt.Sprintf(format, args...))
	}

	options := append([]string(nil), optionIDs...)
	sort.Strings(options)

	if err := checkBaseJudges(options, byOption, cfg, trace); err != nil {
		return nil, err
	}

	// Hard-veto pass. Runs before any scoring: a vetoed option's weighted
	// score is irrelevant by construction.
	states := make(map[string]string, len(options))
	vetoedBy := make(map[string][]string)
	for _, opt := range options {
		states[opt] = StatePending
		for _, vetoer := range vetoers(byOption[opt], cfg) {
			states[opt] = StateForbidden
			vetoedBy[opt] = append(vetoedBy[opt], vetoer)
		}
		if states[opt] == StateForbidden {
			trace("option %s forbidden by %v", opt, vetoedBy[opt])
		}
	}

	var admissible []string
	scores := make(map[string]float64)
	for _, opt := range options {
		if states[opt] == StateForbidden {
			continue
		}
		states[opt] = StateScored
		scores[opt] = aggregateScore(byOption[opt], cfg)
		admissible = append(admissible, opt)
	}

	if len(admissible) == 0 {
		outcome.NoAdmissibleOption = true
		trace("all %d options forbidden: no admissible option", len(options))
		outcome.Options = assembleOptions(options, states, scores, vetoedBy)
		return outcome, nil
	}

	survivors := lexicalFilter(admissible, byOption, cfg, trace)

	// Selection: highest aggregate among the tier survivors. The survivor
	// list is sorted, so the first maximal entry is the configured
	// lowest-option-id tie-break.
	selected := survivors[0]
	for _, opt := range survivors[1:] {
		if scores[opt] > scores[selected]+scoreEpsilon {
			selected = opt
		}
	}
	states[selected] = StateSelected
	outcome.SelectedOption = selected
	trace("selected %s (score %.4f)", selected, scores[selected])

	outcome.Options = assembleOptions(options, states, scores, vetoedBy)
	return outcome, nil
}

// partition groups judgments by option, rejecting any judgment over an
// option outside the candidate list — a judgment never outlives the option
// list it was computed over.
func partition(optionIDs []string, judgments []*Judgment) (map[string][]*Judgment, error) {
	known := make(map[string]bool, len(optionIDs))
	for _, id := range optionIDs {
		known[id] = true
	}
	byOption := make(map[string][]*Judgment)
	for _, j := range judgments {
		if err := j.Validate(); err != nil {
			return nil, err
		}
		if !known[j.OptionID] {
			return nil, errors.Newf("judgment from %s references option %s outside the candidate list", j.JudgeID, j.OptionID)
		}
		byOption[j.OptionID] = append(byOption[j.OptionID], j)
	}
	return byOption, nil
}

func checkBaseJudges(options []string, byOption map[string][]*Judgment, cfg *Config, trace func(string, ...interface{})) error {
	for _, opt := range options {
		present := make(map[string]bool)
		for _, j := range byOption[opt] {
			present[j.JudgeID] = true
		}
		for _, base := range cfg.BaseJudges {
			if present[base] {
				continue
			}
			if cfg.enforcementMode() == EnforcementFailClosed {
				return errors.Wrapf(errors.ErrMissingJudge, "mandatory base judge %s missing for option %s", base, opt)
			}
			trace("base judge %s missing for option %s, excluded per enforcement mode", base, opt)
		}
	}
	return nil
}

// vetoers returns the judges whose judgment forbids the option, either via
// the explicit hard-veto flag or via a configured predicate.
func vetoers(judgments []*Judgment, cfg *Config) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}

	for _, j := range judgments {
		if j.HardVeto {
			add(j.JudgeID)
		}
	}
	for _, veto := range cfg.Vetoes {
		threshold, _ := ParseVerdict(veto.MaxVerdict) // validated at load
		tierJudges := make(map[string]bool)
		for _, id := range cfg.tierJudges(veto.Tier) {
			tierJudges[id] = true
		}
		for _, j := range judgments {
			if tierJudges[j.JudgeID] && j.Verdict.Rank() <= threshold.Rank() {
				add(j.JudgeID)
			}
		}
	}
	sort.Strings(out)
	return out
}

// aggregateScore computes Σ weight_j × score_j, renormalized over the judges
// that actually judged this option so excluded judges don't silently drag
// every score toward zero.
func aggregateScore(judgments []*Judgment, cfg *Config) float64 {
	sum, weightSum := 0.0, 0.0
	for _, j := range judgments {
		w, ok := cfg.Weights[j.JudgeID]
		if !ok {
			continue // unweighted judges carry no vote
		}
		sum += w * j.Score
		weightSum += w
	}
	if weightSum == 0 {
		return 0
	}
	return sum / weightSum
}

// lexicalFilter narrows the admissible set tier by tier: only options
// non-dominated at the highest tier survive to be compared at lower tiers.
func lexicalFilter(admissible []string, byOption map[string][]*Judgment, cfg *Config, trace func(string, ...interface{})) []string {
	survivors := admissible
	for _, tier := range cfg.Tiers {
		if len(survivors) == 1 {
			break
		}
		tierScores := make(map[string]float64, len(survivors))
		judged := false
		for _, opt := range survivors {
			score, ok := tierScore(byOption[opt], tier.Judges, cfg)
			if ok {
				judged = true
			}
			tierScores[opt] = score
		}
		if !judged {
			continue // no judge of this tier spoke; the tier cannot discriminate
		}

		best := tierScores[survivors[0]]
		for _, opt := range survivors[1:] {
			if tierScores[opt] > best {
				best = tierScores[opt]
			}
		}
		var kept []string
		for _, opt := range survivors {
			if tierScores[opt] >= best-scoreEpsilon {
				kept = append(kept, opt)
			}
		}
		if len(kept) < len(survivors) {
			trace("tier %s narrowed %d options to %d", tier.Name, len(survivors), len(kept))
		}
		survivors = kept
	}
	return survivors
}

func tierScore(judgments []*Judgment, tierJudges []string, cfg *Config) (float64, bool) {
	inTier := make(map[string]bool, len(tierJudges))
	for _, id := range tierJudges {
		inTier[id] = true
	}
	sum, weightSum := 0.0, 0.0
	for _, j := range judgments {
		if !inTier[j.JudgeID] {
			continue
		}
		w := cfg.Weights[j.JudgeID]
		sum += w * j.Score
		weightSum += w
	}
	if weightSum == 0 {
		return 0, false
	}
	return sum / weightSum, true
}

func assembleOptions(options []string, states map[string]string, scores map[string]float64, vetoedBy map[string][]string) []OptionOutcome {
	out := make([]OptionOutcome, 0, len(options))
	for _, opt := range options {
		out = append(out, OptionOutcome{
			ID:       opt,
			State:    states[opt],
			Score:    scores[opt],
			VetoedBy: vetoedBy[opt],
		})
	}
	return out
}
