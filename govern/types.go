// Package govern aggregates independent judgments over the same candidate
// options into one decision: hard vetoes first, then lexical priority tiers,
// then weighted scoring. On any unresolved ambiguity the aggregator prefers
// no decision over a guessed one.
package govern

import (
	"time"

	"github.com/teranos/invar/canon"
	"github.com/teranos/invar/errors"
)

// Verdict is an ordered normative category. The order matters: veto
// predicates compare against it.
type Verdict string

const (
	VerdictForbidden   Verdict = "forbidden"
	VerdictDiscouraged Verdict = "discouraged"
	VerdictPermissible Verdict = "permissible"
	VerdictEncouraged  Verdict = "encouraged"
	VerdictObligatory  Verdict = "obligatory"
)

var verdictRank = map[Verdict]int{
	VerdictForbidden:   0,
	VerdictDiscouraged: 1,
	VerdictPermissible: 2,
	VerdictEncouraged:  3,
	VerdictObligatory:  4,
}

// Rank returns the verdict's position in the normative order, forbidden
// lowest.
func (v Verdict) Rank() int { return verdictRank[v] }

// ParseVerdict validates a verdict string.
func ParseVerdict(s string) (Verdict, error) {
	v := Verdict(s)
	if _, ok := verdictRank[v]; !ok {
		return "", errors.Wrapf(errors.ErrConfigInvalid, "unknown verdict %q", s)
	}
	return v, nil
}

// Judgment is one judge's assessment of one option. Read-only input to the
// aggregator.
type Judgment struct {
	OptionID  string  `json:"option_id" yaml:"option_id"`
	JudgeID   string  `json:"judge_id" yaml:"judge_id"`
	Verdict   Verdict `json:"verdict" yaml:"verdict"`
	Score     float64 `json:"score" yaml:"score"` // normative score in [0,1]
	Rationale string  `json:"rationale,omitempty" yaml:"rationale,omitempty"`
	HardVeto  bool    `json:"hard_veto,omitempty" yaml:"hard_veto,omitempty"`
}

// Validate checks the judgment's own invariants.
func (j *Judgment) Validate() error {
	if j.OptionID == "" || j.JudgeID == "" {
		return errors.New("judgment missing option or judge id")
	}
	if j.Score < 0 || j.Score > 1 {
		return errors.Newf("judgment score %v outside [0,1] (judge %s, option %s)", j.Score, j.JudgeID, j.OptionID)
	}
	if _, err := ParseVerdict(string(j.Verdict)); err != nil {
		return errors.Wrapf(err, "judge %s, option %s", j.JudgeID, j.OptionID)
	}
	return nil
}

// EthicalFacts is the fixed-dimension, judge-agnostic description of one
// candidate option, derived from its canonical form. Every judge sees the
// same facts.
type EthicalFacts struct {
	OptionID string        `json:"option_id"`
	StateID  canon.StateID `json:"state_id"`

	Action                string  `json:"action"`
	Severity              float64 `json:"severity"`
	Urgency               string  `json:"urgency,omitempty"`
	EntityCount           int     `json:"entity_count"`
	HasProtectedAttribute bool    `json:"has_protected_attribute"`
}

// FactsFromCanonical derives the fixed fact dimensions from a canonical form.
func FactsFromCanonical(optionID string, form *canon.CanonicalForm) EthicalFacts {
	facts := EthicalFacts{
		OptionID: optionID,
		StateID:  canon.ComputeStateID(form.Bytes),
	}
	root := form.Root
	if f := root.Field("action"); f != nil && f.Kind == canon.KindString {
		facts.Action = f.Str
	}
	if f := root.Field("severity"); f != nil && f.Kind == canon.KindNumber {
		facts.Severity = f.Num
	}
	if f := root.Field("urgency"); f != nil && f.Kind == canon.KindString {
		facts.Urgency = f.Str
	}
	facts.HasProtectedAttribute = root.Field("protected_attribute") != nil

	entities := make(map[string]bool)
	root.Walk(func(n *canon.Node) {
		if n.Kind == canon.KindEntity {
			entities[n.Str] = true
		}
	})
	facts.EntityCount = len(entities)
	return facts
}

// Option states. An option never re-enters Pending.
const (
	StatePending   = "pending"
	StateForbidden = "forbidden"
	StateScored    = "scored"
	StateSelected  = "selected"
)

// OptionOutcome is the per-option slice of a decision.
type OptionOutcome struct {
	ID       string   `json:"id"`
	State    string   `json:"state"`
	Score    float64  `json:"score"`               // weighted aggregate, 0 when forbidden
	VetoedBy []string `json:"vetoed_by,omitempty"` // judge ids that triggered the veto
}

// DecisionOutcome is the result of one decision request. Produced once,
// never mutated.
type DecisionOutcome struct {
	TraceID            string          `json:"trace_id"`
	ConfigVersion      string          `json:"config_version"`
	SelectedOption     string          `json:"selected_option,omitempty"`
	NoAdmissibleOption bool            `json:"no_admissible_option,omitempty"`
	Options            []OptionOutcome `json:"options"`
	Rationale          []string        `json:"rationale"`
	DecidedAt          time.Time       `json:"decided_at"`
}
