// Package harness measures composition defects of the canonicalization
// pipeline under the declared transform suite: commutators (pairwise both
// orders), mixed defects (same transform, two declared-equivalent contexts),
// permutation defects (k-chain vs identity) and boundary probes.
//
// One DefectSample per measurement. Samples where either side of a comparison
// was vetoed are Inconclusive: excluded from every aggregate downstream,
// retained in the raw log.
package harness

import (
	"time"

	"github.com/google/uuid"

	"github.com/teranos/invar/canon"
)

// Defect sample kinds, distinguished by the shape of the measurement.
const (
	KindCommutator  = "commutator"  // Ω_op: g2∘g1 vs g1∘g2
	KindMixed       = "mixed"       // μ: same transform, two equivalent contexts
	KindPermutation = "permutation" // π₃: k-chain vs identity, k ≥ 3
	KindProbe       = "probe"       // declared-NOT-equivalent pair
)

// Sampling strategies partitioning the pair budget.
const (
	StrategyWithinFamily = "within_family"
	StrategyCrossFamily  = "cross_family"
	StrategyWorstCase    = "worst_case"
	StrategyProbe        = "probe"
	StrategyContext      = "context"
)

// DefectSample is one defect measurement. LeftState/RightState are the two
// StateIDs being compared; for conclusive samples Distance is the weighted
// normalized Δ between them.
type DefectSample struct {
	ID         string
	RunID      string
	Kind       string
	Strategy   string
	Transforms []string // transform ids in applied order

	LeftState  canon.StateID
	RightState canon.StateID
	Distance   float64

	Conclusive         bool
	InconclusiveReason string

	// Witness carries the two canonical byte forms for conclusive nonzero
	// samples, so worst witnesses can be shown without replaying the run.
	WitnessLeft  []byte
	WitnessRight []byte

	CreatedAt time.Time
}

func newSample(runID, kind, strategy string, transforms []string) *DefectSample {
	return &DefectSample{
		ID:         uuid.New().String(),
		RunID:      runID,
		Kind:       kind,
		Strategy:   strategy,
		Transforms: transforms,
		CreatedAt:  time.Now().UTC(),
	}
}

// markInconclusive records a veto on either side of the comparison. The
// sample carries no distance; aggregates must skip it.
func (s *DefectSample) markInconclusive(reason string) *DefectSample {
	s.Conclusive = false
	s.InconclusiveReason = reason
	return s
}

func (s *DefectSample) conclude(left, right *canon.Result, distance float64) *DefectSample {
	s.Conclusive = true
	s.LeftState = left.StateID
	s.RightState = right.StateID
	s.Distance = distance
	if distance > 0 {
		s.WitnessLeft = left.Canonical.Bytes
		s.WitnessRight = right.Canonical.Bytes
	}
	return s
}

// Conclusive filters a sample slice down to the conclusive measurements.
func Conclusive(samples []*DefectSample) []*DefectSample {
	var out []*DefectSample
	for _, s := range samples {
		if s.Conclusive {
			out = append(out, s)
		}
	}
	return out
}
