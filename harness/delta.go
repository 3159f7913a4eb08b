package harness

import (
	"bytes"
	"math"

	"github.com/teranos/invar/canon"
)

// Weights are the calibration field-severity weights, keyed by top-level
// canonical field name. They sum to 1 over the calibrated fields; fields
// absent from the map share the residual weight uniformly.
type Weights map[string]float64

// Delta is the weighted normalized distance between two canonical forms.
//
// Properties the rest of the engine leans on:
//   - Δ = 0 iff the StateIDs are equal (byte equality of canonical forms).
//   - Δ ∈ (0, 1] otherwise, each differing top-level field contributing its
//     severity weight scaled by a per-field difference in [0, 1].
//
// Numeric fields contribute a relative difference so a rounding slip counts
// less than a sign flip; every other differing field counts in full.
func Delta(left, right *canon.CanonicalForm, weights Weights) float64 {
	if bytes.Equal(left.Bytes, right.Bytes) {
		return 0
	}

	keys := fieldKeys(left.Root, right.Root)
	total, accum := 0.0, 0.0
	for _, key := range keys {
		w := fieldWeight(weights, key, len(keys))
		total += w
		accum += w * fieldDiff(left.Root.Field(key), right.Root.Field(key))
	}
	if total == 0 {
		return 1
	}

	d := accum / total
	// Canonical bytes differ, so at least one field differs; a sub-epsilon
	// numeric residue must still register as nonzero.
	if d <= 0 {
		d = math.SmallestNonzeroFloat64
	}
	if d > 1 {
		d = 1
	}
	return d
}

// fieldKeys returns the union of top-level field keys, in the canonical
// (sorted) order both roots already carry.
func fieldKeys(left, right *canon.Node) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, root := range []*canon.Node{left, right} {
		if root == nil || root.Kind != canon.KindRecord {
			continue
		}
		for _, f := range root.Fields {
			if !seen[f.Key] {
				seen[f.Key] = true
				keys = append(keys, f.Key)
			}
		}
	}
	return keys
}

func fieldWeight(weights Weights, key string, fieldCount int) float64 {
	if w, ok := weights[key]; ok {
		return w
	}
	// Residual mass for uncalibrated fields, split evenly.
	calibrated := 0.0
	for _, w := range weights {
		calibrated += w
	}
	residual := 1 - calibrated
	if residual <= 0 {
		residual = 0.05 // uncalibrated fields never vanish from the distance
	}
	return residual / float64(fieldCount)
}

func fieldDiff(left, right *canon.Node) float64 {
	switch {
	case left == nil && right == nil:
		return 0
	case left == nil || right == nil:
		return 1
	case left.Equal(right):
		return 0
	case left.Kind == canon.KindNumber && right.Kind == canon.KindNumber:
		denom := math.Abs(left.Num) + math.Abs(right.Num)
		if denom == 0 {
			return 0
		}
		return math.Min(1, math.Abs(left.Num-right.Num)/denom)
	default:
		return 1
	}
}
