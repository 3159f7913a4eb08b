// Package transform defines the declared transform suite: named, versioned,
// category-tagged mappings on scenario trees whose invariance the engine
// claims and tests.
//
// Transform implementations are pure functions registered by name; a suite
// definition file binds implementation names to declared transforms with
// their parameters, semantic-equivalence declarations, canary set and
// boundary probe pairs. The suite file is the public contract (G_declared);
// canaries stay out of it deliberately.
package transform

import (
	"github.com/teranos/invar/canon"
)

// Fn is a pure mapping on scenario trees. Implementations must not mutate
// their argument; they clone and return.
type Fn func(*canon.Node) *canon.Node

// Transform is one declared member of the suite.
type Transform struct {
	ID                  string
	Version             string
	Category            string   // family tag, drives within/cross-family sampling
	SemanticsPreserving bool     // orbit collapse is claimed for these
	CommutesWith        []string // transform ids declared to commute with this one
	Apply               Fn
}

// Commutes reports whether the suite declares this transform to commute
// with the other.
func (t *Transform) Commutes(other *Transform) bool {
	for _, id := range t.CommutesWith {
		if id == other.ID {
			return true
		}
	}
	for _, id := range other.CommutesWith {
		if id == t.ID {
			return true
		}
	}
	return false
}

// ProbePair is a boundary probe: two raw documents declared NOT equivalent.
// The harness asserts these produce a nonzero distance; a probe collapsing
// to one canonical form is a suite defect, not a passing result.
type ProbePair struct {
	Name  string
	Left  []byte
	Right []byte
}

// ContextPair embeds an input into two declared-equivalent contexts for the
// mixed-defect (μ) measurement.
type ContextPair struct {
	Name  string
	Embed [2]Fn
}

// Suite is the loaded transform suite.
type Suite struct {
	Version    string
	Transforms []*Transform // public set, G_declared
	Canaries   []*Transform // secret set, telemetry only, never gates
	Probes     []ProbePair
	Contexts   []ContextPair
}

// ByID returns the public transform with the given id, or nil.
func (s *Suite) ByID(id string) *Transform {
	for _, t := range s.Transforms {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// Preserving returns the public transforms declared meaning-preserving.
func (s *Suite) Preserving() []*Transform {
	var out []*Transform
	for _, t := range s.Transforms {
		if t.SemanticsPreserving {
			out = append(out, t)
		}
	}
	return out
}

// Families returns public transforms grouped by category.
func (s *Suite) Families() map[string][]*Transform {
	out := make(map[string][]*Transform)
	for _, t := range s.Transforms {
		out[t.Category] = append(out[t.Category], t)
	}
	return out
}

// Compose returns a Fn applying the given transforms left to right.
func Compose(ts ...*Transform) Fn {
	return func(n *canon.Node) *canon.Node {
		out := n
		for _, t := range ts {
			out = t.Apply(out)
		}
		return out
	}
}
