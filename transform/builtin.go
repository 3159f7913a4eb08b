package transform

import (
	"strings"

	"github.com/teranos/invar/canon"
	"github.com/teranos/invar/errors"
)

// Params carries implementation parameters from the suite file.
type Params map[string]interface{}

func (p Params) float(key string, def float64) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	default:
		return def
	}
}

func (p Params) str(key string, def string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return def
}

// Registry resolves implementation names from suite files into transform
// functions. Some implementations close over the active schema (enum
// restatement needs the synonym classes).
type Registry struct {
	schema *canon.Schema
	impls  map[string]func(Params) Fn
}

// NewRegistry creates the built-in implementation registry for a schema.
func NewRegistry(schema *canon.Schema) *Registry {
	r := &Registry{schema: schema, impls: make(map[string]func(Params) Fn)}

	r.impls["permute_sets"] = func(Params) Fn { return permuteSets }
	r.impls["relabel_entities"] = func(p Params) Fn { return relabelEntities(p.str("suffix", "_x")) }
	r.impls["reorder_fields"] = func(Params) Fn { return reorderFields }
	r.impls["enum_restate"] = func(Params) Fn { return enumRestate(schema) }
	r.impls["explicit_defaults"] = func(Params) Fn { return explicitDefaults(schema) }
	r.impls["scale_numbers"] = func(p Params) Fn { return scaleNumbers(p.float("factor", 10)) }
	r.impls["append_qualifier"] = func(p Params) Fn { return appendQualifier(p.str("value", "reviewed")) }
	r.impls["negate"] = func(Params) Fn { return negate }
	r.impls["nudge_numbers"] = func(p Params) Fn { return nudgeNumbers(p.float("epsilon", 1e-9)) }

	return r
}

// Resolve returns the implementation for a name, parameterized.
func (r *Registry) Resolve(impl string, params Params) (Fn, error) {
	factory, ok := r.impls[impl]
	if !ok {
		return nil, errors.Wrapf(errors.ErrConfigInvalid, "unknown transform implementation %q", impl)
	}
	return factory(params), nil
}

// permuteSets rotates every unordered collection by one element. A pure
// relabeling of set order; collapses under N6.
func permuteSets(n *canon.Node) *canon.Node {
	out := n.Clone()
	out.Walk(func(node *canon.Node) {
		if node.Kind == canon.KindSet && len(node.Elems) > 1 {
			node.Elems = append(node.Elems[1:], node.Elems[0])
		}
	})
	return out
}

// relabelEntities renames every entity consistently. Collapses under N2.
func relabelEntities(suffix string) Fn {
	return func(n *canon.Node) *canon.Node {
		out := n.Clone()
		out.Walk(func(node *canon.Node) {
			if node.Kind == canon.KindEntity {
				node.Str = node.Str + suffix
			}
		})
		return out
	}
}

// reorderFields reverses the field order of every record. Collapses under N1.
func reorderFields(n *canon.Node) *canon.Node {
	out := n.Clone()
	out.Walk(func(node *canon.Node) {
		if node.Kind == canon.KindRecord {
			for i, j := 0, len(node.Fields)-1; i < j; i, j = i+1, j-1 {
				node.Fields[i], node.Fields[j] = node.Fields[j], node.Fields[i]
			}
		}
	})
	return out
}

// enumRestate rewrites every enum variant to the last member of its class,
// a synonym of the original. Collapses under N3.
func enumRestate(schema *canon.Schema) Fn {
	return func(n *canon.Node) *canon.Node {
		out := n.Clone()
		out.Walk(func(node *canon.Node) {
			if node.Kind != canon.KindString {
				return
			}
			for _, class := range schema.Enums {
				for _, m := range class.Members {
					if node.Str == m {
						node.Str = class.Members[len(class.Members)-1]
						return
					}
				}
			}
		})
		return out
	}
}

// explicitDefaults writes schema defaults explicitly into the root record.
// The declared-equivalent context embedding for mixed-defect measurement:
// stating a default is not supposed to change meaning. Collapses under N4.
func explicitDefaults(schema *canon.Schema) Fn {
	return func(n *canon.Node) *canon.Node {
		out := n.Clone()
		for field, rule := range schema.Fields {
			def := rule.DefaultNode()
			if def == nil {
				continue
			}
			if out.Field(field) == nil {
				out.SetField(field, def)
			}
		}
		return out
	}
}

// scaleNumbers multiplies every number by the factor (a unit change).
// Not meaning-preserving under canonicalization; declared to commute with
// the structural relabelings.
func scaleNumbers(factor float64) Fn {
	return func(n *canon.Node) *canon.Node {
		out := n.Clone()
		out.Walk(func(node *canon.Node) {
			if node.Kind == canon.KindNumber {
				node.Num *= factor
			}
		})
		return out
	}
}

// appendQualifier adds a qualifier field to the root if absent.
func appendQualifier(value string) Fn {
	return func(n *canon.Node) *canon.Node {
		out := n.Clone()
		if out.Field("qualifier") == nil {
			out.SetField("qualifier", canon.Str(value))
		}
		return out
	}
}

// negate flips the root action and marks any existing qualifier as negated.
// Built to conflict with appendQualifier: the pair is known non-commuting
// by construction, so the harness must observe a nonzero commutator on it.
func negate(n *canon.Node) *canon.Node {
	out := n.Clone()
	if action := out.Field("action"); action != nil && action.Kind == canon.KindString {
		if strings.HasPrefix(action.Str, "not_") {
			action.Str = strings.TrimPrefix(action.Str, "not_")
		} else {
			action.Str = "not_" + action.Str
		}
	}
	if q := out.Field("qualifier"); q != nil && q.Kind == canon.KindString {
		q.Str = "negated_" + q.Str
	}
	return out
}

// nudgeNumbers perturbs numbers below the declared precision. Canary
// implementation: a canonicalizer that only handles the public suite would
// miss it, which is exactly what it exists to detect.
func nudgeNumbers(epsilon float64) Fn {
	return func(n *canon.Node) *canon.Node {
		out := n.Clone()
		out.Walk(func(node *canon.Node) {
			if node.Kind == canon.KindNumber {
				node.Num += epsilon
			}
		})
		return out
	}
}
