package canon

import (
	"math"

	"github.com/teranos/invar/errors"
)

// Validation failure codes. Public-facing callers only ever see the coarse
// "validation failure" category; the code is internal detail for logs and
// the audit trail.
const (
	CodeDepthExceeded   = "depth_exceeded"
	CodeRequiredMissing = "required_missing"
	CodeUnknownField    = "unknown_field"
	CodeTypeMismatch    = "type_mismatch"
	CodeNumberNotFinite = "number_not_finite"
	CodeEnumUnknown     = "enum_unknown_variant"
)

// Validate checks the parsed tree against the active rule-set. It is total
// and terminates on adversarial input: the depth bound is enforced before
// any recursive structural check.
func Validate(root *Node, schema *Schema) error {
	if depth(root, schema.MaxDepth+1) > schema.MaxDepth {
		return errors.NewValidationError(CodeDepthExceeded, "tree exceeds max depth %d", schema.MaxDepth)
	}

	var numErr error
	root.Walk(func(n *Node) {
		if numErr == nil && n.Kind == KindNumber && (math.IsNaN(n.Num) || math.IsInf(n.Num, 0)) {
			numErr = errors.NewValidationError(CodeNumberNotFinite, "non-finite number in tree")
		}
	})
	if numErr != nil {
		return numErr
	}

	for field, rule := range schema.Fields {
		value := root.Field(field)
		if value == nil {
			if rule.Required {
				return errors.NewValidationError(CodeRequiredMissing, "required field %q missing", field)
			}
			continue
		}
		if err := checkType(field, value, rule, schema); err != nil {
			return err
		}
	}

	if schema.Strict {
		for _, f := range root.Fields {
			if _, ok := schema.Fields[f.Key]; !ok {
				return errors.NewValidationError(CodeUnknownField, "field %q not declared in schema", f.Key)
			}
		}
	}

	return nil
}

func checkType(field string, value *Node, rule FieldRule, schema *Schema) error {
	want := rule.Type
	if want == "enum" {
		if value.Kind != KindString {
			return errors.NewValidationError(CodeTypeMismatch, "field %q: expected enum variant, got %s", field, value.Kind)
		}
		class := schema.Enums[rule.Enum]
		if !contains(class.Members, value.Str) {
			return errors.NewValidationError(CodeEnumUnknown, "field %q: %q is not a variant of %q", field, value.Str, rule.Enum)
		}
		return nil
	}
	if value.Kind.String() != want {
		return errors.NewValidationError(CodeTypeMismatch, "field %q: expected %s, got %s", field, want, value.Kind)
	}
	return nil
}

// depth returns the tree depth, giving up early once limit is exceeded so
// adversarially deep input costs at most limit stack frames.
func depth(n *Node, limit int) int {
	if n == nil || limit <= 0 {
		return 0
	}
	max := 1
	for _, f := range n.Fields {
		if d := depth(f.Value, limit-1) + 1; d > max {
			max = d
		}
		if max > limit {
			return max
		}
	}
	for _, e := range n.Elems {
		if d := depth(e, limit-1) + 1; d > max {
			max = d
		}
		if max > limit {
			return max
		}
	}
	return max
}
