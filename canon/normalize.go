package canon

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Options selects between valid canonicalizer choices. The zero value is the
// primary configuration; the alternatives exist so the gauge/intrinsic
// decomposition can re-run the harness under a different but still-valid
// canonicalizer and attribute any reducible defect to gauge.
type Options struct {
	// CoarsenPrecision reduces every declared numeric precision by this many
	// digits (floored at zero).
	CoarsenPrecision int

	// AlternativeEnumTags collapses enum classes to their declared
	// alternative tag instead of the primary canonical tag.
	AlternativeEnumTags bool
}

// Normalize applies the normalization stages and returns a new tree. The
// input tree is never mutated.
//
// Stage order matters: set sorting (N6) uses an entity-name-blind key and
// runs before entity id assignment (N2), so the first-occurrence order that
// fixes the ids is itself independent of the input's set element order.
// Assigning ids first and sorting after breaks idempotence as soon as a set
// element carries an entity reference. Value-rewriting stages (N3, N4, N5)
// run before the set sort so elements are ordered by their final content.
//
// Required properties, covered by tests: idempotence
// (Normalize(Normalize(x)) == Normalize(x)) and orbit collapse for every
// transform declared meaning-preserving.
func Normalize(root *Node, schema *Schema, opts Options) *Node {
	n := root.Clone()
	sortFields(n)                  // N1
	collapseEnums(n, schema, opts) // N3
	dropDefaults(n, schema, opts)  // N4
	roundNumbers(n, schema, opts)  // N5
	sortSets(n)                    // N6
	renameEntities(n)              // N2
	return n
}

// N1: sort all record fields by key, recursively. Stable lexicographic order.
func sortFields(n *Node) {
	if n == nil {
		return
	}
	if n.Kind == KindRecord {
		sort.SliceStable(n.Fields, func(i, j int) bool { return n.Fields[i].Key < n.Fields[j].Key })
	}
	for _, f := range n.Fields {
		sortFields(f.Value)
	}
	for _, e := range n.Elems {
		sortFields(e)
	}
}

// N2: assign canonical entity identifiers in first-occurrence order. The
// walk order is the canonical one established by N1 and the blind set sort,
// so any consistent renaming of the input entities lands on the same
// assignment. Implemented as an arena of names indexed by canonical id plus
// a first-occurrence map, not an object graph.
func renameEntities(n *Node) {
	arena := make([]string, 0, 8)
	firstSeen := make(map[string]int)

	n.Walk(func(node *Node) {
		if node.Kind != KindEntity {
			return
		}
		id, ok := firstSeen[node.Str]
		if !ok {
			arena = append(arena, node.Str)
			id = len(arena)
			firstSeen[node.Str] = id
		}
		node.Str = fmt.Sprintf("e%d", id)
	})
}

// N3: collapse semantically-equivalent enum variants to one canonical tag.
func collapseEnums(n *Node, schema *Schema, opts Options) {
	n.Walk(func(node *Node) {
		if node.Kind == KindString {
			node.Str = schema.CanonicalTag(node.Str, opts.AlternativeEnumTags)
		}
	})
}

// N4: drop top-level fields whose value equals the schema-declared default.
// Numbers are compared under the field's declared precision: a value that N5
// would round onto the default is the default, and dropping it here is what
// keeps normalization idempotent.
func dropDefaults(n *Node, schema *Schema, opts Options) {
	for field, rule := range schema.Fields {
		def := rule.DefaultNode()
		if def == nil {
			continue
		}
		value := n.Field(field)
		if value == nil {
			continue
		}
		if def.Kind == KindNumber && value.Kind == KindNumber {
			p := effectivePrecision(schema.FieldPrecision(field), opts)
			if roundTo(value.Num, p) == roundTo(def.Num, p) {
				n.DropField(field)
			}
			continue
		}
		if value.Equal(def) {
			n.DropField(field)
		}
	}
}

// N5: round numeric values to the domain-declared precision. Numbers under a
// declared top-level field use that field's precision; everything else uses
// the schema default. Prevents floating-point divergence between otherwise
// equivalent descriptions.
func roundNumbers(n *Node, schema *Schema, opts Options) {
	for _, f := range n.Fields {
		p := effectivePrecision(schema.FieldPrecision(f.Key), opts)
		roundSubtree(f.Value, p)
	}
}

func effectivePrecision(declared int, opts Options) int {
	p := declared - opts.CoarsenPrecision
	if p < 0 {
		p = 0
	}
	return p
}

func roundSubtree(n *Node, precision int) {
	n.Walk(func(node *Node) {
		if node.Kind == KindNumber {
			node.Num = roundTo(node.Num, precision)
		}
	})
}

func roundTo(v float64, precision int) float64 {
	shift := math.Pow(10, float64(precision))
	r := math.Round(v*shift) / shift
	if r == 0 {
		return 0 // collapse negative zero
	}
	return r
}

// N6: sort unordered collections by the serialized byte form of their
// elements with entity names erased. The erased key is invariant under any
// entity relabeling, and because it runs before id assignment the resulting
// ids cannot depend on the input's set order. Elements tied under the erased
// key are structurally identical up to entity naming; the stable sort keeps
// them in input order and N2 then numbers them positionally, so any
// permutation of such a group still lands on the same canonical bytes.
func sortSets(n *Node) {
	if n == nil {
		return
	}
	for _, f := range n.Fields {
		sortSets(f.Value)
	}
	for _, e := range n.Elems {
		sortSets(e)
	}
	if n.Kind == KindSet {
		sort.SliceStable(n.Elems, func(i, j int) bool {
			return bytes.Compare(serializeBlind(n.Elems[i]), serializeBlind(n.Elems[j])) < 0
		})
	}
}

// Serialize is N7: the canonical byte serialization. Deterministic JSON with
// record keys in their N1 order, entities as "@name", sets in their single
// "$set" wrapper, and numbers in minimal float form.
func Serialize(n *Node) []byte {
	var b strings.Builder
	writeNode(&b, n, false)
	return []byte(b.String())
}

// serializeBlind is the N6 sort key: the canonical serialization with every
// entity name erased to the bare "@" marker.
func serializeBlind(n *Node) []byte {
	var b strings.Builder
	writeNode(&b, n, true)
	return []byte(b.String())
}

func writeNode(b *strings.Builder, n *Node, blindEntities bool) {
	switch n.Kind {
	case KindNull:
		b.WriteString("null")
	case KindBool:
		b.WriteString(strconv.FormatBool(n.Bool))
	case KindNumber:
		b.WriteString(strconv.FormatFloat(n.Num, 'f', -1, 64))
	case KindString:
		b.WriteString(strconv.Quote(n.Str))
	case KindEntity:
		if blindEntities {
			b.WriteString(strconv.Quote("@"))
		} else {
			b.WriteString(strconv.Quote("@" + n.Str))
		}
	case KindList:
		writeElems(b, n.Elems, blindEntities)
	case KindSet:
		b.WriteString(`{"$set":`)
		writeElems(b, n.Elems, blindEntities)
		b.WriteByte('}')
	case KindRecord:
		b.WriteByte('{')
		for i, f := range n.Fields {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Quote(f.Key))
			b.WriteByte(':')
			writeNode(b, f.Value, blindEntities)
		}
		b.WriteByte('}')
	}
}

func writeElems(b *strings.Builder, elems []*Node, blindEntities bool) {
	b.WriteByte('[')
	for i, e := range elems {
		if i > 0 {
			b.WriteByte(',')
		}
		writeNode(b, e, blindEntities)
	}
	b.WriteByte(']')
}
