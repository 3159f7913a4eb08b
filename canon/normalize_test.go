package canon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema() *Schema {
	p2 := 2
	return &Schema{
		Version:          "1.0.0",
		MaxDepth:         16,
		DefaultPrecision: 4,
		Fields: map[string]FieldRule{
			"action":   {Type: "string", Required: true},
			"severity": {Type: "number", Precision: &p2, Default: float64(0)},
			"urgency":  {Type: "enum", Enum: "urgency"},
			"options":  {Type: "set"},
			"steps":    {Type: "list"},
			"owner":    {Type: "entity"},
		},
		Enums: map[string]EnumClass{
			"urgency": {
				Canonical:   "urgent",
				Alternative: "critical",
				Members:     []string{"urgent", "critical", "emergency"},
			},
		},
	}
}

func mustParse(t *testing.T, raw string) *Node {
	t.Helper()
	root, err := Parse([]byte(raw))
	require.NoError(t, err)
	return root
}

func normalized(t *testing.T, raw string) []byte {
	t.Helper()
	root := mustParse(t, raw)
	require.NoError(t, Validate(root, testSchema()))
	return Serialize(Normalize(root, testSchema(), Options{}))
}

func TestNormalize_Idempotence(t *testing.T) {
	root := mustParse(t, `{"action":"allocate","severity":3.14159,"urgency":"emergency","options":{"$set":["b","a","c"]},"owner":"@alice","steps":[1,2,{"z":1,"a":2}]}`)
	schema := testSchema()

	once := Normalize(root, schema, Options{})
	twice := Normalize(once, schema, Options{})

	assert.True(t, once.Equal(twice), "normalize(normalize(x)) must equal normalize(x)")
	assert.Equal(t, Serialize(once), Serialize(twice))
}

func TestNormalize_FieldOrderInvariance(t *testing.T) {
	a := normalized(t, `{"action":"allocate","severity":1.5}`)
	b := normalized(t, `{"severity":1.5,"action":"allocate"}`)
	assert.Equal(t, a, b)
}

func TestNormalize_SetPermutationCollapses(t *testing.T) {
	// Permuting an unordered option collection must not move the StateID.
	a := normalized(t, `{"action":"allocate_to_patient_A","options":{"$set":["p1","p2","p3"]}}`)
	b := normalized(t, `{"action":"allocate_to_patient_A","options":{"$set":["p3","p1","p2"]}}`)
	assert.Equal(t, ComputeStateID(a), ComputeStateID(b))
}

func TestNormalize_EntityBearingSetIdempotence(t *testing.T) {
	// Set elements carrying entity references: ids must be assigned after
	// the set order is fixed, or the second pass renumbers.
	root := mustParse(t, `{"action":"x","options":{"$set":[{"b":"@y"},{"a":"@x"}]}}`)
	schema := testSchema()

	once := Normalize(root, schema, Options{})
	twice := Normalize(once, schema, Options{})

	assert.Equal(t, string(Serialize(once)), string(Serialize(twice)))
}

func TestNormalize_EntityBearingSetPermutationCollapses(t *testing.T) {
	a := normalized(t, `{"action":"x","options":{"$set":[{"b":"@y"},{"a":"@x"}]}}`)
	b := normalized(t, `{"action":"x","options":{"$set":[{"a":"@x"},{"b":"@y"}]}}`)
	assert.Equal(t, ComputeStateID(a), ComputeStateID(b))
}

func TestNormalize_StructurallyTiedSetElements(t *testing.T) {
	// Elements identical up to entity naming sort as a tie; positional
	// numbering must make every permutation of the group collapse.
	a := normalized(t, `{"action":"x","options":{"$set":[{"a":"@p"},{"a":"@q"}]}}`)
	b := normalized(t, `{"action":"x","options":{"$set":[{"a":"@q"},{"a":"@p"}]}}`)
	assert.Equal(t, ComputeStateID(a), ComputeStateID(b))
}

func TestNormalize_ListOrderPreserved(t *testing.T) {
	a := normalized(t, `{"action":"x","steps":[1,2,3]}`)
	b := normalized(t, `{"action":"x","steps":[3,2,1]}`)
	assert.NotEqual(t, string(a), string(b), "lists are ordered; permutation is meaningful")
}

func TestNormalize_EnumSynonymsCollapse(t *testing.T) {
	a := normalized(t, `{"action":"x","urgency":"emergency"}`)
	b := normalized(t, `{"action":"x","urgency":"urgent"}`)
	c := normalized(t, `{"action":"x","urgency":"critical"}`)
	assert.Equal(t, a, b)
	assert.Equal(t, a, c)
}

func TestNormalize_DefaultFieldDropped(t *testing.T) {
	withDefault := normalized(t, `{"action":"x","severity":0}`)
	without := normalized(t, `{"action":"x"}`)
	assert.Equal(t, without, withDefault)
}

func TestNormalize_NumericPrecision(t *testing.T) {
	a := normalized(t, `{"action":"x","severity":1.23449}`)
	b := normalized(t, `{"action":"x","severity":1.2301}`)
	// severity declares precision 2: both round to 1.23
	assert.Equal(t, a, b)

	c := normalized(t, `{"action":"x","severity":1.24}`)
	assert.NotEqual(t, string(a), string(c))
}

func TestNormalize_NegativeZeroCollapses(t *testing.T) {
	a := normalized(t, `{"action":"x","severity":-0.001}`)
	b := normalized(t, `{"action":"x"}`)
	// -0.001 rounds to -0 at precision 2, which must collapse to the 0
	// default and be dropped
	assert.Equal(t, b, a)
}

func TestNormalize_EntityRelabelingCollapses(t *testing.T) {
	// A consistent renaming of entities must land on the same canonical ids.
	a := normalized(t, `{"action":"x","owner":"@alice","steps":["@alice","@bob"]}`)
	b := normalized(t, `{"action":"x","owner":"@zara","steps":["@zara","@yuri"]}`)
	assert.Equal(t, a, b)
}

func TestNormalize_EntityFirstOccurrenceOrder(t *testing.T) {
	root := mustParse(t, `{"action":"x","owner":"@bob","steps":["@alice","@bob"]}`)
	n := Normalize(root, testSchema(), Options{})

	// After N1 field sort the walk visits "owner" before "steps", so @bob is e1.
	assert.Equal(t, "e1", n.Field("owner").Str)
	assert.Equal(t, "e2", n.Field("steps").Elems[0].Str)
	assert.Equal(t, "e1", n.Field("steps").Elems[1].Str)
}

func TestNormalize_AlternativeEnumTagsDiverge(t *testing.T) {
	root := mustParse(t, `{"action":"x","urgency":"emergency"}`)
	schema := testSchema()

	primary := Serialize(Normalize(root, schema, Options{}))
	alt := Serialize(Normalize(root, schema, Options{AlternativeEnumTags: true}))

	// Both are valid canonicalizer choices; they disagree on the tag, which
	// is exactly the gauge freedom the bond decomposition probes.
	assert.NotEqual(t, string(primary), string(alt))
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	root := mustParse(t, `{"action":"x","options":{"$set":["b","a"]}}`)
	before := Serialize(root)
	Normalize(root, testSchema(), Options{})
	assert.Equal(t, before, Serialize(root))
}
