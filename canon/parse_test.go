package canon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/invar/errors"
)

func TestParse_Record(t *testing.T) {
	root, err := Parse([]byte(`{"action":"allocate","severity":3.5,"done":false,"note":null}`))
	require.NoError(t, err)
	require.Equal(t, KindRecord, root.Kind)

	assert.Equal(t, "allocate", root.Field("action").Str)
	assert.Equal(t, 3.5, root.Field("severity").Num)
	assert.Equal(t, KindBool, root.Field("done").Kind)
	assert.Equal(t, KindNull, root.Field("note").Kind)
}

func TestParse_EntitiesAndSets(t *testing.T) {
	root, err := Parse([]byte(`{"owner":"@alice","options":{"$set":["@bob","@carol"]}}`))
	require.NoError(t, err)

	owner := root.Field("owner")
	require.Equal(t, KindEntity, owner.Kind)
	assert.Equal(t, "alice", owner.Str)

	options := root.Field("options")
	require.Equal(t, KindSet, options.Kind)
	require.Len(t, options.Elems, 2)
	assert.Equal(t, KindEntity, options.Elems[0].Kind)
}

func TestParse_Vetoes(t *testing.T) {
	cases := map[string]string{
		"duplicate key":      `{"a":1,"a":2}`,
		"trailing data":      `{"a":1} {"b":2}`,
		"top-level array":    `[1,2]`,
		"top-level scalar":   `42`,
		"empty entity":       `{"owner":"@"}`,
		"set not array":      `{"options":{"$set":{"a":1}}}`,
		"set with extra key": `{"options":{"$set":[1],"other":2}}`,
		"malformed":          `{"a":`,
		"garbage":            `not json at all`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(raw))
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrParseFailure), "expected parse failure, got %v", err)
		})
	}
}

func TestParse_NestedSetInList(t *testing.T) {
	root, err := Parse([]byte(`{"steps":[{"$set":["b","a"]},"end"]}`))
	require.NoError(t, err)

	steps := root.Field("steps")
	require.Equal(t, KindList, steps.Kind)
	assert.Equal(t, KindSet, steps.Elems[0].Kind)
	assert.Equal(t, KindString, steps.Elems[1].Kind)
}
