package canon

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/invar/errors"
)

func testCanonicalizer() *Canonicalizer {
	return New(testSchema(), Options{}, nil, "invar/test")
}

func TestCanonicalize_Success(t *testing.T) {
	c := testCanonicalizer()

	res, err := c.Canonicalize([]byte(`{"action":"allocate","severity":2.5}`))
	require.NoError(t, err)
	require.False(t, res.Veto)

	assert.NotEmpty(t, res.StateID)
	assert.NotNil(t, res.Canonical)
	assert.Equal(t, res.StateID, ComputeStateID(res.Canonical.Bytes))

	require.NotNil(t, res.Artifact)
	assert.Equal(t, "AR", res.Artifact.ID[:2])
	assert.Equal(t, "invar/test", res.Artifact.Producer)
	assert.Empty(t, res.Artifact.Signature, "no signer injected")
}

func TestCanonicalize_ParseVeto(t *testing.T) {
	c := testCanonicalizer()

	res, err := c.Canonicalize([]byte(`{"a":1,"a":2}`))
	require.NoError(t, err)
	require.True(t, res.Veto)
	assert.Equal(t, ReasonParseFailure, res.Reason)
	assert.True(t, errors.Is(res.Err, errors.ErrParseFailure))
	assert.Nil(t, res.Canonical)
}

func TestCanonicalize_ValidationVeto(t *testing.T) {
	c := testCanonicalizer()

	// "action" is required by the test schema
	res, err := c.Canonicalize([]byte(`{"severity":1}`))
	require.NoError(t, err)
	require.True(t, res.Veto)
	assert.Equal(t, ReasonValidationFailure, res.Reason)
	assert.True(t, errors.Is(res.Err, errors.ErrValidationFailure))
}

func TestCanonicalize_ValidationVeto_TypeMismatch(t *testing.T) {
	c := testCanonicalizer()

	res, err := c.Canonicalize([]byte(`{"action":"x","severity":"very"}`))
	require.NoError(t, err)
	require.True(t, res.Veto)
	assert.Equal(t, ReasonValidationFailure, res.Reason)
}

func TestCanonicalize_ValidationVeto_DepthBound(t *testing.T) {
	raw := `{"action":"x","steps":`
	for i := 0; i < 40; i++ {
		raw += `[`
	}
	raw += `1`
	for i := 0; i < 40; i++ {
		raw += `]`
	}
	raw += `}`

	res, err := testCanonicalizer().Canonicalize([]byte(raw))
	require.NoError(t, err)
	require.True(t, res.Veto)
	assert.Equal(t, ReasonValidationFailure, res.Reason)
}

func TestCanonicalize_Determinism(t *testing.T) {
	c := testCanonicalizer()
	raw := []byte(`{"action":"allocate","options":{"$set":["p2","p1"]},"owner":"@alice","severity":3.14159}`)

	first, err := c.Canonicalize(raw)
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		res, err := c.Canonicalize(raw)
		require.NoError(t, err)
		assert.Equal(t, first.StateID, res.StateID)
		assert.Equal(t, first.Canonical.Bytes, res.Canonical.Bytes)
	}
}

func TestCanonicalize_DeterminismParallel(t *testing.T) {
	c := testCanonicalizer()
	raw := []byte(`{"action":"allocate","options":{"$set":["p2","p1","p3"]},"owner":"@alice","severity":3.14159,"urgency":"emergency"}`)

	baseline, err := c.Canonicalize(raw)
	require.NoError(t, err)

	const workers = 16
	const iterations = 25

	var wg sync.WaitGroup
	results := make(chan StateID, workers*iterations)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				res, err := c.Canonicalize(raw)
				if err != nil || res.Veto {
					results <- StateID("")
					continue
				}
				results <- res.StateID
			}
		}()
	}
	wg.Wait()
	close(results)

	for id := range results {
		assert.Equal(t, baseline.StateID, id, "parallel canonicalization must be deterministic")
	}
}

func TestCanonicalize_GaugeOptionsChangeStateID(t *testing.T) {
	primary := testCanonicalizer()
	alt := primary.WithOptions(Options{AlternativeEnumTags: true})

	raw := []byte(`{"action":"x","urgency":"emergency"}`)

	a, err := primary.Canonicalize(raw)
	require.NoError(t, err)
	b, err := alt.Canonicalize(raw)
	require.NoError(t, err)

	assert.NotEqual(t, a.StateID, b.StateID)
}

func TestStateID_EqualityIffSameBytes(t *testing.T) {
	a := ComputeStateID([]byte(`{"a":1}`))
	b := ComputeStateID([]byte(`{"a":1}`))
	c := ComputeStateID([]byte(`{"a":2}`))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
