package harness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/invar/canon"
	"github.com/teranos/invar/db"
)

func openSampleStore(t *testing.T) *SampleStore {
	t.Helper()
	conn, err := db.Open(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, db.Migrate(conn, nil))
	return NewSampleStore(conn)
}

func TestSampleStore_Roundtrip(t *testing.T) {
	store := openSampleStore(t)

	conclusive := &DefectSample{
		ID:         "s1",
		RunID:      "run-1",
		Kind:       KindCommutator,
		Strategy:   StrategyWithinFamily,
		Transforms: []string{"negate", "append_qualifier"},
		LeftState:  canon.StateID("aa"),
		RightState: canon.StateID("bb"),
		Distance:   0.42,
		Conclusive: true,
		CreatedAt:  time.Now().UTC().Truncate(time.Millisecond),
	}
	inconclusive := &DefectSample{
		ID:                 "s2",
		RunID:              "run-1",
		Kind:               KindMixed,
		Strategy:           StrategyContext,
		Transforms:         []string{"relabel_entities", "ctx:explicit_defaults"},
		Conclusive:         false,
		InconclusiveReason: "left: validation_failure",
		CreatedAt:          time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, store.Append(conclusive))
	require.NoError(t, store.Append(inconclusive))

	samples, err := store.ListByRun("run-1")
	require.NoError(t, err)
	require.Len(t, samples, 2)

	got := samples[0]
	assert.Equal(t, conclusive.Transforms, got.Transforms)
	assert.Equal(t, conclusive.Distance, got.Distance)
	assert.Equal(t, conclusive.LeftState, got.LeftState)
	assert.True(t, got.Conclusive)

	assert.False(t, samples[1].Conclusive)
	assert.Equal(t, "left: validation_failure", samples[1].InconclusiveReason)
	assert.Empty(t, samples[1].LeftState)
}

func TestSampleStore_CountByKind(t *testing.T) {
	store := openSampleStore(t)
	for _, kind := range []string{KindProbe, KindProbe, KindCommutator} {
		s := newSample("run-2", kind, StrategyProbe, []string{"p"})
		s.Conclusive = true
		require.NoError(t, store.Append(s))
	}

	counts, err := store.CountByKind("run-2")
	require.NoError(t, err)
	assert.Equal(t, 2, counts[KindProbe])
	assert.Equal(t, 1, counts[KindCommutator])
}

func TestSampleStore_ListOtherRunEmpty(t *testing.T) {
	store := openSampleStore(t)
	samples, err := store.ListByRun("missing")
	require.NoError(t, err)
	assert.Empty(t, samples)
}
