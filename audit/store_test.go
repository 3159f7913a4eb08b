package audit

import (
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/invar/canon"
	"github.com/teranos/invar/db"
	"github.com/teranos/invar/errors"
)

func openTestDB(t *testing.T) *Store {
	t.Helper()
	conn, err := db.Open(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, db.Migrate(conn, nil))
	return NewStore(conn)
}

func successEntry(id string) *Entry {
	return &Entry{
		ID:        id,
		StateID:   canon.StateID("deadbeef"),
		Canonical: []byte(`{"action":"x"}`),
		Producer:  "invar/test",
		Timestamp: time.Now().UTC(),
	}
}

func TestAppendAndGet(t *testing.T) {
	store := openTestDB(t)

	e := successEntry("AR-1")
	require.NoError(t, store.Append(e))

	got, err := store.Get("AR-1")
	require.NoError(t, err)
	assert.Equal(t, e.StateID, got.StateID)
	assert.Equal(t, e.Canonical, got.Canonical)
	assert.False(t, got.Veto)
}

func TestAppend_VetoEntry(t *testing.T) {
	store := openTestDB(t)

	e := &Entry{
		ID:        "AT-1",
		Veto:      true,
		Reason:    canon.ReasonValidationFailure,
		Code:      "code=required_missing",
		Producer:  "invar/test",
		Timestamp: time.Now().UTC(),
	}
	require.NoError(t, store.Append(e))

	got, err := store.Get("AT-1")
	require.NoError(t, err)
	assert.True(t, got.Veto)
	assert.Equal(t, canon.ReasonValidationFailure, got.Reason)
	assert.Empty(t, got.StateID)

	n, err := store.CountVetoes()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAppendOnly_TriggersRejectMutation(t *testing.T) {
	conn, err := db.Open(":memory:", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, db.Migrate(conn, nil))

	store := NewStore(conn)
	require.NoError(t, store.Append(successEntry("AR-2")))

	_, err = conn.Exec(`UPDATE audit_log SET producer = 'tampered' WHERE id = 'AR-2'`)
	assert.Error(t, err, "audit log updates must be rejected")

	_, err = conn.Exec(`DELETE FROM audit_log WHERE id = 'AR-2'`)
	assert.Error(t, err, "audit log deletes must be rejected")
}

func TestGet_NotFound(t *testing.T) {
	store := openTestDB(t)
	_, err := store.Get("nope")
	assert.True(t, errors.IsNotFoundError(err))
}

func TestList_NewestFirst(t *testing.T) {
	store := openTestDB(t)

	older := successEntry("AR-old")
	older.Timestamp = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, store.Append(older))
	require.NoError(t, store.Append(successEntry("AR-new")))

	entries, err := store.List(10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "AR-new", entries[0].ID)
}

func TestEntryFromResult(t *testing.T) {
	vetoRes := &canon.Result{
		Veto:   true,
		Reason: canon.ReasonParseFailure,
		Err:    errors.Wrap(errors.ErrParseFailure, "duplicate key"),
	}
	e := EntryFromResult(vetoRes, "invar/test")
	assert.True(t, e.Veto)
	assert.Equal(t, "AT", e.ID[:2])
	assert.Equal(t, canon.ReasonParseFailure, e.Reason)

	okRes := &canon.Result{
		Artifact: &canon.Artifact{
			ID:             "AR-9",
			StateID:        "cafe",
			CanonicalBytes: []byte("{}"),
			Producer:       "invar/test",
			Timestamp:      time.Now().UTC(),
		},
	}
	e = EntryFromResult(okRes, "invar/test")
	assert.False(t, e.Veto)
	assert.Equal(t, "AR-9", e.ID)
}

func TestAppend_PropagatesDriverError(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	mock.ExpectExec("INSERT INTO audit_log").WillReturnError(assert.AnError)

	store := NewStore(mockDB)
	err = store.Append(successEntry("AR-3"))
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
