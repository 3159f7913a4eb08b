// Package audit persists the append-only log of canonicalization attempts.
// One entry per attempt, vetoes included. Entries are never updated or
// deleted — the storage schema enforces this with triggers, and this package
// deliberately exposes no mutation beyond Append.
package audit

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/teranos/invar/canon"
	"github.com/teranos/invar/errors"
)

// Entry is one row of the append-only audit log.
type Entry struct {
	ID        string        `json:"id"`
	StateID   canon.StateID `json:"state_id,omitempty"`
	Canonical []byte        `json:"canonical,omitempty"`
	Veto      bool          `json:"veto"`
	Reason    string        `json:"reason,omitempty"` // coarse public category
	Code      string        `json:"code,omitempty"`   // specific internal code
	Producer  string        `json:"producer"`
	SignerDID string        `json:"signer_did,omitempty"`
	Signature []byte        `json:"signature,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// Store provides append and read access to the audit log.
type Store struct {
	db *sql.DB
}

// NewStore creates an audit store backed by the given database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// EntryFromResult builds the audit entry for one canonicalization attempt.
// Veto attempts get a fresh attempt id; successful attempts reuse the
// artifact id so the log entry and the artifact reference each other.
func EntryFromResult(res *canon.Result, producer string) *Entry {
	if res.Veto {
		code := ""
		if res.Err != nil {
			for _, d := range errors.GetAllDetails(res.Err) {
				code = d // validation code travels as an error detail
			}
		}
		return &Entry{
			ID:        "AT" + uuid.New().String(),
			Veto:      true,
			Reason:    res.Reason,
			Code:      code,
			Producer:  producer,
			Timestamp: time.Now().UTC(),
		}
	}
	return &Entry{
		ID:        res.Artifact.ID,
		StateID:   res.Artifact.StateID,
		Canonical: res.Artifact.CanonicalBytes,
		Producer:  res.Artifact.Producer,
		SignerDID: res.Artifact.SignerDID,
		Signature: res.Artifact.Signature,
		Timestamp: res.Artifact.Timestamp,
	}
}

// Append writes one entry. The only mutation this package offers.
func (s *Store) Append(e *Entry) error {
	_, err := s.db.Exec(`
		INSERT INTO audit_log (id, state_id, canonical, veto, reason, code, producer, signer_did, signature, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		nullable(string(e.StateID)),
		e.Canonical,
		boolToInt(e.Veto),
		nullable(e.Reason),
		nullable(e.Code),
		e.Producer,
		nullable(e.SignerDID),
		e.Signature,
		e.Timestamp.UnixMilli(),
	)
	if err != nil {
		return errors.Wrapf(err, "failed to append audit entry %s", e.ID)
	}
	return nil
}

// Get retrieves a single entry by id.
func (s *Store) Get(id string) (*Entry, error) {
	row := s.db.QueryRow(`
		SELECT id, state_id, canonical, veto, reason, code, producer, signer_did, signature, timestamp
		FROM audit_log WHERE id = ?`, id)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(errors.ErrNotFound, "audit entry %s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load audit entry %s", id)
	}
	return e, nil
}

// List returns the most recent entries, newest first.
func (s *Store) List(limit int) ([]*Entry, error) {
	rows, err := s.db.Query(`
		SELECT id, state_id, canonical, veto, reason, code, producer, signer_did, signature, timestamp
		FROM audit_log ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list audit entries")
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan audit entry")
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountVetoes returns how many attempts in the log were vetoed.
func (s *Store) CountVetoes() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM audit_log WHERE veto = 1`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "failed to count vetoes")
	}
	return n, nil
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row scannable) (*Entry, error) {
	var e Entry
	var stateID, reason, code, signerDID sql.NullString
	var veto int
	var ts int64
	if err := row.Scan(&e.ID, &stateID, &e.Canonical, &veto, &reason, &code, &e.Producer, &signerDID, &e.Signature, &ts); err != nil {
		return nil, err
	}
	e.StateID = canon.StateID(stateID.String)
	e.Veto = veto != 0
	e.Reason = reason.String
	e.Code = code.String
	e.SignerDID = signerDID.String
	e.Timestamp = time.UnixMilli(ts).UTC()
	return &e, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
