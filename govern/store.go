package govern

import (
	"database/sql"
	"encoding/json"

	"github.com/teranos/invar/errors"
)

// Store persists decision outcomes for later audit.
type Store struct {
	db *sql.DB
}

// NewStore creates a decision store backed by the given database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append writes one decision outcome.
func (s *Store) Append(outcome *DecisionOutcome) error {
	payload, err := json.Marshal(outcome)
	if err != nil {
		return errors.Wrapf(err, "failed to encode decision %s", outcome.TraceID)
	}
	var selected interface{}
	if outcome.SelectedOption != "" {
		selected = outcome.SelectedOption
	}
	_, err = s.db.Exec(`
		INSERT INTO decisions (trace_id, selected_option, config_version, outcome)
		VALUES (?, ?, ?, ?)`,
		outcome.TraceID, selected, outcome.ConfigVersion, string(payload),
	)
	if err != nil {
		return errors.Wrapf(err, "failed to append decision %s", outcome.TraceID)
	}
	return nil
}

// Get retrieves a decision outcome by trace id.
func (s *Store) Get(traceID string) (*DecisionOutcome, error) {
	var payload string
	err := s.db.QueryRow(`SELECT outcome FROM decisions WHERE trace_id = ?`, traceID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(errors.ErrNotFound, "decision %s", traceID)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load decision %s", traceID)
	}
	var outcome DecisionOutcome
	if err := json.Unmarshal([]byte(payload), &outcome); err != nil {
		return nil, errors.Wrapf(err, "failed to decode decision %s", traceID)
	}
	return &outcome, nil
}
