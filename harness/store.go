package harness

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/teranos/invar/canon"
	"github.com/teranos/invar/errors"
)

// SampleStore persists raw defect samples. Inconclusive samples are written
// too — they are excluded from aggregates, not from the record.
type SampleStore struct {
	db *sql.DB
}

// NewSampleStore creates a sample store backed by the given database.
func NewSampleStore(db *sql.DB) *SampleStore {
	return &SampleStore{db: db}
}

// Append writes one sample.
func (s *SampleStore) Append(sample *DefectSample) error {
	transforms, err := json.Marshal(sample.Transforms)
	if err != nil {
		return errors.Wrapf(err, "failed to encode transform list for sample %s", sample.ID)
	}

	var distance interface{}
	if sample.Conclusive {
		distance = sample.Distance
	}
	_, err = s.db.Exec(`
		INSERT INTO defect_samples (id, run_id, kind, strategy, transforms, left_state, right_state, distance, conclusive, inconclusive_reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sample.ID,
		sample.RunID,
		sample.Kind,
		sample.Strategy,
		string(transforms),
		nullableState(sample.LeftState),
		nullableState(sample.RightState),
		distance,
		boolToInt(sample.Conclusive),
		nullableStr(sample.InconclusiveReason),
		sample.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return errors.Wrapf(err, "failed to append defect sample %s", sample.ID)
	}
	return nil
}

// ListByRun returns every sample of one run, oldest first.
func (s *SampleStore) ListByRun(runID string) ([]*DefectSample, error) {
	rows, err := s.db.Query(`
		SELECT id, run_id, kind, strategy, transforms, left_state, right_state, distance, conclusive, inconclusive_reason, created_at
		FROM defect_samples WHERE run_id = ? ORDER BY created_at ASC, id ASC`, runID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list samples for run %s", runID)
	}
	defer rows.Close()

	var samples []*DefectSample
	for rows.Next() {
		sample, err := scanSample(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan defect sample")
		}
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}

// CountByKind returns per-kind sample counts for one run.
func (s *SampleStore) CountByKind(runID string) (map[string]int, error) {
	rows, err := s.db.Query(`
		SELECT kind, COUNT(*) FROM defect_samples WHERE run_id = ? GROUP BY kind`, runID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to count samples for run %s", runID)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, errors.Wrap(err, "failed to scan sample count")
		}
		counts[kind] = n
	}
	return counts, rows.Err()
}

func scanSample(rows *sql.Rows) (*DefectSample, error) {
	var sample DefectSample
	var transforms string
	var leftState, rightState, reason sql.NullString
	var distance sql.NullFloat64
	var conclusive int
	var createdAt int64
	if err := rows.Scan(&sample.ID, &sample.RunID, &sample.Kind, &sample.Strategy, &transforms,
		&leftState, &rightState, &distance, &conclusive, &reason, &createdAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(transforms), &sample.Transforms); err != nil {
		return nil, errors.Wrapf(err, "failed to decode transform list for sample %s", sample.ID)
	}
	sample.LeftState = canon.StateID(leftState.String)
	sample.RightState = canon.StateID(rightState.String)
	sample.Distance = distance.Float64
	sample.Conclusive = conclusive != 0
	sample.InconclusiveReason = reason.String
	sample.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &sample, nil
}

func nullableState(s canon.StateID) interface{} {
	return nullableStr(string(s))
}

func nullableStr(s string) interface{} {
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
