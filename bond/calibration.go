// Package bond turns raw defect samples into the calibrated Bond Index:
// Bd = defect/τ, aggregated into distribution statistics and a deployment
// tier. τ and the field-severity weights come from an offline human rating
// study; this package consumes that record read-only and refuses to compute
// anything without it.
package bond

import (
	"math"
	"os"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/teranos/invar/errors"
	"github.com/teranos/invar/harness"
)

const weightTolerance = 1e-6

// CalibrationRecord is the output of one domain's rating study.
type CalibrationRecord struct {
	Domain       string             `toml:"domain"`
	Tau          float64            `toml:"tau"`
	RaterCount   int                `toml:"rater_count"`
	Agreement    float64            `toml:"agreement"` // inter-rater alpha
	CalibratedAt time.Time          `toml:"calibrated_at"`
	Weights      map[string]float64 `toml:"weights"` // field-severity weights, sum to 1
}

// SeverityWeights exposes the record's weights in the form the harness
// distance takes.
func (c *CalibrationRecord) SeverityWeights() harness.Weights {
	return harness.Weights(c.Weights)
}

type calibrationFile struct {
	Calibrations []CalibrationRecord `toml:"calibrations"`
}

// CalibrationSet holds every calibrated domain from one file.
type CalibrationSet struct {
	records map[string]*CalibrationRecord
}

// LoadCalibrations reads and validates a calibration file. Invalid records
// are rejected at load time; a record that loads is safe to compute with.
func LoadCalibrations(path string) (*CalibrationSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read calibration file %s", path)
	}
	var cf calibrationFile
	if err := toml.Unmarshal(data, &cf); err != nil {
		return nil, errors.Wrapf(errors.ErrConfigInvalid, "failed to parse calibration file %s: %v", path, err)
	}

	set := &CalibrationSet{records: make(map[string]*CalibrationRecord)}
	for i := range cf.Calibrations {
		rec := &cf.Calibrations[i]
		if err := validateRecord(rec); err != nil {
			return nil, err
		}
		if _, dup := set.records[rec.Domain]; dup {
			return nil, errors.Wrapf(errors.ErrConfigInvalid, "duplicate calibration for domain %q", rec.Domain)
		}
		set.records[rec.Domain] = rec
	}
	return set, nil
}

func validateRecord(rec *CalibrationRecord) error {
	switch {
	case rec.Domain == "":
		return errors.Wrap(errors.ErrConfigInvalid, "calibration record missing domain")
	case rec.Tau <= 0:
		return errors.Wrapf(errors.ErrConfigInvalid, "calibration %q: tau must be positive, got %v", rec.Domain, rec.Tau)
	case rec.RaterCount < 2:
		return errors.Wrapf(errors.ErrConfigInvalid, "calibration %q: needs at least 2 raters, got %d", rec.Domain, rec.RaterCount)
	case rec.Agreement <= 0 || rec.Agreement > 1:
		return errors.Wrapf(errors.ErrConfigInvalid, "calibration %q: agreement must be in (0,1], got %v", rec.Domain, rec.Agreement)
	case rec.CalibratedAt.IsZero():
		return errors.Wrapf(errors.ErrConfigInvalid, "calibration %q: missing calibration date", rec.Domain)
	}

	sum := 0.0
	for field, w := range rec.Weights {
		if w < 0 {
			return errors.Wrapf(errors.ErrConfigInvalid, "calibration %q: negative weight for field %q", rec.Domain, field)
		}
		sum += w
	}
	if math.Abs(sum-1) > weightTolerance {
		return errors.Wrapf(errors.ErrConfigInvalid, "calibration %q: severity weights sum to %v, want 1", rec.Domain, sum)
	}
	return nil
}

// ForDomain returns the calibration for a domain. No record means no Bond
// Index: the caller gets ErrMissingCalibration, never a default τ.
func (s *CalibrationSet) ForDomain(domain string) (*CalibrationRecord, error) {
	rec, ok := s.records[domain]
	if !ok {
		return nil, errors.Wrapf(errors.ErrMissingCalibration, "no calibration record for domain %q", domain)
	}
	return rec, nil
}
