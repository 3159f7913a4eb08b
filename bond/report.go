package bond

import (
	"math"
	"sort"
	"time"

	"github.com/teranos/invar/canon"
	"github.com/teranos/invar/errors"
	"github.com/teranos/invar/harness"
)

// Deployment tiers, a monotone step function of the aggregate Bond Index.
const (
	TierNegligible = "Negligible"
	TierLow        = "Low"
	TierModerate   = "Moderate"
	TierHigh       = "High"
	TierSevere     = "Severe"
)

// TierFor maps a Bond Index value onto its deployment tier:
// Negligible < 0.01 ≤ Low < 0.1 ≤ Moderate < 1 ≤ High < 10 ≤ Severe.
func TierFor(bd float64) string {
	switch {
	case bd < 0.01:
		return TierNegligible
	case bd < 0.1:
		return TierLow
	case bd < 1:
		return TierModerate
	case bd < 10:
		return TierHigh
	default:
		return TierSevere
	}
}

// Witness is one worst-offender sample, carried in the report so the defect
// can be inspected without replaying the run.
type Witness struct {
	SampleID   string        `json:"sample_id"`
	Kind       string        `json:"kind"`
	Transforms []string      `json:"transforms"`
	Bd         float64       `json:"bd"`
	LeftState  canon.StateID `json:"left_state"`
	RightState canon.StateID `json:"right_state"`
}

// CalibrationRef records which calibration a report was computed under.
type CalibrationRef struct {
	Domain       string    `json:"domain"`
	Tau          float64   `json:"tau"`
	RaterCount   int       `json:"rater_count"`
	Agreement    float64   `json:"agreement"`
	CalibratedAt time.Time `json:"calibrated_at"`
}

// Report is the aggregate Bond Index over one run's conclusive samples.
// Immutable once computed.
type Report struct {
	Calibration CalibrationRef `json:"calibration"`
	GeneratedAt time.Time      `json:"generated_at"`

	SampleCount       int `json:"sample_count"`       // defect samples, probes excluded
	ConclusiveCount   int `json:"conclusive_count"`
	InconclusiveCount int `json:"inconclusive_count"`

	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	P95    float64 `json:"p95"`
	P99    float64 `json:"p99"`
	Max    float64 `json:"max"`
	Tier   string  `json:"tier"` // step function of mean Bd

	Worst []Witness `json:"worst"`

	ProbeCount    int      `json:"probe_count"`
	ProbePassRate float64  `json:"probe_pass_rate"`
	ProbeFailures []string `json:"probe_failures,omitempty"` // collapsed probes: suite defects
}

const worstWitnessCount = 3

// Compute aggregates defect samples into a Bond Index report. Refuses
// without a calibration record — there is no default τ.
func Compute(samples []*harness.DefectSample, cal *CalibrationRecord) (*Report, error) {
	if cal == nil {
		return nil, errors.Wrap(errors.ErrMissingCalibration, "bond index computation requires a calibration record")
	}

	report := &Report{
		Calibration: CalibrationRef{
			Domain:       cal.Domain,
			Tau:          cal.Tau,
			RaterCount:   cal.RaterCount,
			Agreement:    cal.Agreement,
			CalibratedAt: cal.CalibratedAt,
		},
		GeneratedAt: time.Now().UTC(),
	}

	var bds []float64
	var witnesses []Witness
	probePassed := 0
	for _, s := range samples {
		if s.Kind == harness.KindProbe {
			if !s.Conclusive {
				continue
			}
			report.ProbeCount++
			if s.Distance > 0 {
				probePassed++
			} else {
				report.ProbeFailures = append(report.ProbeFailures, s.Transforms[0])
			}
			continue
		}

		report.SampleCount++
		if !s.Conclusive {
			report.InconclusiveCount++
			continue
		}
		report.ConclusiveCount++
		bd := s.Distance / cal.Tau
		bds = append(bds, bd)
		witnesses = append(witnesses, Witness{
			SampleID:   s.ID,
			Kind:       s.Kind,
			Transforms: s.Transforms,
			Bd:         bd,
			LeftState:  s.LeftState,
			RightState: s.RightState,
		})
	}

	if report.ProbeCount > 0 {
		report.ProbePassRate = float64(probePassed) / float64(report.ProbeCount)
	}

	if report.SampleCount > 0 && report.ConclusiveCount == 0 {
		return nil, errors.Wrap(errors.ErrInconclusive, "every defect sample was inconclusive; nothing to aggregate")
	}

	if len(bds) > 0 {
		sorted := append([]float64(nil), bds...)
		sort.Float64s(sorted)
		report.Mean = mean(sorted)
		report.Median = percentile(sorted, 0.5)
		report.P95 = percentile(sorted, 0.95)
		report.P99 = percentile(sorted, 0.99)
		report.Max = sorted[len(sorted)-1]
	}
	report.Tier = TierFor(report.Mean)

	sort.Slice(witnesses, func(i, j int) bool { return witnesses[i].Bd > witnesses[j].Bd })
	if len(witnesses) > worstWitnessCount {
		witnesses = witnesses[:worstWitnessCount]
	}
	report.Worst = witnesses

	return report, nil
}

func mean(vals []float64) float64 {
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// percentile uses the nearest-rank method on a sorted slice.
func percentile(sorted []float64, p float64) float64 {
	rank := int(math.Ceil(p*float64(len(sorted)))) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}
