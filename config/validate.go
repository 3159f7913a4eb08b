package config

import (
	"github.com/teranos/invar/errors"
)

// Validate rejects configurations that cannot safely drive an evaluation
// run. Rejection happens at load time, never at decision time.
func Validate(cfg *Config) error {
	if cfg.Harness.Workers < 1 {
		return errors.Wrapf(errors.ErrConfigInvalid, "harness.workers must be >= 1, got %d", cfg.Harness.Workers)
	}
	if cfg.Harness.QueueSize < 1 {
		return errors.Wrapf(errors.ErrConfigInvalid, "harness.queue_size must be >= 1, got %d", cfg.Harness.QueueSize)
	}
	if cfg.Harness.RatePerSecond < 0 {
		return errors.Wrapf(errors.ErrConfigInvalid, "harness.rate_per_second must be >= 0, got %f", cfg.Harness.RatePerSecond)
	}
	if cfg.Harness.ProbeFraction < 0.15 {
		// The boundary-probe floor guards against trivial collapse; lowering
		// it below 15% is not a tuning knob.
		return errors.Wrapf(errors.ErrConfigInvalid, "harness.probe_fraction must be >= 0.15, got %f", cfg.Harness.ProbeFraction)
	}
	if cfg.Harness.ProbeFraction >= 1 {
		return errors.Wrapf(errors.ErrConfigInvalid, "harness.probe_fraction must be < 1, got %f", cfg.Harness.ProbeFraction)
	}
	if cfg.Harness.WorstCaseIterations < 0 {
		return errors.Wrapf(errors.ErrConfigInvalid, "harness.worst_case_iterations must be >= 0, got %d", cfg.Harness.WorstCaseIterations)
	}
	if cfg.Governance.CollectTimeoutSeconds < 1 {
		return errors.Wrapf(errors.ErrConfigInvalid, "governance.collect_timeout_seconds must be >= 1, got %d", cfg.Governance.CollectTimeoutSeconds)
	}
	return nil
}
