package config

// Config represents the core invar engine configuration
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	Canon      CanonConfig      `mapstructure:"canon"`
	Harness    HarnessConfig    `mapstructure:"harness"`
	Bond       BondConfig       `mapstructure:"bond"`
	Governance GovernanceConfig `mapstructure:"governance"`
}

// DatabaseConfig configures the SQLite database holding the audit log,
// raw defect samples, and decision records.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// CanonConfig configures the canonicalizer.
type CanonConfig struct {
	// SchemaPath points at the TOML schema file (field rules, enum synonym
	// classes, numeric precision, defaults).
	SchemaPath string `mapstructure:"schema_path"`
}

// HarnessConfig configures the loop-test harness and its worker pool.
type HarnessConfig struct {
	SuitePath string `mapstructure:"suite_path"` // transform suite definition file

	Workers       int     `mapstructure:"workers"`         // concurrent sample workers (default: 4)
	QueueSize     int     `mapstructure:"queue_size"`      // bounded sample queue capacity (default: 256)
	RatePerSecond float64 `mapstructure:"rate_per_second"` // sample throttle, 0 = unlimited
	RateBurst     int     `mapstructure:"rate_burst"`      // throttle burst (default: 16)

	// ProbeFraction is the mandatory minimum fraction of the corpus that
	// must be boundary probes (default: 0.15).
	ProbeFraction float64 `mapstructure:"probe_fraction"`

	// WorstCaseIterations bounds the hill-climb search for
	// defect-maximizing transform pairs (default: 32).
	WorstCaseIterations int `mapstructure:"worst_case_iterations"`
}

// BondConfig configures the Bond Index calculator.
type BondConfig struct {
	CalibrationPath string `mapstructure:"calibration_path"` // calibration record file
	Domain          string `mapstructure:"domain"`           // active calibration domain
}

// GovernanceConfig configures governance aggregation at the engine level.
// The stakeholder weights, veto predicates and tiers live in their own
// versioned file (see govern.LoadConfig); this block only carries runtime
// knobs.
type GovernanceConfig struct {
	ConfigPath            string `mapstructure:"config_path"`             // governance config file
	CollectTimeoutSeconds int    `mapstructure:"collect_timeout_seconds"` // judgment collection timeout (default: 30)
}
