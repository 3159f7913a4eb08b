package config

import (
	"os"

	"github.com/spf13/viper"
)

// DefaultDirPermissions is used when creating the ~/.invar directory
const DefaultDirPermissions os.FileMode = 0o755

// SetDefaults applies the default configuration values to a Viper instance
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "invar.db")

	v.SetDefault("canon.schema_path", "schema.toml")

	v.SetDefault("harness.suite_path", "suite.toml")
	v.SetDefault("harness.workers", 4)
	v.SetDefault("harness.queue_size", 256)
	v.SetDefault("harness.rate_per_second", 0.0)
	v.SetDefault("harness.rate_burst", 16)
	v.SetDefault("harness.probe_fraction", 0.15)
	v.SetDefault("harness.worst_case_iterations", 32)

	v.SetDefault("bond.calibration_path", "calibration.toml")
	v.SetDefault("bond.domain", "")

	v.SetDefault("governance.config_path", "governance.toml")
	v.SetDefault("governance.collect_timeout_seconds", 30)
}
