package commands

import (
	"database/sql"
	"io"
	"os"

	"github.com/teranos/invar/bond"
	"github.com/teranos/invar/canon"
	"github.com/teranos/invar/config"
	"github.com/teranos/invar/db"
	"github.com/teranos/invar/errors"
	"github.com/teranos/invar/logger"
	"github.com/teranos/invar/transform"
)

// ConfigFileFlag is the --config override, set by the root command.
var ConfigFileFlag string

func loadConfig() (*config.Config, error) {
	if ConfigFileFlag != "" {
		return config.LoadFromFile(ConfigFileFlag)
	}
	return config.Load()
}

func openDatabase(cfg *config.Config) (*sql.DB, error) {
	database, err := db.Open(cfg.Database.Path, logger.Logger)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	if err := db.Migrate(database, logger.Logger); err != nil {
		database.Close()
		return nil, errors.Wrap(err, "failed to migrate database")
	}
	return database, nil
}

func loadSchema(cfg *config.Config) (*canon.Schema, error) {
	schema, err := canon.LoadSchema(cfg.Canon.SchemaPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load schema")
	}
	return schema, nil
}

func loadSuite(cfg *config.Config, schema *canon.Schema) (*transform.Suite, error) {
	suite, err := transform.LoadSuite(cfg.Harness.SuitePath, schema)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load transform suite")
	}
	return suite, nil
}

func loadCalibration(cfg *config.Config) (*bond.CalibrationRecord, error) {
	set, err := bond.LoadCalibrations(cfg.Bond.CalibrationPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load calibration file")
	}
	return set.ForDomain(cfg.Bond.Domain)
}

// readCorpus reads one document per file; "-" reads a single document from
// stdin.
func readCorpus(paths []string) ([][]byte, error) {
	var corpus [][]byte
	for _, path := range paths {
		data, err := readInput(path)
		if err != nil {
			return nil, err
		}
		corpus = append(corpus, data)
	}
	return corpus, nil
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read stdin")
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	return data, nil
}
