package govern

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/teranos/invar/errors"
)

// ReplayFile is a recorded decision request: candidate options plus the
// judgments collected for them, replayable against a governance config
// without live judges.
type ReplayFile struct {
	Options   []string    `yaml:"options"`
	Judgments []*Judgment `yaml:"judgments"`
}

// LoadReplay reads a recorded-judgments file.
func LoadReplay(path string) (*ReplayFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read replay file %s", path)
	}
	var rf ReplayFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, errors.Wrapf(err, "failed to parse replay file %s", path)
	}
	if len(rf.Options) == 0 {
		return nil, errors.Newf("replay file %s declares no options", path)
	}
	for _, j := range rf.Judgments {
		if err := j.Validate(); err != nil {
			return nil, errors.Wrapf(err, "replay file %s", path)
		}
	}
	return &rf, nil
}
