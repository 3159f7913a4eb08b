package govern

import (
	"math"
	"os"

	"github.com/Masterminds/semver/v3"
	toml "github.com/pelletier/go-toml/v2"

	"github.com/teranos/invar/errors"
)

const weightTolerance = 1e-6

// Enforcement modes for missing mandatory base judges.
const (
	EnforcementFailClosed = "fail_closed"
	EnforcementExclude    = "exclude"
)

// Tie-break rules. Only deterministic rules exist; ties are never broken by
// iteration order.
const (
	TieBreakLowestOptionID = "lowest_option_id"
)

// Tier is one lexical priority tier: the judges whose scores dominate before
// lower tiers are consulted.
type Tier struct {
	Name   string   `toml:"name"`
	Judges []string `toml:"judges"`
}

// VetoPredicate marks an option forbidden when any judge of the named tier
// hands down a verdict at or below the threshold.
type VetoPredicate struct {
	Tier       string `toml:"tier"`
	MaxVerdict string `toml:"max_verdict"`
}

// Config is the versioned, externally authored governance configuration.
// Loaded once, validated at load time, never mutated by the engine.
type Config struct {
	Version     string             `toml:"version"`
	Weights     map[string]float64 `toml:"weights"` // stakeholder weights by judge id, sum to 1
	Tiers       []Tier             `toml:"tiers"`   // lexical priority order, highest first
	Vetoes      []VetoPredicate    `toml:"vetoes"`
	TieBreak    string             `toml:"tie_break"`
	BaseJudges  []string           `toml:"base_judges"` // mandatory judges
	Enforcement string             `toml:"enforcement"`
}

// LoadConfig reads and validates a governance configuration file. Every
// structural problem is a load-time rejection; Govern never sees an invalid
// config.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read governance config %s", path)
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrapf(errors.ErrConfigInvalid, "failed to parse governance config %s: %v", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if _, err := semver.NewVersion(c.Version); err != nil {
		return errors.Wrapf(errors.ErrConfigInvalid, "governance config version %q is not valid semver", c.Version)
	}

	if len(c.Weights) == 0 {
		return errors.Wrap(errors.ErrConfigInvalid, "governance config declares no stakeholder weights")
	}
	sum := 0.0
	for judge, w := range c.Weights {
		if w < 0 {
			return errors.Wrapf(errors.ErrConfigInvalid, "negative weight for judge %q", judge)
		}
		sum += w
	}
	if math.Abs(sum-1) > weightTolerance {
		return errors.Wrapf(errors.ErrConfigInvalid, "stakeholder weights sum to %v, want 1", sum)
	}

	tierNames := make(map[string]bool)
	for _, tier := range c.Tiers {
		if tier.Name == "" {
			return errors.Wrap(errors.ErrConfigInvalid, "tier missing name")
		}
		if tierNames[tier.Name] {
			return errors.Wrapf(errors.ErrConfigInvalid, "duplicate tier %q", tier.Name)
		}
		tierNames[tier.Name] = true
		for _, judge := range tier.Judges {
			if _, ok := c.Weights[judge]; !ok {
				return errors.Wrapf(errors.ErrConfigInvalid, "tier %q references judge %q with no declared weight", tier.Name, judge)
			}
		}
	}

	for _, veto := range c.Vetoes {
		if !tierNames[veto.Tier] {
			return errors.Wrapf(errors.ErrConfigInvalid, "veto predicate references undefined tier %q", veto.Tier)
		}
		if _, err := ParseVerdict(veto.MaxVerdict); err != nil {
			return errors.Wrapf(err, "veto predicate on tier %q", veto.Tier)
		}
	}

	for _, judge := range c.BaseJudges {
		if _, ok := c.Weights[judge]; !ok {
			return errors.Wrapf(errors.ErrConfigInvalid, "base judge %q has no declared weight", judge)
		}
	}

	switch c.TieBreak {
	case "", TieBreakLowestOptionID:
	default:
		return errors.Wrapf(errors.ErrConfigInvalid, "unknown tie-break rule %q", c.TieBreak)
	}
	switch c.Enforcement {
	case "", EnforcementFailClosed, EnforcementExclude:
	default:
		return errors.Wrapf(errors.ErrConfigInvalid, "unknown enforcement mode %q", c.Enforcement)
	}

	return nil
}

// enforcementMode resolves the default: fail-closed.
func (c *Config) enforcementMode() string {
	if c.Enforcement == "" {
		return EnforcementFailClosed
	}
	return c.Enforcement
}

// tierJudges returns the judge set for a tier name.
func (c *Config) tierJudges(name string) []string {
	for _, tier := range c.Tiers {
		if tier.Name == name {
			return tier.Judges
		}
	}
	return nil
}

func (c *Config) isBaseJudge(id string) bool {
	for _, judge := range c.BaseJudges {
		if judge == id {
			return true
		}
	}
	return false
}
