package transform

import (
	"os"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"

	"github.com/teranos/invar/canon"
	"github.com/teranos/invar/errors"
)

// suiteFile is the on-disk TOML shape of a suite definition.
type suiteFile struct {
	Version    string            `toml:"version"`
	Transforms []transformEntry  `toml:"transforms"`
	Canaries   []transformEntry  `toml:"canaries"`
	Probes     []probeEntry      `toml:"probes"`
	Contexts   []contextEntry    `toml:"contexts"`
}

type transformEntry struct {
	ID                  string   `toml:"id"`
	Impl                string   `toml:"impl"`
	Category            string   `toml:"category"`
	SemanticsPreserving bool     `toml:"semantics_preserving"`
	CommutesWith        []string `toml:"commutes_with"`
	Params              Params   `toml:"params"`
}

type probeEntry struct {
	Name  string `toml:"name"`
	Left  string `toml:"left"`
	Right string `toml:"right"`
}

type contextEntry struct {
	Name string `toml:"name"`
	// Context embeddings resolve through the same implementation registry;
	// the identity side is implicit.
	Impl   string `toml:"impl"`
	Params Params `toml:"params"`
}

// LoadSuite reads, resolves and validates a suite definition file against
// the active schema. ConfigInvalid failures happen here, at load time —
// never during a run.
func LoadSuite(path string, schema *canon.Schema) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read suite file %s", path)
	}
	var sf suiteFile
	if err := toml.Unmarshal(data, &sf); err != nil {
		return nil, errors.Wrapf(errors.ErrConfigInvalid, "failed to parse suite file %s: %v", path, err)
	}
	return buildSuite(&sf, schema)
}

func buildSuite(sf *suiteFile, schema *canon.Schema) (*Suite, error) {
	if _, err := semver.NewVersion(sf.Version); err != nil {
		return nil, errors.Wrapf(errors.ErrConfigInvalid, "suite version %q is not valid semver", sf.Version)
	}
	if len(sf.Transforms) == 0 {
		return nil, errors.Wrap(errors.ErrConfigInvalid, "suite declares no transforms")
	}

	registry := NewRegistry(schema)
	suite := &Suite{Version: sf.Version}

	publicIDs := make(map[string]bool)
	for _, entry := range sf.Transforms {
		t, err := resolveEntry(registry, entry, sf.Version)
		if err != nil {
			return nil, err
		}
		if publicIDs[t.ID] {
			return nil, errors.Wrapf(errors.ErrConfigInvalid, "duplicate transform id %q", t.ID)
		}
		publicIDs[t.ID] = true
		suite.Transforms = append(suite.Transforms, t)
	}

	for _, entry := range sf.Canaries {
		t, err := resolveEntry(registry, entry, sf.Version)
		if err != nil {
			return nil, err
		}
		// Canary ids must stay disjoint from the public suite: a canary
		// that leaks into G_declared stops measuring overfitting.
		if publicIDs[t.ID] {
			return nil, errors.Wrapf(errors.ErrConfigInvalid, "canary id %q collides with public transform", t.ID)
		}
		suite.Canaries = append(suite.Canaries, t)
	}

	// Declared-commuting references must resolve within the public set.
	for _, t := range suite.Transforms {
		for _, other := range t.CommutesWith {
			if !publicIDs[other] {
				return nil, errors.Wrapf(errors.ErrConfigInvalid, "transform %q declares commutation with unknown id %q", t.ID, other)
			}
		}
	}

	for _, p := range sf.Probes {
		if p.Name == "" || p.Left == "" || p.Right == "" {
			return nil, errors.Wrapf(errors.ErrConfigInvalid, "probe %q incomplete", p.Name)
		}
		suite.Probes = append(suite.Probes, ProbePair{Name: p.Name, Left: []byte(p.Left), Right: []byte(p.Right)})
	}

	for _, c := range sf.Contexts {
		embed, err := registry.Resolve(c.Impl, c.Params)
		if err != nil {
			return nil, errors.Wrapf(err, "context %q", c.Name)
		}
		identity := func(n *canon.Node) *canon.Node { return n.Clone() }
		suite.Contexts = append(suite.Contexts, ContextPair{Name: c.Name, Embed: [2]Fn{identity, embed}})
	}

	return suite, nil
}

func resolveEntry(registry *Registry, entry transformEntry, suiteVersion string) (*Transform, error) {
	if entry.ID == "" {
		return nil, errors.Wrap(errors.ErrConfigInvalid, "transform entry missing id")
	}
	fn, err := registry.Resolve(entry.Impl, entry.Params)
	if err != nil {
		return nil, errors.Wrapf(err, "transform %q", entry.ID)
	}
	category := entry.Category
	if category == "" {
		category = "uncategorized"
	}
	return &Transform{
		ID:                  entry.ID,
		Version:             suiteVersion,
		Category:            category,
		SemanticsPreserving: entry.SemanticsPreserving,
		CommutesWith:        entry.CommutesWith,
		Apply:               fn,
	}, nil
}

// Lint runs the static suite checks used by `invar suite lint`: version and
// registry resolution (already done by LoadSuite), probe parseability, and
// the minimum probe presence. Returns one error per finding.
func Lint(suite *Suite) []error {
	var findings []error
	if len(suite.Probes) == 0 {
		findings = append(findings, errors.New("suite declares no boundary probes; trivial collapse would go undetected"))
	}
	for _, p := range suite.Probes {
		if _, err := canon.Parse(p.Left); err != nil {
			findings = append(findings, errors.Wrapf(err, "probe %q: left side does not parse", p.Name))
		}
		if _, err := canon.Parse(p.Right); err != nil {
			findings = append(findings, errors.Wrapf(err, "probe %q: right side does not parse", p.Name))
		}
	}
	if len(suite.Canaries) == 0 {
		findings = append(findings, errors.New("suite has no canaries; overfitting to the public set would go undetected"))
	}
	return findings
}
