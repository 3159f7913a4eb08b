package canon

import (
	"math"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"

	"github.com/teranos/invar/errors"
)

// Schema is the domain rule-set consumed by validation and normalization.
// Loaded once per run from a versioned TOML file and passed explicitly —
// there is no ambient schema singleton.
type Schema struct {
	Version          string               `toml:"version"`
	MaxDepth         int                  `toml:"max_depth"`
	DefaultPrecision int                  `toml:"default_precision"`
	Strict           bool                 `toml:"strict"` // reject fields absent from the schema
	Fields           map[string]FieldRule `toml:"fields"`
	Enums            map[string]EnumClass `toml:"enums"`
}

// FieldRule declares the expected shape of one top-level record field.
type FieldRule struct {
	Type      string      `toml:"type"`      // null|bool|number|string|entity|list|set|record|enum
	Enum      string      `toml:"enum"`      // enum class name when Type == "enum"
	Precision *int        `toml:"precision"` // decimal digits for numbers, nil = schema default
	Default   interface{} `toml:"default"`   // schema-declared default, dropped during N4
	Required  bool        `toml:"required"`
}

// EnumClass declares one set of semantically-equivalent variants and the tag
// they collapse to. Alternative names a second still-valid canonical tag,
// used by the gauge/intrinsic decomposition to re-run under a different but
// equally defensible canonicalizer choice.
type EnumClass struct {
	Canonical   string   `toml:"canonical"`
	Alternative string   `toml:"alternative"`
	Members     []string `toml:"members"`
}

// LoadSchema reads and validates a schema file.
func LoadSchema(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read schema file %s", path)
	}
	var s Schema
	if err := toml.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrapf(errors.ErrConfigInvalid, "failed to parse schema file %s: %v", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate rejects malformed schemas at load time.
func (s *Schema) Validate() error {
	if _, err := semver.NewVersion(s.Version); err != nil {
		return errors.Wrapf(errors.ErrConfigInvalid, "schema version %q is not valid semver", s.Version)
	}
	if s.MaxDepth < 1 {
		return errors.Wrapf(errors.ErrConfigInvalid, "schema max_depth must be >= 1, got %d", s.MaxDepth)
	}
	if s.DefaultPrecision < 0 || s.DefaultPrecision > 12 {
		return errors.Wrapf(errors.ErrConfigInvalid, "schema default_precision must be in [0,12], got %d", s.DefaultPrecision)
	}

	memberClass := make(map[string]string)
	for name, class := range s.Enums {
		if !contains(class.Members, class.Canonical) {
			return errors.Wrapf(errors.ErrConfigInvalid, "enum class %q: canonical tag %q is not a member", name, class.Canonical)
		}
		if class.Alternative != "" && !contains(class.Members, class.Alternative) {
			return errors.Wrapf(errors.ErrConfigInvalid, "enum class %q: alternative tag %q is not a member", name, class.Alternative)
		}
		// A member in two classes would collapse to whichever class a map
		// walk happens to visit first, making canonicalization a coin flip.
		for _, m := range class.Members {
			if other, ok := memberClass[m]; ok && other != name {
				return errors.Wrapf(errors.ErrConfigInvalid, "enum member %q belongs to both class %q and class %q", m, other, name)
			}
			memberClass[m] = name
		}
	}

	for field, rule := range s.Fields {
		switch rule.Type {
		case "null", "bool", "number", "string", "entity", "list", "set", "record":
		case "enum":
			if _, ok := s.Enums[rule.Enum]; !ok {
				return errors.Wrapf(errors.ErrConfigInvalid, "field %q references undefined enum class %q", field, rule.Enum)
			}
		default:
			return errors.Wrapf(errors.ErrConfigInvalid, "field %q has unknown type %q", field, rule.Type)
		}
		if rule.Precision != nil && (*rule.Precision < 0 || *rule.Precision > 12) {
			return errors.Wrapf(errors.ErrConfigInvalid, "field %q precision must be in [0,12]", field)
		}
	}

	return nil
}

// FieldPrecision returns the declared precision for a field, falling back to
// the schema default.
func (s *Schema) FieldPrecision(field string) int {
	if rule, ok := s.Fields[field]; ok && rule.Precision != nil {
		return *rule.Precision
	}
	return s.DefaultPrecision
}

// CanonicalTag returns the canonical tag for a value belonging to any enum
// class, or the value unchanged if it belongs to none. With alternative set,
// classes that declare an alternative tag collapse to it instead.
func (s *Schema) CanonicalTag(value string, alternative bool) string {
	for _, class := range s.Enums {
		if contains(class.Members, value) {
			if alternative && class.Alternative != "" {
				return class.Alternative
			}
			return class.Canonical
		}
	}
	return value
}

// DefaultNode converts a field rule's schema-declared default into a tree
// node for the N4 comparison, or nil if the field declares no default.
func (rule FieldRule) DefaultNode() *Node {
	switch v := rule.Default.(type) {
	case nil:
		return nil
	case string:
		return Str(v)
	case bool:
		return Bool(v)
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
		return Num(v)
	case int64:
		return Num(float64(v))
	default:
		return nil
	}
}

func contains(list []string, v string) bool {
	for _, m := range list {
		if m == v {
			return true
		}
	}
	return false
}
