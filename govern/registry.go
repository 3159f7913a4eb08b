package govern

import (
	"context"
	"sort"
	"sync"

	"github.com/Masterminds/semver/v3"

	"github.com/teranos/invar/errors"
)

// Judge produces a Judgment from judge-agnostic facts. Implementations live
// outside the engine; the aggregator only consumes their output. Composition
// over inheritance: a judge is config plus a judging function, not a class
// hierarchy.
type Judge interface {
	// ID is the stable judge identifier referenced by governance config.
	ID() string
	// Compat is a semver constraint on compatible engine versions.
	Compat() string
	// Judge assesses one option. Must respect ctx cancellation.
	Judge(ctx context.Context, facts EthicalFacts) (*Judgment, error)
}

// Registry holds the registered judge implementations.
type Registry struct {
	mu            sync.RWMutex
	judges        map[string]Judge
	engineVersion string
}

// NewRegistry creates a judge registry for the given engine version.
func NewRegistry(engineVersion string) *Registry {
	return &Registry{
		judges:        make(map[string]Judge),
		engineVersion: engineVersion,
	}
}

// Register adds a judge. Rejects id conflicts and judges whose declared
// compatibility constraint excludes the running engine version.
func (r *Registry) Register(judge Judge) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := judge.ID()
	if _, exists := r.judges[id]; exists {
		return errors.Newf("judge already registered: %s", id)
	}
	if err := r.validateCompat(judge); err != nil {
		return errors.Wrapf(err, "judge %s incompatible with engine %s", id, r.engineVersion)
	}
	r.judges[id] = judge
	return nil
}

func (r *Registry) validateCompat(judge Judge) error {
	engine, err := semver.NewVersion(r.engineVersion)
	if err != nil {
		return errors.Wrapf(err, "engine version %q is not valid semver", r.engineVersion)
	}
	constraint, err := semver.NewConstraint(judge.Compat())
	if err != nil {
		return errors.Wrapf(err, "compatibility constraint %q is not valid", judge.Compat())
	}
	if !constraint.Check(engine) {
		return errors.Newf("constraint %q does not admit %s", judge.Compat(), r.engineVersion)
	}
	return nil
}

// Get retrieves a judge by id.
func (r *Registry) Get(id string) (Judge, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	judge, ok := r.judges[id]
	return judge, ok
}

// List returns registered judge ids in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.judges))
	for id := range r.judges {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
