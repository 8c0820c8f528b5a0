package services

import (
	"context"
	"sort"

	"github.com/veritrail/veritrail/internal/domain/entities"
)

// Check is a single, independently identified trust assessment over a
// component. Implementations are pure: they read the AnalysisContext and
// return a result, and must not mutate shared state.
type Check interface {
	// ID is the unique check identifier, stable across runs.
	ID() string

	// Description is a one-line human-readable summary.
	Description() string

	// Dependencies lists the check IDs that must reach a terminal status
	// before this check runs.
	Dependencies() []string

	// SkipOnFailedDeps opts in to being SKIPPED when a dependency
	// FAILED. The default is to run anyway: some checks exist to observe
	// a dependency's failure rather than be short-circuited by it.
	SkipOnFailedDeps() bool

	// Run evaluates the check. A returned error or a panic is converted
	// by the scheduler to an UNKNOWN result with confidence 0; it never
	// aborts sibling or dependent checks.
	Run(ctx context.Context, actx *AnalysisContext) (entities.CheckResult, error)
}

// Registry holds the registered checks, their dependency graph and the
// precomputed deterministic execution order. It is built once at startup and
// immutable during a run; a cyclic dependency graph fails construction,
// never execution.
type Registry struct {
	checks   map[string]Check
	eligible map[string]bool
	layers   [][]string
	disabled []string
}

// NewRegistry validates the check set and computes eligibility and the
// topological execution layers. Include/exclude are glob lists over check
// IDs; an empty include list means "include everything". Duplicate IDs,
// unknown dependencies and dependency cycles are configuration errors.
func NewRegistry(checks []Check, include, exclude []string) (*Registry, error) {
	r := &Registry{
		checks:   make(map[string]Check, len(checks)),
		eligible: make(map[string]bool, len(checks)),
	}
	for _, c := range checks {
		if c.ID() == "" {
			return nil, configErrorf("check with empty ID")
		}
		if _, dup := r.checks[c.ID()]; dup {
			return nil, configErrorf("duplicate check ID %q", c.ID())
		}
		r.checks[c.ID()] = c
	}
	for id, c := range r.checks {
		for _, dep := range c.Dependencies() {
			if _, ok := r.checks[dep]; !ok {
				return nil, configErrorf("check %q depends on unknown check %q", id, dep)
			}
		}
	}
	if cycle := findCycle(r.checks); len(cycle) > 0 {
		return nil, configErrorf("dependency cycle among checks %v", cycle)
	}

	if len(include) == 0 {
		include = []string{"*"}
	}
	for id := range r.checks {
		r.eligible[id] = matchAny(include, id) && !matchAny(exclude, id)
		if !r.eligible[id] {
			r.disabled = append(r.disabled, id)
		}
	}
	sort.Strings(r.disabled)

	r.layers = computeLayers(r.checks, r.eligible)
	return r, nil
}

// Get returns the check with the given ID, or nil.
func (r *Registry) Get(id string) Check { return r.checks[id] }

// Layers returns the eligible checks grouped into topological layers: every
// check appears strictly after all of its eligible dependencies, and each
// layer is sorted lexicographically so ordering is reproducible across runs.
func (r *Registry) Layers() [][]string { return r.layers }

// Disabled returns the check IDs excluded by the selection globs, sorted.
func (r *Registry) Disabled() []string { return r.disabled }

// All returns every registered check ID, sorted.
func (r *Registry) All() []string {
	ids := make([]string, 0, len(r.checks))
	for id := range r.checks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// findCycle returns the IDs of checks involved in a dependency cycle, or
// nil. Kahn's algorithm: whatever cannot be peeled off is cyclic.
func findCycle(checks map[string]Check) []string {
	indeg := make(map[string]int, len(checks))
	dependents := make(map[string][]string, len(checks))
	for id, c := range checks {
		indeg[id] += 0
		for _, dep := range c.Dependencies() {
			indeg[id]++
			dependents[dep] = append(dependents[dep], id)
		}
	}
	queue := make([]string, 0, len(checks))
	for id, d := range indeg {
		if d == 0 {
			queue = append(queue, id)
		}
	}
	seen := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		seen++
		for _, dep := range dependents[id] {
			indeg[dep]--
			if indeg[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}
	if seen == len(checks) {
		return nil
	}
	var cycle []string
	for id, d := range indeg {
		if d > 0 {
			cycle = append(cycle, id)
		}
	}
	sort.Strings(cycle)
	return cycle
}

// computeLayers groups the eligible checks into dependency layers. A
// disabled dependency counts as available, so it never holds a dependent
// back. Assumes the graph is acyclic (validated beforehand).
func computeLayers(checks map[string]Check, eligible map[string]bool) [][]string {
	remaining := make(map[string]int)
	dependents := make(map[string][]string)
	for id, c := range checks {
		if !eligible[id] {
			continue
		}
		remaining[id] = 0
		for _, dep := range c.Dependencies() {
			if eligible[dep] {
				remaining[id]++
				dependents[dep] = append(dependents[dep], id)
			}
		}
	}
	var layers [][]string
	for len(remaining) > 0 {
		var layer []string
		for id, n := range remaining {
			if n == 0 {
				layer = append(layer, id)
			}
		}
		sort.Strings(layer)
		for _, id := range layer {
			delete(remaining, id)
			for _, dep := range dependents[id] {
				if _, ok := remaining[dep]; ok {
					remaining[dep]--
				}
			}
		}
		layers = append(layers, layer)
	}
	return layers
}
