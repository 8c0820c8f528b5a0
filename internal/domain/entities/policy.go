package entities

import "time"

// ResolutionBounds caps static script and workflow resolution. Inclusion
// graphs may be cyclic, so the depth bound is the termination guarantee and
// the time budget the backstop.
type ResolutionBounds struct {
	// MaxDepth is the maximum script/workflow inclusion depth.
	MaxDepth int

	// ScriptTimeout and WorkflowTimeout are wall-clock budgets per
	// resolved file.
	ScriptTimeout   time.Duration
	WorkflowTimeout time.Duration
}

// Normalized returns a copy with defaults applied to unset fields. Only
// top-level resolution entry points normalize; nested expansion receives
// remaining budgets literally, so a budget that ran out stays out.
func (b ResolutionBounds) Normalized() ResolutionBounds {
	if b.MaxDepth <= 0 {
		b.MaxDepth = 3
	}
	if b.ScriptTimeout <= 0 {
		b.ScriptTimeout = 30 * time.Second
	}
	if b.WorkflowTimeout <= 0 {
		b.WorkflowTimeout = 30 * time.Second
	}
	return b
}

// NetworkPolicy bounds outbound calls (keyserver fetches).
type NetworkPolicy struct {
	HTTPTimeout time.Duration
	MaxRetries  int
}

// PolicyTables is the full run configuration: detection vocabularies, trust
// allow-lists, check selection and execution bounds. Built from defaults,
// optionally overlaid from a policy file, and immutable during a run.
type PolicyTables struct {
	BuildTools []BuildToolSpec
	CIServices []CIServiceSpec

	// TrustedBuilders are glob patterns over builder identities and
	// workflow entry points that qualify for trust level L3. The '*'
	// wildcard crosses '/'.
	TrustedBuilders []string

	// PredicateTypes are the provenance predicate type URIs accepted as
	// recognized.
	PredicateTypes []string

	// IncludeChecks and ExcludeChecks are glob lists over check IDs.
	// Empty include means "include everything".
	IncludeChecks []string
	ExcludeChecks []string

	Bounds  ResolutionBounds
	Network NetworkPolicy

	// Workers bounds concurrent check execution within one layer.
	Workers int
}

// ToolByName returns the spec for the named build tool, or nil.
func (p *PolicyTables) ToolByName(name string) *BuildToolSpec {
	for i := range p.BuildTools {
		if p.BuildTools[i].Name == name {
			return &p.BuildTools[i]
		}
	}
	return nil
}

// RecognizedPredicate reports whether a predicate type URI is accepted.
func (p *PolicyTables) RecognizedPredicate(predicateType string) bool {
	for _, t := range p.PredicateTypes {
		if t == predicateType {
			return true
		}
	}
	return false
}
