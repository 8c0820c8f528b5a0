package services

import (
	"context"

	"github.com/veritrail/veritrail/internal/domain/entities"
)

// ProvenanceAvailableCheck verifies that a well-formed provenance statement
// with a recognized predicate type exists for the component.
type ProvenanceAvailableCheck struct{}

func (c *ProvenanceAvailableCheck) ID() string { return "provenance_available" }

func (c *ProvenanceAvailableCheck) Description() string {
	return "A well-formed provenance statement is available"
}

func (c *ProvenanceAvailableCheck) Dependencies() []string { return nil }

func (c *ProvenanceAvailableCheck) SkipOnFailedDeps() bool { return false }

func (c *ProvenanceAvailableCheck) Run(_ context.Context, actx *AnalysisContext) (entities.CheckResult, error) {
	if actx.Provenance == nil {
		note := actx.ProvenanceNote
		if note == "" {
			note = "no provenance statement supplied"
		}
		return verdict(entities.StatusFailed, 1.0, ev("detail", note))
	}
	if !actx.Tables.RecognizedPredicate(actx.Provenance.PredicateType) {
		return verdict(entities.StatusFailed, 1.0,
			ev("predicate_type", actx.Provenance.PredicateType),
			ev("detail", "predicate type is not in the recognized set"))
	}
	return verdict(entities.StatusPassed, 1.0,
		ev("predicate_type", actx.Provenance.PredicateType),
		ev("builder_id", actx.Provenance.BuilderID))
}

// ProvenanceVerifiedCheck verifies that the statement's subject digest
// matches the artifact under analysis.
type ProvenanceVerifiedCheck struct{}

func (c *ProvenanceVerifiedCheck) ID() string { return "provenance_verified" }

func (c *ProvenanceVerifiedCheck) Description() string {
	return "The provenance subject matches the analyzed artifact"
}

func (c *ProvenanceVerifiedCheck) Dependencies() []string {
	return []string{"provenance_available"}
}

func (c *ProvenanceVerifiedCheck) SkipOnFailedDeps() bool { return false }

func (c *ProvenanceVerifiedCheck) Run(_ context.Context, actx *AnalysisContext) (entities.CheckResult, error) {
	if actx.Provenance == nil {
		return verdict(entities.StatusFailed, 1.0,
			ev("detail", "no provenance statement to verify"))
	}
	if len(actx.Component.ArtifactDigest) == 0 {
		// The statement exists but there is nothing to compare it to:
		// partial evidence, not a definite verdict either way.
		return verdict(entities.StatusUnknown, 0.4,
			ev("detail", "component has no artifact digest to match against the provenance subject"))
	}
	subject := actx.Provenance.SubjectMatching(actx.Component.ArtifactDigest)
	if subject == nil {
		return verdict(entities.StatusFailed, 1.0,
			ev("detail", "no provenance subject digest matches the artifact"))
	}
	return verdict(entities.StatusPassed, 1.0,
		ev("subject", subject.Name))
}

// ProvenanceDerivedCommitCheck verifies that the provenance build definition
// points at the same commit the component resolved to. It is meaningless
// without a verified statement, so it opts in to skip-on-failed-deps.
type ProvenanceDerivedCommitCheck struct{}

func (c *ProvenanceDerivedCommitCheck) ID() string { return "provenance_derived_commit" }

func (c *ProvenanceDerivedCommitCheck) Description() string {
	return "The provenance build definition matches the analyzed commit"
}

func (c *ProvenanceDerivedCommitCheck) Dependencies() []string {
	return []string{"provenance_verified"}
}

func (c *ProvenanceDerivedCommitCheck) SkipOnFailedDeps() bool { return true }

func (c *ProvenanceDerivedCommitCheck) Run(_ context.Context, actx *AnalysisContext) (entities.CheckResult, error) {
	if actx.Provenance == nil {
		return verdict(entities.StatusFailed, 1.0,
			ev("detail", "no provenance statement"))
	}
	digest := actx.Provenance.Invocation.Digest
	if digest == "" {
		return verdict(entities.StatusUnknown, 0.2,
			ev("detail", "provenance does not record a config source digest"))
	}
	if actx.Component.Commit == "" {
		return verdict(entities.StatusUnknown, 0.2,
			ev("detail", "component has no resolved commit to compare"))
	}
	if digest != actx.Component.Commit {
		return verdict(entities.StatusFailed, 1.0,
			ev("provenance_commit", digest),
			ev("component_commit", actx.Component.Commit))
	}
	return verdict(entities.StatusPassed, 1.0,
		ev("commit", digest))
}
