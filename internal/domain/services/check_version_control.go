package services

import (
	"context"

	"github.com/veritrail/veritrail/internal/domain/entities"
)

// VersionControlCheck verifies that the component resolved to a concrete
// repository and commit.
type VersionControlCheck struct{}

func (c *VersionControlCheck) ID() string { return "version_control" }

func (c *VersionControlCheck) Description() string {
	return "The component maps to a version-controlled repository and commit"
}

func (c *VersionControlCheck) Dependencies() []string { return nil }

func (c *VersionControlCheck) SkipOnFailedDeps() bool { return false }

func (c *VersionControlCheck) Run(_ context.Context, actx *AnalysisContext) (entities.CheckResult, error) {
	comp := actx.Component
	if comp.Repository == "" {
		return verdict(entities.StatusFailed, 1.0,
			ev("detail", "component has no resolved source repository"))
	}
	if comp.Commit == "" {
		return verdict(entities.StatusFailed, 1.0,
			ev("repository", comp.Repository),
			ev("detail", "component has no resolved commit"))
	}
	return verdict(entities.StatusPassed, 1.0,
		ev("repository", comp.Repository),
		ev("commit", comp.Commit))
}
