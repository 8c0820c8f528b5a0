package services

import (
	"context"
	"strings"

	"github.com/veritrail/veritrail/internal/domain/entities"
)

// BuildToolCheck verifies that the repository uses a recognized build tool.
// Absence of evidence is a definite result here: a tree with no matching
// entry or build config files yields FAILED with full confidence, not
// UNKNOWN.
type BuildToolCheck struct{}

func (c *BuildToolCheck) ID() string { return "build_tool" }

func (c *BuildToolCheck) Description() string {
	return "The repository uses a recognized build tool"
}

func (c *BuildToolCheck) Dependencies() []string { return nil }

func (c *BuildToolCheck) SkipOnFailedDeps() bool { return false }

func (c *BuildToolCheck) Run(_ context.Context, actx *AnalysisContext) (entities.CheckResult, error) {
	if len(actx.Tools) == 0 {
		return verdict(entities.StatusFailed, 1.0,
			ev("build_tool", "none"),
			ev("detail", "no entry or build config file matched any recognized build tool"))
	}
	evidence := make([]entities.Evidence, 0, len(actx.Tools))
	for _, tool := range actx.Tools {
		evidence = append(evidence, entities.Evidence{
			Key:   "build_tool",
			Value: tool.Tool,
			File:  strings.Join(tool.Files, ","),
		})
	}
	return verdict(entities.StatusPassed, 1.0, evidence...)
}
