package services

import (
	"context"

	"github.com/veritrail/veritrail/internal/domain/entities"
)

// BuildAsCodeCheck verifies that artifact deployment is automated in CI: a
// command or action from the deploy vocabulary is invoked from a CI
// workflow, with the originating step as evidence. Deploy actions are
// frequently indirect (a step calls a wrapper script which calls the real
// publisher), which is why this check reads the recursion-expanded
// sequences rather than raw step text.
type BuildAsCodeCheck struct{}

func (c *BuildAsCodeCheck) ID() string { return "build_as_code" }

func (c *BuildAsCodeCheck) Description() string {
	return "Artifact deployment is invoked from CI configuration"
}

func (c *BuildAsCodeCheck) Dependencies() []string { return []string{"build_service"} }

func (c *BuildAsCodeCheck) SkipOnFailedDeps() bool { return false }

func (c *BuildAsCodeCheck) Run(_ context.Context, actx *AnalysisContext) (entities.CheckResult, error) {
	var evidence []entities.Evidence
	confidence := 1.0
	for _, inv := range actx.Invocations {
		if !inv.Deploy || inv.CI == "" {
			continue
		}
		evidence = append(evidence, invocationEvidence("deploy_command", inv))
		if inv.Partial {
			confidence = 0.8
		}
	}
	if len(evidence) > 0 {
		return verdict(entities.StatusPassed, confidence, evidence...)
	}
	if actx.PartialSequences() {
		return verdict(entities.StatusUnknown, 0.4,
			ev("detail", "no deploy command found, but script resolution was partial"))
	}
	return verdict(entities.StatusFailed, 1.0,
		ev("detail", "no deploy command is invoked from any CI workflow"))
}
