package services

import (
	"context"

	"github.com/veritrail/veritrail/internal/domain/entities"
)

// BuildScriptCheck verifies that the repository's automation invokes a
// build command at all, whether from CI or from a standalone script. It
// runs even when build_tool failed, to report what the scripts do anyway.
type BuildScriptCheck struct{}

func (c *BuildScriptCheck) ID() string { return "build_script" }

func (c *BuildScriptCheck) Description() string {
	return "Repository automation invokes a build command"
}

func (c *BuildScriptCheck) Dependencies() []string { return []string{"build_tool"} }

func (c *BuildScriptCheck) SkipOnFailedDeps() bool { return false }

func (c *BuildScriptCheck) Run(_ context.Context, actx *AnalysisContext) (entities.CheckResult, error) {
	var evidence []entities.Evidence
	confidence := 1.0
	for _, inv := range actx.Invocations {
		evidence = append(evidence, invocationEvidence("build_command", inv))
		if inv.Partial {
			confidence = 0.8
		}
	}
	if dep, ok := actx.Result("build_tool"); ok && dep.Status == entities.StatusFailed {
		// Observe the failed dependency rather than short-circuit: a
		// build command without a recognized tool is worth reporting.
		evidence = append(evidence, ev("note", "no recognized build tool was detected"))
	}
	if len(actx.Invocations) > 0 {
		return verdict(entities.StatusPassed, confidence, evidence...)
	}
	if actx.PartialSequences() {
		return verdict(entities.StatusUnknown, 0.4,
			append(evidence, ev("detail", "no build command found, but script resolution was partial"))...)
	}
	return verdict(entities.StatusFailed, 1.0,
		append(evidence, ev("detail", "no recognized build command in any resolved script or workflow"))...)
}
