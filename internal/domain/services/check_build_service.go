package services

import (
	"context"

	"github.com/veritrail/veritrail/internal/domain/entities"
)

// BuildServiceCheck verifies that a CI service runs the component's build:
// a recognized build or deploy command appears in the automation of a
// detected CI service.
type BuildServiceCheck struct{}

func (c *BuildServiceCheck) ID() string { return "build_service" }

func (c *BuildServiceCheck) Description() string {
	return "A CI service runs the build"
}

func (c *BuildServiceCheck) Dependencies() []string { return []string{"build_tool"} }

func (c *BuildServiceCheck) SkipOnFailedDeps() bool { return false }

func (c *BuildServiceCheck) Run(_ context.Context, actx *AnalysisContext) (entities.CheckResult, error) {
	var evidence []entities.Evidence
	confidence := 1.0
	for _, inv := range actx.Invocations {
		if inv.CI == "" {
			continue
		}
		evidence = append(evidence, invocationEvidence("build_command", inv))
		if inv.Partial {
			// Found inside a truncated sequence: still a direct
			// observation, slightly weaker attribution.
			confidence = 0.8
		}
	}
	if len(evidence) > 0 {
		return verdict(entities.StatusPassed, confidence, evidence...)
	}
	if len(actx.CIServices) == 0 {
		return verdict(entities.StatusFailed, 1.0,
			ev("detail", "no CI service configuration found in the repository"))
	}
	if actx.PartialSequences() {
		return verdict(entities.StatusUnknown, 0.4,
			ev("detail", "no build command found, but script resolution was partial"))
	}
	return verdict(entities.StatusFailed, 1.0,
		ev("detail", "CI configuration present but no recognized build command is invoked"))
}

// invocationEvidence renders a recognized invocation with its origin.
func invocationEvidence(key string, inv entities.BuildInvocation) entities.Evidence {
	return entities.Evidence{
		Key:   key,
		Value: inv.Tool + ": " + inv.Command.Line(),
		File:  inv.Command.Origin.File,
		Step:  stepRef(inv.Command.Origin),
	}
}

func stepRef(o entities.CommandOrigin) string {
	switch {
	case o.Job == "" && o.Step == "":
		return ""
	case o.Step == "":
		return o.Job
	case o.Job == "":
		return o.Step
	default:
		return o.Job + "/" + o.Step
	}
}
