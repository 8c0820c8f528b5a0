package services

import (
	"context"

	"github.com/veritrail/veritrail/internal/domain/entities"
)

// TrustedBuilderCheck verifies that the provenance reaches the top of the
// trust ladder: generated by an allow-listed trusted builder on hosted
// infrastructure, with parameters captured. The full rationale trail is
// attached as evidence so the resulting fact is auditable.
type TrustedBuilderCheck struct{}

func (c *TrustedBuilderCheck) ID() string { return "trusted_builder" }

func (c *TrustedBuilderCheck) Description() string {
	return "Provenance was generated by a trusted builder (trust level L3)"
}

func (c *TrustedBuilderCheck) Dependencies() []string {
	return []string{"provenance_available"}
}

func (c *TrustedBuilderCheck) SkipOnFailedDeps() bool { return false }

func (c *TrustedBuilderCheck) Run(_ context.Context, actx *AnalysisContext) (entities.CheckResult, error) {
	level, rationale := DeriveTrustLevel(actx.Provenance, actx.Component.ArtifactDigest, actx.Tables)
	evidence := []entities.Evidence{ev("trust_level", level.String())}
	for _, r := range rationale {
		evidence = append(evidence, ev("rationale", r))
	}
	if level == entities.TrustL3 {
		return verdict(entities.StatusPassed, 1.0, evidence...)
	}
	return verdict(entities.StatusFailed, 1.0, evidence...)
}
