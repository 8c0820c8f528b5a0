package services

import (
	"context"
	"errors"

	"github.com/veritrail/veritrail/internal/domain/entities"
	"github.com/veritrail/veritrail/internal/domain/interfaces/gateways"
)

// ArtifactSignatureCheck verifies a detached cryptographic signature over
// the released artifact against the configured keys. Transient network
// failures while fetching keys surface as UNKNOWN with low confidence, not
// as FAILED.
type ArtifactSignatureCheck struct{}

func (c *ArtifactSignatureCheck) ID() string { return "artifact_signature" }

func (c *ArtifactSignatureCheck) Description() string {
	return "The released artifact carries a verifiable detached signature"
}

func (c *ArtifactSignatureCheck) Dependencies() []string { return nil }

func (c *ArtifactSignatureCheck) SkipOnFailedDeps() bool { return false }

func (c *ArtifactSignatureCheck) Run(ctx context.Context, actx *AnalysisContext) (entities.CheckResult, error) {
	comp := actx.Component
	if comp.ArtifactPath == "" || comp.SignaturePath == "" {
		return verdict(entities.StatusUnknown, 0.0,
			ev("detail", "no artifact or signature file supplied for this component"))
	}
	if actx.Signatures == nil {
		return verdict(entities.StatusUnknown, 0.0,
			ev("detail", "no signature verifier configured"))
	}
	err := actx.Signatures.VerifyArtifact(ctx, comp.ArtifactPath, comp.SignaturePath)
	if err == nil {
		return verdict(entities.StatusPassed, 1.0,
			ev("artifact", comp.ArtifactPath),
			ev("signature", comp.SignaturePath))
	}
	if errors.Is(err, gateways.ErrTransient) {
		return verdict(entities.StatusUnknown, 0.2,
			ev("detail", "signature verification aborted by transient network failure"),
			ev("error", err.Error()))
	}
	return verdict(entities.StatusFailed, 1.0,
		ev("detail", "signature does not verify against the configured keys"),
		ev("error", err.Error()))
}
