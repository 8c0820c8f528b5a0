package services

import "github.com/veritrail/veritrail/internal/domain/entities"

// DefaultChecks returns the built-in check suite. Registration happens once
// at startup; the returned set is what NewRegistry validates and orders.
func DefaultChecks() []Check {
	return []Check{
		&BuildToolCheck{},
		&VersionControlCheck{},
		&BuildServiceCheck{},
		&BuildScriptCheck{},
		&BuildAsCodeCheck{},
		&ProvenanceAvailableCheck{},
		&ProvenanceVerifiedCheck{},
		&ProvenanceDerivedCommitCheck{},
		&TrustedBuilderCheck{},
		&ArtifactSignatureCheck{},
	}
}

func verdict(status entities.CheckStatus, confidence float64, evidence ...entities.Evidence) (entities.CheckResult, error) {
	return entities.CheckResult{Status: status, Confidence: confidence, Evidence: evidence}, nil
}

func ev(key, value string) entities.Evidence {
	return entities.Evidence{Key: key, Value: value}
}
