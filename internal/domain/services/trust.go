package services

import (
	"fmt"
	"strings"

	"github.com/veritrail/veritrail/internal/domain/entities"
)

// DeriveTrustLevel classifies a provenance statement into the discrete trust
// ladder. The derivation is monotonic by construction: each gate is only
// evaluated after the previous one passed, so satisfying L3 implies having
// satisfied the L2 and L1 criteria.
//
// Returns the level and the rationale trail explaining each decision.
func DeriveTrustLevel(
	stmt *entities.ProvenanceStatement,
	artifact entities.DigestSet,
	tables *entities.PolicyTables,
) (entities.TrustLevel, []string) {
	var rationale []string

	// Gate NONE -> L1: a well-formed statement with a recognized
	// predicate type that actually attests to this artifact.
	if stmt == nil {
		return entities.TrustNone, append(rationale, "no provenance statement available")
	}
	if !tables.RecognizedPredicate(stmt.PredicateType) {
		return entities.TrustNone,
			append(rationale, fmt.Sprintf("predicate type %q is not recognized", stmt.PredicateType))
	}
	if len(artifact) > 0 && stmt.SubjectMatching(artifact) == nil {
		// A statement about a different artifact is a verification
		// failure, not weak provenance.
		return entities.TrustNone, append(rationale, "no subject digest matches the artifact under analysis")
	}
	rationale = append(rationale, fmt.Sprintf("provenance documents the build (predicate %s)", stmt.PredicateType))
	level := entities.TrustL1

	// Gate L1 -> L2: generated by a hosted build service, i.e. the
	// generating process runs on infrastructure the build author does not
	// fully control.
	hostedService := ""
	for _, ci := range tables.CIServices {
		if !ci.Hosted {
			continue
		}
		for _, prefix := range ci.BuilderIDPrefixes {
			if prefix != "" && strings.HasPrefix(stmt.BuilderID, prefix) {
				hostedService = ci.Name
				break
			}
		}
		if hostedService != "" {
			break
		}
	}
	if hostedService == "" {
		rationale = append(rationale, "builder identity is not attributed to a hosted build service")
		return level, rationale
	}
	rationale = append(rationale, fmt.Sprintf("provenance generated by hosted service %s", hostedService))
	level = entities.TrustL2

	// Gate L2 -> L3: an allow-listed trusted builder, with build
	// parameters absent or faithfully captured in the materials.
	if !matchAny(tables.TrustedBuilders, stmt.BuilderID) &&
		!matchAny(tables.TrustedBuilders, stmt.Invocation.EntryPoint) {
		rationale = append(rationale, fmt.Sprintf("builder %q is not in the trusted-builder allow-list", stmt.BuilderID))
		return level, rationale
	}
	if !parametersCaptured(stmt) {
		rationale = append(rationale, "build parameters are not captured in the provenance materials")
		return level, rationale
	}
	rationale = append(rationale, "trusted builder with parameters captured; provenance is non-falsifiable")
	return entities.TrustL3, rationale
}

// parametersCaptured reports whether the build was parameterless or every
// parameter value is accounted for in the materials list.
func parametersCaptured(stmt *entities.ProvenanceStatement) bool {
	if len(stmt.Invocation.Parameters) == 0 {
		return true
	}
	for _, param := range stmt.Invocation.Parameters {
		value := param
		if eq := strings.IndexByte(param, '='); eq >= 0 {
			value = param[eq+1:]
		}
		found := false
		for _, mat := range stmt.Materials {
			if mat.URI == value {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
