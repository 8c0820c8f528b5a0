// Package gateways defines the contracts between the analysis engine and
// its external collaborators (repository access, script resolution,
// provenance loading, signature verification).
package gateways

import (
	"context"
	"errors"

	"github.com/veritrail/veritrail/internal/domain/entities"
)

// ErrTransient marks an error as a transient network condition: the
// operation was retried up to its bound and still failed, but the failure
// says nothing definite about the evidence being checked. Adapters wrap it;
// checks test for it with errors.Is.
var ErrTransient = errors.New("transient network error")

// FileTree is read-only access to a component's checked-out repository.
// Cloning and transport happen before the engine runs; the engine only ever
// reads.
type FileTree interface {
	// Files returns all repository-relative file paths, using forward
	// slashes, in lexicographic order.
	Files(ctx context.Context) ([]string, error)

	// Read returns the contents of a repository-relative path.
	Read(ctx context.Context, path string) ([]byte, error)
}

// CommandResolver flattens a class of repository automation (shell scripts,
// CI workflows) into resolved command sequences, within the given bounds.
// Hitting a bound yields a partial sequence, never an error; errors are
// reserved for being unable to read the tree at all.
type CommandResolver interface {
	Resolve(ctx context.Context, tree FileTree, bounds entities.ResolutionBounds) ([]entities.CommandSequence, error)
}

// ProvenanceLoader loads and parses the component's provenance statement,
// when one was supplied. A nil statement with nil error means "no provenance
// available".
type ProvenanceLoader interface {
	Load(ctx context.Context) (*entities.ProvenanceStatement, error)
}

// SignatureVerifier verifies a detached signature over an artifact file.
type SignatureVerifier interface {
	VerifyArtifact(ctx context.Context, artifactPath, signaturePath string) error
}

// FactEmitter normalizes finalized check results into fact records and
// hands them to the fact store. Re-emission for the same (component, check)
// key overwrites rather than accumulates.
type FactEmitter interface {
	Emit(ctx context.Context, comp entities.Component, results []entities.CheckResult) ([]entities.Fact, error)
}
