// Package entities defines the core domain model: components under
// analysis, checks and their results, resolved commands, provenance
// statements and the policy tables that parameterize detection.
package entities

// Component is a software release under analysis: a repository snapshot
// and, optionally, a released artifact with its digests and signature.
type Component struct {
	// PackageID is the package-manager identity (purl-style) when the
	// component was located through a registry. Optional.
	PackageID string

	// Repository is the source repository URL or local path.
	Repository string

	// Branch and Commit pin the analyzed snapshot. Commit is the full
	// revision hash when known.
	Branch string
	Commit string

	// ArtifactDigest holds the digests of the released artifact, keyed
	// by algorithm. Empty when no artifact is under analysis.
	ArtifactDigest DigestSet

	// ArtifactPath and SignaturePath locate the local artifact and its
	// detached signature for signature verification. Optional.
	ArtifactPath  string
	SignaturePath string
}

// ID returns the stable identity facts are keyed under: the package ID when
// present, otherwise repository@commit.
func (c Component) ID() string {
	if c.PackageID != "" {
		return c.PackageID
	}
	return c.Repository + "@" + c.Commit
}
