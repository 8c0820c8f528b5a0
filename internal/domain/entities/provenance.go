package entities

// DigestSet maps digest algorithm names to hex values.
type DigestSet map[string]string

// Matches reports whether the two sets agree on at least one shared
// algorithm and disagree on none.
func (d DigestSet) Matches(other DigestSet) bool {
	shared := 0
	for alg, val := range d {
		if ov, ok := other[alg]; ok {
			if ov != val {
				return false
			}
			shared++
		}
	}
	return shared > 0
}

// Subject is one artifact a provenance statement attests to.
type Subject struct {
	Name   string
	Digest DigestSet
}

// Material is one input to the attested build.
type Material struct {
	URI    string
	Digest DigestSet
}

// InvocationRef describes how the attested build was invoked: the config
// source or workflow, pinned by digest, with its parameters flattened to
// "key=value" strings.
type InvocationRef struct {
	URI        string
	EntryPoint string
	Digest     string
	Parameters []string
}

// ProvenanceStatement is the normalized view of a build attestation after
// format-specific extraction. Field availability varies by predicate
// version; absent fields are empty.
type ProvenanceStatement struct {
	PredicateType string
	Subjects      []Subject
	BuilderID     string
	BuildType     string
	Invocation    InvocationRef
	Materials     []Material
}

// SubjectMatching returns the first subject whose digests match the
// artifact, or nil.
func (p *ProvenanceStatement) SubjectMatching(artifact DigestSet) *Subject {
	for i := range p.Subjects {
		if p.Subjects[i].Digest.Matches(artifact) {
			return &p.Subjects[i]
		}
	}
	return nil
}

// TrustLevel is the discrete provenance trust ladder. Levels are strictly
// ordered; reaching a level implies the criteria of every level below it.
type TrustLevel int

const (
	// TrustNone: no statement, unrecognized predicate, or a statement
	// about a different artifact.
	TrustNone TrustLevel = iota

	// TrustL1: a well-formed statement documents the build.
	TrustL1

	// TrustL2: the statement was generated by a hosted build service.
	TrustL2

	// TrustL3: an allow-listed trusted builder with build parameters
	// captured; the provenance is non-falsifiable by the build author.
	TrustL3
)

func (t TrustLevel) String() string {
	switch t {
	case TrustL1:
		return "L1"
	case TrustL2:
		return "L2"
	case TrustL3:
		return "L3"
	default:
		return "NONE"
	}
}
