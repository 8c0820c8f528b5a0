package entities

// Fact is one persisted check outcome, keyed by (component, check). Facts
// carry no timestamps: re-running an unchanged analysis must produce
// byte-identical facts.
type Fact struct {
	ComponentID string
	CheckID     string
	Status      CheckStatus
	Confidence  float64

	// EvidenceRef is the serialized audit trail behind the outcome.
	EvidenceRef string
}
