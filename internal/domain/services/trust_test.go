package services

import (
	"testing"

	"github.com/veritrail/veritrail/internal/domain/entities"
)

func trustTables() *entities.PolicyTables {
	return &entities.PolicyTables{
		CIServices: []entities.CIServiceSpec{
			{
				Name:   "github_actions",
				Hosted: true,
				BuilderIDPrefixes: []string{
					"https://github.com/",
					"https://token.actions.githubusercontent.com/",
				},
			},
			{Name: "jenkins", Hosted: false},
		},
		TrustedBuilders: []string{
			"*slsa-framework/slsa-github-generator/.github/workflows/*",
		},
		PredicateTypes: []string{
			"https://slsa.dev/provenance/v0.2",
			"https://slsa.dev/provenance/v1",
		},
	}
}

func l3Statement() *entities.ProvenanceStatement {
	return &entities.ProvenanceStatement{
		PredicateType: "https://slsa.dev/provenance/v0.2",
		Subjects: []entities.Subject{
			{Name: "pkg.tar.gz", Digest: entities.DigestSet{"sha256": "aa11"}},
		},
		BuilderID: "https://github.com/slsa-framework/slsa-github-generator/.github/workflows/builder_go_slsa3.yml@refs/tags/v1.2.0",
	}
}

func TestDeriveTrustLevel_Ladder(t *testing.T) {
	artifact := entities.DigestSet{"sha256": "aa11"}

	tests := []struct {
		name     string
		stmt     *entities.ProvenanceStatement
		artifact entities.DigestSet
		want     entities.TrustLevel
	}{
		{
			name: "nil statement is NONE",
			want: entities.TrustNone,
		},
		{
			name: "unrecognized predicate is NONE",
			stmt: func() *entities.ProvenanceStatement {
				s := l3Statement()
				s.PredicateType = "https://example.com/custom"
				return s
			}(),
			artifact: artifact,
			want:     entities.TrustNone,
		},
		{
			name:     "subject mismatch is NONE",
			stmt:     l3Statement(),
			artifact: entities.DigestSet{"sha256": "different"},
			want:     entities.TrustNone,
		},
		{
			name: "unattributed builder stops at L1",
			stmt: func() *entities.ProvenanceStatement {
				s := l3Statement()
				s.BuilderID = "https://my-laptop.local/builds"
				return s
			}(),
			artifact: artifact,
			want:     entities.TrustL1,
		},
		{
			name: "hosted but untrusted builder stops at L2",
			stmt: func() *entities.ProvenanceStatement {
				s := l3Statement()
				s.BuilderID = "https://github.com/someone/custom-workflow/.github/workflows/build.yml@main"
				return s
			}(),
			artifact: artifact,
			want:     entities.TrustL2,
		},
		{
			name:     "trusted builder without parameters reaches L3",
			stmt:     l3Statement(),
			artifact: artifact,
			want:     entities.TrustL3,
		},
		{
			name: "uncaptured parameters cap at L2",
			stmt: func() *entities.ProvenanceStatement {
				s := l3Statement()
				s.Invocation.Parameters = []string{"source=git+https://github.com/acme/lib"}
				return s
			}(),
			artifact: artifact,
			want:     entities.TrustL2,
		},
		{
			name: "captured parameters keep L3",
			stmt: func() *entities.ProvenanceStatement {
				s := l3Statement()
				s.Invocation.Parameters = []string{"source=git+https://github.com/acme/lib"}
				s.Materials = []entities.Material{{URI: "git+https://github.com/acme/lib"}}
				return s
			}(),
			artifact: artifact,
			want:     entities.TrustL3,
		},
		{
			name:     "no artifact digest skips the subject gate",
			stmt:     l3Statement(),
			artifact: nil,
			want:     entities.TrustL3,
		},
	}

	tables := trustTables()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, rationale := DeriveTrustLevel(tt.stmt, tt.artifact, tables)
			if got != tt.want {
				t.Errorf("DeriveTrustLevel() = %v, want %v (rationale: %v)", got, tt.want, rationale)
			}
			if len(rationale) == 0 {
				t.Error("expected a non-empty rationale trail")
			}
		})
	}
}

// The ladder is monotonic: each gate only runs after the previous passed,
// so every derivation path must land on exactly one of the four levels.
func TestDeriveTrustLevel_RationaleExplainsStop(t *testing.T) {
	tables := trustTables()
	stmt := l3Statement()
	stmt.BuilderID = "https://my-laptop.local/builds"

	level, rationale := DeriveTrustLevel(stmt, entities.DigestSet{"sha256": "aa11"}, tables)
	if level != entities.TrustL1 {
		t.Fatalf("level = %v, want L1", level)
	}
	last := rationale[len(rationale)-1]
	if last != "builder identity is not attributed to a hosted build service" {
		t.Errorf("final rationale = %q, expected the hosted-service gate explanation", last)
	}
}

func TestDigestSet_Matches(t *testing.T) {
	tests := []struct {
		name string
		a, b entities.DigestSet
		want bool
	}{
		{
			name: "shared algorithm agrees",
			a:    entities.DigestSet{"sha256": "aa"},
			b:    entities.DigestSet{"sha256": "aa", "sha512": "bb"},
			want: true,
		},
		{
			name: "shared algorithm disagrees",
			a:    entities.DigestSet{"sha256": "aa"},
			b:    entities.DigestSet{"sha256": "xx"},
			want: false,
		},
		{
			name: "no shared algorithm",
			a:    entities.DigestSet{"sha256": "aa"},
			b:    entities.DigestSet{"sha512": "bb"},
			want: false,
		},
		{
			name: "agreement on one, disagreement on another",
			a:    entities.DigestSet{"sha256": "aa", "sha512": "bb"},
			b:    entities.DigestSet{"sha256": "aa", "sha512": "zz"},
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Matches(tt.b); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}
