package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/veritrail/veritrail/internal/domain/entities"
	"github.com/veritrail/veritrail/internal/domain/interfaces/gateways"
)

// The built-in suite must always be a valid registry configuration.
func TestDefaultChecks_FormValidRegistry(t *testing.T) {
	registry, err := NewRegistry(DefaultChecks(), nil, nil)
	if err != nil {
		t.Fatalf("built-in checks are not a valid configuration: %v", err)
	}
	total := 0
	for _, layer := range registry.Layers() {
		total += len(layer)
	}
	if total != len(DefaultChecks()) {
		t.Errorf("layers cover %d checks, want %d", total, len(DefaultChecks()))
	}
}

func testContext() *AnalysisContext {
	return NewAnalysisContext(
		entities.Component{Repository: "https://github.com/acme/pkg", Commit: "abc123"},
		&entities.PolicyTables{
			PredicateTypes: []string{"https://slsa.dev/provenance/v0.2"},
			CIServices: []entities.CIServiceSpec{
				{Name: "github_actions", Hosted: true, BuilderIDPrefixes: []string{"https://github.com/"}},
			},
			TrustedBuilders: []string{"*slsa-framework/slsa-github-generator/*"},
		},
	)
}

func TestBuildToolCheck(t *testing.T) {
	check := &BuildToolCheck{}

	t.Run("no tools is a definite failure", func(t *testing.T) {
		res, err := check.Run(context.Background(), testContext())
		if err != nil {
			t.Fatal(err)
		}
		if res.Status != entities.StatusFailed || res.Confidence != 1.0 {
			t.Errorf("result = %s conf %.1f, want FAILED conf 1.0", res.Status, res.Confidence)
		}
	})

	t.Run("detected tools pass", func(t *testing.T) {
		actx := testContext()
		actx.Tools = []entities.DetectedTool{{Tool: "maven", Files: []string{"pom.xml"}}}
		res, _ := check.Run(context.Background(), actx)
		if res.Status != entities.StatusPassed {
			t.Errorf("status = %s, want PASSED", res.Status)
		}
	})
}

func TestVersionControlCheck(t *testing.T) {
	check := &VersionControlCheck{}

	t.Run("repository and commit pass", func(t *testing.T) {
		res, _ := check.Run(context.Background(), testContext())
		if res.Status != entities.StatusPassed {
			t.Errorf("status = %s, want PASSED", res.Status)
		}
	})

	t.Run("missing commit fails", func(t *testing.T) {
		actx := testContext()
		actx.Component.Commit = ""
		res, _ := check.Run(context.Background(), actx)
		if res.Status != entities.StatusFailed {
			t.Errorf("status = %s, want FAILED", res.Status)
		}
	})
}

func TestBuildServiceCheck(t *testing.T) {
	check := &BuildServiceCheck{}
	ciInvocation := entities.BuildInvocation{
		Tool: "maven", CI: "github_actions",
		Command: entities.ResolvedCommand{Program: "mvn", Args: []string{"deploy"}},
	}

	tests := []struct {
		name     string
		mutate   func(*AnalysisContext)
		want     entities.CheckStatus
		wantConf float64
	}{
		{
			name: "CI invocation passes at full confidence",
			mutate: func(a *AnalysisContext) {
				a.CIServices = []entities.DetectedCIService{{Name: "github_actions"}}
				a.Invocations = []entities.BuildInvocation{ciInvocation}
			},
			want:     entities.StatusPassed,
			wantConf: 1.0,
		},
		{
			name: "invocation in partial sequence weakens confidence",
			mutate: func(a *AnalysisContext) {
				inv := ciInvocation
				inv.Partial = true
				a.Invocations = []entities.BuildInvocation{inv}
			},
			want:     entities.StatusPassed,
			wantConf: 0.8,
		},
		{
			name:     "no CI at all fails definitively",
			mutate:   func(_ *AnalysisContext) {},
			want:     entities.StatusFailed,
			wantConf: 1.0,
		},
		{
			name: "absence with partial resolution is unknown",
			mutate: func(a *AnalysisContext) {
				a.CIServices = []entities.DetectedCIService{{Name: "github_actions"}}
				a.Sequences = []entities.CommandSequence{{Partial: true, PartialReason: "depth"}}
			},
			want:     entities.StatusUnknown,
			wantConf: 0.4,
		},
		{
			name: "CI present but no recognized command fails",
			mutate: func(a *AnalysisContext) {
				a.CIServices = []entities.DetectedCIService{{Name: "github_actions"}}
			},
			want:     entities.StatusFailed,
			wantConf: 1.0,
		},
		{
			name: "script-only invocation does not count as CI",
			mutate: func(a *AnalysisContext) {
				inv := ciInvocation
				inv.CI = ""
				a.Invocations = []entities.BuildInvocation{inv}
			},
			want:     entities.StatusFailed,
			wantConf: 1.0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actx := testContext()
			tt.mutate(actx)
			res, err := check.Run(context.Background(), actx)
			if err != nil {
				t.Fatal(err)
			}
			if res.Status != tt.want || res.Confidence != tt.wantConf {
				t.Errorf("result = %s conf %.1f, want %s conf %.1f",
					res.Status, res.Confidence, tt.want, tt.wantConf)
			}
		})
	}
}

func TestBuildAsCodeCheck(t *testing.T) {
	check := &BuildAsCodeCheck{}

	t.Run("deploy from CI passes", func(t *testing.T) {
		actx := testContext()
		actx.Invocations = []entities.BuildInvocation{
			{Tool: "maven", CI: "github_actions", Deploy: true,
				Command: entities.ResolvedCommand{Program: "mvn", Args: []string{"deploy"}}},
		}
		res, _ := check.Run(context.Background(), actx)
		if res.Status != entities.StatusPassed {
			t.Errorf("status = %s, want PASSED", res.Status)
		}
	})

	t.Run("build without deploy fails", func(t *testing.T) {
		actx := testContext()
		actx.Invocations = []entities.BuildInvocation{
			{Tool: "maven", CI: "github_actions", Deploy: false,
				Command: entities.ResolvedCommand{Program: "mvn", Args: []string{"package"}}},
		}
		res, _ := check.Run(context.Background(), actx)
		if res.Status != entities.StatusFailed {
			t.Errorf("status = %s, want FAILED", res.Status)
		}
	})

	t.Run("deploy from a local script is not build-as-code", func(t *testing.T) {
		actx := testContext()
		actx.Invocations = []entities.BuildInvocation{
			{Tool: "maven", CI: "", Deploy: true,
				Command: entities.ResolvedCommand{Program: "mvn", Args: []string{"deploy"}}},
		}
		res, _ := check.Run(context.Background(), actx)
		if res.Status != entities.StatusFailed {
			t.Errorf("status = %s, want FAILED", res.Status)
		}
	})
}

func recognizedStatement() *entities.ProvenanceStatement {
	return &entities.ProvenanceStatement{
		PredicateType: "https://slsa.dev/provenance/v0.2",
		Subjects:      []entities.Subject{{Name: "pkg", Digest: entities.DigestSet{"sha256": "aa"}}},
		BuilderID:     "https://github.com/acme/workflow",
	}
}

func TestProvenanceChecks(t *testing.T) {
	t.Run("available fails without a statement", func(t *testing.T) {
		res, _ := (&ProvenanceAvailableCheck{}).Run(context.Background(), testContext())
		if res.Status != entities.StatusFailed {
			t.Errorf("status = %s, want FAILED", res.Status)
		}
	})

	t.Run("available fails on unrecognized predicate", func(t *testing.T) {
		actx := testContext()
		actx.Provenance = recognizedStatement()
		actx.Provenance.PredicateType = "https://example.com/custom"
		res, _ := (&ProvenanceAvailableCheck{}).Run(context.Background(), actx)
		if res.Status != entities.StatusFailed {
			t.Errorf("status = %s, want FAILED", res.Status)
		}
	})

	t.Run("verified is unknown without an artifact digest", func(t *testing.T) {
		actx := testContext()
		actx.Provenance = recognizedStatement()
		res, _ := (&ProvenanceVerifiedCheck{}).Run(context.Background(), actx)
		if res.Status != entities.StatusUnknown || res.Confidence != 0.4 {
			t.Errorf("result = %s conf %.1f, want UNKNOWN conf 0.4", res.Status, res.Confidence)
		}
	})

	t.Run("verified passes on subject match", func(t *testing.T) {
		actx := testContext()
		actx.Provenance = recognizedStatement()
		actx.Component.ArtifactDigest = entities.DigestSet{"sha256": "aa"}
		res, _ := (&ProvenanceVerifiedCheck{}).Run(context.Background(), actx)
		if res.Status != entities.StatusPassed {
			t.Errorf("status = %s, want PASSED", res.Status)
		}
	})

	t.Run("derived commit compares config source digest", func(t *testing.T) {
		actx := testContext()
		actx.Provenance = recognizedStatement()
		actx.Provenance.Invocation.Digest = "abc123"
		res, _ := (&ProvenanceDerivedCommitCheck{}).Run(context.Background(), actx)
		if res.Status != entities.StatusPassed {
			t.Errorf("status = %s, want PASSED", res.Status)
		}

		actx.Provenance.Invocation.Digest = "fff000"
		res, _ = (&ProvenanceDerivedCommitCheck{}).Run(context.Background(), actx)
		if res.Status != entities.StatusFailed {
			t.Errorf("status = %s, want FAILED on commit mismatch", res.Status)
		}
	})

	t.Run("derived commit is weakly unknown without a digest", func(t *testing.T) {
		actx := testContext()
		actx.Provenance = recognizedStatement()
		res, _ := (&ProvenanceDerivedCommitCheck{}).Run(context.Background(), actx)
		if res.Status != entities.StatusUnknown || res.Confidence != 0.2 {
			t.Errorf("result = %s conf %.1f, want UNKNOWN conf 0.2", res.Status, res.Confidence)
		}
	})
}

// mockVerifier scripts the signature verification outcome.
type mockVerifier struct {
	err error
}

func (m *mockVerifier) VerifyArtifact(_ context.Context, _, _ string) error { return m.err }

func TestArtifactSignatureCheck(t *testing.T) {
	check := &ArtifactSignatureCheck{}

	t.Run("no files supplied is unknown at zero confidence", func(t *testing.T) {
		res, _ := check.Run(context.Background(), testContext())
		if res.Status != entities.StatusUnknown || res.Confidence != 0.0 {
			t.Errorf("result = %s conf %.1f, want UNKNOWN conf 0.0", res.Status, res.Confidence)
		}
	})

	withFiles := func(err error) *AnalysisContext {
		actx := testContext()
		actx.Component.ArtifactPath = "pkg.tar.gz"
		actx.Component.SignaturePath = "pkg.tar.gz.asc"
		actx.Signatures = &mockVerifier{err: err}
		return actx
	}

	t.Run("verification success passes", func(t *testing.T) {
		res, _ := check.Run(context.Background(), withFiles(nil))
		if res.Status != entities.StatusPassed || res.Confidence != 1.0 {
			t.Errorf("result = %s conf %.1f, want PASSED conf 1.0", res.Status, res.Confidence)
		}
	})

	t.Run("verification failure fails definitively", func(t *testing.T) {
		res, _ := check.Run(context.Background(), withFiles(errors.New("bad signature")))
		if res.Status != entities.StatusFailed || res.Confidence != 1.0 {
			t.Errorf("result = %s conf %.1f, want FAILED conf 1.0", res.Status, res.Confidence)
		}
	})

	t.Run("transient network failure is weakly unknown", func(t *testing.T) {
		wrapped := fmt.Errorf("%w: keyserver down", gateways.ErrTransient)
		res, _ := check.Run(context.Background(), withFiles(wrapped))
		if res.Status != entities.StatusUnknown || res.Confidence != 0.2 {
			t.Errorf("result = %s conf %.1f, want UNKNOWN conf 0.2", res.Status, res.Confidence)
		}
	})
}
