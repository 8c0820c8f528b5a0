package bash

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/veritrail/veritrail/internal/domain/entities"
	"github.com/veritrail/veritrail/internal/domain/interfaces"
)

type memTree struct {
	files map[string]string
}

func (m *memTree) Files(_ context.Context) ([]string, error) {
	out := make([]string, 0, len(m.files))
	for path := range m.files {
		out = append(out, path)
	}
	return out, nil
}

func (m *memTree) Read(_ context.Context, path string) ([]byte, error) {
	content, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("no such file: %s", path)
	}
	return []byte(content), nil
}

func bounds() entities.ResolutionBounds {
	return entities.ResolutionBounds{MaxDepth: 3, ScriptTimeout: 5 * time.Second}
}

func findCommand(seq entities.CommandSequence, program string) *entities.ResolvedCommand {
	for i := range seq.Commands {
		if seq.Commands[i].Program == program {
			return &seq.Commands[i]
		}
	}
	return nil
}

func TestResolveScript_FlattensCommands(t *testing.T) {
	tree := &memTree{files: map[string]string{
		"build.sh": "#!/bin/bash\nset -e\nmvn -B clean package\necho done\n",
	}}
	r := NewResolver(&interfaces.NoOpLogger{})

	seq := r.ResolveScript(context.Background(), tree, "build.sh", nil, bounds())
	if seq.Partial {
		t.Fatalf("unexpected partial sequence: %s", seq.PartialReason)
	}
	mvn := findCommand(seq, "mvn")
	if mvn == nil {
		t.Fatalf("mvn command not resolved; got %+v", seq.Commands)
	}
	want := []string{"-B", "clean", "package"}
	if len(mvn.Args) != len(want) {
		t.Fatalf("mvn args = %v, want %v", mvn.Args, want)
	}
	for i := range want {
		if mvn.Args[i] != want[i] {
			t.Errorf("mvn args = %v, want %v", mvn.Args, want)
		}
	}
	if mvn.Origin.File != "build.sh" {
		t.Errorf("origin file = %q, want build.sh", mvn.Origin.File)
	}
}

func TestResolveScript_FollowsSourcedScripts(t *testing.T) {
	tree := &memTree{files: map[string]string{
		"ci/release.sh": "source helpers.sh\ndeploy_all\n",
		"ci/helpers.sh": "mvn deploy:deploy\n",
	}}
	r := NewResolver(&interfaces.NoOpLogger{})

	seq := r.ResolveScript(context.Background(), tree, "ci/release.sh", nil, bounds())
	mvn := findCommand(seq, "mvn")
	if mvn == nil {
		t.Fatalf("command from sourced script not resolved; got %+v", seq.Commands)
	}
	if mvn.Origin.File != "ci/helpers.sh" {
		t.Errorf("origin file = %q, want ci/helpers.sh", mvn.Origin.File)
	}
}

// A self-referential inclusion chain must terminate at the depth bound with
// a partial sequence, never an error or a hang.
func TestResolveScript_CyclicIncludeTerminates(t *testing.T) {
	tree := &memTree{files: map[string]string{
		"a.sh": "echo in-a\nsource b.sh\n",
		"b.sh": "echo in-b\nsource a.sh\n",
	}}
	r := NewResolver(&interfaces.NoOpLogger{})

	seq := r.ResolveScript(context.Background(), tree, "a.sh", nil, bounds())
	if !seq.Partial {
		t.Fatal("cyclic inclusion should yield a partial sequence")
	}
	if len(seq.Commands) == 0 {
		t.Error("commands resolved before the bound must be kept")
	}
}

// A wrapper invoked directly, not sourced, is still followed.
func TestResolveScript_FollowsDirectlyInvokedWrapper(t *testing.T) {
	tree := &memTree{files: map[string]string{
		"run.sh":             "./scripts/release.sh\n",
		"scripts/release.sh": "mvn deploy:deploy\n",
	}}
	r := NewResolver(&interfaces.NoOpLogger{})

	seq := r.ResolveScript(context.Background(), tree, "run.sh", nil, bounds())
	mvn := findCommand(seq, "mvn")
	if mvn == nil {
		t.Fatalf("command from invoked wrapper not resolved; got %+v", seq.Commands)
	}
	if mvn.Origin.File != "scripts/release.sh" {
		t.Errorf("origin file = %q, want scripts/release.sh", mvn.Origin.File)
	}
}

// ResolveInline takes the caller's remaining budget literally: zero depth
// records the inclusion command itself but expands nothing.
func TestResolveInline_ZeroRemainingDepthDoesNotExpand(t *testing.T) {
	tree := &memTree{files: map[string]string{
		"a.sh": "mvn deploy:deploy\n",
	}}
	r := NewResolver(&interfaces.NoOpLogger{})

	seq := r.ResolveInline(context.Background(), tree, "step", "source a.sh\n", nil,
		entities.ResolutionBounds{MaxDepth: 0, ScriptTimeout: 5 * time.Second})
	if findCommand(seq, "source") == nil {
		t.Fatalf("inclusion command itself must be recorded; got %+v", seq.Commands)
	}
	if findCommand(seq, "mvn") != nil {
		t.Error("zero remaining depth must not expand a.sh")
	}
	if !seq.Partial {
		t.Error("an unexpanded inclusion should yield a partial sequence")
	}
}

func TestResolveScript_EnvSubstitution(t *testing.T) {
	tree := &memTree{files: map[string]string{
		"deploy.sh": "GOAL=deploy\nmvn \"$GOAL\"\ntwine upload \"$UNSET_VAR\" $(compute)\n",
	}}
	r := NewResolver(&interfaces.NoOpLogger{})

	seq := r.ResolveScript(context.Background(), tree, "deploy.sh", nil, bounds())

	mvn := findCommand(seq, "mvn")
	if mvn == nil || len(mvn.Args) != 1 || mvn.Args[0] != "deploy" {
		t.Fatalf("known variable not substituted: %+v", mvn)
	}
	twine := findCommand(seq, "twine")
	if twine == nil {
		t.Fatal("twine command not resolved")
	}
	if twine.Args[1] != "${UNSET_VAR}" {
		t.Errorf("unknown variable = %q, want opaque ${UNSET_VAR}", twine.Args[1])
	}
	if twine.Args[2] != "${?}" {
		t.Errorf("command substitution = %q, want opaque ${?}", twine.Args[2])
	}
}

func TestResolveScript_CallerEnvWins(t *testing.T) {
	tree := &memTree{files: map[string]string{
		"run.sh": "mvn \"$GOAL\"\n",
	}}
	r := NewResolver(&interfaces.NoOpLogger{})

	seq := r.ResolveScript(context.Background(), tree, "run.sh",
		map[string]string{"GOAL": "verify"}, bounds())
	mvn := findCommand(seq, "mvn")
	if mvn == nil || mvn.Args[0] != "verify" {
		t.Fatalf("caller-provided env not applied: %+v", mvn)
	}
}

func TestResolveScript_UnparseableIsPartial(t *testing.T) {
	tree := &memTree{files: map[string]string{
		"bad.sh": "if [ ; then fi\n",
	}}
	r := NewResolver(&interfaces.NoOpLogger{})

	seq := r.ResolveScript(context.Background(), tree, "bad.sh", nil, bounds())
	if !seq.Partial {
		t.Error("unparseable script should yield a partial sequence, not an error")
	}
}

func TestResolve_PicksUpAllShellScripts(t *testing.T) {
	tree := &memTree{files: map[string]string{
		"build.sh":    "make all\n",
		"ci/test.sh":  "go test ./...\n",
		"README.md":   "not a script",
		"Makefile":    "all:\n\techo hi\n",
	}}
	r := NewResolver(&interfaces.NoOpLogger{})

	seqs, err := r.Resolve(context.Background(), tree, bounds())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(seqs) != 2 {
		t.Fatalf("resolved %d sequences, want 2: %+v", len(seqs), seqs)
	}
}
