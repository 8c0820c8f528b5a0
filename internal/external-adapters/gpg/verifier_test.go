package gpg

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/veritrail/veritrail/internal/domain/entities"
	"github.com/veritrail/veritrail/internal/domain/interfaces"
	"github.com/veritrail/veritrail/internal/domain/interfaces/gateways"
)

func newTestVerifier() *Verifier {
	return NewVerifier(entities.NetworkPolicy{
		HTTPTimeout: 200 * time.Millisecond,
		MaxRetries:  1,
	}, &interfaces.NoOpLogger{})
}

func TestImportKeyFile_NonexistentFile(t *testing.T) {
	v := newTestVerifier()
	if err := v.ImportKeyFile("/nonexistent/key.asc"); err == nil {
		t.Fatal("expected an error for a nonexistent file")
	}
}

func TestImportKeyFile_InvalidContent(t *testing.T) {
	v := newTestVerifier()
	keyPath := filepath.Join(t.TempDir(), "bad.asc")
	if err := os.WriteFile(keyPath, []byte("not a pgp key"), 0600); err != nil {
		t.Fatal(err)
	}
	err := v.ImportKeyFile(keyPath)
	if err == nil {
		t.Fatal("expected an error for invalid key content")
	}
	if !strings.Contains(err.Error(), "parsing key file") {
		t.Errorf("error = %v, want a parse error", err)
	}
}

// Keyserver failures after retries surface as ErrTransient, so the
// signature check downgrades to UNKNOWN instead of FAILED.
func TestImportKeys_FailureIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	v := newTestVerifier()
	// Point both keyserver slots at the failing test server.
	old := keyservers
	keyservers = []string{server.URL}
	defer func() { keyservers = old }()

	err := v.ImportKeys(context.Background(), []string{"ABCDEF0123456789"})
	if err == nil {
		t.Fatal("expected an error from a failing keyserver")
	}
	if !errors.Is(err, gateways.ErrTransient) {
		t.Errorf("error = %v, want ErrTransient", err)
	}
}

func TestImportKeys_SkipsEmptyFingerprints(t *testing.T) {
	v := newTestVerifier()
	if err := v.ImportKeys(context.Background(), []string{"", ""}); err != nil {
		t.Errorf("empty fingerprints should be skipped, got %v", err)
	}
}

// A keyring left empty by a failed keyserver import keeps the transient
// marker through verification, so the signature check reports UNKNOWN
// instead of a definite FAILED.
func TestVerifyArtifact_AfterFailedImportIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	v := newTestVerifier()
	old := keyservers
	keyservers = []string{server.URL}
	defer func() { keyservers = old }()

	if err := v.ImportKeys(context.Background(), []string{"ABCDEF0123456789"}); err == nil {
		t.Fatal("expected the import to fail")
	}

	dir := t.TempDir()
	artifact := filepath.Join(dir, "pkg.tar.gz")
	sig := filepath.Join(dir, "pkg.tar.gz.asc")
	os.WriteFile(artifact, []byte("data"), 0600)
	os.WriteFile(sig, []byte("sig"), 0600)

	err := v.VerifyArtifact(context.Background(), artifact, sig)
	if err == nil {
		t.Fatal("expected an error with an empty keyring")
	}
	if !errors.Is(err, gateways.ErrTransient) {
		t.Errorf("error = %v, want ErrTransient", err)
	}
}

func TestVerifyArtifact_NoKeys(t *testing.T) {
	v := newTestVerifier()
	dir := t.TempDir()
	artifact := filepath.Join(dir, "pkg.tar.gz")
	sig := filepath.Join(dir, "pkg.tar.gz.asc")
	os.WriteFile(artifact, []byte("data"), 0600)
	os.WriteFile(sig, []byte("sig"), 0600)

	err := v.VerifyArtifact(context.Background(), artifact, sig)
	if err == nil {
		t.Fatal("expected an error with an empty keyring")
	}
	if !strings.Contains(err.Error(), "no keys imported") {
		t.Errorf("error = %v, want 'no keys imported'", err)
	}
	if errors.Is(err, gateways.ErrTransient) {
		t.Error("an empty keyring is not a transient condition")
	}
}

func TestVerifyArtifact_MissingFiles(t *testing.T) {
	v := newTestVerifier()
	v.keyring = append(v.keyring, nil) // non-empty keyring to pass the guard

	dir := t.TempDir()
	artifact := filepath.Join(dir, "pkg.tar.gz")
	os.WriteFile(artifact, []byte("data"), 0600)

	if err := v.VerifyArtifact(context.Background(), artifact, filepath.Join(dir, "absent.asc")); err == nil {
		t.Error("expected an error for a missing signature file")
	}
	sig := filepath.Join(dir, "pkg.asc")
	os.WriteFile(sig, []byte("sig"), 0600)
	if err := v.VerifyArtifact(context.Background(), filepath.Join(dir, "absent.tar.gz"), sig); err == nil {
		t.Error("expected an error for a missing artifact file")
	}
}
