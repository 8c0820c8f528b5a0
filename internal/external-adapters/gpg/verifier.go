// Package gpg provides PGP signature verification for release artifacts
// using ProtonMail's go-crypto, a maintained fork of golang.org/x/crypto's
// openpgp. Kept in external-adapters to isolate the dependency.
package gpg

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp"

	"github.com/veritrail/veritrail/internal/domain/entities"
	"github.com/veritrail/veritrail/internal/domain/interfaces"
	"github.com/veritrail/veritrail/internal/domain/interfaces/gateways"
)

// Keyservers queried when importing keys by fingerprint, in order.
var keyservers = []string{
	"https://keys.openpgp.org",
	"https://keyserver.ubuntu.com",
}

// Verifier verifies detached PGP signatures against an imported keyring.
type Verifier struct {
	keyring    openpgp.EntityList
	httpClient *http.Client
	maxRetries int
	log        interfaces.Logger

	// importErr remembers a failed keyserver import. Verification against
	// a keyring that is empty because of it must report the transient
	// cause, not a definite failure.
	importErr error
}

// NewVerifier creates a verifier with network bounds from the policy
// tables.
func NewVerifier(network entities.NetworkPolicy, log interfaces.Logger) *Verifier {
	timeout := network.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	retries := network.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return &Verifier{
		keyring:    make(openpgp.EntityList, 0),
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: retries,
		log:        log,
	}
}

// ImportKeyFile imports an armored key file into the keyring.
func (v *Verifier) ImportKeyFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening key file: %w", err)
	}
	defer f.Close()
	keys, err := openpgp.ReadArmoredKeyRing(f)
	if err != nil {
		return fmt.Errorf("parsing key file %s: %w", path, err)
	}
	v.keyring = append(v.keyring, keys...)
	return nil
}

// ImportKeys fetches keys by fingerprint from public keyservers. Each
// request is retried up to the configured bound on transient errors; a
// fingerprint that cannot be fetched from any server after retries is
// reported with ErrTransient so callers downgrade to UNKNOWN rather than
// FAILED.
func (v *Verifier) ImportKeys(ctx context.Context, fingerprints []string) error {
	for _, fp := range fingerprints {
		if fp == "" {
			continue
		}
		if err := v.importKey(ctx, fp); err != nil {
			v.importErr = err
			return err
		}
	}
	return nil
}

func (v *Verifier) importKey(ctx context.Context, fingerprint string) error {
	var lastErr error
	for _, server := range keyservers {
		url := fmt.Sprintf("%s/vks/v1/by-fingerprint/%s", server, fingerprint)
		for attempt := 0; attempt <= v.maxRetries; attempt++ {
			keys, err := v.fetchKey(ctx, url)
			if err == nil {
				if !matchesFingerprint(keys, fingerprint) {
					lastErr = fmt.Errorf("no key matching fingerprint %s in response", fingerprint)
					break
				}
				v.keyring = append(v.keyring, keys...)
				return nil
			}
			lastErr = err
			if ctx.Err() != nil {
				return fmt.Errorf("%w: %v", gateways.ErrTransient, ctx.Err())
			}
			v.log.Debug("keyserver fetch failed",
				interfaces.F("url", url), interfaces.F("attempt", attempt), interfaces.F("error", err))
		}
	}
	return fmt.Errorf("%w: importing key %s: %v", gateways.ErrTransient, fingerprint, lastErr)
}

func (v *Verifier) fetchKey(ctx context.Context, url string) (openpgp.EntityList, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("keyserver returned status %d", resp.StatusCode)
	}
	keys, err := openpgp.ReadArmoredKeyRing(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("no keys in response")
	}
	return keys, nil
}

// matchesFingerprint checks that at least one returned key matches the
// requested fingerprint (full form or 16-hex-char short form).
func matchesFingerprint(keys openpgp.EntityList, fingerprint string) bool {
	for _, entity := range keys {
		fp := fmt.Sprintf("%X", entity.PrimaryKey.Fingerprint)
		if fp == fingerprint {
			return true
		}
		if len(fp) >= 16 && fp[len(fp)-16:] == fingerprint {
			return true
		}
	}
	return false
}

// VerifyArtifact checks a detached signature over an artifact file against
// the imported keyring. Both armored and binary signatures are accepted.
func (v *Verifier) VerifyArtifact(_ context.Context, artifactPath, signaturePath string) error {
	if len(v.keyring) == 0 {
		if v.importErr != nil {
			return fmt.Errorf("no keys imported to verify against: %w", v.importErr)
		}
		return fmt.Errorf("no keys imported to verify against")
	}
	sig, err := os.ReadFile(signaturePath)
	if err != nil {
		return fmt.Errorf("reading signature: %w", err)
	}

	artifact, err := os.Open(artifactPath)
	if err != nil {
		return fmt.Errorf("opening artifact: %w", err)
	}
	defer artifact.Close()

	_, armoredErr := openpgp.CheckArmoredDetachedSignature(v.keyring, artifact, bytes.NewReader(sig), nil)
	if armoredErr == nil {
		return nil
	}
	if _, err := artifact.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewinding artifact: %w", err)
	}
	if _, err := openpgp.CheckDetachedSignature(v.keyring, artifact, bytes.NewReader(sig), nil); err != nil {
		return fmt.Errorf("signature verification failed: %w", err)
	}
	return nil
}
