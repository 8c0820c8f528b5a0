package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	adapters "github.com/veritrail/veritrail/internal/domain-adapters/gateways"
	orchestrators "github.com/veritrail/veritrail/internal/domain-orchestrators"
	"github.com/veritrail/veritrail/internal/domain/entities"
	"github.com/veritrail/veritrail/internal/domain/interfaces"
	"github.com/veritrail/veritrail/internal/domain/interfaces/gateways"
	"github.com/veritrail/veritrail/internal/domain/services"
	"github.com/veritrail/veritrail/internal/external-adapters/actions"
	"github.com/veritrail/veritrail/internal/external-adapters/bash"
	"github.com/veritrail/veritrail/internal/external-adapters/gpg"
	"github.com/veritrail/veritrail/internal/external-adapters/jenkins"
	"github.com/veritrail/veritrail/internal/external-adapters/provenance"
	"github.com/veritrail/veritrail/internal/external-adapters/sqlite"
	"github.com/veritrail/veritrail/internal/external-adapters/yaml"
)

func runAnalyze(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	var (
		repoPath   = fs.String("repo", "", "Path to the repository snapshot to analyze (required)")
		packageID  = fs.String("package", "", "Package identity of the component (purl-style)")
		commit     = fs.String("commit", "", "Commit hash the snapshot was resolved to")
		branch     = fs.String("branch", "", "Branch the snapshot was resolved from")
		digest     = fs.String("digest", "", "Artifact digest as alg:hex (e.g. sha256:ab...)")
		provPath   = fs.String("provenance", "", "Provenance file: DSSE envelope or in-toto statement")
		artifact   = fs.String("artifact", "", "Released artifact file for signature verification")
		signature  = fs.String("signature", "", "Detached signature file for the artifact")
		keyFile    = fs.String("key-file", "", "Armored PGP key file for signature verification")
		keyIDs     = fs.String("key-ids", "", "Comma-separated PGP key fingerprints to fetch")
		dbPath     = fs.String("db", "", "SQLite fact database path (default: in-memory only)")
		policyPath = fs.String("policy", "", "Policy file overlaying the built-in tables")
		include    = fs.String("include", "", "Comma-separated check ID globs to include")
		exclude    = fs.String("exclude", "", "Comma-separated check ID globs to exclude")
		workers    = fs.Int("workers", 0, "Concurrent checks per layer (default from policy)")
		verbose    = fs.Bool("verbose", false, "Enable debug logging")
	)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: veritrail analyze --repo <path> [options]

Run the trust check suite against a repository snapshot. Checks execute in
dependency order and every outcome is persisted as a fact keyed by
(component, check).

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # Analyze a checked-out repository
  veritrail analyze --repo ./myproject --commit 4f2c...

  # Analyze with provenance and a persistent fact database
  veritrail analyze --repo ./myproject --provenance attestation.intoto.jsonl --db facts.db

  # Run only the provenance checks
  veritrail analyze --repo ./myproject --include 'provenance_*'
`)
	}

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		os.Exit(1)
	}

	if *repoPath == "" {
		fmt.Fprintf(os.Stderr, "Error: --repo is required\n\n")
		fs.Usage()
		os.Exit(1)
	}

	var log interfaces.Logger = &interfaces.StderrLogger{MinLevel: interfaces.LevelInfo}
	if *verbose {
		log = &interfaces.StderrLogger{MinLevel: interfaces.LevelDebug}
	}

	comp := entities.Component{
		PackageID:     *packageID,
		Repository:    *repoPath,
		Branch:        *branch,
		Commit:        *commit,
		ArtifactPath:  *artifact,
		SignaturePath: *signature,
	}
	if *digest != "" {
		alg, hex, ok := strings.Cut(*digest, ":")
		if !ok {
			fmt.Fprintf(os.Stderr, "Error: --digest must be alg:hex\n")
			os.Exit(1)
		}
		comp.ArtifactDigest = entities.DigestSet{alg: hex}
	}

	if err := executeAnalyze(ctx, comp, *provPath, *keyFile, *keyIDs, *dbPath, *policyPath,
		splitList(*include), splitList(*exclude), *workers, log); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func executeAnalyze(ctx context.Context, comp entities.Component, provPath, keyFile, keyIDs, dbPath, policyPath string,
	include, exclude []string, workers int, log interfaces.Logger) error {

	tables, err := yaml.Load(policyPath)
	if err != nil {
		return err
	}
	if len(include) > 0 {
		tables.IncludeChecks = include
	}
	if len(exclude) > 0 {
		tables.ExcludeChecks = exclude
	}
	if workers > 0 {
		tables.Workers = workers
	}

	registry, err := services.NewRegistry(services.DefaultChecks(), tables.IncludeChecks, tables.ExcludeChecks)
	if err != nil {
		return err
	}

	var store interfaces.FactStore
	if dbPath != "" {
		sqlStore, err := sqlite.NewFactStore(dbPath)
		if err != nil {
			return err
		}
		store = sqlStore
	} else {
		store = interfaces.NewMemoryFactStore()
	}
	defer store.Close()

	var verifier *gpg.Verifier
	if comp.ArtifactPath != "" && comp.SignaturePath != "" {
		verifier = gpg.NewVerifier(tables.Network, log)
		if keyFile != "" {
			if err := verifier.ImportKeyFile(keyFile); err != nil {
				return err
			}
		}
		if keyIDs != "" {
			if err := verifier.ImportKeys(ctx, splitList(keyIDs)); err != nil {
				log.Warn("key import failed", interfaces.F("error", err))
			}
		}
	}

	detection := services.NewDetectionService(tables, log)
	resolvers := []orchestrators.ResolverBinding{
		{CI: "", Resolver: bash.NewResolver(log)},
		{CI: "github_actions", Resolver: actions.NewResolver(log)},
		{CI: "jenkins", Resolver: jenkins.NewResolver(log)},
	}

	orchestrator := orchestrators.NewAnalysisOrchestrator(
		registry,
		tables,
		detection,
		resolvers,
		&provenance.FileLoader{Path: provPath},
		signatureVerifier(verifier),
		adapters.NewFactEmitter(store, log),
		log,
	)

	report, err := orchestrator.Analyze(ctx, comp, adapters.NewRepoTree(comp.Repository))
	if err != nil {
		return err
	}
	printReport(report)
	return nil
}

// signatureVerifier keeps a nil *gpg.Verifier from becoming a non-nil
// interface value.
func signatureVerifier(v *gpg.Verifier) gateways.SignatureVerifier {
	if v == nil {
		return nil
	}
	return v
}

func printReport(report *orchestrators.AnalysisReport) {
	fmt.Printf("Component: %s\n\n", report.Component.ID())
	passed, failed := 0, 0
	for _, res := range report.Results {
		marker := " "
		switch res.Status {
		case entities.StatusPassed:
			marker = "✅"
			passed++
		case entities.StatusFailed:
			marker = "❌"
			failed++
		case entities.StatusUnknown:
			marker = "❓"
		case entities.StatusSkipped:
			marker = "⏭️"
		case entities.StatusDisabled:
			marker = "🚫"
		}
		fmt.Printf("%s %-26s %-8s confidence %.2f\n", marker, res.CheckID, res.Status, res.Confidence)
		for _, item := range res.Evidence {
			loc := ""
			if item.File != "" {
				loc = " (" + item.File
				if item.Step != "" {
					loc += " " + item.Step
				}
				loc += ")"
			}
			fmt.Printf("     %s: %s%s\n", item.Key, item.Value, loc)
		}
	}
	fmt.Println("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("✅ Passed: %d   ❌ Failed: %d   facts: %d   duration: %s\n",
		passed, failed, len(report.Facts), report.Duration.Round(1e6))
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
