package services

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/veritrail/veritrail/internal/domain/entities"
	"github.com/veritrail/veritrail/internal/domain/interfaces"
	"github.com/veritrail/veritrail/internal/domain/interfaces/gateways"
)

// DetectionService identifies build tools and CI services in a repository
// tree and recognizes build/deploy invocations inside resolved command
// sequences, using the vocabulary from the policy tables.
type DetectionService struct {
	tables *entities.PolicyTables
	log    interfaces.Logger
}

// NewDetectionService creates a detection service over the given tables.
func NewDetectionService(tables *entities.PolicyTables, log interfaces.Logger) *DetectionService {
	return &DetectionService{tables: tables, log: log}
}

// DetectTools returns every build tool whose entry or build config files
// appear in the tree. Multiple tools may be detected simultaneously; the
// result is a set, not a single winner.
func (s *DetectionService) DetectTools(ctx context.Context, tree gateways.FileTree) ([]entities.DetectedTool, error) {
	files, err := tree.Files(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing repository files: %w", err)
	}
	var out []entities.DetectedTool
	for _, tool := range s.tables.BuildTools {
		patterns := make([]string, 0, len(tool.EntryConfigs)+len(tool.BuildConfigs))
		patterns = append(patterns, tool.EntryConfigs...)
		patterns = append(patterns, tool.BuildConfigs...)
		var matched []string
		for _, f := range files {
			base := path.Base(f)
			for _, pat := range patterns {
				if ok, _ := path.Match(pat, base); ok {
					matched = append(matched, f)
					break
				}
			}
		}
		if len(matched) > 0 {
			sort.Strings(matched)
			out = append(out, entities.DetectedTool{Tool: tool.Name, Files: matched})
			s.log.Debug("build tool detected",
				interfaces.F("tool", tool.Name), interfaces.F("files", len(matched)))
		}
	}
	return out, nil
}

// DetectCIServices returns every CI service whose entry path appears in the
// tree. An entry path is either an exact file or a directory prefix.
func (s *DetectionService) DetectCIServices(ctx context.Context, tree gateways.FileTree) ([]entities.DetectedCIService, error) {
	files, err := tree.Files(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing repository files: %w", err)
	}
	var out []entities.DetectedCIService
	for _, ci := range s.tables.CIServices {
		var matched []string
		for _, f := range files {
			for _, entry := range ci.EntryPaths {
				if f == entry || strings.HasPrefix(f, entry+"/") {
					matched = append(matched, f)
					break
				}
			}
		}
		if len(matched) > 0 {
			sort.Strings(matched)
			out = append(out, entities.DetectedCIService{Name: ci.Name, Hosted: ci.Hosted, Files: matched})
			s.log.Debug("CI service detected",
				interfaces.F("ci", ci.Name), interfaces.F("files", len(matched)))
		}
	}
	return out, nil
}

// ScanSequences recognizes build and deploy invocations in resolved command
// sequences attributed to one CI service (empty ciName for standalone
// repository scripts). Per-CI argument overrides from the tables apply.
func (s *DetectionService) ScanSequences(seqs []entities.CommandSequence, ciName string) []entities.BuildInvocation {
	var out []entities.BuildInvocation
	for _, seq := range seqs {
		for _, cmd := range seq.Commands {
			for i := range s.tables.BuildTools {
				tool := &s.tables.BuildTools[i]
				if inv, ok := s.matchCommand(tool, ciName, cmd); ok {
					inv.Partial = seq.Partial
					out = append(out, inv)
				}
			}
		}
	}
	return out
}

// matchCommand tests one resolved command against one tool's vocabulary.
func (s *DetectionService) matchCommand(tool *entities.BuildToolSpec, ciName string, cmd entities.ResolvedCommand) (entities.BuildInvocation, bool) {
	// "uses"-style pseudo-commands carry CI action references.
	if cmd.Program == "uses" && len(cmd.Args) > 0 {
		ref := cmd.Args[0]
		if at := strings.IndexByte(ref, '@'); at >= 0 {
			ref = ref[:at]
		}
		for _, action := range tool.DeployActions {
			if ref == action {
				return entities.BuildInvocation{Tool: tool.Name, CI: ciName, Deploy: true, Command: cmd}, true
			}
		}
		return entities.BuildInvocation{}, false
	}

	prog := path.Base(strings.TrimPrefix(cmd.Program, "./"))
	builder := false
	for _, b := range tool.Builders {
		if prog == b {
			builder = true
			break
		}
	}
	if !builder {
		return entities.BuildInvocation{}, false
	}
	buildArgs, deployArgs := tool.ArgsFor(ciName)
	for _, arg := range cmd.Args {
		for _, d := range deployArgs {
			if arg == d {
				return entities.BuildInvocation{Tool: tool.Name, CI: ciName, Deploy: true, Command: cmd}, true
			}
		}
	}
	for _, arg := range cmd.Args {
		for _, b := range buildArgs {
			if arg == b {
				return entities.BuildInvocation{Tool: tool.Name, CI: ciName, Deploy: false, Command: cmd}, true
			}
		}
	}
	return entities.BuildInvocation{}, false
}
