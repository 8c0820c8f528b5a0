package services

import (
	"sort"
	"sync"

	"github.com/veritrail/veritrail/internal/domain/entities"
	"github.com/veritrail/veritrail/internal/domain/interfaces/gateways"
)

// AnalysisContext carries everything the checks consult for one component:
// the immutable policy tables, the evidence gathered up front (detected
// tools, resolved command sequences, provenance), and the results of checks
// that already reached a terminal status.
//
// The evidence fields are written once before the scheduler starts and are
// read-only afterwards; only the result map is written during execution, and
// it is guarded for concurrent layer execution.
type AnalysisContext struct {
	Component entities.Component
	Tables    *entities.PolicyTables
	Tree      gateways.FileTree

	// Sequences are the flattened command sequences resolved from the
	// repository's automation (scripts, workflows).
	Sequences []entities.CommandSequence

	// Tools and CIServices are the build tools and CI services detected
	// in the repository.
	Tools      []entities.DetectedTool
	CIServices []entities.DetectedCIService

	// Invocations are the build/deploy commands recognized inside
	// Sequences.
	Invocations []entities.BuildInvocation

	// Provenance is the parsed statement, or nil when none was supplied
	// or it failed to parse. ProvenanceNote records why it is nil.
	Provenance     *entities.ProvenanceStatement
	ProvenanceNote string

	// Signatures verifies detached artifact signatures; may be nil when
	// no verifier is configured.
	Signatures gateways.SignatureVerifier

	mu      sync.RWMutex
	results map[string]entities.CheckResult
}

// NewAnalysisContext creates a context for one component and one run.
func NewAnalysisContext(comp entities.Component, tables *entities.PolicyTables) *AnalysisContext {
	return &AnalysisContext{
		Component: comp,
		Tables:    tables,
		results:   make(map[string]entities.CheckResult),
	}
}

// Result returns the terminal result of a check, if it has one. A check
// only ever observes dependencies that already reached a terminal status;
// the scheduler guarantees ordering.
func (a *AnalysisContext) Result(checkID string) (entities.CheckResult, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	res, ok := a.results[checkID]
	return res, ok
}

// SetResult records a terminal result. Later writes for the same check ID
// overwrite earlier ones.
func (a *AnalysisContext) SetResult(res entities.CheckResult) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.results[res.CheckID] = res
}

// Results returns all recorded results ordered by check ID.
func (a *AnalysisContext) Results() []entities.CheckResult {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]entities.CheckResult, 0, len(a.results))
	for _, res := range a.results {
		out = append(out, res)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CheckID < out[j].CheckID })
	return out
}

// PartialSequences reports whether any resolved sequence hit a recursion or
// time bound. Checks drawing negative conclusions from the absence of a
// command must weaken their verdict when this is true.
func (a *AnalysisContext) PartialSequences() bool {
	for _, seq := range a.Sequences {
		if seq.Partial {
			return true
		}
	}
	return false
}
