// Package orchestrators coordinates services and adapters for complete
// analysis runs.
package orchestrators

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/veritrail/veritrail/internal/domain/entities"
	"github.com/veritrail/veritrail/internal/domain/interfaces"
	"github.com/veritrail/veritrail/internal/domain/interfaces/gateways"
	"github.com/veritrail/veritrail/internal/domain/services"
)

// ResolverBinding attributes a command resolver's output to a CI service.
// An empty CI name marks standalone repository scripts.
type ResolverBinding struct {
	CI       string
	Resolver gateways.CommandResolver
}

// AnalysisOrchestrator runs the full check pipeline for one component:
// evidence gathering (detection, script resolution, provenance loading),
// dependency-ordered check execution, and fact emission.
type AnalysisOrchestrator struct {
	registry   *services.Registry
	tables     *entities.PolicyTables
	detection  *services.DetectionService
	resolvers  []ResolverBinding
	provenance gateways.ProvenanceLoader
	signatures gateways.SignatureVerifier
	emitter    gateways.FactEmitter
	log        interfaces.Logger
}

// NewAnalysisOrchestrator wires the pipeline. The registry must already be
// validated (NewRegistry fails fatally on configuration errors, before any
// check can run).
func NewAnalysisOrchestrator(
	registry *services.Registry,
	tables *entities.PolicyTables,
	detection *services.DetectionService,
	resolvers []ResolverBinding,
	provenance gateways.ProvenanceLoader,
	signatures gateways.SignatureVerifier,
	emitter gateways.FactEmitter,
	log interfaces.Logger,
) *AnalysisOrchestrator {
	return &AnalysisOrchestrator{
		registry:   registry,
		tables:     tables,
		detection:  detection,
		resolvers:  resolvers,
		provenance: provenance,
		signatures: signatures,
		emitter:    emitter,
		log:        log,
	}
}

// AnalysisReport is the outcome of one run: every eligible check's terminal
// result plus the facts emitted to the store.
type AnalysisReport struct {
	Component entities.Component
	Results   []entities.CheckResult
	Facts     []entities.Fact
	Duration  time.Duration
}

// Analyze runs the pipeline for one component. It returns an error only for
// run-level problems (unreadable tree, fact store failure); every check
// outcome, including internal check faults, is expressed as a terminal
// CheckResult instead.
func (o *AnalysisOrchestrator) Analyze(ctx context.Context, comp entities.Component, tree gateways.FileTree) (*AnalysisReport, error) {
	start := time.Now()
	actx := services.NewAnalysisContext(comp, o.tables)
	actx.Tree = tree
	actx.Signatures = o.signatures

	if err := o.gatherEvidence(ctx, actx, tree); err != nil {
		return nil, err
	}

	// Ineligible checks are recorded, never executed. A DISABLED
	// dependency counts as available for its dependents.
	for _, id := range o.registry.Disabled() {
		actx.SetResult(entities.CheckResult{
			CheckID:   id,
			Status:    entities.StatusDisabled,
			Timestamp: time.Now(),
			Evidence: []entities.Evidence{
				{Key: "detail", Value: "check excluded by selection globs"},
			},
		})
	}

	o.runLayers(ctx, actx)

	// A completed run emits a result for every eligible check, even when
	// the run was cancelled mid-flight.
	for _, layer := range o.registry.Layers() {
		for _, id := range layer {
			if _, ok := actx.Result(id); !ok {
				actx.SetResult(entities.CheckResult{
					CheckID:   id,
					Status:    entities.StatusUnknown,
					Timestamp: time.Now(),
					Evidence: []entities.Evidence{
						{Key: "detail", Value: "run cancelled before the check executed"},
					},
				})
			}
		}
	}

	results := actx.Results()
	facts, err := o.emitter.Emit(ctx, comp, results)
	if err != nil {
		return nil, fmt.Errorf("emitting facts: %w", err)
	}
	return &AnalysisReport{
		Component: comp,
		Results:   results,
		Facts:     facts,
		Duration:  time.Since(start),
	}, nil
}

// gatherEvidence populates the context with everything the checks consume:
// resolved command sequences, detected tools and CI services, recognized
// invocations and the provenance statement.
func (o *AnalysisOrchestrator) gatherEvidence(ctx context.Context, actx *services.AnalysisContext, tree gateways.FileTree) error {
	tools, err := o.detection.DetectTools(ctx, tree)
	if err != nil {
		return fmt.Errorf("detecting build tools: %w", err)
	}
	actx.Tools = tools

	cis, err := o.detection.DetectCIServices(ctx, tree)
	if err != nil {
		return fmt.Errorf("detecting CI services: %w", err)
	}
	actx.CIServices = cis

	for _, binding := range o.resolvers {
		seqs, err := binding.Resolver.Resolve(ctx, tree, o.tables.Bounds)
		if err != nil {
			// A resolver that cannot read the tree contributes no
			// sequences; checks will see weaker evidence.
			o.log.Warn("command resolution failed",
				interfaces.F("ci", binding.CI), interfaces.F("error", err))
			continue
		}
		actx.Sequences = append(actx.Sequences, seqs...)
		actx.Invocations = append(actx.Invocations, o.detection.ScanSequences(seqs, binding.CI)...)
	}

	if o.provenance != nil {
		stmt, err := o.provenance.Load(ctx)
		if err != nil {
			actx.ProvenanceNote = err.Error()
			o.log.Info("provenance unavailable", interfaces.F("reason", err))
		} else if stmt == nil {
			actx.ProvenanceNote = "no provenance statement supplied"
		} else {
			actx.Provenance = stmt
		}
	} else {
		actx.ProvenanceNote = "no provenance statement supplied"
	}
	return nil
}

// runLayers executes the eligible checks layer by layer. Checks within one
// layer have no unresolved dependencies among them and run concurrently
// under a bounded worker pool; cross-layer execution is strictly ordered,
// so a check never observes a dependency before it reached a terminal
// status.
func (o *AnalysisOrchestrator) runLayers(ctx context.Context, actx *services.AnalysisContext) {
	workers := o.tables.Workers
	if workers < 1 {
		workers = 1
	}
	for _, layer := range o.registry.Layers() {
		if ctx.Err() != nil {
			return
		}
		g := new(errgroup.Group)
		g.SetLimit(workers)
		for _, id := range layer {
			check := o.registry.Get(id)
			g.Go(func() error {
				actx.SetResult(o.runCheck(ctx, check, actx))
				return nil
			})
		}
		// Checks never propagate errors through the group; faults are
		// captured per check.
		_ = g.Wait()
	}
}

// runCheck executes a single check, converting panics and returned errors
// into UNKNOWN results so one check's fault never aborts its siblings.
func (o *AnalysisOrchestrator) runCheck(ctx context.Context, check services.Check, actx *services.AnalysisContext) (res entities.CheckResult) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("check panicked",
				interfaces.F("check", check.ID()), interfaces.F("panic", r))
			res = entities.CheckResult{
				CheckID:   check.ID(),
				Status:    entities.StatusUnknown,
				Timestamp: time.Now(),
				Evidence: []entities.Evidence{
					{Key: "internal_fault", Value: fmt.Sprint(r)},
				},
			}
		}
	}()

	if check.SkipOnFailedDeps() {
		for _, dep := range check.Dependencies() {
			if depRes, ok := actx.Result(dep); ok && depRes.Status == entities.StatusFailed {
				return entities.CheckResult{
					CheckID:   check.ID(),
					Status:    entities.StatusSkipped,
					Timestamp: time.Now(),
					Evidence: []entities.Evidence{
						{Key: "detail", Value: "dependency " + dep + " failed"},
					},
				}
			}
		}
	}

	result, err := check.Run(ctx, actx)
	result.CheckID = check.ID()
	result.Timestamp = time.Now()
	if err != nil {
		o.log.Warn("check reported an error",
			interfaces.F("check", check.ID()), interfaces.F("error", err))
		result.Status = entities.StatusUnknown
		result.Confidence = 0
		result.Evidence = append(result.Evidence, entities.Evidence{Key: "error", Value: err.Error()})
	}
	if !result.Status.Terminal() {
		result.Status = entities.StatusUnknown
		result.Confidence = 0
	}
	o.log.Debug("check finished",
		interfaces.F("check", check.ID()),
		interfaces.F("status", string(result.Status)),
		interfaces.F("confidence", result.Confidence))
	return result
}
