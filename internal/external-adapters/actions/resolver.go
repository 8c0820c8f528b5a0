// Package actions resolves GitHub Actions workflows into flattened command
// sequences: run steps go through the bash resolver, repo-local composite
// actions and reusable workflows are expanded recursively, and third-party
// action references are recorded as opaque "uses" commands.
package actions

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/veritrail/veritrail/internal/domain/entities"
	"github.com/veritrail/veritrail/internal/domain/interfaces"
	"github.com/veritrail/veritrail/internal/domain/interfaces/gateways"
	"github.com/veritrail/veritrail/internal/external-adapters/bash"
)

const workflowDir = ".github/workflows/"

// Resolver flattens GitHub Actions workflows. The same depth and time
// bounds that cap bash expansion cap workflow indirection (reusable
// workflows, composite actions), since the two graphs interleave.
type Resolver struct {
	log  interfaces.Logger
	bash *bash.Resolver
}

// NewResolver creates a workflow resolver.
func NewResolver(log interfaces.Logger) *Resolver {
	return &Resolver{log: log, bash: bash.NewResolver(log)}
}

// Resolve flattens every workflow under .github/workflows.
func (r *Resolver) Resolve(ctx context.Context, tree gateways.FileTree, bounds entities.ResolutionBounds) ([]entities.CommandSequence, error) {
	files, err := tree.Files(ctx)
	if err != nil {
		return nil, err
	}
	var out []entities.CommandSequence
	for _, f := range files {
		if !strings.HasPrefix(f, workflowDir) {
			continue
		}
		if !strings.HasSuffix(f, ".yml") && !strings.HasSuffix(f, ".yaml") {
			continue
		}
		out = append(out, r.resolveWorkflow(ctx, tree, f, bounds))
	}
	return out, nil
}

func (r *Resolver) resolveWorkflow(ctx context.Context, tree gateways.FileTree, wfPath string, bounds entities.ResolutionBounds) entities.CommandSequence {
	bounds = bounds.Normalized()
	seq := entities.CommandSequence{Source: wfPath}
	st := &state{
		resolver: r,
		tree:     tree,
		seq:      &seq,
		deadline: time.Now().Add(bounds.WorkflowTimeout),
		maxDepth: bounds.MaxDepth,
	}
	st.workflow(ctx, wfPath, 0, nil)
	return seq
}

// Raw workflow shapes. Values under env/with can be scalars of any YAML
// type, so they decode as any and are stringified on use.
type workflowFile struct {
	Name string                  `yaml:"name"`
	Env  map[string]any          `yaml:"env"`
	Jobs map[string]*workflowJob `yaml:"jobs"`
}

type workflowJob struct {
	Name     string         `yaml:"name"`
	Uses     string         `yaml:"uses"`
	With     map[string]any `yaml:"with"`
	Env      map[string]any `yaml:"env"`
	Strategy struct {
		Matrix map[string]any `yaml:"matrix"`
	} `yaml:"strategy"`
	Steps []workflowStep `yaml:"steps"`
}

type workflowStep struct {
	ID   string         `yaml:"id"`
	Name string         `yaml:"name"`
	Uses string         `yaml:"uses"`
	Run  string         `yaml:"run"`
	With map[string]any `yaml:"with"`
	Env  map[string]any `yaml:"env"`
}

type actionFile struct {
	Name string `yaml:"name"`
	Runs struct {
		Using string         `yaml:"using"`
		Steps []workflowStep `yaml:"steps"`
	} `yaml:"runs"`
}

// state threads the shared depth/deadline budget through workflow and
// action expansion.
type state struct {
	resolver *Resolver
	tree     gateways.FileTree
	seq      *entities.CommandSequence
	deadline time.Time
	maxDepth int
}

func (s *state) workflow(ctx context.Context, path string, depth int, inputs map[string]string) {
	if s.expired(ctx) {
		return
	}
	data, err := s.tree.Read(ctx, path)
	if err != nil {
		s.markPartial("unreadable workflow " + path + ": " + err.Error())
		return
	}
	var wf workflowFile
	if err := yaml.Unmarshal(data, &wf); err != nil {
		s.markPartial("parse error in " + path + ": " + err.Error())
		return
	}
	wfEnv := stringMap(wf.Env)

	jobIDs := make([]string, 0, len(wf.Jobs))
	for id := range wf.Jobs {
		jobIDs = append(jobIDs, id)
	}
	sort.Strings(jobIDs)

	for _, jobID := range jobIDs {
		job := wf.Jobs[jobID]
		if job == nil {
			continue
		}
		if job.Uses != "" {
			s.reusable(ctx, path, jobID, job, depth)
			continue
		}
		s.steps(ctx, path, jobID, job.Steps, depth, scope{
			inputs: inputs,
			env:    mergeMaps(wfEnv, stringMap(job.Env)),
			matrix: matrixValues(job.Strategy.Matrix),
		})
	}
}

// reusable handles a reusable-workflow-call job: repo-local targets expand
// in place, third-party targets are recorded as opaque references.
func (s *state) reusable(ctx context.Context, path, jobID string, job *workflowJob, depth int) {
	origin := entities.CommandOrigin{File: path, Job: jobID}
	if strings.HasPrefix(job.Uses, "./") {
		if depth+1 > s.maxDepth {
			s.markPartial("recursion depth limit reached expanding " + job.Uses)
			return
		}
		target := strings.TrimPrefix(job.Uses, "./")
		if at := strings.IndexByte(target, '@'); at >= 0 {
			target = target[:at]
		}
		s.workflow(ctx, target, depth+1, stringMap(job.With))
		return
	}
	s.seq.Commands = append(s.seq.Commands, entities.ResolvedCommand{
		Program: "uses",
		Args:    usesArgs(job.Uses, job.With),
		Origin:  origin,
	})
}

func (s *state) steps(ctx context.Context, path, jobID string, steps []workflowStep, depth int, sc scope) {
	for i, step := range steps {
		if s.expired(ctx) {
			return
		}
		stepName := step.Name
		if stepName == "" {
			stepName = step.ID
		}
		if stepName == "" {
			stepName = fmt.Sprintf("#%d", i+1)
		}
		origin := entities.CommandOrigin{File: path, Job: jobID, Step: stepName}
		stepEnv := mergeMaps(sc.env, stringMap(step.Env))

		switch {
		case step.Run != "":
			script := substituteExpressions(step.Run, scope{inputs: sc.inputs, env: stepEnv, matrix: sc.matrix})
			// What remains of the workflow's depth and time budget is
			// passed down literally; ResolveInline does not re-default, so
			// a chain already at the ceiling cannot expand further scripts.
			remaining := s.maxDepth - depth
			if remaining < 0 {
				remaining = 0
			}
			sub := s.resolver.bash.ResolveInline(ctx, s.tree, path, script, stepEnv, entities.ResolutionBounds{
				MaxDepth:      remaining,
				ScriptTimeout: time.Until(s.deadline),
			})
			for _, cmd := range sub.Commands {
				if cmd.Origin.File == path {
					cmd.Origin.Job = jobID
					cmd.Origin.Step = stepName
				}
				s.seq.Commands = append(s.seq.Commands, cmd)
			}
			if sub.Partial {
				s.markPartial(sub.PartialReason)
			}
		case strings.HasPrefix(step.Uses, "./"):
			s.localAction(ctx, step.Uses, origin, depth, stringMap(step.With))
		case step.Uses != "":
			s.seq.Commands = append(s.seq.Commands, entities.ResolvedCommand{
				Program: "uses",
				Args:    usesArgs(step.Uses, step.With),
				Origin:  origin,
			})
		}
	}
}

// localAction expands a repo-local composite action referenced as
// "./path/to/action".
func (s *state) localAction(ctx context.Context, ref string, origin entities.CommandOrigin, depth int, inputs map[string]string) {
	if depth+1 > s.maxDepth {
		s.markPartial("recursion depth limit reached expanding " + ref)
		return
	}
	dir := strings.TrimPrefix(ref, "./")
	var data []byte
	var err error
	var actionPath string
	for _, candidate := range []string{dir + "/action.yml", dir + "/action.yaml"} {
		data, err = s.tree.Read(ctx, candidate)
		if err == nil {
			actionPath = candidate
			break
		}
	}
	if actionPath == "" {
		s.markPartial("composite action " + ref + " has no action.yml")
		return
	}
	var action actionFile
	if err := yaml.Unmarshal(data, &action); err != nil {
		s.markPartial("parse error in " + actionPath + ": " + err.Error())
		return
	}
	s.steps(ctx, actionPath, origin.Job, action.Runs.Steps, depth+1, scope{inputs: inputs})
}

func (s *state) expired(ctx context.Context) bool {
	if ctx.Err() != nil {
		s.markPartial("run cancelled")
		return true
	}
	if time.Now().After(s.deadline) {
		s.markPartial("workflow resolution time budget exceeded")
		return true
	}
	return false
}

func (s *state) markPartial(reason string) {
	if !s.seq.Partial {
		s.seq.Partial = true
		s.seq.PartialReason = reason
	}
}

// scope carries the values available to ${{ }} expressions at one step.
type scope struct {
	inputs map[string]string
	env    map[string]string
	matrix map[string]string
}

var exprPattern = regexp.MustCompile(`\$\{\{\s*([^}]+?)\s*\}\}`)

// substituteExpressions resolves inputs.*, env.* and matrix.* expressions
// best-effort. Anything else (github.*, secrets.*, function calls) becomes
// the opaque "${?}" token: a raw ${{ }} left in the text would not parse as
// bash, voiding the whole step.
func substituteExpressions(text string, sc scope) string {
	return exprPattern.ReplaceAllStringFunc(text, func(match string) string {
		inner := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(match, "${{"), "}}"))
		dot := strings.IndexByte(inner, '.')
		if dot < 0 {
			return "${?}"
		}
		key := inner[dot+1:]
		switch inner[:dot] {
		case "inputs":
			if v, ok := sc.inputs[key]; ok {
				return v
			}
		case "env":
			if v, ok := sc.env[key]; ok {
				return v
			}
		case "matrix":
			if v, ok := sc.matrix[key]; ok {
				return v
			}
		}
		return "${?}"
	})
}

// usesArgs renders a third-party action reference with its inputs, sorted
// for determinism.
func usesArgs(ref string, with map[string]any) []string {
	args := []string{ref}
	keys := make([]string, 0, len(with))
	for k := range with {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, k+"="+fmt.Sprint(with[k]))
	}
	return args
}

func stringMap(in map[string]any) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		switch v.(type) {
		case map[string]any, []any:
			// Structured values have no single textual form.
		default:
			out[k] = fmt.Sprint(v)
		}
	}
	return out
}

func mergeMaps(base, overlay map[string]string) map[string]string {
	if len(base) == 0 {
		return overlay
	}
	out := make(map[string]string, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		out[k] = v
	}
	return out
}

// matrixValues picks the first declared value for each matrix variable, the
// one a single resolved sequence can carry.
func matrixValues(matrix map[string]any) map[string]string {
	if len(matrix) == 0 {
		return nil
	}
	out := make(map[string]string, len(matrix))
	for k, v := range matrix {
		switch vv := v.(type) {
		case []any:
			if len(vv) > 0 {
				switch vv[0].(type) {
				case map[string]any, []any:
				default:
					out[k] = fmt.Sprint(vv[0])
				}
			}
		case map[string]any:
			// include/exclude blocks are not single values.
		default:
			out[k] = fmt.Sprint(vv)
		}
	}
	return out
}
