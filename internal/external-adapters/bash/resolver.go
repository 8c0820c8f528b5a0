// Package bash resolves shell scripts into flattened command sequences
// using the mvdan.cc/sh parser. Resolution is static: nothing is executed.
package bash

import (
	"bytes"
	"context"
	"path"
	"strings"
	"time"

	"mvdan.cc/sh/v3/syntax"

	"github.com/veritrail/veritrail/internal/domain/entities"
	"github.com/veritrail/veritrail/internal/domain/interfaces"
	"github.com/veritrail/veritrail/internal/domain/interfaces/gateways"
)

// opaque is the placeholder for word parts that cannot be resolved
// statically (command substitutions, arithmetic, unknown expansions). It
// keeps the rest of the command matchable against the vocabulary tables.
const opaque = "${?}"

// Resolver statically expands shell scripts, following source/sh/bash
// inclusions of repo-local scripts up to a configured depth and time
// budget. Hitting a bound yields a sequence tagged partial, never an error:
// inclusion graphs may be cyclic, so the depth counter is the only
// termination guarantee.
type Resolver struct {
	log interfaces.Logger
}

// NewResolver creates a bash resolver.
func NewResolver(log interfaces.Logger) *Resolver {
	return &Resolver{log: log}
}

// Resolve flattens every shell script in the tree. Implements the
// CommandResolver contract for standalone repository scripts.
func (r *Resolver) Resolve(ctx context.Context, tree gateways.FileTree, bounds entities.ResolutionBounds) ([]entities.CommandSequence, error) {
	files, err := tree.Files(ctx)
	if err != nil {
		return nil, err
	}
	bounds = bounds.Normalized()
	var out []entities.CommandSequence
	for _, f := range files {
		if !strings.HasSuffix(f, ".sh") {
			continue
		}
		seq := r.ResolveScript(ctx, tree, f, nil, bounds)
		out = append(out, seq)
	}
	return out, nil
}

// ResolveScript flattens one repository script.
func (r *Resolver) ResolveScript(ctx context.Context, tree gateways.FileTree, scriptPath string, env map[string]string, bounds entities.ResolutionBounds) entities.CommandSequence {
	seq := entities.CommandSequence{Source: scriptPath}
	src, err := tree.Read(ctx, scriptPath)
	if err != nil {
		seq.Partial = true
		seq.PartialReason = "unreadable script: " + err.Error()
		return seq
	}
	r.expand(ctx, tree, &seq, scriptPath, src, env, bounds.Normalized())
	return seq
}

// ResolveInline flattens script text that lives inside another file (a CI
// workflow step, a Jenkinsfile sh block). The name is used as the origin
// file for resolved commands. Bounds are taken literally, not re-defaulted:
// callers hand over what remains of their own budget, and a remaining depth
// of zero records commands without expanding any inclusion.
func (r *Resolver) ResolveInline(ctx context.Context, tree gateways.FileTree, name, script string, env map[string]string, bounds entities.ResolutionBounds) entities.CommandSequence {
	seq := entities.CommandSequence{Source: name}
	r.expand(ctx, tree, &seq, name, []byte(script), env, bounds)
	return seq
}

func (r *Resolver) expand(ctx context.Context, tree gateways.FileTree, seq *entities.CommandSequence, name string, src []byte, env map[string]string, bounds entities.ResolutionBounds) {
	maxDepth := bounds.MaxDepth
	if maxDepth < 0 {
		maxDepth = 0
	}
	e := &expansion{
		resolver: r,
		tree:     tree,
		seq:      seq,
		env:      make(map[string]string, len(env)),
		deadline: time.Now().Add(bounds.ScriptTimeout),
		maxDepth: maxDepth,
	}
	for k, v := range env {
		e.env[k] = v
	}
	e.walk(ctx, name, src, 0)
}

// expansion threads the explicit depth counter and deadline through the
// recursive walk, turning an unbounded-cycle risk into a hard ceiling.
type expansion struct {
	resolver *Resolver
	tree     gateways.FileTree
	seq      *entities.CommandSequence
	env      map[string]string
	deadline time.Time
	maxDepth int
}

func (e *expansion) walk(ctx context.Context, name string, src []byte, depth int) {
	if e.expired(ctx) {
		return
	}
	parser := syntax.NewParser(syntax.Variant(syntax.LangBash))
	file, err := parser.Parse(bytes.NewReader(src), name)
	if err != nil {
		// Unparseable automation is weaker evidence, not a failure.
		e.markPartial("parse error in " + name + ": " + err.Error())
		return
	}
	syntax.Walk(file, func(node syntax.Node) bool {
		call, ok := node.(*syntax.CallExpr)
		if !ok {
			return true
		}
		e.handleCall(ctx, call, name, depth)
		return true
	})
}

func (e *expansion) handleCall(ctx context.Context, call *syntax.CallExpr, name string, depth int) {
	// Bare assignments feed the best-effort environment.
	for _, assign := range call.Assigns {
		if assign.Name != nil && assign.Value != nil {
			e.env[assign.Name.Value] = e.wordString(assign.Value)
		}
	}
	if len(call.Args) == 0 {
		return
	}
	words := make([]string, 0, len(call.Args))
	for _, w := range call.Args {
		words = append(words, e.wordString(w))
	}
	cmd := entities.ResolvedCommand{
		Program: words[0],
		Args:    words[1:],
		Origin:  entities.CommandOrigin{File: name},
	}
	e.seq.Commands = append(e.seq.Commands, cmd)

	if target := includeTarget(words); target != "" {
		e.include(ctx, target, name, depth)
	}
}

// includeTarget returns the script path a command pulls in, or "".
// Recognized forms: "source x.sh", ". x.sh", "bash x.sh", "sh x.sh", and a
// script invoked directly ("./scripts/release.sh"), which is the same
// wrapper indirection under another spelling.
func includeTarget(words []string) string {
	prog := path.Base(strings.TrimPrefix(words[0], "./"))
	switch prog {
	case "source", ".":
		if len(words) > 1 {
			return words[1]
		}
	case "bash", "sh", "zsh":
		for _, arg := range words[1:] {
			if strings.HasPrefix(arg, "-") {
				continue
			}
			if strings.HasSuffix(arg, ".sh") {
				return arg
			}
			break
		}
	default:
		if strings.HasSuffix(words[0], ".sh") {
			return words[0]
		}
	}
	return ""
}

func (e *expansion) include(ctx context.Context, target, from string, depth int) {
	if e.expired(ctx) {
		return
	}
	if depth+1 > e.maxDepth {
		e.markPartial("recursion depth limit reached expanding " + target)
		return
	}
	src, resolved, err := e.readScript(ctx, target, from)
	if err != nil {
		// Not resolvable inside the repo (absolute paths, generated
		// files): the call itself is already recorded.
		return
	}
	e.walk(ctx, resolved, src, depth+1)
}

// readScript locates an included script, trying the including file's
// directory first and the repository root second.
func (e *expansion) readScript(ctx context.Context, target, from string) ([]byte, string, error) {
	target = strings.TrimPrefix(target, "./")
	candidates := []string{target}
	if dir := path.Dir(from); dir != "." && dir != "" {
		candidates = []string{path.Join(dir, target), target}
	}
	var lastErr error
	for _, candidate := range candidates {
		src, err := e.tree.Read(ctx, candidate)
		if err == nil {
			return src, candidate, nil
		}
		lastErr = err
	}
	return nil, "", lastErr
}

func (e *expansion) expired(ctx context.Context) bool {
	if ctx.Err() != nil {
		e.markPartial("run cancelled")
		return true
	}
	if time.Now().After(e.deadline) {
		e.markPartial("script resolution time budget exceeded")
		return true
	}
	return false
}

func (e *expansion) markPartial(reason string) {
	if !e.seq.Partial {
		e.seq.Partial = true
		e.seq.PartialReason = reason
	}
}

// wordString renders a word with best-effort substitution: literals and
// known environment variables resolve; everything dynamic becomes an
// opaque token that still lets the rest of the command match vocabulary.
func (e *expansion) wordString(w *syntax.Word) string {
	var sb strings.Builder
	for _, part := range w.Parts {
		sb.WriteString(e.partString(part))
	}
	return sb.String()
}

func (e *expansion) partString(part syntax.WordPart) string {
	switch p := part.(type) {
	case *syntax.Lit:
		return p.Value
	case *syntax.SglQuoted:
		return p.Value
	case *syntax.DblQuoted:
		var sb strings.Builder
		for _, inner := range p.Parts {
			sb.WriteString(e.partString(inner))
		}
		return sb.String()
	case *syntax.ParamExp:
		if p.Param != nil {
			if v, ok := e.env[p.Param.Value]; ok {
				return v
			}
			return "${" + p.Param.Value + "}"
		}
		return opaque
	default:
		return opaque
	}
}
