// Package jenkins resolves declarative Jenkinsfiles into command sequences
// by extracting sh step bodies and feeding them through the bash resolver.
// Groovy itself is not interpreted; only the shell fragments matter for
// build/deploy detection.
package jenkins

import (
	"context"
	"regexp"
	"strings"

	"github.com/veritrail/veritrail/internal/domain/entities"
	"github.com/veritrail/veritrail/internal/domain/interfaces"
	"github.com/veritrail/veritrail/internal/domain/interfaces/gateways"
	"github.com/veritrail/veritrail/internal/external-adapters/bash"
)

// shPattern matches lines of the form sh 'cmd', sh "cmd" or sh '''cmd'''.
var shPattern = regexp.MustCompile(`^\s*sh\s+['"]{1,3}(.*?)['"]{1,3}\s*$`)

// Resolver extracts and flattens shell steps from Jenkinsfiles.
type Resolver struct {
	log  interfaces.Logger
	bash *bash.Resolver
}

// NewResolver creates a Jenkinsfile resolver.
func NewResolver(log interfaces.Logger) *Resolver {
	return &Resolver{log: log, bash: bash.NewResolver(log)}
}

// Resolve flattens every Jenkinsfile in the tree.
func (r *Resolver) Resolve(ctx context.Context, tree gateways.FileTree, bounds entities.ResolutionBounds) ([]entities.CommandSequence, error) {
	files, err := tree.Files(ctx)
	if err != nil {
		return nil, err
	}
	// ResolveInline takes bounds literally, so defaults apply here.
	bounds = bounds.Normalized()
	var out []entities.CommandSequence
	for _, f := range files {
		base := f
		if idx := strings.LastIndexByte(f, '/'); idx >= 0 {
			base = f[idx+1:]
		}
		if base != "Jenkinsfile" {
			continue
		}
		out = append(out, r.resolveFile(ctx, tree, f, bounds))
	}
	return out, nil
}

func (r *Resolver) resolveFile(ctx context.Context, tree gateways.FileTree, path string, bounds entities.ResolutionBounds) entities.CommandSequence {
	seq := entities.CommandSequence{Source: path}
	data, err := tree.Read(ctx, path)
	if err != nil {
		seq.Partial = true
		seq.PartialReason = "unreadable Jenkinsfile: " + err.Error()
		return seq
	}
	for _, line := range strings.Split(string(data), "\n") {
		match := shPattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		sub := r.bash.ResolveInline(ctx, tree, path, match[1], nil, bounds)
		seq.Commands = append(seq.Commands, sub.Commands...)
		if sub.Partial && !seq.Partial {
			seq.Partial = true
			seq.PartialReason = sub.PartialReason
		}
	}
	return seq
}
