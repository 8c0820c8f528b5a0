package entities

import "strings"

// CommandOrigin locates a resolved command in the automation it came from.
type CommandOrigin struct {
	// File is the script or workflow file, relative to the repo root.
	File string

	// Job and Step identify the CI workflow position, when applicable.
	Job  string
	Step string
}

// ResolvedCommand is one command recovered by static resolution of a script
// or CI workflow. Unresolvable fragments of the original text appear as
// opaque "${?}" tokens inside Args.
type ResolvedCommand struct {
	Program string
	Args    []string
	Origin  CommandOrigin
}

// Line renders the command as a single shell-like line.
func (c ResolvedCommand) Line() string {
	if len(c.Args) == 0 {
		return c.Program
	}
	return c.Program + " " + strings.Join(c.Args, " ")
}

// CommandSequence is the flattened output of resolving one script or
// workflow file. A sequence that hit a recursion or time bound is tagged
// partial; the commands recovered before the bound are still present.
type CommandSequence struct {
	// Source is the file the sequence was resolved from.
	Source string

	Commands []ResolvedCommand

	Partial       bool
	PartialReason string
}
