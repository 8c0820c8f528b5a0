package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/veritrail/veritrail/internal/domain/services"
)

func runChecks(_ context.Context, args []string) {
	fs := flag.NewFlagSet("checks", flag.ExitOnError)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: veritrail checks

List the registered checks with their dependencies, in execution order.
`)
	}

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		os.Exit(1)
	}

	registry, err := services.NewRegistry(services.DefaultChecks(), nil, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	for i, layer := range registry.Layers() {
		fmt.Printf("Layer %d:\n", i+1)
		for _, id := range layer {
			check := registry.Get(id)
			deps := "-"
			if d := check.Dependencies(); len(d) > 0 {
				deps = strings.Join(d, ", ")
			}
			fmt.Printf("  %-26s deps: %-38s %s\n", id, deps, check.Description())
		}
	}
}
