package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/veritrail/veritrail/internal/external-adapters/yaml"
)

func runDumpDefaults(_ context.Context, args []string) {
	fs := flag.NewFlagSet("dump-defaults", flag.ExitOnError)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: veritrail dump-defaults

Print the built-in policy tables as YAML. Redirect to a file and edit it as
a starting point for --policy.
`)
	}

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		os.Exit(1)
	}

	out, err := yaml.DumpDefaults()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	os.Stdout.Write(out)
}
