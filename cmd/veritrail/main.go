package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx := context.Background()
	command := os.Args[1]

	// Dispatch to subcommand
	switch command {
	case "analyze":
		runAnalyze(ctx, os.Args[2:])
	case "checks":
		runChecks(ctx, os.Args[2:])
	case "dump-defaults":
		runDumpDefaults(ctx, os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`veritrail - Supply-chain trust analysis for software components

Usage:
  veritrail <command> [options]

Commands:
  analyze        Run the check suite against a repository snapshot
  checks         List the registered checks and their dependencies
  dump-defaults  Print the built-in policy tables as YAML

Use "veritrail <command> --help" for more information about a command.`)
}
