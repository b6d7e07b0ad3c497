package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "simulate":
		if err := simulate(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "steady":
		if err := steady(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "runs":
		if err := runs(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "export":
		if err := export(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "help", "-h", "--help":
		printUsage()
	case "version", "-v", "--version":
		fmt.Println("cantera version 0.1.0")
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`cantera - reactor network simulation tool

Usage:
  cantera <command> [options]

Commands:
  simulate   Integrate a demo reactor network in time
  steady     Solve a demo reactor network to steady state
  runs       List archived runs in a SQLite store
  export     Export an archived run to CSV or JSONL
  help       Show this help message
  version    Show version information

Examples:
  # Ignite a well-stirred reactor and write the trajectory
  cantera simulate --time 0.5 --output trajectory.csv

  # Archive the run in a SQLite database instead
  cantera simulate --time 0.5 --db runs.db --name ignition

  # Solve the same network to steady state
  cantera steady

  # Inspect and export archived runs
  cantera runs --db runs.db
  cantera export --db runs.db --id <run-id> --output run.csv`)
}
