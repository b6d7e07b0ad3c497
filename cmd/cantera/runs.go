package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/LostSunset/cantera/storage"
)

func runs(args []string) error {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	dbPath := fs.String("db", "runs.db", "SQLite store path")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: cantera runs [options]

List the runs archived in a SQLite store, newest first.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := storage.Open(*dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	list, err := store.ListRuns()
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	if len(list) == 0 {
		fmt.Println("No archived runs.")
		return nil
	}

	fmt.Printf("%-36s  %-20s  %8s  %12s\n", "ID", "NAME", "SAMPLES", "FINAL TIME")
	for _, run := range list {
		fmt.Printf("%-36s  %-20s  %8d  %12g\n",
			run.ID, run.Name, run.NumSamples, run.FinalTime)
	}
	return nil
}

func export(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	dbPath := fs.String("db", "runs.db", "SQLite store path")
	id := fs.String("id", "", "Run ID to export (required)")
	output := fs.String("output", "", "Output file (.csv or .jsonl, required)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: cantera export [options]

Export an archived run from a SQLite store to a CSV or JSONL file.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" || *output == "" {
		fs.Usage()
		return fmt.Errorf("--id and --output required")
	}

	store, err := storage.Open(*dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	traj, err := store.LoadRun(*id)
	if err != nil {
		return fmt.Errorf("load run: %w", err)
	}
	if err := writeTrajectory(traj, *output); err != nil {
		return err
	}
	fmt.Printf("Run %s exported to %s (%d samples)\n", *id, *output, traj.NumSamples())
	return nil
}
