package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/capetownstadium/eventcal/runner"
)

func handleRun(args []string) {
	// Parse flags for run command
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	verbose := fs.Bool("verbose", false, "Show verbose output")
	fs.Parse(args)

	cfg := loadConfig()
	store := openStore(cfg)
	defer store.Close()

	r, err := runner.New(store, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Fetching all enabled sources...")

	result, err := r.Run(context.Background())
	if err != nil {
		if errors.Is(err, runner.ErrNoSources) {
			fmt.Fprintln(os.Stderr, "Error: no enabled sources configured")
			fmt.Fprintln(os.Stderr, "Hint: run 'eventcal sources seed' to install the default sources")
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Error: run failed: %v\n", err)
		os.Exit(1)
	}

	// Display results
	fmt.Println()
	fmt.Println("Run completed:")
	fmt.Printf("  Sources fetched: %d\n", result.SourcesFetched)
	fmt.Printf("  Sources failed:  %d\n", result.SourcesFailed)
	fmt.Printf("  Events:          %d\n", len(result.Events))
	fmt.Printf("  Duration:        %v\n", result.Duration)
	fmt.Printf("  Calendar:        %s\n", cfg.Output.ICSPath)

	// Show errors if any
	if len(result.Errors) > 0 && *verbose {
		fmt.Println()
		fmt.Println("Errors:")
		for _, srcErr := range result.Errors {
			fmt.Printf("  - %s: %v\n", srcErr.Source.Name, srcErr.Err)
		}
	}
}
