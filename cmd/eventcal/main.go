package main

import (
	"fmt"
	"os"

	"github.com/capetownstadium/eventcal/config"
	"github.com/capetownstadium/eventcal/sources"
)

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// loadConfig reads the configuration file named by EVENTCAL_CONFIG (or the
// default path) and validates it.
func loadConfig() *config.Config {
	path := getEnv("EVENTCAL_CONFIG", "eventcal.yaml")
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// openStore opens the source database configured in cfg.
func openStore(cfg *config.Config) *sources.Store {
	store, err := sources.NewStore(cfg.Store.DSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open source store: %v\n", err)
		os.Exit(1)
	}
	return store
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// Get subcommand
	subcommand := os.Args[1]

	switch subcommand {
	case "run":
		handleRun(os.Args[2:])
	case "serve":
		handleServe(os.Args[2:])
	case "sources":
		if len(os.Args) < 3 {
			printSourcesUsage()
			os.Exit(1)
		}
		handleSourcesCommand(os.Args[2], os.Args[3:])
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command: %s\n\n", subcommand)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("eventcal - Cape Town Stadium event calendar")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  eventcal <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  run        Fetch all sources once and regenerate the calendar")
	fmt.Println("  serve      Run the HTTP publisher with the monthly scheduler")
	fmt.Println("  sources    Manage event sources")
	fmt.Println("  help       Show this help message")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  EVENTCAL_CONFIG  Path to configuration file (default: eventcal.yaml)")
}
