package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/capetownstadium/eventcal/scraper"
	"github.com/capetownstadium/eventcal/sources"
)

func handleSourcesCommand(action string, args []string) {
	if action == "help" || action == "--help" || action == "-h" {
		printSourcesUsage()
		return
	}

	cfg := loadConfig()
	store := openStore(cfg)
	defer store.Close()

	switch action {
	case "list":
		handleSourcesList(store, args)
	case "show":
		handleSourcesShow(store, args)
	case "add":
		handleSourcesAdd(store, args)
	case "enable":
		handleSourcesEnable(store, args, true)
	case "disable":
		handleSourcesEnable(store, args, false)
	case "delete":
		handleSourcesDelete(store, args)
	case "seed":
		handleSourcesSeed(store, args)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown sources command: %s\n\n", action)
		printSourcesUsage()
		os.Exit(1)
	}
}

func printSourcesUsage() {
	fmt.Println("eventcal sources - Manage event sources")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  eventcal sources <action> [arguments]")
	fmt.Println()
	fmt.Println("Actions:")
	fmt.Println("  list       List all sources")
	fmt.Println("  show       Show detailed source information")
	fmt.Println("  add        Add a new source")
	fmt.Println("  enable     Enable a source")
	fmt.Println("  disable    Disable a source")
	fmt.Println("  delete     Delete a source")
	fmt.Println("  seed       Install the default stadium and race sources")
	fmt.Println("  help       Show this help message")
}

// parseSourceID parses the single positional source ID argument.
func parseSourceID(args []string, usage string) uuid.UUID {
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "Error: source ID is required\n")
		fmt.Fprintf(os.Stderr, "Usage: %s\n", usage)
		os.Exit(1)
	}
	id, err := uuid.Parse(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid source ID: %v\n", err)
		os.Exit(1)
	}
	return id
}

func handleSourcesList(store *sources.Store, args []string) {
	// Parse flags for list command
	fs := flag.NewFlagSet("sources list", flag.ExitOnError)
	kind := fs.String("kind", "", "Filter by kind (api, html, feed)")
	fs.Parse(args)

	var filter sources.Filter
	if *kind != "" {
		filter.Kind = kind
	}
	sourceList, err := store.List(filter)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to list sources: %v\n", err)
		os.Exit(1)
	}

	if len(sourceList) == 0 {
		fmt.Println("No sources configured.")
		return
	}

	// Print table header
	fmt.Printf("%-36s %-6s %-8s %-35s %s\n", "ID", "KIND", "STATUS", "NAME", "URL")
	fmt.Println("----------------------------------------------------------------------------------------------------")

	// Print each source
	for _, source := range sourceList {
		status := "on"
		if !source.IsEnabled() {
			status = "off"
		}

		// Truncate name and URL if too long
		name := source.Name
		if len(name) > 35 {
			name = name[:32] + "..."
		}
		url := source.URL
		if len(url) > 50 {
			url = url[:47] + "..."
		}

		fmt.Printf("%-36s %-6s %-8s %-35s %s\n",
			source.ID.String(),
			source.Kind,
			status,
			name,
			url,
		)
	}
}

func handleSourcesShow(store *sources.Store, args []string) {
	id := parseSourceID(args, "eventcal sources show <source-id>")

	source, err := store.Get(id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to get source: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(source.Name)
	fmt.Println()

	// Basic info
	fmt.Printf("Kind:        %s\n", source.Kind)
	fmt.Printf("URL:         %s\n", source.URL)
	fmt.Println()

	// Status
	if source.EnabledAt != nil {
		fmt.Printf("Status:      Enabled (since %s)\n", source.EnabledAt.Format("2006-01-02 15:04:05"))
	} else {
		fmt.Println("Status:      Disabled")
	}
	fmt.Println()

	// Health status
	fmt.Println("Health:")
	if source.LastFetchedAt != nil {
		fmt.Printf("  Last Fetched:    %s\n", source.LastFetchedAt.Format("2006-01-02 15:04:05"))
	} else {
		fmt.Println("  Last Fetched:    Never")
	}
	fmt.Printf("  Error Count:     %d\n", source.FetchErrorCount)
	if source.LastError != nil {
		fmt.Printf("  Last Error:      %s\n", *source.LastError)
	} else {
		fmt.Println("  Last Error:      None")
	}

	// Scraper config (for html sources)
	if source.ScraperConfig != nil {
		fmt.Println()
		fmt.Println("Scraper Configuration:")
		mode := source.ScraperConfig.Mode
		if mode == "" {
			mode = "page"
		}
		fmt.Printf("  Mode:            %s\n", mode)
		if source.ScraperConfig.ContainerSelector != "" {
			fmt.Printf("  Container:       %s\n", source.ScraperConfig.ContainerSelector)
		}
		if source.ScraperConfig.ItemSelector != "" {
			fmt.Printf("  Item Selector:   %s\n", source.ScraperConfig.ItemSelector)
		}
		for _, p := range source.ScraperConfig.Patterns {
			fmt.Printf("  Pattern:         %s\n", p)
		}
	}
}

func handleSourcesAdd(store *sources.Store, args []string) {
	// Parse flags for add command
	fs := flag.NewFlagSet("sources add", flag.ExitOnError)
	kind := fs.String("kind", "", "Source kind (api, html or feed)")
	url := fs.String("url", "", "Source URL")
	name := fs.String("name", "", "Source name")
	scraperJSON := fs.String("scraper-config", "", "Scraper configuration as JSON (html sources)")
	disabled := fs.Bool("disabled", false, "Create the source disabled")
	fs.Parse(args)

	// Validate required flags
	if *kind == "" {
		fmt.Fprintf(os.Stderr, "Error: --kind is required\n")
		fs.Usage()
		os.Exit(1)
	}
	if *url == "" {
		fmt.Fprintf(os.Stderr, "Error: --url is required\n")
		fs.Usage()
		os.Exit(1)
	}
	if *name == "" {
		fmt.Fprintf(os.Stderr, "Error: --name is required\n")
		fs.Usage()
		os.Exit(1)
	}

	var scraperCfg *scraper.Config
	if *scraperJSON != "" {
		scraperCfg = &scraper.Config{}
		if err := json.Unmarshal([]byte(*scraperJSON), scraperCfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid scraper config: %v\n", err)
			os.Exit(1)
		}
	}

	var enabledAt *time.Time
	if !*disabled {
		now := time.Now()
		enabledAt = &now
	}

	source, err := store.Create(*kind, *url, *name, scraperCfg, enabledAt)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to create source: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Created source: %s\n", source.ID.String())
	fmt.Printf("  Kind: %s\n", source.Kind)
	fmt.Printf("  Name: %s\n", source.Name)
	fmt.Printf("  URL:  %s\n", source.URL)
}

func handleSourcesEnable(store *sources.Store, args []string, enable bool) {
	verb := "enable"
	if !enable {
		verb = "disable"
	}
	id := parseSourceID(args, fmt.Sprintf("eventcal sources %s <source-id>", verb))

	var update sources.Update
	if enable {
		now := time.Now()
		zero := 0
		update.EnabledAt = &now
		update.FetchErrorCount = &zero
		update.ClearLastError = true
	} else {
		update.ClearEnabledAt = true
	}

	if err := store.ApplyUpdate(id, update); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to %s source: %v\n", verb, err)
		os.Exit(1)
	}

	fmt.Printf("Source %sd: %s\n", verb, id.String())
}

func handleSourcesDelete(store *sources.Store, args []string) {
	id := parseSourceID(args, "eventcal sources delete <source-id>")

	if err := store.Delete(id); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to delete source: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Deleted source: %s\n", id.String())
}

func handleSourcesSeed(store *sources.Store, args []string) {
	fs := flag.NewFlagSet("sources seed", flag.ExitOnError)
	fs.Parse(args)

	inserted, err := store.Seed()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to seed sources: %v\n", err)
		os.Exit(1)
	}

	if inserted == 0 {
		fmt.Println("All default sources already present.")
		return
	}
	fmt.Printf("Installed %d default sources.\n", inserted)
}
