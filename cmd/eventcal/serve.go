package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/capetownstadium/eventcal/runner"
	"github.com/capetownstadium/eventcal/schedule"
	"github.com/capetownstadium/eventcal/web"
)

func handleServe(args []string) {
	// Parse flags for serve command
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", "", "Listen address (overrides config)")
	noScheduler := fs.Bool("no-scheduler", false, "Serve artifacts only, without the monthly refresh")
	fs.Parse(args)

	cfg := loadConfig()
	if *addr != "" {
		cfg.Serve.Addr = *addr
	}

	store := openStore(cfg)
	defer store.Close()

	r, err := runner.New(store, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	loc, err := cfg.Location()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start the monthly scheduler in the background
	var scheduler *schedule.Scheduler
	schedErr := make(chan error, 1)
	if !*noScheduler {
		job := func(ctx context.Context) error {
			_, err := r.Run(ctx)
			if errors.Is(err, runner.ErrNoSources) {
				log.Println("WARN: No enabled sources; calendar not regenerated")
				return nil
			}
			return err
		}
		scheduler = schedule.New(job, cfg.Schedule.DayOfMonth, cfg.Schedule.Hour, loc)
		go func() {
			schedErr <- scheduler.Run(ctx)
		}()
	}

	server := &http.Server{
		Addr:    cfg.Serve.Addr,
		Handler: web.NewServer(cfg).SetupRouter(),
	}

	httpErr := make(chan error, 1)
	go func() {
		log.Printf("INFO: Serving calendar on http://%s/calendar.ics", cfg.Serve.Addr)
		httpErr <- server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigChan:
		log.Printf("Received signal: %v", sig)
	case err := <-httpErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}

	log.Println("Shutting down gracefully...")
	cancel()
	if scheduler != nil {
		scheduler.Stop()
		<-schedErr
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("ERROR: Server shutdown: %v", err)
	}
}
