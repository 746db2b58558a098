package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pocket-drs/crease.report/internal/api"
	"github.com/pocket-drs/crease.report/internal/config"
	"github.com/pocket-drs/crease.report/internal/jobs"
	"github.com/pocket-drs/crease.report/internal/pitch"
	"github.com/pocket-drs/crease.report/internal/timeutil"
	"github.com/pocket-drs/crease.report/internal/units"
	"github.com/pocket-drs/crease.report/internal/version"
)

var (
	listen     = flag.String("listen", ":8080", "HTTP listen address")
	dbFile     = flag.String("db", "jobs.db", "Path to the SQLite job database")
	queueDepth = flag.Int("queue-depth", 16, "Maximum number of queued analysis jobs")
	speedUnits = flag.String("units", units.MPS, "Ball speed units for result display ("+units.ValidUnitsString()+")")
	tuningFile = flag.String("config", "", "Optional JSON tuning config for the analysis pipeline")
)

func main() {
	flag.Parse()

	if *listen == "" {
		log.Fatal("HTTP listen address is required")
	}
	if !units.IsValid(*speedUnits) {
		log.Fatalf("Invalid units %q (valid: %s)", *speedUnits, units.ValidUnitsString())
	}

	var analyzer *pitch.Analyzer
	if *tuningFile != "" {
		tuning, err := config.LoadTuningConfig(*tuningFile)
		if err != nil {
			log.Fatalf("Failed to load tuning config: %v", err)
		}
		analyzer = tuning.Analyzer()
		log.Printf("Loaded tuning config from %s", *tuningFile)
	}

	log.Printf("crease.report %s (%s)", version.Version, version.GitSHA)

	store, err := jobs.NewStore(*dbFile, timeutil.RealClock{})
	if err != nil {
		log.Fatalf("Failed to open job database: %v", err)
	}
	defer store.Close()

	runner := jobs.NewRunner(store, *queueDepth)
	defer runner.Close()

	server := api.NewServer(store, runner, analyzer, nil, *speedUnits)

	mux := http.NewServeMux()
	server.SetupRoutes(mux)

	httpServer := &http.Server{
		Addr:    *listen,
		Handler: api.LoggingMiddleware(mux),
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wg.Add(1)
	go func() {
		defer wg.Done()

		go func() {
			log.Printf("Starting HTTP server on %s", *listen)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("HTTP server error: %v", err)
			}
		}()

		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
		log.Print("HTTP server terminated")
	}()

	wg.Wait()
}
