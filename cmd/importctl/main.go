package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/amopromo/flightdeck/internal/cache"
	"github.com/amopromo/flightdeck/internal/db"
	"github.com/amopromo/flightdeck/internal/db/repositories"
	"github.com/amopromo/flightdeck/internal/importer"
	"github.com/amopromo/flightdeck/internal/logging"
	"github.com/amopromo/flightdeck/internal/upstream"
)

// importctl triggers an airport import (or cache flush) from the command
// line, the management counterpart of the admin endpoints.
func main() {
	forceUpdate := flag.Bool("force-update", false, "overwrite existing airports even when fields match")
	dryRun := flag.Bool("dry-run", false, "report what would change without writing")
	mode := flag.String("mode", "full", "import mode: full or incremental")
	clearCache := flag.Bool("clear-cache", false, "flush the airport fast layer and exit")
	flag.Parse()

	importMode, err := importer.ParseMode(*mode)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if err := logging.Init(os.Getenv("APP_ENV")); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logging.Close()

	gormDB, err := db.InitPostgresORM(db.PostgresDSN())
	if err != nil {
		logging.Fatal("Failed to connect to Postgres", "error", err.Error())
	}

	var fast cache.Cache
	if os.Getenv("REDIS_HOST") != "" {
		redisCache, err := cache.NewRedisCache()
		if err != nil {
			logging.Fatal("Failed to connect to Redis", "error", err.Error())
		}
		fast = redisCache
	} else {
		fast = cache.NewMemoryCache(24*time.Hour, 10*time.Minute)
	}
	defer fast.Close()

	airportRepo := repositories.NewAirportRepository(gormDB)
	store := cache.NewAirportStore(fast, airportRepo, 24*time.Hour, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if *clearCache {
		if err := store.InvalidateAll(ctx); err != nil {
			logging.Fatal("Failed to clear airport cache", "error", err.Error())
		}
		fmt.Println("Airport cache cleared")
		return
	}

	pipeline := importer.NewPipeline(upstream.NewAirportsClient(nil), airportRepo, store, nil)

	run, err := pipeline.Run(ctx, importer.Options{
		Mode:        importMode,
		ForceUpdate: *forceUpdate,
		DryRun:      *dryRun,
	})
	if err != nil {
		logging.Fatal("Airport import failed", "error", err.Error())
	}

	label := "Import completed"
	if run.DryRun {
		label = "Dry run completed"
	}
	fmt.Printf("%s! Created: %d, Updated: %d, Skipped: %d, Failed: %d, Deactivated: %d\n",
		label, run.Counts.Created, run.Counts.Updated, run.Counts.Skipped,
		run.Counts.Failed, run.Counts.Deactivated)
	if run.CacheWarning != "" {
		fmt.Printf("Warning: %s\n", run.CacheWarning)
	}
}
