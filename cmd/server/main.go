package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/amopromo/flightdeck/internal/cache"
	"github.com/amopromo/flightdeck/internal/db"
	"github.com/amopromo/flightdeck/internal/db/repositories"
	"github.com/amopromo/flightdeck/internal/importer"
	"github.com/amopromo/flightdeck/internal/logging"
	"github.com/amopromo/flightdeck/internal/metrics"
	"github.com/amopromo/flightdeck/internal/routes"
	"github.com/amopromo/flightdeck/internal/search"
	"github.com/amopromo/flightdeck/internal/upstream"
)

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	appEnv := os.Getenv("APP_ENV")
	if appEnv == "" {
		appEnv = "development"
	}

	if err := logging.Init(appEnv); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logging.Close()

	logging.Info("Flightdeck starting up", "environment", appEnv)

	metricsReg := metrics.NewMetricsRegistry()

	if err := db.InitPostgres(); err != nil {
		logging.Fatal("Failed to connect to Postgres (sqlx)", "error", err.Error())
	}
	logging.Info("Connected to Postgres (sqlx)")

	gormDB, err := db.InitPostgresORM(db.PostgresDSN())
	if err != nil {
		logging.Fatal("Failed to connect to Postgres (GORM)", "error", err.Error())
	}

	ttl := 24 * time.Hour
	if v := os.Getenv("CACHE_TTL_HOURS"); v != "" {
		if hours, err := strconv.Atoi(v); err == nil && hours > 0 {
			ttl = time.Duration(hours) * time.Hour
		}
	}

	var fast cache.Cache
	if os.Getenv("REDIS_HOST") != "" {
		redisCache, err := cache.NewRedisCache()
		if err != nil {
			logging.Fatal("Failed to connect to Redis", "error", err.Error())
		}
		fast = redisCache
		logging.Info("Using Redis fast layer")
	} else {
		fast = cache.NewMemoryCache(ttl, 10*time.Minute)
		logging.Info("REDIS_HOST not set, using in-memory fast layer")
	}
	defer fast.Close()

	airportRepo := repositories.NewAirportRepository(gormDB)
	store := cache.NewAirportStore(fast, airportRepo, ttl, metricsReg)

	airportsClient := upstream.NewAirportsClient(metricsReg)
	flightsClient := upstream.NewFlightsClient(metricsReg)

	pipeline := importer.NewPipeline(airportsClient, airportRepo, store, metricsReg)

	searchCfg := search.Config{
		AllowPastDeparture: os.Getenv("ALLOW_PAST_DEPARTURE") == "true",
	}
	searchSvc := search.NewService(store, flightsClient, searchCfg, metricsReg)

	// Scheduled refresh replaces the old cron entry; 0 disables it
	if v := os.Getenv("IMPORT_INTERVAL_HOURS"); v != "" {
		if hours, err := strconv.Atoi(v); err == nil && hours > 0 {
			scheduler := importer.NewScheduler(pipeline, importer.Options{
				Mode:        importer.ModeFull,
				ForceUpdate: true,
			})
			go scheduler.RunScheduled(context.Background(), time.Duration(hours)*time.Hour)
		}
	}

	upSince := time.Now()
	router := routes.RegisterRoutes(&routes.Dependencies{
		SQLDB:    db.DB,
		Fast:     fast,
		Store:    store,
		Pipeline: pipeline,
		Search:   searchSvc,
		Metrics:  metricsReg,
		UpSince:  upSince,
	})

	// Metrics endpoint lives outside the Chi router
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", router)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	logging.Info("Server starting", "port", port, "environment", appEnv)
	log.Fatal(http.ListenAndServe(":"+port, mux))
}
