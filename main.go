package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/RenukaPawar658/marketplace/internal/api"
	"github.com/RenukaPawar658/marketplace/internal/api/middleware"
	"github.com/RenukaPawar658/marketplace/internal/cache"
	"github.com/RenukaPawar658/marketplace/internal/config"
	"github.com/RenukaPawar658/marketplace/internal/db"
	"github.com/RenukaPawar658/marketplace/internal/ledger"
	"github.com/RenukaPawar658/marketplace/internal/models"
	"github.com/RenukaPawar658/marketplace/internal/services"
	"github.com/RenukaPawar658/marketplace/internal/store"
	"github.com/RenukaPawar658/marketplace/internal/tasks"
)

var runMode = flag.String("m", "all", "Run mode: 'api', 'bg' (background tasks), 'all' (default)")

func main() {
	flag.Parse()

	cfg, err := config.Load(*runMode)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize listing store
	var listingStore store.ListingStore
	switch cfg.StoreBackend {
	case config.StoreBackendMongo:
		mongoClient, mongoDb, err := db.ConnectDB(cfg.MongoURI, cfg.MongoDbName)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer func() {
			if err := db.DisconnectDB(mongoClient); err != nil {
				log.Printf("Error disconnecting from MongoDB: %v", err)
			}
		}()
		mongoStore := store.NewMongoStore(mongoDb)
		ctxIdx, cancelIdx := context.WithTimeout(context.Background(), 30*time.Second)
		err = mongoStore.EnsureIndexes(ctxIdx)
		cancelIdx()
		if err != nil {
			log.Fatalf("Failed to prepare listing collections: %v", err)
		}
		listingStore = mongoStore
	default:
		log.Println("Using in-memory listing store; listings do not survive a restart.")
		listingStore = store.NewMemoryStore()
	}

	// Initialize Redis (listing cache and background tasks)
	redisClient, err := cache.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer func() {
		if err := cache.DisconnectRedis(redisClient); err != nil {
			log.Printf("Error disconnecting from Redis: %v", err)
		}
	}()
	listingCache, err := cache.NewListingCache(redisClient, cfg.ListingCacheTTL)
	if err != nil {
		log.Fatalf("Failed to initialize listing cache: %v", err)
	}

	// Ledgers run in-process; the service API seeds them.
	assetLedger := ledger.NewMemoryAssetLedger()
	valueLedger := ledger.NewMemoryValueLedger()
	if cfg.SandboxSeedFile != "" {
		seed, err := ledger.LoadSeed(cfg.SandboxSeedFile)
		if err != nil {
			log.Fatalf("Failed to load sandbox seed: %v", err)
		}
		if err := seed.Apply(assetLedger, valueLedger, models.NewAddress(cfg.RegistryAddress), cfg.TokenDecimals); err != nil {
			log.Fatalf("Failed to apply sandbox seed: %v", err)
		}
		log.Printf("Seeded %d assets and %d balances from %s", len(seed.Assets), len(seed.Balances), cfg.SandboxSeedFile)
	}

	var auditor services.CustodyAuditor
	if redisClient != nil {
		taskClient := tasks.NewClient(redisClient)
		defer taskClient.Close()
		auditor = tasks.NewAuditEnqueuer(taskClient)
	} else {
		log.Println("REDIS_ADDR not set: listings are cached in process and custody audits are disabled.")
	}

	registry := services.NewListingRegistry(cfg, listingStore, assetLedger, listingCache, auditor)
	taskProcessor := tasks.NewTaskProcessor(cfg, listingStore, assetLedger)

	var wg sync.WaitGroup
	shutdownChan := make(chan struct{}, 1)

	// Start Service API (always runs)
	serviceRouter := api.SetupServiceRouter(cfg, api.Sandbox{Assets: assetLedger, Values: valueLedger}, shutdownChan)
	serviceSrv := &http.Server{
		Addr:    ":" + cfg.ServiceApiPort,
		Handler: serviceRouter,
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		fmt.Printf("Service API listening on :%s\n", cfg.ServiceApiPort)
		if err := serviceSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Service API ListenAndServe error: %v", err)
		}
		fmt.Println("Service API server stopped.")
	}()

	// --- Mode-specific servers ---
	var mainApiSrv *http.Server
	var backgroundTaskSrv *asynq.Server
	var scheduler *asynq.Scheduler
	stopCleanup := make(chan struct{})

	fmt.Printf("Starting application in '%s' mode...\n", cfg.RunMode)

	apiMode := func() {
		fmt.Println("Starting main API server...")
		rateLimiter := middleware.NewRateLimiterMiddleware(cfg)
		go rateLimiter.RunCleanup(time.Minute, stopCleanup)

		mainApiRouter := api.SetupRouter(cfg, registry, valueLedger, rateLimiter)
		mainApiSrv = &http.Server{
			Addr:    ":" + cfg.ApiPort,
			Handler: mainApiRouter,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			fmt.Printf("Main API listening on :%s\n", cfg.ApiPort)
			if err := mainApiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Main API ListenAndServe error: %v", err)
			}
			fmt.Println("Main API server stopped.")
		}()
	}

	bgMode := func() {
		if redisClient == nil {
			log.Println("Background worker not started: REDIS_ADDR is not set.")
			return
		}
		fmt.Println("Starting background worker...")
		var mux *asynq.ServeMux
		backgroundTaskSrv, mux = tasks.SetupServer(redisClient, taskProcessor)
		// Run waits for OS signals only; shutdown may also come from the service API.
		if err := backgroundTaskSrv.Start(mux); err != nil {
			log.Fatalf("Background task server error: %v", err)
		}
		fmt.Println("Background task server started.")

		if cfg.CustodyAuditInterval > 0 {
			scheduler = startScheduler(redisClient, cfg.CustodyAuditInterval)
		}
	}

	switch cfg.RunMode {
	case "api":
		apiMode()
	case "bg":
		bgMode()
	case "all":
		apiMode()
		bgMode()
	default:
		log.Fatalf("Invalid run mode specified in config: %s.", cfg.RunMode)
	}

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		fmt.Printf("\nReceived signal: %s. Shutting down gracefully...\n", sig)
	case <-shutdownChan:
		fmt.Println("\nShutdown requested via Service API. Shutting down gracefully...")
	}
	close(stopCleanup)

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()

	fmt.Println("Shutting down Service API server...")
	if err := serviceSrv.Shutdown(ctxShutdown); err != nil {
		log.Printf("Service API server shutdown error: %v", err)
	}

	if mainApiSrv != nil {
		fmt.Println("Shutting down Main API server...")
		if err := mainApiSrv.Shutdown(ctxShutdown); err != nil {
			log.Printf("Main API server shutdown error: %v", err)
		}
	}

	if scheduler != nil {
		fmt.Println("Shutting down custody sweep scheduler...")
		scheduler.Shutdown()
	}
	if backgroundTaskSrv != nil {
		fmt.Println("Shutting down Background Task server...")
		backgroundTaskSrv.Shutdown()
	}

	fmt.Println("Waiting for servers to stop...")
	wg.Wait()

	fmt.Println("Server gracefully stopped")
}

func startScheduler(rdb *redis.Client, interval time.Duration) *asynq.Scheduler {
	scheduler, err := tasks.SetupScheduler(rdb, interval)
	if err != nil {
		log.Fatalf("Failed to set up custody sweep scheduler: %v", err)
	}
	if err := scheduler.Start(); err != nil {
		log.Fatalf("Failed to start custody sweep scheduler: %v", err)
	}
	fmt.Printf("Custody sweep scheduled every %s\n", interval)
	return scheduler
}
