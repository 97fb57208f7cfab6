package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/peerplay/consumption-dashboard/internal/api"
	"github.com/peerplay/consumption-dashboard/internal/auth"
	"github.com/peerplay/consumption-dashboard/internal/cache"
	"github.com/peerplay/consumption-dashboard/internal/config"
	"github.com/peerplay/consumption-dashboard/internal/economy"
	"github.com/peerplay/consumption-dashboard/internal/metrics"
	"github.com/peerplay/consumption-dashboard/internal/pkg/distlock"
	"github.com/peerplay/consumption-dashboard/internal/pkg/logger"
	"github.com/peerplay/consumption-dashboard/internal/service/dashboard"
	"github.com/peerplay/consumption-dashboard/internal/warehouse"
)

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("address %s is already in use: %v", addr, err)
	}
	ln.Close()
	return nil
}

// openRedis returns nil when no URL is configured.
func openRedis(ctx context.Context, redisURL string) *redis.Client {
	if redisURL == "" {
		return nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		opts = &redis.Options{Addr: redisURL}
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Printf("WARNING: Redis unreachable, using in-process cache: %v", err)
		client.Close()
		return nil
	}
	return client
}

func main() {
	log.Println("╔════════════════════════════════════════════════════════════╗")
	log.Println("║  Peerplay Consumption Dashboard (cmd/server/main.go)       ║")
	log.Println("║  Daily credit sources and sinks from the warehouse         ║")
	log.Println("╚════════════════════════════════════════════════════════════╝")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	logger.SetRedactPII(!cfg.Logging.DisableRedaction)

	config.ResolveSecrets(ctx, cfg, config.DefaultChain(ctx, cfg.Secrets))

	addr := cfg.Server.Addr()
	if err := checkPortAvailable(addr); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}

	m := metrics.New()

	shape, err := economy.ParseShape(cfg.Warehouse.Shape)
	if err != nil {
		log.Fatalf("Invalid warehouse shape: %v", err)
	}

	// Warehouse
	wh, err := warehouse.Open(ctx, warehouse.Config{
		Driver:           cfg.Warehouse.Driver,
		Table:            cfg.Warehouse.Table,
		Shape:            shape,
		ProjectID:        cfg.Warehouse.ProjectID,
		CredentialsJSON:  cfg.Warehouse.CredentialsJSON,
		CredentialsFile:  cfg.Warehouse.CredentialsFile,
		MaxBytesBilled:   cfg.Warehouse.MaxBytesBilled,
		DSN:              cfg.Warehouse.DSN,
		ConnectionString: cfg.Warehouse.ConnectionString,
		Warehouse:        cfg.Warehouse.Warehouse,
	})
	if err != nil {
		log.Fatalf("Failed to open warehouse: %v", err)
	}
	defer wh.Close()

	// The dashboard still serves (with an error banner) when the warehouse is down.
	if err := warehouse.Ping(ctx, wh, cfg.Warehouse.PingRetries); err != nil {
		log.Printf("WARNING: warehouse unreachable at startup: %v", err)
	} else {
		log.Printf("Warehouse connected (%s, table %s)", cfg.Warehouse.Driver, cfg.Warehouse.Table)
	}

	// Row cache
	redisClient := openRedis(ctx, cfg.Cache.RedisURL)
	var store cache.Store
	if redisClient != nil {
		defer redisClient.Close()
		store = cache.NewRedisStore(redisClient, "consumption:")
		log.Println("Row cache: Redis")
	} else {
		mem, err := cache.NewMemoryStore(cfg.Cache.MemoryEntries)
		if err != nil {
			log.Fatalf("Failed to create memory cache: %v", err)
		}
		store = mem
		log.Printf("Row cache: in-process (%d entries)", cfg.Cache.MemoryEntries)
	}

	var lockDB *sql.DB
	if sqlLoader, ok := wh.(*warehouse.SQLLoader); ok && sqlLoader.Driver() == warehouse.DriverPostgres {
		lockDB = sqlLoader.DB()
	}
	opts := []cache.Option{
		cache.WithMetrics(m),
		cache.WithLockWait(cfg.Cache.LockWait()),
		cache.WithLockTTL(cfg.Cache.LockTTL()),
		cache.WithFetchTimeout(cfg.Cache.FetchTimeout()),
	}
	if redisClient != nil || lockDB != nil {
		opts = append(opts, cache.WithLock(func(key string, ttl time.Duration) distlock.DistLock {
			return distlock.NewLock(redisClient, lockDB, "consumption:lock:"+key, ttl)
		}))
	}
	rows := cache.NewLoader(wh, store, cfg.Cache.TTL(), opts...)

	// Dashboard service
	catalog := economy.DefaultCatalog(shape)
	if len(cfg.Economy.PaidSources) > 0 {
		catalog = economy.NewCatalog(cfg.Economy.PaidSources)
	} else {
		log.Printf("WARNING: economy.paid_sources not set; using the %s-table default %v (rewards_disco is paid only for wide tables)",
			shape, catalog.PaidSources())
	}
	svc := dashboard.NewService(rows, catalog, cfg.Economy.LoadWindowDays, m)

	// Authentication
	var authManager *auth.AuthManager
	if cfg.Auth.Enabled {
		if cfg.Auth.GoogleClientID == "" || cfg.Auth.GoogleClientSecret == "" {
			log.Fatalf("Auth is enabled but the Google OAuth client is not configured")
		}
		authManager = auth.NewAuthManager(&cfg.Auth, cfg.Server.BaseURL, m)
		go authManager.CleanupExpiredSessions(ctx, time.Hour)
		log.Printf("Google OAuth enabled for domains %v", cfg.Auth.AllowedDomains)
	} else {
		log.Println("WARNING: authentication disabled")
	}

	page, err := api.NewPageRenderer("")
	if err != nil {
		log.Fatalf("Failed to parse page template: %v", err)
	}

	handlers := api.NewHandlers(svc, page, authManager)
	health := api.NewHealthChecker(rows, redisClient)
	server := api.NewServer(cfg.Server, handlers, health, authManager, m)

	// Setup graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on %s", addr)
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}
