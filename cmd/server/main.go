/**
 * @description
 * This is the main entry point for the HTTP server. It is responsible for
 * initializing all components of the service, including configuration, database
 * connection, partner adapter clients, repositories, the lifecycle engine, and
 * the HTTP server. It wires everything together and starts the service.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - github.com/redis/go-redis/v9: Redis client for the partner token cache.
 * - internal/api, internal/app, internal/cache, internal/config, internal/store: Internal packages.
 * - pkg/amexclient, pkg/mastercardclient: Partner adapters.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/CardLinx/microsoft-earn-sub008/internal/api"
	"github.com/CardLinx/microsoft-earn-sub008/internal/app"
	"github.com/CardLinx/microsoft-earn-sub008/internal/cache"
	"github.com/CardLinx/microsoft-earn-sub008/internal/config"
	"github.com/CardLinx/microsoft-earn-sub008/internal/store"
	"github.com/CardLinx/microsoft-earn-sub008/pkg/amexclient"
	"github.com/CardLinx/microsoft-earn-sub008/pkg/mastercardclient"
)

func main() {
	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.BearerTokenSecret) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"bearer token secret must be configured\" env=BEARER_TOKEN_SECRET")
	}

	log.Printf("level=info component=bootstrap msg=\"starting commerce server\" port=%s", cfg.ServerPort)

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}

	// Configure connection pool for high-traffic scenarios.
	poolConfig.MaxConns = 100
	poolConfig.MinConns = 20
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	// Partner token cache. Redis is preferred so tokens survive restarts and
	// are shared across instances; a missing or unreachable Redis degrades to
	// an in-process cache rather than blocking boot.
	var tokenCache cache.TokenCache = cache.NewMemoryTokenCache()
	if strings.TrimSpace(cfg.RedisURL) == "" {
		log.Println("level=warn component=bootstrap msg=\"redis url missing; partner tokens cached in process\" env=REDIS_URL")
	} else {
		redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
		if parseErr != nil {
			log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; partner tokens cached in process\" err=%v", parseErr)
		} else {
			redisClient := redis.NewClient(redisOptions)
			pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelPing()
			if pingErr := redisClient.Ping(pingCtx).Err(); pingErr != nil {
				log.Printf("level=warn component=bootstrap msg=\"redis ping failed; partner tokens cached in process\" err=%v", pingErr)
				redisClient.Close()
			} else {
				defer redisClient.Close()
				tokenCache = cache.NewRedisTokenCache(redisClient, cfg.RedisTokenPrefix)
				log.Println("level=info component=bootstrap msg=\"redis connected\"")
			}
		}
	}

	// Initialize the partner adapter clients. Visa has no enrollment API; the
	// engine links Visa cards locally when no adapter is registered.
	amexClient := amexclient.NewClient(cfg.AmexBaseURL, cfg.AmexClientID, cfg.AmexClientSecret, cfg.AmexAPIKey, cfg.AmexPartnerID, tokenCache)
	mastercardClient := mastercardclient.NewClient(cfg.MasterCardBaseURL, cfg.MasterCardBearerToken)

	// Initialize the data access layer (repository).
	repository := store.NewPostgresRepository(dbpool)

	// Initialize the lifecycle engine with its partner adapters.
	engine := app.NewService(repository, amexClient, mastercardClient)

	// Initialize the API handlers and router.
	handlers := api.NewHandlers(engine)
	router := api.Routes(handlers, api.RouterConfig{
		BearerSecret:         cfg.BearerTokenSecret,
		VisaCIDRAllowlist:    config.SplitList(cfg.VisaCIDRAllowlist),
		FirstDataCertSerials: config.SplitList(cfg.FirstDataCertSerials),
		AllowedOrigins:       config.SplitList(cfg.CORSAllowedOrigins),
	})

	// Start the HTTP server.
	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
