package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/fjod/go_storefront/internal/cart"
	"github.com/fjod/go_storefront/internal/catalog"
	"github.com/fjod/go_storefront/internal/category"
	"github.com/fjod/go_storefront/internal/httpapi"
	"github.com/fjod/go_storefront/internal/kv"
	"github.com/fjod/go_storefront/internal/poller"
	"github.com/fjod/go_storefront/internal/remote"
)

type Config struct {
	HTTPPort        string
	CatalogDBPath   string
	MigrationsPath  string
	RedisAddr       string
	RedisPassword   string
	MongoURI        string
	MongoDBName     string
	RemoteCartURL   string
	KafkaBrokers    string
	CategoryTTL     time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

func loadConfig() *Config {
	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		CatalogDBPath:   getEnv("CATALOG_DB_PATH", "storefront.db"),
		MigrationsPath:  getEnv("MIGRATIONS_PATH", "internal/catalog/migrations"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		MongoURI:        getEnv("MONGO_URI", ""),
		MongoDBName:     getEnv("MONGO_DB_NAME", "storefront"),
		RemoteCartURL:   getEnv("REMOTE_CART_URL", ""),
		KafkaBrokers:    getEnv("KAFKA_BROKERS", ""),
		CategoryTTL:     category.DefaultTTL,
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	cfg := loadConfig()
	ctx := context.Background()

	// Catalog database
	repo, err := catalog.NewRepository(cfg.CatalogDBPath)
	if err != nil {
		log.Fatalf("Failed to open catalog database: %v", err)
	}
	defer repo.Close()
	if err := repo.RunMigrations(cfg.MigrationsPath); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Printf("Catalog database ready at %s", cfg.CatalogDBPath)

	// Durable storage for carts: MongoDB when configured, Redis otherwise.
	kvs, closeKV, err := openKV(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open cart storage: %v", err)
	}
	defer closeKV()

	// Remote cart mirror (optional)
	var remoteCart cart.RemoteCart
	if cfg.RemoteCartURL != "" {
		remoteCart = remote.NewClient(cfg.RemoteCartURL, cart.MirrorTimeout)
		log.Printf("Mirroring carts to %s", cfg.RemoteCartURL)
	} else {
		log.Println("Remote cart mirroring disabled")
	}

	manager := cart.NewManager(kvs, repo, remoteCart)
	defer manager.Close()

	categoryCache := category.NewCache(repo, cfg.CategoryTTL)

	// Order-completed consumer (optional)
	pollerCtx, stopPoller := context.WithCancel(ctx)
	defer stopPoller()
	if cfg.KafkaBrokers != "" {
		p := poller.NewPoller(manager, strings.Split(cfg.KafkaBrokers, ",")...)
		defer p.Close()
		go p.Run(pollerCtx)
		log.Printf("Consuming %s from %s", poller.Topic, cfg.KafkaBrokers)
	}

	cartHandler := httpapi.NewCartHandler(manager, repo, cfg.RequestTimeout)
	categoryHandler := httpapi.NewCategoryHandler(categoryCache, cfg.RequestTimeout)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(httpapi.RequestIDMiddleware)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))
	r.Use(httpapi.SessionMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.ClearCart)
			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{key}", cartHandler.UpdateQuantity)
			r.Delete("/items/{key}", cartHandler.RemoveItem)
		})
		r.Get("/categories", categoryHandler.GetCategories)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Storefront starting on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("server exited")
}

func openKV(ctx context.Context, cfg *Config) (kv.Store, func(), error) {
	if cfg.MongoURI != "" {
		db, err := kv.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			return nil, nil, err
		}
		store := kv.NewMongoStore(db)
		if err := store.CreateIndexes(ctx); err != nil {
			return nil, nil, err
		}
		log.Printf("Cart storage: MongoDB at %s", cfg.MongoURI)
		return store, func() { db.Client().Disconnect(ctx) }, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, nil, err
	}
	log.Printf("Cart storage: Redis at %s", cfg.RedisAddr)
	return kv.NewRedisStore(client), func() { client.Close() }, nil
}
