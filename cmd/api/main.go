package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/tracker/internal/api"
	"example.com/tracker/internal/cache"
	"example.com/tracker/internal/config"
	"example.com/tracker/internal/domain"
	"example.com/tracker/internal/observability"
	"example.com/tracker/internal/outbox"
	persistence "example.com/tracker/internal/persistence/postgres"
	httptransport "example.com/tracker/internal/transport/http"
)

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	if err := persistence.EnsureSchema(ctx, pool); err != nil {
		log.Fatalf("failed to prepare schema: %v", err)
	}

	repo := persistence.NewRepository(pool)

	opts := []domain.Option{}
	if cfg.RedisURL != "" {
		redisClient, err := cache.Connect(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
		opts = append(opts, domain.WithUserLookup(cache.NewUsers(redisClient, repo, cfg.UserCacheTTL)))
	}

	service := domain.NewService(repo, opts...)

	producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
	defer producer.Close()

	dispatcher := outbox.NewDispatcher(pool, producer, cfg.OutboxPollInterval, cfg.OutboxBatchSize)
	go dispatcher.Start(ctx)

	mux := http.NewServeMux()
	api.NewHandler(service).RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("GET /{$}", http.FileServer(http.Dir(filepath.Clean(cfg.StaticDir))))

	// Basic request logger
	logger := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Printf("%s %s", r.Method, r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}

	server := httptransport.NewServer(httptransport.ServerConfig{
		Address:      cfg.HTTPAddress,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, logger(observability.HTTPMetricsMiddleware(mux)))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("tracker api listening on %s", cfg.HTTPAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-shutdownCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	dispatcher.Wait()
}
