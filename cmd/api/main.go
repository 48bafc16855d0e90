package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"filehaven/api/internal/app"
	"filehaven/api/internal/blob"
	"filehaven/api/internal/config"
	"filehaven/api/internal/embed"
	"filehaven/api/internal/extract"
	"filehaven/api/internal/notify"
	"filehaven/api/internal/search"
	"filehaven/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}
	dataStore := store.NewPostgresStore(db)

	blobs, err := blob.New(ctx, blob.Config{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		UseSSL:    cfg.MinioUseSSL,
	})
	if err != nil {
		log.Fatalf("blob store connection failed: %v", err)
	}

	embedder, err := embed.NewProvider(embed.Config{
		Provider: cfg.EmbedProvider,
		BaseURL:  cfg.EmbedBaseURL,
		Model:    cfg.EmbedModel,
		CacheDir: cfg.EmbedCacheDir,
	})
	if err != nil {
		log.Fatalf("embedding provider failed: %v", err)
	}
	defer embedder.Close()

	var notifier notify.Notifier = notify.LogNotifier{}
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisNotifier, err := notify.NewRedisNotifier(cfg.RedisURL, cfg.EventChannel)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisNotifier.Close()
		notifier = redisNotifier
		log.Printf("publishing events to redis channel %s", cfg.EventChannel)
	}

	searchService := search.NewService(embedder, dataStore)
	service := app.New(cfg, dataStore, blobs, extract.New(), embedder, searchService, notifier)
	if err := service.Bootstrap(ctx); err != nil {
		log.Printf("WARNING: bootstrap error (will retry on next restart): %v", err)
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Filehaven API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
