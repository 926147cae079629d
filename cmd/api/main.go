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

	"secularreview/api/internal/accounts"
	"secularreview/api/internal/app"
	"secularreview/api/internal/cache"
	"secularreview/api/internal/comments"
	"secularreview/api/internal/config"
	"secularreview/api/internal/docstore"
	"secularreview/api/internal/gate"
	"secularreview/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	mongoStore, err := docstore.Connect(ctx, cfg.MongoURL)
	if err != nil {
		log.Fatalf("mongo connection failed: %v", err)
	}
	defer mongoStore.Close(context.Background())

	controller := store.NewController(mongoStore, cfg.DBName)
	engine := comments.NewEngine(controller)
	accessGate := gate.New([]byte(cfg.JWTSecret), controller)
	verifier := accounts.NewGoogleVerifier(cfg.GoogleTokenInfoURL)
	accountSvc := accounts.NewService(controller, []byte(cfg.JWTSecret), cfg.AccessTTL, verifier)

	var service *app.Service
	if strings.TrimSpace(cfg.CacheRedisURL) != "" {
		log.Printf("Using Redis chapter cache")
		chapterCache, err := cache.New(cfg.CacheRedisURL, cfg.CacheTimeout)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer chapterCache.Close()
		service = app.NewWithCache(cfg, controller, engine, accessGate, accountSvc, chapterCache)
	} else {
		log.Printf("Chapter cache disabled")
		service = app.New(cfg, controller, engine, accessGate, accountSvc)
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Secular Review API listening on %s", cfg.Addr)
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
