/**
 * textscan OCR server - HTTP entry point
 *
 * Wires PostgreSQL-backed cache/history, filesystem artifact storage, the
 * retention sweeper, the Tesseract engine, and (when Redis is configured)
 * the async job queue behind the Gin API.
 */

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/textscan/ocr-server/internal/artifact"
	"github.com/textscan/ocr-server/internal/config"
	"github.com/textscan/ocr-server/internal/ocr"
	"github.com/textscan/ocr-server/internal/processor"
	"github.com/textscan/ocr-server/internal/queue"
	"github.com/textscan/ocr-server/internal/retention"
	"github.com/textscan/ocr-server/internal/server"
	"github.com/textscan/ocr-server/internal/storage"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env not found, using system environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("textscan OCR server starting: addr=%s profile=%s languages=%s",
		cfg.ListenAddr, cfg.Profile, cfg.Languages)

	store, err := storage.NewStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer store.Close()

	migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = store.Migrate(migrateCtx)
	cancel()
	if err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	artifacts, err := artifact.NewStore(cfg.UploadDir, cfg.ProcessedDir)
	if err != nil {
		log.Fatalf("Failed to initialize artifact storage: %v", err)
	}

	proc, err := processor.NewProcessor(&processor.Config{
		Engine:        ocr.NewTesseractEngine(cfg.Languages),
		Cache:         store.Cache(),
		History:       store.History(),
		Artifacts:     artifacts,
		LineThreshold: cfg.LineThreshold,
		MinConfidence: cfg.MinConfidence,
		Profile:       cfg.Profile,
		OCRTimeout:    cfg.OCRTimeout,
		ChunkSize:     cfg.ChunkSize,
	})
	if err != nil {
		log.Fatalf("Failed to initialize processor: %v", err)
	}

	sweeper := retention.NewSweeper(
		[]string{cfg.UploadDir, cfg.ProcessedDir},
		cfg.RetentionMaxAge,
		cfg.SweepInterval,
	)
	sweeper.Start()
	defer sweeper.Stop()

	deps := &server.Deps{
		Processor: proc,
		History:   store.History(),
		Cache:     store.Cache(),
		DB:        store,
		Artifacts: artifacts,
		Sweeper:   sweeper,
	}

	// The async queue is optional; without Redis the job endpoints report 503.
	if cfg.RedisURL != "" {
		jobs, err := queue.NewJobStore(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer jobs.Close()

		producer, err := queue.NewProducer(cfg.RedisURL, queue.DefaultQueueName)
		if err != nil {
			log.Fatalf("Failed to initialize task producer: %v", err)
		}
		defer producer.Close()

		deps.Jobs = jobs
		deps.Producer = producer
		log.Printf("Async queue enabled: redis=%s queue=%s", cfg.RedisURL, queue.DefaultQueueName)
	} else {
		log.Printf("Async queue disabled (REDIS_URL not set)")
	}

	srv := server.NewServer(cfg, deps)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Run()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigChan:
		log.Printf("Received signal %v, initiating graceful shutdown...", sig)
	case err := <-errChan:
		if err != nil {
			log.Fatalf("HTTP server failed: %v", err)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Printf("Shutdown complete")
}
