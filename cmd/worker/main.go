/**
 * textscan OCR worker - queue consumer entry point
 *
 * Pulls queued recognition tasks from Redis, runs them through the same
 * processing pipeline as the HTTP server, and publishes job state for pollers.
 */

package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/textscan/ocr-server/internal/artifact"
	"github.com/textscan/ocr-server/internal/config"
	"github.com/textscan/ocr-server/internal/ocr"
	"github.com/textscan/ocr-server/internal/processor"
	"github.com/textscan/ocr-server/internal/queue"
	"github.com/textscan/ocr-server/internal/retention"
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
	if cfg.RedisURL == "" {
		log.Fatalf("REDIS_URL is required for the worker")
	}

	log.Printf("textscan OCR worker starting: redis=%s concurrency=%d",
		cfg.RedisURL, cfg.WorkerConcurrency)

	store, err := storage.NewStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer store.Close()

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

	jobs, err := queue.NewJobStore(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer jobs.Close()

	consumer, err := queue.NewConsumer(&queue.ConsumerConfig{
		RedisURL:    cfg.RedisURL,
		QueueName:   queue.DefaultQueueName,
		Concurrency: cfg.WorkerConcurrency,
		Processor:   proc,
		Jobs:        jobs,
	})
	if err != nil {
		log.Fatalf("Failed to initialize queue consumer: %v", err)
	}

	// Workers sweep artifact directories too; server and worker may share them.
	sweeper := retention.NewSweeper(
		[]string{cfg.UploadDir, cfg.ProcessedDir},
		cfg.RetentionMaxAge,
		cfg.SweepInterval,
	)
	sweeper.Start()
	defer sweeper.Stop()

	if err := consumer.Start(); err != nil {
		log.Fatalf("Failed to start queue consumer: %v", err)
	}
	log.Printf("Worker ready, waiting for jobs...")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	log.Printf("Received signal %v, initiating graceful shutdown...", sig)

	consumer.Stop()
	log.Printf("Shutdown complete")
}
