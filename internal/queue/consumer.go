/**
 * Queue consumer for asynchronous OCR requests
 *
 * Runs an Asynq server that pulls ocr:process tasks, drives them through the
 * processing pipeline, and publishes terminal state to the job registry.
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	txerrors "github.com/textscan/ocr-server/internal/errors"
	"github.com/textscan/ocr-server/internal/logging"
	"github.com/textscan/ocr-server/internal/processor"
)

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	RedisURL    string
	QueueName   string
	Concurrency int
	Processor   *processor.Processor
	Jobs        *JobStore
}

// Consumer processes queued OCR tasks.
type Consumer struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	processor *processor.Processor
	jobs      *JobStore
	config    *ConsumerConfig
	logger    *logging.Logger
}

// NewConsumer creates a queue consumer.
func NewConsumer(cfg *ConsumerConfig) (*Consumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("redis URL is required")
	}
	if cfg.Processor == nil {
		return nil, fmt.Errorf("processor is required")
	}
	if cfg.Jobs == nil {
		return nil, fmt.Errorf("job store is required")
	}
	if cfg.QueueName == "" {
		cfg.QueueName = DefaultQueueName
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	logger := logging.NewLogger("queue")

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				cfg.QueueName: 10,
				"default":     1,
			},
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				// Exponential backoff capped at a minute
				delay := time.Duration(5*(1<<uint(n))) * time.Second
				if delay > 60*time.Second {
					delay = 60 * time.Second
				}
				return delay
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	mux := asynq.NewServeMux()

	consumer := &Consumer{
		server:    server,
		mux:       mux,
		processor: cfg.Processor,
		jobs:      cfg.Jobs,
		config:    cfg,
		logger:    logger,
	}

	mux.HandleFunc(TaskTypeProcess, consumer.handleProcess)

	return consumer, nil
}

// Start runs the consumer in the background.
func (c *Consumer) Start() error {
	c.logger.Info("starting queue consumer", "queue", c.config.QueueName, "concurrency", c.config.Concurrency)

	go func() {
		if err := c.server.Run(c.mux); err != nil {
			c.logger.Error("queue consumer stopped", "error", err)
		}
	}()

	return nil
}

// Stop shuts the consumer down gracefully.
func (c *Consumer) Stop() {
	c.logger.Info("stopping queue consumer")
	c.server.Shutdown()
}

func (c *Consumer) handleProcess(ctx context.Context, task *asynq.Task) error {
	startTime := time.Now()

	var payload TaskPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %v: %w", err, asynq.SkipRetry)
	}

	c.logger.Info("processing job", "job", payload.JobID, "filename", payload.Filename, "size", len(payload.Image))

	if err := c.jobs.SetProcessing(ctx, payload.JobID); err != nil {
		c.logger.Warn("failed to mark job processing", "job", payload.JobID, "error", err)
	}

	result, err := c.processor.Process(ctx, &processor.Request{
		Filename:      payload.Filename,
		Data:          payload.Image,
		MinConfidence: payload.MinConfidence,
		Preprocess:    payload.Preprocess,
		Quick:         payload.Quick,
		Annotate:      payload.Annotate,
	})

	duration := time.Since(startTime)

	if err != nil {
		code := txerrors.CodeOf(err)
		c.logger.Error("job failed", "job", payload.JobID, "duration", duration, "code", code, "error", err)

		if updateErr := c.jobs.SetFailed(ctx, payload.JobID, string(code), err.Error()); updateErr != nil {
			c.logger.Warn("failed to mark job failed", "job", payload.JobID, "error", updateErr)
		}

		// Bad input will not get better on retry.
		if code == txerrors.ErrorInvalidInput {
			return fmt.Errorf("invalid input: %v: %w", err, asynq.SkipRetry)
		}
		return err
	}

	c.logger.Info("job completed", "job", payload.JobID, "duration", duration,
		"cached", result.Cached, "words", result.Stats.WordCount)

	if err := c.jobs.SetCompleted(ctx, payload.JobID, result); err != nil {
		c.logger.Warn("failed to mark job completed", "job", payload.JobID, "error", err)
	}

	return nil
}
