/**
 * Task producer for asynchronous OCR requests
 *
 * Wraps the Asynq client; the HTTP layer enqueues here after registering the
 * job record.
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// TaskTypeProcess is the task type for image recognition jobs.
const TaskTypeProcess = "ocr:process"

// DefaultQueueName is the Asynq queue OCR tasks land on.
const DefaultQueueName = "ocr"

// TaskPayload carries one OCR request through the queue. The image travels
// inline as base64 via encoding/json's []byte handling.
type TaskPayload struct {
	JobID         string  `json:"job_id"`
	Filename      string  `json:"filename"`
	Image         []byte  `json:"image"`
	MinConfidence float64 `json:"min_confidence"`
	Preprocess    bool    `json:"preprocess"`
	Quick         bool    `json:"quick"`
	Annotate      bool    `json:"annotate"`
}

// Producer enqueues OCR tasks.
type Producer struct {
	client    *asynq.Client
	queueName string
}

// NewProducer creates a task producer for the given Redis instance.
func NewProducer(redisURL, queueName string) (*Producer, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("redis URL is required")
	}
	if queueName == "" {
		queueName = DefaultQueueName
	}

	redisOpt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	return &Producer{
		client:    asynq.NewClient(redisOpt),
		queueName: queueName,
	}, nil
}

// Enqueue submits one OCR task.
func (p *Producer) Enqueue(ctx context.Context, payload *TaskPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode task payload: %w", err)
	}

	task := asynq.NewTask(TaskTypeProcess, data)
	_, err = p.client.EnqueueContext(ctx, task,
		asynq.Queue(p.queueName),
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue task for job %s: %w", payload.JobID, err)
	}
	return nil
}

// Close releases the underlying client.
func (p *Producer) Close() error {
	return p.client.Close()
}
