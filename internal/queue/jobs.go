/**
 * Redis-backed job registry for asynchronous OCR requests
 *
 * Every enqueued request gets a job record keyed by UUID. The HTTP layer polls
 * records while the queue worker moves them through pending → processing →
 * completed/failed. Records expire so abandoned jobs don't pile up.
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/textscan/ocr-server/internal/processor"
)

// Job states
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

const (
	jobKeyPrefix = "ocr:job:"
	jobTTL       = 24 * time.Hour
)

// Job is one asynchronous OCR request as seen by pollers.
type Job struct {
	ID        string            `json:"id"`
	Status    string            `json:"status"`
	Filename  string            `json:"filename"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	Result    *processor.Result `json:"result,omitempty"`
	ErrorCode string            `json:"error_code,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// JobStore tracks job state in Redis.
type JobStore struct {
	client *redis.Client
}

// NewJobStore connects to Redis and verifies the connection.
func NewJobStore(redisURL string) (*JobStore, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("redis URL is required")
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &JobStore{client: client}, nil
}

// Create records a fresh pending job.
func (s *JobStore) Create(ctx context.Context, id, filename string) error {
	now := time.Now().UTC()
	return s.write(ctx, &Job{
		ID:        id,
		Status:    StatusPending,
		Filename:  filename,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// SetProcessing marks a job as picked up by a worker.
func (s *JobStore) SetProcessing(ctx context.Context, id string) error {
	return s.transition(ctx, id, func(job *Job) {
		job.Status = StatusProcessing
	})
}

// SetCompleted stores the processing result on the job record.
func (s *JobStore) SetCompleted(ctx context.Context, id string, result *processor.Result) error {
	return s.transition(ctx, id, func(job *Job) {
		job.Status = StatusCompleted
		job.Result = result
		job.ErrorCode = ""
		job.Error = ""
	})
}

// SetFailed records a terminal failure.
func (s *JobStore) SetFailed(ctx context.Context, id, code, message string) error {
	return s.transition(ctx, id, func(job *Job) {
		job.Status = StatusFailed
		job.ErrorCode = code
		job.Error = message
	})
}

// Get returns the job record, or nil when no record exists (expired or never
// created).
func (s *JobStore) Get(ctx context.Context, id string) (*Job, error) {
	data, err := s.client.Get(ctx, jobKeyPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read job %s: %w", id, err)
	}

	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to decode job %s: %w", id, err)
	}
	return &job, nil
}

// Ping verifies the Redis connection for health checks.
func (s *JobStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the Redis connection.
func (s *JobStore) Close() error {
	return s.client.Close()
}

func (s *JobStore) transition(ctx context.Context, id string, mutate func(*Job)) error {
	job, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("job %s not found", id)
	}
	mutate(job)
	job.UpdatedAt = time.Now().UTC()
	return s.write(ctx, job)
}

func (s *JobStore) write(ctx context.Context, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job %s: %w", job.ID, err)
	}
	if err := s.client.Set(ctx, jobKeyPrefix+job.ID, data, jobTTL).Err(); err != nil {
		return fmt.Errorf("failed to write job %s: %w", job.ID, err)
	}
	return nil
}
