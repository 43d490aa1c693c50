/**
 * Queue Consumer for the telemetry extraction worker
 *
 * Consumes video extraction jobs from a Redis-backed queue. Uses Asynq for
 * queue management, with run status tracked in Redis sets and published as
 * events for anything watching the run.
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/dashtrail/telemetry-worker/internal/errors"
	"github.com/dashtrail/telemetry-worker/internal/logging"
	"github.com/dashtrail/telemetry-worker/internal/processor"
)

// TaskProcessVideo is the task type the worker consumes.
const TaskProcessVideo = "process-video"

// VideoJob is the queued job payload.
type VideoJob struct {
	RunID       string `json:"runId"`
	VideoPath   string `json:"videoPath"`
	StartMs     int64  `json:"startMs,omitempty"`
	DurationMs  int64  `json:"durationMs,omitempty"`
	ExtractOnly bool   `json:"extractOnly,omitempty"`
}

// Consumer handles job consumption from the Redis queue
type Consumer struct {
	client    *asynq.Client
	server    *asynq.Server
	mux       *asynq.ServeMux
	processor processor.VideoProcessorInterface
	status    *StatusPublisher
	config    *ConsumerConfig
	logger    *logging.Logger
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	RedisURL    string
	QueueName   string
	Concurrency int
	Processor   processor.VideoProcessorInterface
	Status      *StatusPublisher

	// ProcessingTimeout bounds one job, in milliseconds
	ProcessingTimeout int64
}

// NewConsumer creates a new queue consumer
func NewConsumer(cfg *ConsumerConfig) (*Consumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}
	if cfg.QueueName == "" {
		return nil, fmt.Errorf("QueueName is required")
	}
	if cfg.Processor == nil {
		return nil, fmt.Errorf("Processor is required")
	}

	logger := logging.NewLogger("queue")

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := asynq.NewClient(redisOpt)

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				cfg.QueueName: 10,
				"default":     1,
			},
			// Exponential backoff capped at a minute; video jobs are
			// long, retrying faster than that just burns the queue.
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				delay := time.Duration(5*(1<<uint(n))) * time.Second
				if delay > 60*time.Second {
					delay = 60 * time.Second
				}
				return delay
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("task processing error",
					"type", task.Type(), "payload", string(task.Payload()), "error", err)
			}),
		},
	)

	mux := asynq.NewServeMux()

	consumer := &Consumer{
		client:    client,
		server:    server,
		mux:       mux,
		processor: cfg.Processor,
		status:    cfg.Status,
		config:    cfg,
		logger:    logger,
	}

	mux.HandleFunc(TaskProcessVideo, consumer.handleProcessVideo)

	return consumer, nil
}

// newVideoTask wraps one job payload in a queue task, rejecting payloads
// the handler would bounce anyway.
func newVideoTask(job *VideoJob) (*asynq.Task, error) {
	if job.RunID == "" || job.VideoPath == "" {
		return nil, fmt.Errorf("job is missing runId or videoPath")
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job: %w", err)
	}
	return asynq.NewTask(TaskProcessVideo, payload), nil
}

// Enqueue submits one video job to the queue.
func (c *Consumer) Enqueue(ctx context.Context, job *VideoJob) error {
	task, err := newVideoTask(job)
	if err != nil {
		return err
	}
	if _, err := c.client.EnqueueContext(ctx, task, asynq.Queue(c.config.QueueName)); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

// Enqueuer submits video jobs without running a worker, for producers
// like the CLI's enqueue subcommand.
type Enqueuer struct {
	client *asynq.Client
	queue  string
}

// NewEnqueuer creates a queue producer.
func NewEnqueuer(redisURL, queueName string) (*Enqueuer, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}
	if queueName == "" {
		return nil, fmt.Errorf("QueueName is required")
	}
	redisOpt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	return &Enqueuer{
		client: asynq.NewClient(redisOpt),
		queue:  queueName,
	}, nil
}

// Enqueue submits one video job and returns the queued task ID.
func (e *Enqueuer) Enqueue(ctx context.Context, job *VideoJob) (string, error) {
	task, err := newVideoTask(job)
	if err != nil {
		return "", err
	}
	info, err := e.client.EnqueueContext(ctx, task, asynq.Queue(e.queue))
	if err != nil {
		return "", fmt.Errorf("failed to enqueue job: %w", err)
	}
	return info.ID, nil
}

// Close releases the producer's Redis connection.
func (e *Enqueuer) Close() error {
	return e.client.Close()
}

// Start starts the queue consumer
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("starting queue consumer",
		"concurrency", c.config.Concurrency, "queue", c.config.QueueName)

	go func() {
		if err := c.server.Run(c.mux); err != nil {
			c.logger.Error("queue consumer stopped", "error", err)
		}
	}()

	return nil
}

// Stop stops the queue consumer gracefully
func (c *Consumer) Stop(ctx context.Context) error {
	c.logger.Info("stopping queue consumer")

	c.server.Shutdown()

	if err := c.client.Close(); err != nil {
		return fmt.Errorf("failed to close client: %w", err)
	}

	c.logger.Info("queue consumer stopped")
	return nil
}

// handleProcessVideo processes one video extraction job.
func (c *Consumer) handleProcessVideo(ctx context.Context, task *asynq.Task) error {
	var job VideoJob
	if err := json.Unmarshal(task.Payload(), &job); err != nil {
		return fmt.Errorf("failed to unmarshal job payload: %w", err)
	}
	if job.RunID == "" || job.VideoPath == "" {
		return fmt.Errorf("job is missing runId or videoPath")
	}

	timeout := time.Duration(c.config.ProcessingTimeout) * time.Millisecond
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	c.status.Started(ctx, job.RunID)

	result, err := c.processor.ProcessVideo(ctx, &processor.ProcessRequest{
		RunID:       job.RunID,
		VideoPath:   job.VideoPath,
		Start:       time.Duration(job.StartMs) * time.Millisecond,
		Duration:    time.Duration(job.DurationMs) * time.Millisecond,
		ExtractOnly: job.ExtractOnly,
	})
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			err = errors.NewProcessingTimeoutError(job.RunID, timeout, err)
		}
		c.status.Failed(context.WithoutCancel(ctx), job.RunID, err)
		return err
	}

	c.status.Completed(ctx, job.RunID, result)
	c.logger.Info("job completed",
		"run_id", job.RunID,
		"records", result.RecordsWritten,
		"track_exported", result.TrackExported,
		"duration", result.ProcessingTime)
	return nil
}
