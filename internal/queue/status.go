/**
 * Run status tracking over Redis
 *
 * Mirrors each run's lifecycle into Redis sets (<queue>:processing,
 * <queue>:completed, <queue>:failed) and publishes JSON events on
 * <queue>:events for live observers. Status updates are best effort: a
 * Redis hiccup never fails the run it describes.
 */

package queue

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dashtrail/telemetry-worker/internal/errors"
	"github.com/dashtrail/telemetry-worker/internal/logging"
	"github.com/dashtrail/telemetry-worker/internal/processor"
)

// StatusPublisher mirrors run state into Redis.
type StatusPublisher struct {
	client    *redis.Client
	queueName string
	logger    *logging.Logger
}

// NewStatusPublisher connects a status publisher to Redis. A nil publisher
// is usable: every method no-ops, which is how the one-shot CLI runs.
func NewStatusPublisher(redisURL, queueName string) (*StatusPublisher, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	return &StatusPublisher{
		client:    redis.NewClient(opt),
		queueName: queueName,
		logger:    logging.NewLogger("status"),
	}, nil
}

// Started marks a run as processing.
func (s *StatusPublisher) Started(ctx context.Context, runID string) {
	if s == nil {
		return
	}
	if err := s.client.SAdd(ctx, s.key("processing"), runID).Err(); err != nil {
		s.logger.Warn("status update failed", "run_id", runID, "error", err)
	}
	s.publish(ctx, "run:started", runID, nil)
}

// Completed marks a run as done and attaches its result summary.
func (s *StatusPublisher) Completed(ctx context.Context, runID string, result *processor.ProcessResult) {
	if s == nil {
		return
	}
	s.client.SRem(ctx, s.key("processing"), runID)
	if err := s.client.SAdd(ctx, s.key("completed"), runID).Err(); err != nil {
		s.logger.Warn("status update failed", "run_id", runID, "error", err)
	}

	summary, err := json.Marshal(result)
	if err == nil {
		s.client.HSet(ctx, s.key("results"), runID, summary)
	}
	s.publish(ctx, "run:completed", runID, result)
}

// Failed marks a run as failed and records the error. Structured
// processing errors keep their code and details in the error hash.
func (s *StatusPublisher) Failed(ctx context.Context, runID string, runErr error) {
	if s == nil {
		return
	}
	s.client.SRem(ctx, s.key("processing"), runID)
	if err := s.client.SAdd(ctx, s.key("failed"), runID).Err(); err != nil {
		s.logger.Warn("status update failed", "run_id", runID, "error", err)
	}

	var detail interface{} = map[string]string{"error": runErr.Error()}
	var procErr *errors.ProcessingError
	if stderrors.As(runErr, &procErr) {
		detail = procErr.ToMap()
	}
	if payload, err := json.Marshal(detail); err == nil {
		s.client.HSet(ctx, s.key("errors"), runID, payload)
	}
	s.publish(ctx, "run:failed", runID, detail)
}

// Stats reports the size of each lifecycle set.
func (s *StatusPublisher) Stats(ctx context.Context) (map[string]int64, error) {
	if s == nil {
		return nil, fmt.Errorf("status publisher is not configured")
	}
	stats := make(map[string]int64)
	for _, state := range []string{"processing", "completed", "failed"} {
		n, err := s.client.SCard(ctx, s.key(state)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s set: %w", state, err)
		}
		stats[state] = n
	}
	return stats, nil
}

// Close releases the Redis connection.
func (s *StatusPublisher) Close() error {
	if s == nil {
		return nil
	}
	return s.client.Close()
}

func (s *StatusPublisher) publish(ctx context.Context, event, runID string, detail interface{}) {
	payload, err := json.Marshal(map[string]interface{}{
		"event":     event,
		"runId":     runID,
		"timestamp": time.Now().Format(time.RFC3339),
		"detail":    detail,
	})
	if err != nil {
		return
	}
	if err := s.client.Publish(ctx, s.key("events"), payload).Err(); err != nil {
		s.logger.Warn("event publish failed", "run_id", runID, "event", event, "error", err)
	}
}

func (s *StatusPublisher) key(suffix string) string {
	return s.queueName + ":" + suffix
}
