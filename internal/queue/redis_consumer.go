/**
 * Direct Redis Queue Consumer for the manga translator worker
 *
 * Compatible with the TypeScript RedisQueue job format:
 * - <queue>            LIST of job IDs (LPUSH by producers, BRPOP here)
 * - <queue>:data       HASH job ID -> RedisJobData JSON
 * - <queue>:processing / :completed / :failed   SETs of job IDs
 * - <queue>:results / :errors                   HASHes job ID -> JSON
 * - <queue>:events     PUBLISH channel for job status events
 *
 * Pages are processed one at a time. Failed jobs are recorded, never re-queued.
 */

package queue

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/adverant/nexus/manga-translator/internal/logging"
	"github.com/adverant/nexus/manga-translator/internal/processor"
)

// DefaultQueueName is used when no queue name is configured
const DefaultQueueName = "manga:pages"

// JobTypeTranslatePage is the RedisJobData.Type of page jobs
const JobTypeTranslatePage = "translate-page"

// Job status values
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

var errNoJobs = stderrors.New("no jobs available")

// RedisJobData represents a job from the Redis queue
type RedisJobData struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	Payload    JobPayload `json:"payload"`
	CreatedAt  time.Time  `json:"createdAt"`
	Attempts   int        `json:"attempts"`
	MaxRetries int        `json:"maxRetries"`
}

// keys names the Redis structures of one queue
type keys struct {
	queue string
}

func (k keys) list() string       { return k.queue }
func (k keys) data() string       { return k.queue + ":data" }
func (k keys) processing() string { return k.queue + ":processing" }
func (k keys) completed() string  { return k.queue + ":completed" }
func (k keys) failed() string     { return k.queue + ":failed" }
func (k keys) results() string    { return k.queue + ":results" }
func (k keys) errors() string     { return k.queue + ":errors" }
func (k keys) events() string     { return k.queue + ":events" }

// RedisConsumer handles job consumption from Redis queue
type RedisConsumer struct {
	client *redis.Client
	runner *jobRunner
	config *RedisConsumerConfig
	keys   keys
	logger *logging.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// RedisConsumerConfig holds consumer configuration
type RedisConsumerConfig struct {
	RedisURL          string
	QueueName         string
	Processor         processor.PageProcessorInterface
	Store             ResultStore
	ProcessingTimeout int64 // Processing timeout in milliseconds (default: 300000 = 5 minutes)
}

// NewRedisConsumer creates a new Redis-based queue consumer
func NewRedisConsumer(cfg *RedisConsumerConfig) (*RedisConsumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}
	if cfg.QueueName == "" {
		cfg.QueueName = DefaultQueueName
	}
	if cfg.Processor == nil {
		return nil, fmt.Errorf("Processor is required")
	}

	client, err := dialRedis(cfg.RedisURL)
	if err != nil {
		return nil, err
	}

	logger := logging.NewLogger("RedisConsumer")
	consumerCtx, cancel := context.WithCancel(context.Background())

	return &RedisConsumer{
		client: client,
		runner: newJobRunner(cfg.Processor, cfg.Store, cfg.ProcessingTimeout, logger),
		config: cfg,
		keys:   keys{queue: cfg.QueueName},
		logger: logger,
		ctx:    consumerCtx,
		cancel: cancel,
	}, nil
}

func dialRedis(redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// Start begins processing jobs from the queue
func (c *RedisConsumer) Start() error {
	c.logger.Printf("Starting Redis queue consumer (queue=%s, one page at a time)...", c.config.QueueName)

	c.wg.Add(1)
	go c.worker()

	c.logger.Printf("Queue consumer started successfully")
	return nil
}

// Stop gracefully stops the consumer. A page in progress is finished first.
func (c *RedisConsumer) Stop() error {
	c.logger.Printf("Stopping queue consumer...")
	c.cancel()
	c.wg.Wait()
	return c.client.Close()
}

func (c *RedisConsumer) worker() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			c.logger.Printf("Worker stopping")
			return
		default:
		}

		if err := c.processNextJob(); err != nil {
			if stderrors.Is(err, errNoJobs) || c.ctx.Err() != nil {
				continue
			}
			c.logger.Error("Worker error", "error", err)
			// Small delay before trying again
			select {
			case <-c.ctx.Done():
			case <-time.After(time.Second):
			}
		}
	}
}

// processNextJob fetches and processes the next job from the queue
func (c *RedisConsumer) processNextJob() error {
	// Block for up to 5 seconds waiting for a job
	result, err := c.client.BRPop(c.ctx, 5*time.Second, c.keys.list()).Result()
	if err != nil {
		if err == redis.Nil {
			return errNoJobs
		}
		return fmt.Errorf("failed to fetch job: %w", err)
	}
	if len(result) < 2 {
		return fmt.Errorf("invalid job result")
	}
	id := result[1]

	// Status bookkeeping uses a context that survives Stop so the page in
	// progress is always recorded.
	ctx := context.WithoutCancel(c.ctx)

	jobData, err := c.client.HGet(ctx, c.keys.data(), id).Result()
	if err != nil {
		return fmt.Errorf("failed to get job data: %w", err)
	}

	var job RedisJobData
	if err := json.Unmarshal([]byte(jobData), &job); err != nil {
		c.updateJobStatus(ctx, id, StatusFailed, map[string]interface{}{"error": err.Error()})
		return fmt.Errorf("failed to unmarshal job %s: %w", id, err)
	}
	if job.Payload.JobID == "" {
		job.Payload.JobID = job.ID
	}

	c.updateJobStatus(ctx, job.Payload.JobID, StatusProcessing, nil)
	c.logger.Printf("Processing job %s: %s", job.Payload.JobID, job.Payload.Filename)

	start := time.Now()
	summary, err := c.runner.run(ctx, &job.Payload)
	if err != nil {
		c.logger.Error("Job failed", "job", job.Payload.JobID, "error", err)
		c.updateJobStatus(ctx, job.Payload.JobID, StatusFailed, failureDetails(err, time.Since(start)))
		return nil
	}

	c.updateJobStatus(ctx, job.Payload.JobID, StatusCompleted, summary)
	c.logger.Printf("Job %s completed successfully", job.Payload.JobID)
	return nil
}

// updateJobStatus moves the job between status sets, records its result or
// error, and publishes a status event.
func (c *RedisConsumer) updateJobStatus(ctx context.Context, jobID string, status string, record interface{}) {
	pipe := c.client.TxPipeline()

	switch status {
	case StatusProcessing:
		pipe.SAdd(ctx, c.keys.processing(), jobID)
	case StatusCompleted:
		pipe.SRem(ctx, c.keys.processing(), jobID)
		pipe.SAdd(ctx, c.keys.completed(), jobID)
		if record != nil {
			data, _ := json.Marshal(record)
			pipe.HSet(ctx, c.keys.results(), jobID, data)
		}
	case StatusFailed:
		pipe.SRem(ctx, c.keys.processing(), jobID)
		pipe.SAdd(ctx, c.keys.failed(), jobID)
		if record != nil {
			data, _ := json.Marshal(record)
			pipe.HSet(ctx, c.keys.errors(), jobID, data)
		}
	}

	pipe.Publish(ctx, c.keys.events(), jobEvent(jobID, status, time.Now()))

	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("Failed to update job status", "job", jobID, "status", status, "error", err)
	}
}

// jobEvent is the payload published on the events channel
func jobEvent(jobID, status string, at time.Time) []byte {
	data, _ := json.Marshal(map[string]interface{}{
		"event":     "job:" + status,
		"jobId":     jobID,
		"timestamp": at.Format(time.RFC3339),
	})
	return data
}

// GetStats returns queue statistics
func (c *RedisConsumer) GetStats(ctx context.Context) (map[string]int64, error) {
	return queueStats(ctx, c.client, c.keys)
}

func queueStats(ctx context.Context, client *redis.Client, k keys) (map[string]int64, error) {
	pipe := client.Pipeline()
	waiting := pipe.LLen(ctx, k.list())
	processing := pipe.SCard(ctx, k.processing())
	completed := pipe.SCard(ctx, k.completed())
	failed := pipe.SCard(ctx, k.failed())
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to read queue stats: %w", err)
	}

	return map[string]int64{
		"waiting":    waiting.Val(),
		"processing": processing.Val(),
		"completed":  completed.Val(),
		"failed":     failed.Val(),
	}, nil
}

// RedisProducer submits page jobs in the format RedisConsumer reads
type RedisProducer struct {
	client *redis.Client
	keys   keys
}

// NewRedisProducer connects to Redis for job submission
func NewRedisProducer(redisURL, queueName string) (*RedisProducer, error) {
	if queueName == "" {
		queueName = DefaultQueueName
	}
	client, err := dialRedis(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisProducer{client: client, keys: keys{queue: queueName}}, nil
}

// Enqueue stores the job data and pushes the job ID onto the queue
func (p *RedisProducer) Enqueue(ctx context.Context, payload *JobPayload) (string, error) {
	job, err := newRedisJob(payload, time.Now())
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job: %w", err)
	}

	pipe := p.client.TxPipeline()
	pipe.HSet(ctx, p.keys.data(), job.ID, data)
	pipe.LPush(ctx, p.keys.list(), job.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to enqueue job: %w", err)
	}
	return job.ID, nil
}

// Stats returns queue statistics
func (p *RedisProducer) Stats(ctx context.Context) (map[string]int64, error) {
	return queueStats(ctx, p.client, p.keys)
}

// Close closes the Redis connection
func (p *RedisProducer) Close() error {
	return p.client.Close()
}

func newRedisJob(payload *JobPayload, now time.Time) (*RedisJobData, error) {
	if payload.JobID == "" {
		payload.JobID = uuid.New().String()
	}
	if err := payload.Validate(); err != nil {
		return nil, err
	}
	return &RedisJobData{
		ID:         payload.JobID,
		Type:       JobTypeTranslatePage,
		Payload:    *payload,
		CreatedAt:  now,
		MaxRetries: 0,
	}, nil
}
