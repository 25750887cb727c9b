/**
 * Queue Consumer for the manga translator worker
 *
 * Consumes page jobs from an asynq queue. The task payload is the same
 * JobPayload JSON the Redis list consumer reads. Pages run one at a time,
 * completed jobs keep their JobSummary as the task result, and failed jobs
 * are archived without retry.
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/adverant/nexus/manga-translator/internal/logging"
	"github.com/adverant/nexus/manga-translator/internal/processor"
)

// TaskTypeTranslatePage is the asynq task type of page jobs
const TaskTypeTranslatePage = "page:translate"

// ResultRetention is how long completed task results stay readable
const ResultRetention = 24 * time.Hour

// Consumer handles job consumption from an asynq queue
type Consumer struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	runner *jobRunner
	config *ConsumerConfig
	logger *logging.Logger
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	RedisURL          string
	QueueName         string
	Processor         processor.PageProcessorInterface
	Store             ResultStore
	ProcessingTimeout int64 // Processing timeout in milliseconds (default: 300000 = 5 minutes)
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

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	logger := logging.NewLogger("Consumer")

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 1,
			Queues: map[string]int{
				cfg.QueueName: 10, // Priority 10 for main queue
				"default":     1,  // Priority 1 for fallback
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task processing error", "type", task.Type(), "error", err)
			}),
			Logger:          logger.Entry(),
			ShutdownTimeout: 10 * time.Second,
		},
	)

	consumer := &Consumer{
		server: server,
		mux:    asynq.NewServeMux(),
		runner: newJobRunner(cfg.Processor, cfg.Store, cfg.ProcessingTimeout, logger),
		config: cfg,
		logger: logger,
	}
	consumer.mux.HandleFunc(TaskTypeTranslatePage, consumer.handleTranslatePage)

	return consumer, nil
}

// Start starts the queue consumer
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Printf("Starting queue consumer (queue=%s, one page at a time)...", c.config.QueueName)

	go func() {
		if err := c.server.Run(c.mux); err != nil {
			c.logger.Error("Queue consumer error", "error", err)
		}
	}()

	return nil
}

// Stop stops the queue consumer gracefully
func (c *Consumer) Stop(ctx context.Context) error {
	c.logger.Printf("Stopping queue consumer...")
	c.server.Shutdown()
	c.logger.Printf("Queue consumer stopped")
	return nil
}

// handleTranslatePage processes one page job
func (c *Consumer) handleTranslatePage(ctx context.Context, task *asynq.Task) error {
	startTime := time.Now()

	var payload JobPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal job data: %v: %w", err, asynq.SkipRetry)
	}

	c.logger.Printf("[Job %s] Processing page: filename=%s, size=%d bytes, lang=%s",
		payload.JobID, payload.Filename, len(payload.FileBuffer), payload.SourceLang)

	summary, err := c.runner.run(ctx, &payload)
	if err != nil {
		c.logger.Printf("[Job %s] Processing failed after %v: %v", payload.JobID, time.Since(startTime), err)
		return fmt.Errorf("page processing failed: %w: %w", err, asynq.SkipRetry)
	}

	if w := task.ResultWriter(); w != nil {
		data, err := json.Marshal(summary)
		if err == nil {
			_, err = w.Write(data)
		}
		if err != nil {
			c.logger.Warn("Failed to write task result", "job", payload.JobID, "error", err)
		}
	}
	return nil
}

// GetStatistics returns consumer statistics
func (c *Consumer) GetStatistics() map[string]interface{} {
	return map[string]interface{}{
		"concurrency": 1,
		"queue":       c.config.QueueName,
	}
}

// NewTranslatePageTask builds the asynq task for one page job
func NewTranslatePageTask(payload *JobPayload) (*asynq.Task, error) {
	if payload.JobID == "" {
		payload.JobID = uuid.New().String()
	}
	if err := payload.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job payload: %w", err)
	}
	return asynq.NewTask(TaskTypeTranslatePage, data), nil
}

// Producer submits page jobs to an asynq queue
type Producer struct {
	client    *asynq.Client
	queueName string
}

// NewProducer creates an asynq client for job submission
func NewProducer(redisURL, queueName string) (*Producer, error) {
	if queueName == "" {
		queueName = DefaultQueueName
	}
	redisOpt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	return &Producer{client: asynq.NewClient(redisOpt), queueName: queueName}, nil
}

// Enqueue submits the page and returns the job ID
func (p *Producer) Enqueue(ctx context.Context, payload *JobPayload) (string, error) {
	task, err := NewTranslatePageTask(payload)
	if err != nil {
		return "", err
	}
	info, err := p.client.EnqueueContext(ctx, task,
		asynq.Queue(p.queueName),
		asynq.TaskID(payload.JobID),
		asynq.MaxRetry(0),
		asynq.Retention(ResultRetention),
	)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue job: %w", err)
	}
	return info.ID, nil
}

// Close closes the client
func (p *Producer) Close() error {
	return p.client.Close()
}

// Enqueuer submits page jobs to either queue backend
type Enqueuer interface {
	Enqueue(ctx context.Context, payload *JobPayload) (string, error)
	Close() error
}

// NewEnqueuer returns the producer for backend ("redis" or "asynq")
func NewEnqueuer(backend, redisURL, queueName string) (Enqueuer, error) {
	switch backend {
	case "asynq":
		return NewProducer(redisURL, queueName)
	case "", "redis":
		return NewRedisProducer(redisURL, queueName)
	default:
		return nil, fmt.Errorf("unknown queue backend: %s", backend)
	}
}
