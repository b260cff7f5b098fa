package kafka

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/clausehound/citex/internal/config"
	"github.com/clausehound/citex/internal/infrastructure/monitoring/logging"
	"github.com/clausehound/citex/pkg/errors"
)

var ErrAlreadyRunning = errors.New(errors.ErrCodeConflict, "consumer already running")

// Handler processes one decoded event envelope.  Returning an error triggers
// the retry policy; the message offset is only committed once the handler
// succeeds or the message is dead-lettered.
type Handler func(ctx context.Context, env *EventEnvelope) error

// ReaderInterface abstracts kafka.Reader for testing.
type ReaderInterface interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ConsumerMetrics tracks consumption outcomes.
type ConsumerMetrics struct {
	MessagesConsumed     atomic.Int64
	MessagesProcessed    atomic.Int64
	MessagesFailed       atomic.Int64
	MessagesDeadLettered atomic.Int64
}

// Consumer reads pipeline topics and dispatches to per-topic handlers.
type Consumer struct {
	reader     ReaderInterface
	deadLetter *Producer
	logger     logging.Logger

	maxRetries   int
	retryBackoff time.Duration

	mu       sync.RWMutex
	handlers map[string]Handler

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	metrics *ConsumerMetrics
}

// ConsumerOpts carries the optional collaborators for a Consumer.
type ConsumerOpts struct {
	// DeadLetter receives messages that exhaust their retries.  Nil disables
	// dead-lettering; exhausted messages are then dropped with an error log.
	DeadLetter *Producer

	MaxRetries   int
	RetryBackoff time.Duration
}

// NewConsumer builds a group consumer over the given topics.
func NewConsumer(cfg config.KafkaConfig, topics []string, opts ConsumerOpts, log logging.Logger) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New(errors.CodeConfig, "kafka brokers are required")
	}
	if cfg.GroupID == "" {
		return nil, errors.New(errors.CodeConfig, "kafka group ID is required")
	}
	if len(topics) == 0 {
		return nil, errors.New(errors.CodeConfig, "at least one topic is required")
	}

	startOffset := kafka.FirstOffset
	if cfg.AutoOffsetReset == "latest" {
		startOffset = kafka.LastOffset
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:           cfg.Brokers,
		GroupID:           cfg.GroupID,
		GroupTopics:       topics,
		StartOffset:       startOffset,
		MinBytes:          1,
		MaxBytes:          10 * 1024 * 1024,
		SessionTimeout:    30 * time.Second,
		HeartbeatInterval: 3 * time.Second,
	})

	return newConsumer(reader, opts, log), nil
}

// NewConsumerWithReader wraps an existing reader (for testing).
func NewConsumerWithReader(r ReaderInterface, opts ConsumerOpts, log logging.Logger) *Consumer {
	return newConsumer(r, opts, log)
}

func newConsumer(r ReaderInterface, opts ConsumerOpts, log logging.Logger) *Consumer {
	maxRetries := opts.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}
	backoff := opts.RetryBackoff
	if backoff == 0 {
		backoff = time.Second
	}
	return &Consumer{
		reader:       r,
		deadLetter:   opts.DeadLetter,
		logger:       log,
		maxRetries:   maxRetries,
		retryBackoff: backoff,
		handlers:     make(map[string]Handler),
		metrics:      &ConsumerMetrics{},
	}
}

// Subscribe registers the handler for a topic.  Must be called before Start.
func (c *Consumer) Subscribe(topic string, handler Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[topic] = handler
	c.logger.Info("subscribed to topic", logging.String("topic", topic))
}

// Start launches the consume loop.  It returns immediately; the loop runs
// until Stop is called or ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	if c.running.Swap(true) {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.wg.Add(1)
	go c.consumeLoop(ctx)

	c.logger.Info("kafka consumer started")
	return nil
}

func (c *Consumer) consumeLoop(ctx context.Context) {
	defer c.wg.Done()

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("failed to fetch message", logging.Err(err))
			time.Sleep(time.Second)
			continue
		}

		c.metrics.MessagesConsumed.Add(1)
		c.handleMessage(ctx, m)

		if err := c.reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			c.logger.Error("failed to commit offset",
				logging.String("topic", m.Topic),
				logging.Int64("offset", m.Offset),
				logging.Err(err))
		}
	}
}

// handleMessage dispatches one message through its handler with bounded
// retries, dead-lettering on exhaustion.  It never panics the loop: a message
// that cannot be processed is recorded and skipped.
func (c *Consumer) handleMessage(ctx context.Context, m kafka.Message) {
	c.mu.RLock()
	handler, ok := c.handlers[m.Topic]
	c.mu.RUnlock()
	if !ok {
		c.logger.Warn("no handler for topic", logging.String("topic", m.Topic))
		return
	}

	env, err := ParseEnvelope(m.Value)
	if err != nil {
		c.logger.Error("dropping undecodable message",
			logging.String("topic", m.Topic),
			logging.Int64("offset", m.Offset),
			logging.Err(err))
		c.metrics.MessagesFailed.Add(1)
		return
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.retryBackoff):
			}
		}
		if lastErr = handler(ctx, env); lastErr == nil {
			c.metrics.MessagesProcessed.Add(1)
			return
		}
		c.logger.Warn("handler failed",
			logging.String("topic", m.Topic),
			logging.String("event_id", env.EventID),
			logging.Int("attempt", attempt+1),
			logging.Err(lastErr))
	}

	c.metrics.MessagesFailed.Add(1)
	c.sendToDeadLetter(ctx, m, env, lastErr)
}

func (c *Consumer) sendToDeadLetter(ctx context.Context, m kafka.Message, env *EventEnvelope, cause error) {
	if c.deadLetter == nil {
		c.logger.Error("message exhausted retries, no dead-letter topic configured",
			logging.String("topic", m.Topic),
			logging.String("event_id", env.EventID),
			logging.Err(cause))
		return
	}
	if err := c.deadLetter.Publish(ctx, TopicDeadLetter, string(m.Key), env); err != nil {
		c.logger.Error("failed to dead-letter message",
			logging.String("event_id", env.EventID),
			logging.Err(err))
		return
	}
	c.metrics.MessagesDeadLettered.Add(1)
}

// Metrics exposes consumption counters.
func (c *Consumer) Metrics() *ConsumerMetrics {
	return c.metrics
}

// Stop halts the consume loop and closes the reader.
func (c *Consumer) Stop() error {
	if !c.running.Swap(false) {
		return nil
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	if err := c.reader.Close(); err != nil {
		c.logger.Error("failed to close kafka reader", logging.Err(err))
		return err
	}
	c.logger.Info("kafka consumer stopped")
	return nil
}
