package kafka

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/clausehound/citex/internal/application/citation"
	"github.com/clausehound/citex/internal/config"
	"github.com/clausehound/citex/internal/infrastructure/monitoring/logging"
	"github.com/clausehound/citex/pkg/errors"
)

var ErrProducerClosed = errors.New(errors.ErrCodeInternal, "producer closed")

const sourceService = "citex"

// WriterInterface abstracts kafka.Writer for testing.
type WriterInterface interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ProducerMetrics tracks publish outcomes.
type ProducerMetrics struct {
	MessagesSent   atomic.Int64
	MessagesFailed atomic.Int64
	BytesSent      atomic.Int64
}

// Producer publishes pipeline events.  It implements citation.EventPublisher.
type Producer struct {
	writer  WriterInterface
	logger  logging.Logger
	closed  atomic.Bool
	metrics *ProducerMetrics
}

// NewProducer builds a producer against the configured brokers.  Messages are
// keyed by job ID so events for one job stay ordered within a partition.
func NewProducer(cfg config.KafkaConfig, log logging.Logger) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New(errors.CodeConfig, "kafka brokers are required")
	}

	retries := cfg.ProducerRetries
	if retries == 0 {
		retries = 3
	}
	batchSize := cfg.BatchSize
	if batchSize == 0 {
		batchSize = 100
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		MaxAttempts:  retries + 1,
		BatchSize:    batchSize,
		BatchTimeout: time.Second,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
	}
	return &Producer{writer: writer, logger: log, metrics: &ProducerMetrics{}}, nil
}

// NewProducerWithWriter wraps an existing writer (for testing).
func NewProducerWithWriter(w WriterInterface, log logging.Logger) *Producer {
	return &Producer{writer: w, logger: log, metrics: &ProducerMetrics{}}
}

var (
	_ citation.EventPublisher     = (*Producer)(nil)
	_ citation.ExtractionEnqueuer = (*Producer)(nil)
)

// Publish sends one enveloped event to topic, keyed by key.
func (p *Producer) Publish(ctx context.Context, topic, key string, env *EventEnvelope) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}

	msg, err := env.ToMessage(topic, key)
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.metrics.MessagesFailed.Add(1)
		p.logger.Error("failed to publish event",
			logging.String("topic", topic),
			logging.String("event_type", env.EventType),
			logging.Err(err))
		return errors.Wrap(err, errors.ErrCodeInternal, "publish failed")
	}

	p.metrics.MessagesSent.Add(1)
	p.metrics.BytesSent.Add(int64(len(msg.Value)))
	return nil
}

// PublishExtractionRequested enqueues extraction work for the worker.
func (p *Producer) PublishExtractionRequested(ctx context.Context, jobID, searchContextID, referenceNumber string) error {
	env, err := NewEventEnvelope(TopicExtractionRequested, sourceService, ExtractionRequestedPayload{
		JobID:           jobID,
		SearchContextID: searchContextID,
		ReferenceNumber: referenceNumber,
		RequestedAt:     time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return p.Publish(ctx, TopicExtractionRequested, jobID, env)
}

// PublishJobCompleted announces a terminal extraction outcome.
func (p *Producer) PublishJobCompleted(ctx context.Context, event citation.JobCompletedEvent) error {
	env, err := NewEventEnvelope(TopicJobCompleted, sourceService, JobCompletedPayload{
		JobID:           event.JobID,
		SearchContextID: event.SearchContextID,
		ReferenceNumber: event.ReferenceNumber,
		Status:          event.Status,
		CompletedAt:     time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return p.Publish(ctx, TopicJobCompleted, event.JobID, env)
}

// PublishAnalysisCompleted announces a finished deep analysis.
func (p *Producer) PublishAnalysisCompleted(ctx context.Context, event citation.AnalysisCompletedEvent) error {
	env, err := NewEventEnvelope(TopicAnalysisCompleted, sourceService, AnalysisCompletedPayload{
		JobID:               event.JobID,
		SearchContextID:     event.SearchContextID,
		ReferenceNumber:     event.ReferenceNumber,
		ValidationPerformed: event.ValidationPerformed,
		AmendmentCount:      event.AmendmentCount,
		CompletedAt:         time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return p.Publish(ctx, TopicAnalysisCompleted, event.JobID, env)
}

// Metrics exposes publish counters.
func (p *Producer) Metrics() *ProducerMetrics {
	return p.metrics
}

// Close flushes and shuts down the writer.  Safe to call more than once.
func (p *Producer) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	if err := p.writer.Close(); err != nil {
		p.logger.Error("failed to close kafka producer", logging.Err(err))
		return err
	}
	p.logger.Info("closed kafka producer")
	return nil
}
