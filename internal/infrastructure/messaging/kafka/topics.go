// Package kafka provides the event stream for the citation pipeline: the API
// enqueues extraction requests, the worker consumes them, and both publish
// lifecycle events for downstream consumers.
package kafka

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/clausehound/citex/pkg/errors"
)

// Pipeline topics.
const (
	// TopicExtractionRequested carries queued extraction work for the worker.
	TopicExtractionRequested = "citation.extraction.requested"

	// TopicJobCompleted announces that extraction reached a terminal state.
	TopicJobCompleted = "citation.job.completed"

	// TopicAnalysisCompleted announces that deep analysis finished.
	TopicAnalysisCompleted = "citation.analysis.completed"

	// TopicDeadLetter receives requests that exhausted their retries.
	TopicDeadLetter = "citation.dead_letter"
)

// EventEnvelope standardizes messages on every pipeline topic.
type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	SchemaVersion string          `json:"schema_version"`
	Payload       json.RawMessage `json:"payload"`
}

// ExtractionRequestedPayload is the work item consumed by the worker.
type ExtractionRequestedPayload struct {
	JobID           string    `json:"job_id"`
	SearchContextID string    `json:"search_context_id"`
	ReferenceNumber string    `json:"reference_number,omitempty"`
	RequestedAt     time.Time `json:"requested_at"`
}

// JobCompletedPayload mirrors the extraction outcome onto the event stream.
type JobCompletedPayload struct {
	JobID           string    `json:"job_id"`
	SearchContextID string    `json:"search_context_id"`
	ReferenceNumber string    `json:"reference_number,omitempty"`
	Status          string    `json:"status"`
	CompletedAt     time.Time `json:"completed_at"`
}

// AnalysisCompletedPayload announces deep-analysis completion.
type AnalysisCompletedPayload struct {
	JobID               string    `json:"job_id"`
	SearchContextID     string    `json:"search_context_id"`
	ReferenceNumber     string    `json:"reference_number,omitempty"`
	ValidationPerformed bool      `json:"validation_performed"`
	AmendmentCount      int       `json:"amendment_count"`
	CompletedAt         time.Time `json:"completed_at"`
}

// NewEventEnvelope wraps payload in a versioned envelope.
func NewEventEnvelope(eventType, source string, payload interface{}) (*EventEnvelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeSerialization, "failed to marshal event payload")
	}
	return &EventEnvelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		SchemaVersion: "v1",
		Payload:       data,
	}, nil
}

// DecodePayload unmarshals the envelope payload into target.
func (e *EventEnvelope) DecodePayload(target interface{}) error {
	if len(e.Payload) == 0 || string(e.Payload) == "null" {
		return errors.New(errors.CodeSerialization, "event envelope has no payload")
	}
	if err := json.Unmarshal(e.Payload, target); err != nil {
		return errors.Wrap(err, errors.CodeSerialization, "failed to unmarshal event payload")
	}
	return nil
}

// ToMessage serializes the envelope into a kafka message for topic, keyed so
// events for the same job land on the same partition.
func (e *EventEnvelope) ToMessage(topic, key string) (kafka.Message, error) {
	value, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, errors.Wrap(err, errors.CodeSerialization, "failed to marshal event envelope")
	}
	return kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Time:  e.Timestamp,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(e.EventType)},
			{Key: "source_service", Value: []byte(e.Source)},
			{Key: "schema_version", Value: []byte(e.SchemaVersion)},
		},
	}, nil
}

// ParseEnvelope unmarshals a raw message value into an EventEnvelope.
func ParseEnvelope(value []byte) (*EventEnvelope, error) {
	if len(value) == 0 {
		return nil, errors.New(errors.CodeSerialization, "empty message value")
	}
	var env EventEnvelope
	if err := json.Unmarshal(value, &env); err != nil {
		return nil, errors.Wrap(err, errors.CodeSerialization, "failed to unmarshal event envelope")
	}
	return &env, nil
}
