package kafka

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clausehound/citex/internal/application/citation"
	"github.com/clausehound/citex/internal/infrastructure/monitoring/logging"
)

type fakeWriter struct {
	messages []kafka.Message
	writeErr error
	closed   bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.writeErr != nil {
		return w.writeErr
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublishJobCompleted(t *testing.T) {
	w := &fakeWriter{}
	p := NewProducerWithWriter(w, logging.NewNopLogger())

	err := p.PublishJobCompleted(context.Background(), citation.JobCompletedEvent{
		JobID:           "job-1",
		SearchContextID: "CTX-1",
		ReferenceNumber: "US1234567",
		Status:          "COMPLETED",
	})
	require.NoError(t, err)
	require.Len(t, w.messages, 1)

	msg := w.messages[0]
	assert.Equal(t, TopicJobCompleted, msg.Topic)
	assert.Equal(t, "job-1", string(msg.Key))

	env, err := ParseEnvelope(msg.Value)
	require.NoError(t, err)
	assert.Equal(t, TopicJobCompleted, env.EventType)
	assert.Equal(t, "v1", env.SchemaVersion)

	var payload JobCompletedPayload
	require.NoError(t, env.DecodePayload(&payload))
	assert.Equal(t, "job-1", payload.JobID)
	assert.Equal(t, "COMPLETED", payload.Status)

	assert.Equal(t, int64(1), p.Metrics().MessagesSent.Load())
}

func TestPublishAnalysisCompleted(t *testing.T) {
	w := &fakeWriter{}
	p := NewProducerWithWriter(w, logging.NewNopLogger())

	err := p.PublishAnalysisCompleted(context.Background(), citation.AnalysisCompletedEvent{
		JobID:               "job-2",
		SearchContextID:     "CTX-2",
		ValidationPerformed: true,
		AmendmentCount:      4,
	})
	require.NoError(t, err)
	require.Len(t, w.messages, 1)

	env, err := ParseEnvelope(w.messages[0].Value)
	require.NoError(t, err)

	var payload AnalysisCompletedPayload
	require.NoError(t, env.DecodePayload(&payload))
	assert.True(t, payload.ValidationPerformed)
	assert.Equal(t, 4, payload.AmendmentCount)
}

func TestPublishExtractionRequested(t *testing.T) {
	w := &fakeWriter{}
	p := NewProducerWithWriter(w, logging.NewNopLogger())

	require.NoError(t, p.PublishExtractionRequested(context.Background(), "job-3", "CTX-3", ""))
	require.Len(t, w.messages, 1)
	assert.Equal(t, TopicExtractionRequested, w.messages[0].Topic)
}

func TestPublishRecordsFailure(t *testing.T) {
	w := &fakeWriter{writeErr: assert.AnError}
	p := NewProducerWithWriter(w, logging.NewNopLogger())

	err := p.PublishJobCompleted(context.Background(), citation.JobCompletedEvent{JobID: "job-4"})
	require.Error(t, err)
	assert.Equal(t, int64(1), p.Metrics().MessagesFailed.Load())
	assert.Zero(t, p.Metrics().MessagesSent.Load())
}

func TestPublishAfterCloseFails(t *testing.T) {
	w := &fakeWriter{}
	p := NewProducerWithWriter(w, logging.NewNopLogger())

	require.NoError(t, p.Close())
	assert.True(t, w.closed)

	err := p.PublishJobCompleted(context.Background(), citation.JobCompletedEvent{JobID: "job-5"})
	assert.ErrorIs(t, err, ErrProducerClosed)

	// Second close is a no-op.
	require.NoError(t, p.Close())
}
