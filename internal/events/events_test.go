package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"basiccleaning/internal/config"
)

type recordingWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func sampleEvent() ArtifactPublished {
	return ArtifactPublished{
		RunID:       "run-1",
		JobType:     "basic_cleaning",
		Name:        "clean_sample.csv",
		Version:     "v2",
		Type:        "clean_sample",
		Digest:      "abc",
		URI:         "file:///blobs/clean_sample.csv",
		RowCount:    42,
		PublishedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestNew(t *testing.T) {
	assert.IsType(t, NopNotifier{}, New(config.EventsConfig{}, nil))

	n := New(config.EventsConfig{Brokers: "localhost:9092, localhost:9093", Topic: "artifacts"}, nil)
	kn, ok := n.(*KafkaNotifier)
	require.True(t, ok)
	assert.Equal(t, "artifacts", kn.topic)

	w, ok := kn.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, "artifacts", w.Topic)
	assert.Equal(t, kafka.RequireAll, w.RequiredAcks)
}

func TestNopNotifier(t *testing.T) {
	var n Notifier = NopNotifier{}
	assert.NoError(t, n.Notify(context.Background(), sampleEvent()))
	assert.NoError(t, n.Close())
}

func TestKafkaNotifier_Notify(t *testing.T) {
	w := &recordingWriter{}
	n := NewKafkaNotifier([]string{"localhost:9092"}, "artifacts", nil)
	n.writer = w

	require.NoError(t, n.Notify(context.Background(), sampleEvent()))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "clean_sample.csv", string(msg.Key))

	var decoded ArtifactPublished
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, sampleEvent(), decoded)

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, map[string]string{"job_type": "basic_cleaning", "run_id": "run-1"}, headers)

	require.NoError(t, n.Close())
	assert.True(t, w.closed)
}

func TestKafkaNotifier_NotifyError(t *testing.T) {
	w := &recordingWriter{err: assert.AnError}
	n := NewKafkaNotifier([]string{"localhost:9092"}, "artifacts", nil)
	n.writer = w

	err := n.Notify(context.Background(), sampleEvent())
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "artifacts")
}
