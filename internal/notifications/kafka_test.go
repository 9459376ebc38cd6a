package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	kgo "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kgo.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kgo.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestNewKafkaPublisher_DisabledWithoutBrokers(t *testing.T) {
	assert.Nil(t, NewKafkaPublisher(nil, "campusboard.events"))
	assert.Nil(t, NewKafkaPublisher([]string{"localhost:9092"}, " "))
	assert.NotNil(t, NewKafkaPublisher([]string{"localhost:9092"}, "campusboard.events"))

	var p *KafkaPublisher
	assert.NoError(t, p.Close())
}

func TestKafkaPublisher_WritesKeyedJSON(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{w: w}

	evt := NewEvent(EventPostVoteUpdated, map[string]int{"postId": 4, "score": 2}, Audience{Broadcast: true})
	require.NoError(t, p.Publish(context.Background(), evt))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, EventPostVoteUpdated, string(msg.Key))
	var body map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &body))
	assert.Equal(t, EventPostVoteUpdated, body["type"])
	assert.Equal(t, float64(2), body["payload"].(map[string]any)["score"])

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_PropagatesWriteError(t *testing.T) {
	p := &KafkaPublisher{w: &fakeWriter{err: errors.New("leader not available")}}
	err := p.Publish(context.Background(), NewEvent(EventPostCreated, nil, Audience{}))
	assert.EqualError(t, err, "leader not available")
}
