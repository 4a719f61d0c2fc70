package stream

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"craftfolio/analytics/models"
)

// scriptedReader hands out a fixed set of messages, then blocks until the
// context is cancelled.
type scriptedReader struct {
	mu        sync.Mutex
	messages  []kafka.Message
	committed []kafka.Message
	closed    bool
}

func (r *scriptedReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.messages) > 0 {
		msg := r.messages[0]
		r.messages = r.messages[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *scriptedReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *scriptedReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *scriptedReader) committedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

type capturingSink struct {
	mu     sync.Mutex
	events []models.Event
}

func (s *capturingSink) Ingest(_ context.Context, events []models.Event) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	ids := make([]string, len(events))
	return ids, nil
}

func (s *capturingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func messageFor(t *testing.T, e models.Event) kafka.Message {
	t.Helper()
	payload, err := json.Marshal(e)
	require.NoError(t, err)
	return kafka.Message{Value: payload}
}

func TestConsumerFeedsSinkAndCommits(t *testing.T) {
	reader := &scriptedReader{messages: []kafka.Message{
		messageFor(t, models.Event{Name: models.EventPageView, SessionID: "s1", PagePath: "/home"}),
		messageFor(t, models.Event{Name: "click", SessionID: "s1"}),
	}}
	sink := &capturingSink{}
	c := &Consumer{reader: reader, sink: sink, workers: 1}

	c.Start()
	waitFor(t, func() bool { return sink.count() == 2 && reader.committedCount() == 2 })
	require.NoError(t, c.Stop())

	assert.True(t, reader.closed)
	assert.Equal(t, models.EventPageView, sink.events[0].Name)
}

func TestConsumerCommitsMalformedMessages(t *testing.T) {
	reader := &scriptedReader{messages: []kafka.Message{
		{Value: []byte("not json")},
		messageFor(t, models.Event{Name: "click", SessionID: "s1"}),
	}}
	sink := &capturingSink{}
	c := &Consumer{reader: reader, sink: sink, workers: 1}

	c.Start()
	waitFor(t, func() bool { return reader.committedCount() == 2 })
	require.NoError(t, c.Stop())

	assert.Equal(t, 1, sink.count(), "only the valid message reaches the sink")
}
