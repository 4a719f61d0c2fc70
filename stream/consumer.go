package stream

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"craftfolio/analytics/config"
	"craftfolio/analytics/models"
)

// Sink is where decoded events go. The ingest pipeline satisfies it.
type Sink interface {
	Ingest(ctx context.Context, events []models.Event) ([]string, error)
}

// Consumer reads tracking events from a Kafka topic and feeds them into
// the ingest pipeline. It is an optional edge: deployments without brokers
// configured never construct one.
type Consumer struct {
	reader  fetcher
	sink    Sink
	workers int

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// fetcher is the slice of *kafka.Reader the workers use, extracted so
// tests can drive the loop without a broker.
type fetcher interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

func NewConsumer(cfg config.KafkaConfig, sink Sink) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 10e3,
		MaxBytes: 10e6,
		MaxWait:  time.Second,
	})
	workers := cfg.Workers
	if workers <= 0 {
		workers = 2
	}
	return &Consumer{reader: reader, sink: sink, workers: workers}
}

// Start launches the worker goroutines and returns immediately.
func (c *Consumer) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go func(id int) {
			defer c.wg.Done()
			c.worker(ctx, id)
		}(i)
	}
	log.Info().Int("workers", c.workers).Msg("kafka consumer started")
}

// Stop cancels the workers, waits for them, and closes the reader.
func (c *Consumer) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	return c.reader.Close()
}

func (c *Consumer) worker(ctx context.Context, id int) {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			log.Warn().Err(err).Int("worker", id).Msg("kafka fetch failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		var event models.Event
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			// A malformed message is committed anyway, otherwise the
			// partition would wedge on it forever.
			log.Warn().Err(err).Int("worker", id).Msg("malformed kafka message skipped")
			c.commit(ctx, msg, id)
			continue
		}

		if _, err := c.sink.Ingest(ctx, []models.Event{event}); err != nil {
			var verr *models.ValidationError
			if errors.As(err, &verr) {
				log.Warn().Err(err).Int("worker", id).Msg("invalid event from kafka skipped")
			} else {
				log.Error().Err(err).Int("worker", id).Msg("kafka event ingest failed")
			}
		}
		c.commit(ctx, msg, id)
	}
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message, id int) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil && !errors.Is(err, context.Canceled) {
		log.Warn().Err(err).Int("worker", id).Msg("kafka commit failed")
	}
}
