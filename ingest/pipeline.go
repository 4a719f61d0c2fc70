package ingest

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"craftfolio/analytics/config"
	"craftfolio/analytics/metrics"
	"craftfolio/analytics/models"
	"craftfolio/analytics/store"
	"craftfolio/analytics/tracker"
)

// Pipeline is the ingestion edge: it validates, samples, stamps and fans
// incoming events into the session tracker, the realtime feed, and an
// asynchronous store writer. Callers never block on the durable store; a
// store outage queues batches locally and retries with backoff.
type Pipeline struct {
	store    store.EventStore
	tracker  *tracker.Tracker
	realtime *Realtime
	cfg      config.IngestConfig

	queue chan []models.Event

	// sample is swappable so tests can pin the sampling decision.
	sample func() float64

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func NewPipeline(s store.EventStore, tr *tracker.Tracker, rt *Realtime, cfg config.IngestConfig) *Pipeline {
	return &Pipeline{
		store:    s,
		tracker:  tr,
		realtime: rt,
		cfg:      cfg,
		queue:    make(chan []models.Event, cfg.QueueSize),
		sample:   rand.Float64,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the store writer. Stop drains nothing: queued batches
// still in flight at shutdown are lost, which the at-least-once contract
// does not cover.
func (p *Pipeline) Start() {
	go p.writer()
}

func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
	<-p.done
}

// Ingest accepts a batch from a producer. Validation failures reject the
// whole batch before any side effect; accepted events are sampled, stamped
// with ids, fed to the session tracker, and queued for the store. Returns
// the assigned ids of forwarded events.
func (p *Pipeline) Ingest(ctx context.Context, events []models.Event) ([]string, error) {
	for i := range events {
		if err := events[i].Validate(); err != nil {
			return nil, err
		}
	}

	kept := make([]models.Event, 0, len(events))
	ids := make([]string, 0, len(events))
	now := time.Now().UTC()
	for i := range events {
		// Sampling happens before any forwarding, so a sampled-out event is
		// invisible to session timing as well as to storage.
		if p.cfg.SampleRate < 1 && p.sample() >= p.cfg.SampleRate {
			metrics.EventsSampledOut.Inc()
			continue
		}
		e := events[i]
		if e.EventID == "" {
			e.EventID = uuid.New().String()
		}
		if e.Timestamp.IsZero() {
			e.Timestamp = now
		}
		kept = append(kept, e)
		ids = append(ids, e.EventID)
	}
	if len(kept) == 0 {
		return ids, nil
	}

	for i := range kept {
		p.tracker.OnEvent(&kept[i])
	}
	if p.realtime != nil {
		p.realtime.Publish(ctx, kept)
	}

	select {
	case p.queue <- kept:
		metrics.EventsIngested.Add(float64(len(kept)))
	default:
		metrics.EventsDropped.Add(float64(len(kept)))
		log.Error().Int("count", len(kept)).Msg("ingest queue full, dropping batch")
	}
	return ids, nil
}

// writer drains the queue into the event store, retrying transient
// failures with linear backoff before giving a batch up.
func (p *Pipeline) writer() {
	defer close(p.done)
	for {
		select {
		case <-p.stop:
			return
		case batch := <-p.queue:
			p.flush(batch)
		}
	}
}

func (p *Pipeline) flush(batch []models.Event) {
	var err error
	for attempt := 1; attempt <= p.cfg.MaxRetries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.StoreTimeout)
		err = p.store.AppendBatch(ctx, batch)
		cancel()
		if err == nil {
			return
		}
		log.Warn().Err(err).
			Int("attempt", attempt).
			Int("count", len(batch)).
			Msg("event store append failed, backing off")
		select {
		case <-p.stop:
			return
		case <-time.After(time.Duration(attempt) * p.cfg.RetryBackoff):
		}
	}
	metrics.EventsDropped.Add(float64(len(batch)))
	log.Error().Err(err).Int("count", len(batch)).Msg("giving up on batch after retries")
}
