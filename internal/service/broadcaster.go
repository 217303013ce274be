package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/formbricks/wordsim/internal/models"
	"github.com/formbricks/wordsim/internal/protocol"
)

const (
	// defaultSubscriberBuffer is the per-subscriber backlog before the subscriber is dropped.
	defaultSubscriberBuffer = 64
	// sinkChanBufferSize is the buffer size of each sink queue (events are dropped when full).
	sinkChanBufferSize = 1024
	defaultSinkTimeout = 10 * time.Second
)

// Event is one engine message as seen by subscribers and sinks.
type Event struct {
	ID        uuid.UUID // Unique event id (UUID v7, time-ordered)
	Timestamp int64     // Unix timestamp
	Message   protocol.Outbound
}

// Sink receives every event in order (webhooks). Errors are logged and never reach the engine.
type Sink interface {
	Deliver(ctx context.Context, event Event) error
}

// BroadcasterMetrics records fan-out measurements. May be nil.
type BroadcasterMetrics interface {
	RecordSubscriberDropped(ctx context.Context)
}

// BroadcasterOptions tunes a Broadcaster.
type BroadcasterOptions struct {
	SubscriberBuffer int
	SinkTimeout      time.Duration
	Metrics          BroadcasterMetrics
}

// Subscription is a live view of the event stream. C is closed when the subscriber falls
// behind, is closed, or the broadcaster stops.
type Subscription struct {
	C <-chan Event

	id uint64
	b  *Broadcaster
}

// Close unsubscribes. Safe to call more than once.
func (s *Subscription) Close() {
	s.b.unsubscribe(s.id)
}

type sinkWorker struct {
	sink   Sink
	events chan Event
}

// Broadcaster consumes the engine outbox in a single goroutine, remembers readiness and the
// latest history snapshot, and fans every message out to subscribers and sinks.
type Broadcaster struct {
	source      <-chan protocol.Outbound
	bufferSize  int
	sinkTimeout time.Duration
	metrics     BroadcasterMetrics

	mu          sync.Mutex
	ready       bool
	latest      []models.EntryView
	subscribers map[uint64]chan Event
	nextID      uint64
	stopped     bool

	sinks []*sinkWorker

	sinkWG sync.WaitGroup
	done   chan struct{}
}

// NewBroadcaster creates a broadcaster over source. Call Start after registering sinks.
func NewBroadcaster(source <-chan protocol.Outbound, opts BroadcasterOptions) *Broadcaster {
	if opts.SubscriberBuffer <= 0 {
		opts.SubscriberBuffer = defaultSubscriberBuffer
	}

	if opts.SinkTimeout <= 0 {
		opts.SinkTimeout = defaultSinkTimeout
	}

	return &Broadcaster{
		source:      source,
		bufferSize:  opts.SubscriberBuffer,
		sinkTimeout: opts.SinkTimeout,
		metrics:     opts.Metrics,
		latest:      []models.EntryView{},
		subscribers: make(map[uint64]chan Event),
		done:        make(chan struct{}),
	}
}

// RegisterSink registers a sink (webhook, etc.).
// Must only be called during startup, before Start.
func (b *Broadcaster) RegisterSink(sink Sink) {
	b.sinks = append(b.sinks, &sinkWorker{sink: sink, events: make(chan Event, sinkChanBufferSize)})
}

// Start launches the fan-out worker and one worker per sink.
func (b *Broadcaster) Start() {
	for _, w := range b.sinks {
		b.sinkWG.Add(1)
		go b.runSink(w)
	}

	go b.run()
}

// Done is closed when the source has been drained and all sinks have finished.
func (b *Broadcaster) Done() <-chan struct{} {
	return b.done
}

// Wait blocks until the source is closed and every queued sink delivery has finished.
func (b *Broadcaster) Wait() {
	<-b.done
}

// Ready reports whether the engine has announced readiness.
func (b *Broadcaster) Ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.ready
}

// Latest returns the most recent history snapshot (empty before the first update).
func (b *Broadcaster) Latest() []models.EntryView {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.snapshotLocked()
}

// Subscribe registers a subscriber. With replay, a late subscriber first receives ready (when
// the engine is ready) and the latest snapshot, so it never starts from an unknown state.
func (b *Broadcaster) Subscribe(replay bool) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.bufferSize+2)
	if b.stopped {
		close(ch)

		return &Subscription{C: ch, b: b}
	}

	if replay && b.ready {
		ch <- newEvent(protocol.Ready())
		ch <- newEvent(protocol.Outbound{Type: protocol.TypeUpdated, Words: b.snapshotLocked()})
	}

	b.nextID++
	b.subscribers[b.nextID] = ch

	return &Subscription{C: ch, id: b.nextID, b: b}
}

// snapshotLocked copies the latest snapshot. Callers hold b.mu.
func (b *Broadcaster) snapshotLocked() []models.EntryView {
	out := make([]models.EntryView, len(b.latest))
	copy(out, b.latest)

	return out
}

func (b *Broadcaster) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subscribers[id]; ok {
		delete(b.subscribers, id)
		close(ch)
	}
}

func newEvent(msg protocol.Outbound) Event {
	return Event{
		ID:        uuid.Must(uuid.NewV7()),
		Timestamp: time.Now().Unix(),
		Message:   msg,
	}
}

// run reads the source until it is closed. It is the only writer of the broadcaster state.
func (b *Broadcaster) run() {
	defer func() {
		for _, w := range b.sinks {
			close(w.events)
		}

		b.sinkWG.Wait()
		close(b.done)
	}()

	for msg := range b.source {
		event := newEvent(msg)
		b.publish(event)

		for _, w := range b.sinks {
			select {
			case w.events <- event:
			default:
				slog.Warn("Sink queue full, event dropped", "event_id", event.ID, "event_type", msg.Type)
			}
		}
	}

	b.mu.Lock()
	b.stopped = true
	for id, ch := range b.subscribers {
		delete(b.subscribers, id)
		close(ch)
	}
	b.mu.Unlock()

	slog.Debug("Broadcaster: source closed")
}

func (b *Broadcaster) publish(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch event.Message.Type {
	case protocol.TypeReady:
		b.ready = true
	case protocol.TypeUpdated:
		b.latest = event.Message.Words
		if b.latest == nil {
			b.latest = []models.EntryView{}
		}
	case protocol.TypeError:
	}

	for id, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			// A subscriber that misses a frame can no longer trust its view; disconnect it.
			delete(b.subscribers, id)
			close(ch)
			slog.Warn("Subscriber fell behind, disconnected", "subscriber_id", id, "event_id", event.ID)

			if b.metrics != nil {
				b.metrics.RecordSubscriberDropped(context.Background())
			}
		}
	}
}

// runSink delivers events to one sink in order, each bounded by the sink timeout.
func (b *Broadcaster) runSink(w *sinkWorker) {
	defer b.sinkWG.Done()
	bgCtx := context.Background()

	for event := range w.events {
		ctx, cancel := context.WithTimeout(bgCtx, b.sinkTimeout)
		if err := w.sink.Deliver(ctx, event); err != nil {
			slog.Warn("Sink delivery failed", "event_id", event.ID, "event_type", event.Message.Type, "error", err)
		}
		cancel()
	}
}
