package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formbricks/wordsim/internal/models"
	"github.com/formbricks/wordsim/internal/protocol"
)

const waitTimeout = 5 * time.Second

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (s *recordingSink) Deliver(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, event)

	return s.err
}

func (s *recordingSink) types() []protocol.MessageType {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]protocol.MessageType, len(s.events))
	for i, e := range s.events {
		out[i] = e.Message.Type
	}

	return out
}

type droppedCounter struct{ n atomic.Int32 }

func (d *droppedCounter) RecordSubscriberDropped(context.Context) { d.n.Add(1) }

func receive(t *testing.T, sub *Subscription) Event {
	t.Helper()

	select {
	case e, ok := <-sub.C:
		require.True(t, ok, "subscription closed")

		return e
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for event")

		return Event{}
	}
}

func updated(words ...string) protocol.Outbound {
	entries := make([]models.Entry, len(words))
	for i, w := range words {
		entries[i] = models.Entry{Text: w}
	}

	return protocol.Updated(entries)
}

func TestBroadcaster_FansOutInOrder(t *testing.T) {
	source := make(chan protocol.Outbound)
	sink := &recordingSink{}

	b := NewBroadcaster(source, BroadcasterOptions{})
	b.RegisterSink(sink)
	b.Start()

	sub := b.Subscribe(true)

	source <- protocol.Ready()
	source <- updated("apple")
	source <- protocol.Failure("pear", errors.New("boom"))

	assert.Equal(t, protocol.TypeReady, receive(t, sub).Message.Type)
	assert.Equal(t, protocol.TypeUpdated, receive(t, sub).Message.Type)
	assert.Equal(t, protocol.TypeError, receive(t, sub).Message.Type)

	close(source)
	b.Wait()

	assert.Equal(t, []protocol.MessageType{protocol.TypeReady, protocol.TypeUpdated, protocol.TypeError}, sink.types())

	_, ok := <-sub.C
	assert.False(t, ok, "subscription must close when the source closes")
}

func TestBroadcaster_LateSubscriberGetsReadyAndLatest(t *testing.T) {
	source := make(chan protocol.Outbound)
	b := NewBroadcaster(source, BroadcasterOptions{})
	b.Start()
	t.Cleanup(func() { close(source); b.Wait() })

	first := b.Subscribe(true)
	source <- protocol.Ready()
	source <- updated("apple", "banana")
	receive(t, first)
	receive(t, first)

	require.True(t, b.Ready())
	require.Len(t, b.Latest(), 2)

	late := b.Subscribe(true)
	assert.Equal(t, protocol.TypeReady, receive(t, late).Message.Type)

	snapshot := receive(t, late).Message
	require.Equal(t, protocol.TypeUpdated, snapshot.Type)
	require.Len(t, snapshot.Words, 2)
	assert.Equal(t, "banana", snapshot.Words[1].Word)

	live := b.Subscribe(false)
	source <- protocol.Updated(nil)
	assert.Empty(t, receive(t, live).Message.Words)
}

func TestBroadcaster_ClearResetsLatest(t *testing.T) {
	source := make(chan protocol.Outbound)
	b := NewBroadcaster(source, BroadcasterOptions{})
	b.Start()

	source <- updated("apple")
	source <- protocol.Updated(nil)
	close(source)
	b.Wait()

	assert.NotNil(t, b.Latest())
	assert.Empty(t, b.Latest())
	assert.False(t, b.Ready())
}

func TestBroadcaster_DropsSlowSubscriber(t *testing.T) {
	source := make(chan protocol.Outbound)
	dropped := &droppedCounter{}

	b := NewBroadcaster(source, BroadcasterOptions{SubscriberBuffer: 1, Metrics: dropped})
	b.Start()

	slow := b.Subscribe(true)
	fast := b.Subscribe(true)

	// buffer is SubscriberBuffer+2, so the fourth undelivered event overflows
	for i := 0; i < 4; i++ {
		source <- updated("w")
		receive(t, fast)
	}

	close(source)
	b.Wait()

	count := 0
	for range slow.C {
		count++
	}

	assert.Equal(t, 3, count)
	assert.Equal(t, int32(1), dropped.n.Load())
}

func TestBroadcaster_SinkErrorsDoNotStopDelivery(t *testing.T) {
	source := make(chan protocol.Outbound)
	sink := &recordingSink{err: errors.New("webhook down")}

	b := NewBroadcaster(source, BroadcasterOptions{})
	b.RegisterSink(sink)
	b.Start()

	source <- protocol.Ready()
	source <- updated("apple")
	close(source)
	b.Wait()

	assert.Len(t, sink.types(), 2)
}

func TestSubscription_CloseIsIdempotent(t *testing.T) {
	source := make(chan protocol.Outbound)
	b := NewBroadcaster(source, BroadcasterOptions{})
	b.Start()

	sub := b.Subscribe(true)
	sub.Close()
	sub.Close()

	_, ok := <-sub.C
	assert.False(t, ok)

	close(source)
	b.Wait()

	after := b.Subscribe(true)
	_, ok = <-after.C
	assert.False(t, ok)
}
