// Package engine implements the request serializer: a single actor that owns the embedding
// provider and the history, and applies submissions strictly one at a time in FIFO order.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/formbricks/wordsim/internal/embeddings"
	"github.com/formbricks/wordsim/internal/history"
	"github.com/formbricks/wordsim/internal/models"
	"github.com/formbricks/wordsim/internal/observability"
	"github.com/formbricks/wordsim/internal/protocol"
	"github.com/formbricks/wordsim/internal/similarity"
	"github.com/formbricks/wordsim/internal/simerrors"
)

var (
	// ErrStopped is returned by Send after the actor has shut down.
	ErrStopped = simerrors.NewUnavailableError("engine: actor stopped")
	// ErrModelUnavailable is reported for submissions received after the model failed to load.
	ErrModelUnavailable = simerrors.NewUnavailableError("embedding model unavailable")
	// ErrEmptyWord is reported for an addWord message without a word.
	ErrEmptyWord = errors.New("word must not be empty")
	// ErrInvalidEmbedding is reported when the provider returns a vector that cannot be compared.
	ErrInvalidEmbedding = errors.New("invalid embedding")
)

const defaultOutboxBuffer = 256

// Metrics receives engine measurements. Implemented by observability.Metrics.
type Metrics interface {
	RecordSubmission(ctx context.Context, outcome string, duration time.Duration)
	RecordQueueDepth(ctx context.Context, depth int)
	RecordHistorySize(ctx context.Context, size int)
}

// Options tunes the actor.
type Options struct {
	// OutboxBuffer is the capacity of the Outbox channel (default 256).
	OutboxBuffer int
	// EmbedTimeout bounds a single Embed call; 0 means no timeout.
	EmbedTimeout time.Duration
	// Metrics may be nil.
	Metrics Metrics
}

type request struct {
	id  string
	msg protocol.Inbound
}

// result is produced by the in-flight embedding goroutine.
type result struct {
	req      request
	entry    models.Entry
	err      error
	outcome  string
	started  time.Time
	span     trace.Span
	ctx      context.Context
	snapshot int
}

// Actor serializes all work on the history. Callers talk to it only through Send and Outbox.
type Actor struct {
	provider embeddings.Provider
	store    *history.Store
	opts     Options
	metrics  Metrics

	state atomic.Int32

	mu      sync.Mutex
	mailbox []request
	stopped bool
	wake    chan struct{}
	pending int           // sent but not yet answered
	idle    chan struct{} // closed when pending drops to zero

	outbox chan protocol.Outbound

	startOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}

	// owned by the run goroutine
	queue    []request
	inflight chan result
	dims     int
}

// New creates an actor for provider. The actor does nothing until Start.
func New(provider embeddings.Provider, opts Options) *Actor {
	if opts.OutboxBuffer <= 0 {
		opts.OutboxBuffer = defaultOutboxBuffer
	}

	a := &Actor{
		provider: provider,
		store:    history.NewStore(),
		opts:     opts,
		metrics:  opts.Metrics,
		wake:     make(chan struct{}, 1),
		outbox:   make(chan protocol.Outbound, opts.OutboxBuffer),
		done:     make(chan struct{}),
	}
	if a.metrics == nil {
		a.metrics = noopMetrics{}
	}

	return a
}

// State returns the current lifecycle state. Safe for concurrent use.
func (a *Actor) State() State {
	return State(a.state.Load())
}

func (a *Actor) setState(s State) {
	a.state.Store(int32(s))
}

// Outbox delivers ready, updated and error messages in emission order.
// It is closed when the actor stops.
func (a *Actor) Outbox() <-chan protocol.Outbound {
	return a.outbox
}

// Done is closed once the actor has stopped.
func (a *Actor) Done() <-chan struct{} {
	return a.done
}

// Start begins model loading and message processing. Subsequent calls are no-ops.
// Cancelling ctx stops the actor.
func (a *Actor) Start(ctx context.Context) {
	a.startOnce.Do(func() {
		runCtx, cancel := context.WithCancel(ctx)
		a.cancel = cancel

		go a.run(runCtx)
	})
}

// Stop shuts the actor down and waits for it to exit. An in-flight embedding is abandoned.
func (a *Actor) Stop() {
	a.startOnce.Do(func() {
		// Never started: mark stopped without running.
		a.mu.Lock()
		a.stopped = true
		a.mu.Unlock()
		close(a.outbox)
		close(a.done)
	})

	if a.cancel != nil {
		a.cancel()
	}

	<-a.done
}

// Send enqueues msg without waiting and returns its submission id. Messages may be sent
// before Start; they are processed once the actor runs. Only an unknown message type is
// rejected here; an empty word is reported on the outbox like any other failed submission.
func (a *Actor) Send(msg protocol.Inbound) (string, error) {
	switch msg.Type {
	case protocol.TypeAddWord, protocol.TypeClearHistory:
	default:
		return "", simerrors.NewValidationError("type", fmt.Sprintf("unknown message type %q", msg.Type))
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate submission id: %w", err)
	}

	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()

		return "", ErrStopped
	}

	a.mailbox = append(a.mailbox, request{id: id.String(), msg: msg})
	a.pending++
	a.mu.Unlock()

	select {
	case a.wake <- struct{}{}:
	default:
	}

	return id.String(), nil
}

// Drain blocks until every message sent so far has produced its outbound message, the actor
// stops, or ctx is done.
func (a *Actor) Drain(ctx context.Context) error {
	a.mu.Lock()
	if a.pending == 0 || a.stopped {
		a.mu.Unlock()

		return nil
	}

	if a.idle == nil {
		a.idle = make(chan struct{})
	}

	idle := a.idle
	a.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-a.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain: %w", ctx.Err())
	}
}

// answered records that one request has produced its outbound message.
func (a *Actor) answered() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.pending--
	if a.pending == 0 && a.idle != nil {
		close(a.idle)
		a.idle = nil
	}
}

func (a *Actor) run(ctx context.Context) {
	defer close(a.done)
	defer close(a.outbox)
	defer func() {
		a.mu.Lock()
		a.stopped = true
		a.mu.Unlock()
	}()

	a.setState(StateLoading)
	slog.Info("engine: loading embedding model", "provider", a.provider.Name())

	initDone := make(chan error, 1)
	go func() {
		initDone <- a.provider.Initialize(ctx)
	}()

	for {
		select {
		case <-ctx.Done():
			slog.Info("engine: stopped", "queued", len(a.queue), "history_size", a.store.Len())

			return
		case <-a.wake:
			a.drainMailbox(ctx)
		case err := <-initDone:
			initDone = nil
			if !a.finishLoading(ctx, err) {
				return
			}
		case res := <-a.inflight:
			a.inflight = nil
			if !a.complete(ctx, res) {
				return
			}
		}

		if !a.dispatch(ctx) {
			return
		}
	}
}

func (a *Actor) drainMailbox(ctx context.Context) {
	a.mu.Lock()
	pending := a.mailbox
	a.mailbox = nil
	a.mu.Unlock()

	a.queue = append(a.queue, pending...)
	a.metrics.RecordQueueDepth(ctx, len(a.queue))
}

func (a *Actor) finishLoading(ctx context.Context, err error) bool {
	if err != nil {
		a.setState(StateFaulted)
		slog.Error("engine: embedding model failed to load", "provider", a.provider.Name(), "error", err)

		return a.emit(ctx, protocol.Failure("", fmt.Errorf("load embedding model: %w", err)))
	}

	a.dims = a.provider.Dimensions()
	a.setState(StateReady)
	slog.Info("engine: ready", "provider", a.provider.Name(), "dimensions", a.dims)

	return a.emit(ctx, protocol.Ready())
}

// dispatch handles queued requests from the head until one is in flight, the queue is empty,
// or the head must wait for the model. Returns false when the actor should exit.
func (a *Actor) dispatch(ctx context.Context) bool {
	for a.inflight == nil && len(a.queue) > 0 {
		req := a.queue[0]
		state := a.State()

		if req.msg.Type == protocol.TypeAddWord && state == StateLoading {
			return true
		}

		a.queue = a.queue[1:]
		a.metrics.RecordQueueDepth(ctx, len(a.queue))

		reqCtx := observability.WithSubmissionID(ctx, req.id)

		switch {
		case req.msg.Type == protocol.TypeClearHistory:
			a.store.Clear()
			a.metrics.RecordHistorySize(reqCtx, 0)
			slog.DebugContext(reqCtx, "engine: history cleared")

			if !a.answer(ctx, protocol.Updated(nil)) {
				return false
			}
		case req.msg.Word == "":
			a.metrics.RecordSubmission(reqCtx, observability.OutcomeRejected, 0)
			slog.WarnContext(reqCtx, "engine: rejected empty word")

			if !a.answer(ctx, protocol.Failure("", ErrEmptyWord)) {
				return false
			}
		case state == StateFaulted:
			a.metrics.RecordSubmission(reqCtx, observability.OutcomeUnavailable, 0)

			if !a.answer(ctx, protocol.Failure(req.msg.Word, ErrModelUnavailable)) {
				return false
			}
		default:
			a.start(reqCtx, req)
		}
	}

	return true
}

// start launches the embedding for req against the current history snapshot.
func (a *Actor) start(ctx context.Context, req request) {
	a.setState(StateProcessing)

	ctx, span := observability.Tracer().Start(ctx, "engine.submission",
		trace.WithAttributes(
			attribute.String("submission.id", req.id),
			attribute.String("embedding.provider", a.provider.Name()),
		))

	snapshot := a.store.Snapshot()
	done := make(chan result, 1)
	a.inflight = done

	slog.DebugContext(ctx, "engine: processing word", "history_size", len(snapshot))

	go func() {
		res := result{req: req, started: time.Now(), span: span, ctx: ctx, snapshot: len(snapshot)}
		res.entry, res.outcome, res.err = a.compute(ctx, req.msg.Word, snapshot)
		done <- res
	}()
}

// compute embeds word and scores it against snapshot. A panic in the provider or the
// similarity math is converted into a per-word failure.
func (a *Actor) compute(ctx context.Context, word string, snapshot []models.Entry) (entry models.Entry, outcome string, err error) {
	defer func() {
		if r := recover(); r != nil {
			entry = models.Entry{}
			outcome = observability.OutcomeEmbedFailed
			err = fmt.Errorf("embed %q: panic: %v", word, r)
		}
	}()

	embedCtx := ctx
	if a.opts.EmbedTimeout > 0 {
		var cancel context.CancelFunc
		embedCtx, cancel = context.WithTimeout(ctx, a.opts.EmbedTimeout)
		defer cancel()
	}

	vector, err := a.provider.Embed(embedCtx, word)
	if err != nil {
		return models.Entry{}, observability.OutcomeEmbedFailed, fmt.Errorf("embed %q: %w", word, err)
	}

	if err := a.validate(vector); err != nil {
		return models.Entry{}, observability.OutcomeInvalidEmbedding, fmt.Errorf("embed %q: %w", word, err)
	}

	magnitude := similarity.Magnitude(vector)

	return models.Entry{
		Text:         word,
		Embedding:    vector,
		Magnitude:    magnitude,
		Similarities: similarity.AgainstHistory(vector, magnitude, snapshot),
	}, observability.OutcomeSuccess, nil
}

func (a *Actor) validate(vector []float32) error {
	if len(vector) == 0 {
		return fmt.Errorf("%w: empty vector", ErrInvalidEmbedding)
	}

	if a.dims > 0 && len(vector) != a.dims {
		return fmt.Errorf("%w: got %d dimensions, want %d", ErrInvalidEmbedding, len(vector), a.dims)
	}

	magnitude := similarity.Magnitude(vector)
	if magnitude == 0 || math.IsNaN(magnitude) || math.IsInf(magnitude, 0) {
		return fmt.Errorf("%w: magnitude %v", ErrInvalidEmbedding, magnitude)
	}

	return nil
}

func (a *Actor) complete(ctx context.Context, res result) bool {
	defer res.span.End()

	a.setState(StateReady)
	a.metrics.RecordSubmission(res.ctx, res.outcome, time.Since(res.started))

	if res.err != nil {
		res.span.RecordError(res.err)
		res.span.SetStatus(codes.Error, res.outcome)
		slog.WarnContext(res.ctx, "engine: submission failed", "outcome", res.outcome, "error", res.err)

		return a.answer(ctx, protocol.Failure(res.req.msg.Word, res.err))
	}

	a.store.Append(res.entry)
	a.metrics.RecordHistorySize(res.ctx, a.store.Len())
	res.span.SetAttributes(attribute.Int("history.size", a.store.Len()))
	slog.DebugContext(res.ctx, "engine: word added", "compared_with", res.snapshot, "history_size", a.store.Len())

	return a.answer(ctx, protocol.Updated(a.store.Snapshot()))
}

// answer emits the outbound message for one request.
func (a *Actor) answer(ctx context.Context, msg protocol.Outbound) bool {
	if !a.emit(ctx, msg) {
		return false
	}

	a.answered()

	return true
}

// emit blocks until the message is accepted or the actor is stopping.
func (a *Actor) emit(ctx context.Context, msg protocol.Outbound) bool {
	select {
	case a.outbox <- msg:
		return true
	case <-ctx.Done():
		return false
	}
}

type noopMetrics struct{}

func (noopMetrics) RecordSubmission(context.Context, string, time.Duration) {}
func (noopMetrics) RecordQueueDepth(context.Context, int)                  {}
func (noopMetrics) RecordHistorySize(context.Context, int)                 {}
