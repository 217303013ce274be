package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/formbricks/wordsim/internal/engine"
	"github.com/formbricks/wordsim/internal/models"
	"github.com/formbricks/wordsim/internal/observability"
	"github.com/formbricks/wordsim/internal/protocol"
	"github.com/formbricks/wordsim/internal/service"
	"github.com/formbricks/wordsim/internal/simerrors"
)

// Engine is the part of the actor the API drives.
type Engine interface {
	Send(msg protocol.Inbound) (string, error)
	State() engine.State
}

// Feed exposes the broadcaster's view of the engine output.
type Feed interface {
	Ready() bool
	Latest() []models.EntryView
	Subscribe(replay bool) *service.Subscription
}

// WordsHandler serves the word submission API.
type WordsHandler struct {
	engine Engine
	feed   Feed
}

// NewWordsHandler creates a new words handler.
func NewWordsHandler(engine Engine, feed Feed) *WordsHandler {
	return &WordsHandler{engine: engine, feed: feed}
}

// AddWordInput is the POST /v1/words request.
type AddWordInput struct {
	Body struct {
		Word string `json:"word" minLength:"1" doc:"Word or phrase to embed; surrounding whitespace is trimmed" example:"apple"`
	}
}

// MessageInput is the POST /v1/messages request: one raw protocol frame.
type MessageInput struct {
	RawBody []byte `contentType:"application/json"`
}

// SubmissionOutput acknowledges an accepted request. The result arrives on /v1/events.
type SubmissionOutput struct {
	Body struct {
		SubmissionID string `json:"submissionId" doc:"Id of the queued request (UUID v7)"`
	}
}

// ListWordsInput pages through the latest snapshot.
type ListWordsInput struct {
	Limit  int `query:"limit" minimum:"0" maximum:"10000" doc:"Maximum entries to return (0 = all)"`
	Offset int `query:"offset" minimum:"0" doc:"Entries to skip"`
}

// ListWordsOutput is the latest history snapshot.
type ListWordsOutput struct {
	Body struct {
		State string             `json:"state" enum:"uninitialized,loading,ready,processing,faulted"`
		Ready bool               `json:"ready"`
		Total int                `json:"total"`
		Words []models.EntryView `json:"words"`
	}
}

// Register adds the words operations to api.
func (h *WordsHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "add-word",
		Method:        http.MethodPost,
		Path:          "/v1/words",
		Summary:       "Submit a word",
		Description:   "Queues the word for embedding. Submissions are applied strictly in arrival order.",
		Tags:          []string{"Words"},
		DefaultStatus: http.StatusAccepted,
	}, h.AddWord)

	huma.Register(api, huma.Operation{
		OperationID:   "clear-history",
		Method:        http.MethodDelete,
		Path:          "/v1/words",
		Summary:       "Clear the history",
		Description:   "Queued behind any submission already waiting, so ordering with submissions is preserved.",
		Tags:          []string{"Words"},
		DefaultStatus: http.StatusAccepted,
	}, h.ClearHistory)

	huma.Register(api, huma.Operation{
		OperationID: "list-words",
		Method:      http.MethodGet,
		Path:        "/v1/words",
		Summary:     "Latest history snapshot",
		Tags:        []string{"Words"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID:   "send-message",
		Method:        http.MethodPost,
		Path:          "/v1/messages",
		Summary:       "Send a raw protocol message",
		Description:   `Accepts {"type":"addWord","word":...} or {"type":"clearHistory"}.`,
		Tags:          []string{"Messages"},
		DefaultStatus: http.StatusAccepted,
	}, h.SendMessage)
}

// AddWord handles POST /v1/words.
func (h *WordsHandler) AddWord(ctx context.Context, input *AddWordInput) (*SubmissionOutput, error) {
	msg := protocol.AddWord(input.Body.Word)
	if err := msg.Validate(); err != nil {
		return nil, huma.Error422UnprocessableEntity(err.Error())
	}

	return h.submit(ctx, msg)
}

// ClearHistory handles DELETE /v1/words.
func (h *WordsHandler) ClearHistory(ctx context.Context, _ *struct{}) (*SubmissionOutput, error) {
	return h.submit(ctx, protocol.ClearHistory())
}

// SendMessage handles POST /v1/messages.
func (h *WordsHandler) SendMessage(ctx context.Context, input *MessageInput) (*SubmissionOutput, error) {
	msg, err := protocol.DecodeInbound(input.RawBody)
	if err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}

	return h.submit(ctx, msg)
}

// List handles GET /v1/words.
func (h *WordsHandler) List(_ context.Context, input *ListWordsInput) (*ListWordsOutput, error) {
	words := h.feed.Latest()

	out := &ListWordsOutput{}
	out.Body.State = h.engine.State().String()
	out.Body.Ready = h.feed.Ready()
	out.Body.Total = len(words)
	out.Body.Words = page(words, input.Offset, input.Limit)

	return out, nil
}

func page(words []models.EntryView, offset, limit int) []models.EntryView {
	if offset >= len(words) {
		return []models.EntryView{}
	}

	words = words[offset:]
	if limit > 0 && limit < len(words) {
		words = words[:limit]
	}

	return words
}

func (h *WordsHandler) submit(ctx context.Context, msg protocol.Inbound) (*SubmissionOutput, error) {
	if msg.Type == protocol.TypeAddWord && h.engine.State() == engine.StateFaulted {
		return nil, submitError(ctx, msg, engine.ErrModelUnavailable)
	}

	id, err := h.engine.Send(msg)
	if err != nil {
		return nil, submitError(ctx, msg, err)
	}

	slog.InfoContext(observability.WithSubmissionID(ctx, id), "submission accepted", "type", msg.Type)

	out := &SubmissionOutput{}
	out.Body.SubmissionID = id

	return out, nil
}

// submitError maps an engine error to its HTTP status.
func submitError(ctx context.Context, msg protocol.Inbound, err error) error {
	switch {
	case errors.Is(err, simerrors.ErrValidation):
		return huma.Error422UnprocessableEntity(err.Error())
	case errors.Is(err, simerrors.ErrUnavailable):
		return huma.Error503ServiceUnavailable(err.Error())
	default:
		slog.ErrorContext(ctx, "submit message", "type", msg.Type, "error", err)

		return huma.Error500InternalServerError("failed to submit message")
	}
}
