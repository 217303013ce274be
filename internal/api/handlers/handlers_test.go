package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formbricks/wordsim/internal/engine"
	"github.com/formbricks/wordsim/internal/models"
	"github.com/formbricks/wordsim/internal/protocol"
	"github.com/formbricks/wordsim/internal/service"
	"github.com/formbricks/wordsim/internal/simerrors"
)

type fakeEngine struct {
	mu    sync.Mutex
	state engine.State
	sent  []protocol.Inbound
	err   error
}

func (e *fakeEngine) Send(msg protocol.Inbound) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.err != nil {
		return "", e.err
	}

	e.sent = append(e.sent, msg)

	return "0190b2a4-1c1e-7000-8000-000000000001", nil
}

func (e *fakeEngine) State() engine.State {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.state
}

func (e *fakeEngine) messages() []protocol.Inbound {
	e.mu.Lock()
	defer e.mu.Unlock()

	return append([]protocol.Inbound(nil), e.sent...)
}

// newFeed returns a running broadcaster fed by the returned channel.
func newFeed(t *testing.T) (*service.Broadcaster, chan protocol.Outbound) {
	t.Helper()

	source := make(chan protocol.Outbound)
	b := service.NewBroadcaster(source, service.BroadcasterOptions{})
	b.Start()

	var once sync.Once
	t.Cleanup(func() {
		once.Do(func() { close(source) })
		b.Wait()
	})

	return b, source
}

func newTestAPI(t *testing.T, eng *fakeEngine, feed Feed) humatest.TestAPI {
	t.Helper()

	_, api := humatest.New(t, huma.DefaultConfig("wordsim test", "1.0.0"))
	NewWordsHandler(eng, feed).Register(api)

	return api
}

func TestWordsHandler_AddWord(t *testing.T) {
	feed, _ := newFeed(t)

	tests := []struct {
		name       string
		state      engine.State
		sendErr    error
		body       any
		wantStatus int
		wantWord   string
	}{
		{name: "accepted and trimmed", state: engine.StateReady, body: map[string]any{"word": "  apple "}, wantStatus: http.StatusAccepted, wantWord: "apple"},
		{name: "accepted while loading", state: engine.StateLoading, body: map[string]any{"word": "pear"}, wantStatus: http.StatusAccepted, wantWord: "pear"},
		{name: "empty word", state: engine.StateReady, body: map[string]any{"word": ""}, wantStatus: http.StatusUnprocessableEntity},
		{name: "whitespace word", state: engine.StateReady, body: map[string]any{"word": "   "}, wantStatus: http.StatusUnprocessableEntity},
		{name: "missing word", state: engine.StateReady, body: map[string]any{}, wantStatus: http.StatusUnprocessableEntity},
		{name: "faulted engine", state: engine.StateFaulted, body: map[string]any{"word": "apple"}, wantStatus: http.StatusServiceUnavailable},
		{name: "stopped engine", state: engine.StateReady, sendErr: engine.ErrStopped, body: map[string]any{"word": "apple"}, wantStatus: http.StatusServiceUnavailable},
		{name: "unexpected send error", state: engine.StateReady, sendErr: errors.New("boom"), body: map[string]any{"word": "apple"}, wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := &fakeEngine{state: tt.state, err: tt.sendErr}
			api := newTestAPI(t, eng, feed)

			resp := api.Post("/v1/words", tt.body)
			require.Equal(t, tt.wantStatus, resp.Code, resp.Body.String())

			if tt.wantWord == "" {
				return
			}

			var body struct {
				SubmissionID string `json:"submissionId"`
			}
			require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
			assert.NotEmpty(t, body.SubmissionID)

			sent := eng.messages()
			require.Len(t, sent, 1)
			assert.Equal(t, protocol.AddWord(tt.wantWord), sent[0])
		})
	}
}

func TestWordsHandler_UnavailableEngine(t *testing.T) {
	feed, _ := newFeed(t)

	tests := []struct {
		name       string
		state      engine.State
		sendErr    error
		wantDetail string
		wantSent   int
	}{
		{name: "faulted before send", state: engine.StateFaulted, wantDetail: "embedding model unavailable"},
		{name: "stopped on send", state: engine.StateReady, sendErr: engine.ErrStopped, wantDetail: "engine: actor stopped"},
		{name: "wrapped unavailable on send", state: engine.StateReady, sendErr: fmt.Errorf("send: %w", simerrors.NewUnavailableError("model reloading")), wantDetail: "model reloading"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := &fakeEngine{state: tt.state, err: tt.sendErr}
			api := newTestAPI(t, eng, feed)

			resp := api.Post("/v1/words", map[string]any{"word": "apple"})
			require.Equal(t, http.StatusServiceUnavailable, resp.Code, resp.Body.String())
			assert.Contains(t, resp.Body.String(), tt.wantDetail)
			assert.Len(t, eng.messages(), tt.wantSent)
		})
	}
}

func TestWordsHandler_ClearHistory(t *testing.T) {
	feed, _ := newFeed(t)

	for _, state := range []engine.State{engine.StateReady, engine.StateLoading, engine.StateFaulted} {
		t.Run(state.String(), func(t *testing.T) {
			eng := &fakeEngine{state: state}
			api := newTestAPI(t, eng, feed)

			resp := api.Delete("/v1/words")
			require.Equal(t, http.StatusAccepted, resp.Code, resp.Body.String())
			assert.Equal(t, []protocol.Inbound{protocol.ClearHistory()}, eng.messages())
		})
	}
}

func TestWordsHandler_SendMessage(t *testing.T) {
	feed, _ := newFeed(t)

	tests := []struct {
		name       string
		body       string
		sendErr    error
		wantStatus int
		want       protocol.Inbound
	}{
		{name: "addWord", body: `{"type":"addWord","word":" kiwi "}`, wantStatus: http.StatusAccepted, want: protocol.AddWord("kiwi")},
		{name: "clearHistory", body: `{"type":"clearHistory"}`, wantStatus: http.StatusAccepted, want: protocol.ClearHistory()},
		{name: "unknown type", body: `{"type":"removeWord"}`, wantStatus: http.StatusBadRequest},
		{name: "malformed", body: `{"type":`, wantStatus: http.StatusBadRequest},
		{name: "empty word", body: `{"type":"addWord","word":""}`, wantStatus: http.StatusBadRequest},
		{name: "engine validation", body: `{"type":"clearHistory"}`, sendErr: simerrors.NewValidationError("type", "nope"), wantStatus: http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := &fakeEngine{state: engine.StateReady, err: tt.sendErr}
			api := newTestAPI(t, eng, feed)

			resp := api.Post("/v1/messages", "Content-Type: application/json", strings.NewReader(tt.body))
			require.Equal(t, tt.wantStatus, resp.Code, resp.Body.String())

			if tt.wantStatus == http.StatusAccepted {
				assert.Equal(t, []protocol.Inbound{tt.want}, eng.messages())
			}
		})
	}
}

func TestWordsHandler_List(t *testing.T) {
	feed, source := newFeed(t)

	sims := models.NewSimilarities(1)
	sims.Set("apple", 0.5)

	source <- protocol.Ready()
	source <- protocol.Updated([]models.Entry{{Text: "apple"}, {Text: "banana", Similarities: sims}})

	require.Eventually(t, func() bool { return len(feed.Latest()) == 2 }, time.Second, time.Millisecond)

	api := newTestAPI(t, &fakeEngine{state: engine.StateReady}, feed)

	resp := api.Get("/v1/words")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{
		"state": "ready",
		"ready": true,
		"total": 2,
		"words": [
			{"word": "apple", "similarities": {}},
			{"word": "banana", "similarities": {"apple": 0.5}}
		]
	}`, stripSchema(t, resp.Body.Bytes()))

	resp = api.Get("/v1/words?offset=1&limit=1")
	require.Equal(t, http.StatusOK, resp.Code)

	var body ListWordsOutput
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body.Body))
	require.Len(t, body.Body.Words, 1)
	assert.Equal(t, "banana", body.Body.Words[0].Word)
	assert.Equal(t, 2, body.Body.Total)

	resp = api.Get("/v1/words?offset=5")
	require.Equal(t, http.StatusOK, resp.Code)
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body.Body))
	assert.Empty(t, body.Body.Words)
}

// stripSchema drops the $schema link huma adds to response bodies.
func stripSchema(t *testing.T, data []byte) string {
	t.Helper()

	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &m))
	delete(m, "$schema")

	out, err := json.Marshal(m)
	require.NoError(t, err)

	return string(out)
}
