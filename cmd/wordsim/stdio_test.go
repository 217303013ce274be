package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formbricks/wordsim/internal/embeddings"
	"github.com/formbricks/wordsim/internal/engine"
	"github.com/formbricks/wordsim/internal/protocol"
)

func newTestActor(t *testing.T) *engine.Actor {
	t.Helper()

	actor := engine.New(embeddings.NewHashProvider(16), engine.Options{})
	actor.Start(context.Background())
	t.Cleanup(actor.Stop)

	return actor
}

func decodeFrames(t *testing.T, out []byte) []protocol.Outbound {
	t.Helper()

	var frames []protocol.Outbound

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		var msg protocol.Outbound
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &msg), "line: %s", scanner.Text())
		frames = append(frames, msg)
	}

	require.NoError(t, scanner.Err())

	return frames
}

func types(frames []protocol.Outbound) []protocol.MessageType {
	out := make([]protocol.MessageType, len(frames))
	for i, f := range frames {
		out[i] = f.Type
	}

	return out
}

func TestRunStdio_ProcessesAllLinesBeforeExit(t *testing.T) {
	input := strings.Join([]string{
		`{"type":"addWord","word":"apple"}`,
		`{"type":"addWord","word":"banana"}`,
		``,
		`{"type":"clearHistory"}`,
		`{"type":"addWord","word":"cherry"}`,
	}, "\n")

	var out bytes.Buffer

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, runStdio(ctx, newTestActor(t), strings.NewReader(input), &out))

	frames := decodeFrames(t, out.Bytes())
	assert.Equal(t, []protocol.MessageType{
		protocol.TypeReady,
		protocol.TypeUpdated,
		protocol.TypeUpdated,
		protocol.TypeUpdated,
		protocol.TypeUpdated,
	}, types(frames))

	require.Len(t, frames[2].Words, 2)
	assert.Equal(t, "banana", frames[2].Words[1].Word)

	_, ok := frames[2].Words[1].Similarities.Get("apple")
	assert.True(t, ok)

	assert.Empty(t, frames[3].Words)

	require.Len(t, frames[4].Words, 1)
	assert.Equal(t, "cherry", frames[4].Words[0].Word)
}

func TestRunStdio_BadLinesProduceErrorFrames(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		wantError string
	}{
		{name: "malformed json", line: `{"type":`, wantError: "malformed message"},
		{name: "unknown type", line: `{"type":"removeWord","word":"apple"}`, wantError: "type"},
		{name: "missing word", line: `{"type":"addWord"}`, wantError: "word is required"},
		{name: "whitespace word", line: `{"type":"addWord","word":"   "}`, wantError: "word is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			require.NoError(t, runStdio(ctx, newTestActor(t), strings.NewReader(tt.line+"\n"), &out))

			var failure *protocol.Outbound

			for _, f := range decodeFrames(t, out.Bytes()) {
				if f.Type == protocol.TypeError {
					failure = &f

					break
				}
			}

			require.NotNil(t, failure, "no error frame in %q", out.String())
			assert.Empty(t, failure.Word)
			assert.Contains(t, failure.Error, tt.wantError)
		})
	}
}

func TestRunStdio_RejectedLinesNeverReachTheEngine(t *testing.T) {
	input := strings.Join([]string{
		`{"type":"addWord"}`,
		`{"type":"addWord","word":"  "}`,
		`{"type":"addWord","word":" apple "}`,
	}, "\n")

	var out bytes.Buffer

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, runStdio(ctx, newTestActor(t), strings.NewReader(input), &out))

	var failures, updates []protocol.Outbound

	for _, f := range decodeFrames(t, out.Bytes()) {
		switch f.Type {
		case protocol.TypeError:
			failures = append(failures, f)
		case protocol.TypeUpdated:
			updates = append(updates, f)
		}
	}

	assert.Len(t, failures, 2)
	require.Len(t, updates, 1)
	require.Len(t, updates[0].Words, 1)
	assert.Equal(t, "apple", updates[0].Words[0].Word)
}

func TestRunStdio_CancelStopsWithoutWaitingForInput(t *testing.T) {
	reader, writer := io.Pipe()
	defer writer.Close()

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- runStdio(ctx, newTestActor(t), reader, io.Discard)
	}()

	_, err := writer.Write([]byte(`{"type":"addWord","word":"apple"}` + "\n"))
	require.NoError(t, err)

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runStdio did not return after cancel")
	}
}
