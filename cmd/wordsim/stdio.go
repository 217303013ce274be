package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/formbricks/wordsim/internal/config"
	"github.com/formbricks/wordsim/internal/observability"
	"github.com/formbricks/wordsim/internal/protocol"
)

// maxLineBytes bounds a single input line.
const maxLineBytes = 1 << 20

// lineEngine is the part of the engine the stdio loop drives.
type lineEngine interface {
	Send(msg protocol.Inbound) (string, error)
	Outbox() <-chan protocol.Outbound
	Drain(ctx context.Context) error
	Stop()
}

func runStdioCommand(ctx context.Context, in io.Reader, out, errOut io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	observability.SetupLogging(errOut, cfg.LogLevel)

	c, err := newCore(ctx, cfg)
	if err != nil {
		return err
	}

	c.actor.Start(context.WithoutCancel(ctx))

	runErr := runStdio(ctx, c.actor, in, out)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := c.shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}

	return runErr
}

// lineWriter serializes frames to out, one JSON object per line.
type lineWriter struct {
	mu     sync.Mutex
	enc    *json.Encoder
	failed bool
}

func (w *lineWriter) write(msg protocol.Outbound) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.failed {
		return
	}

	if err := w.enc.Encode(msg); err != nil {
		// Keep consuming the outbox so the engine never blocks on a dead reader.
		w.failed = true
		slog.Error("stdio: write output", "error", err)
	}
}

// runStdio feeds each input line to the engine and writes every outbound message to out.
// Lines that fail to decode or validate are answered with an error frame immediately. At end of
// input it waits for all accepted messages to be answered, then stops the engine.
// Cancelling ctx stops the engine without waiting.
func runStdio(ctx context.Context, engine lineEngine, in io.Reader, out io.Writer) error {
	w := &lineWriter{enc: json.NewEncoder(out)}

	written := make(chan struct{})
	go func() {
		defer close(written)

		for msg := range engine.Outbox() {
			w.write(msg)
		}
	}()

	lines := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)

		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)

			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}

		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			slog.Info("stdio: interrupted")
			engine.Stop()
			<-written

			return nil
		case line, ok := <-lines:
			if !ok {
				return finishStdio(ctx, engine, readErr, written)
			}

			handleLine(engine, w, line)
		}
	}
}

func handleLine(engine lineEngine, w *lineWriter, line []byte) {
	if len(bytes.TrimSpace(line)) == 0 {
		return
	}

	msg, err := protocol.DecodeInbound(line)
	if err != nil {
		w.write(protocol.Failure("", err))

		return
	}

	id, err := engine.Send(msg)
	if err != nil {
		w.write(protocol.Failure(msg.Word, err))

		return
	}

	slog.Debug("stdio: message accepted", "submission_id", id, "type", msg.Type)
}

func finishStdio(ctx context.Context, engine lineEngine, readErr <-chan error, written <-chan struct{}) error {
	var scanErr error
	select {
	case scanErr = <-readErr:
	default:
	}

	drainErr := engine.Drain(ctx)
	if errors.Is(drainErr, context.Canceled) {
		drainErr = nil
	}

	engine.Stop()
	<-written

	if scanErr != nil {
		return fmt.Errorf("read input: %w", scanErr)
	}

	return drainErr
}
