// Package notify delivers engine messages to an external webhook endpoint.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	standardwebhooks "github.com/standard-webhooks/standard-webhooks/libraries/go"

	"github.com/formbricks/wordsim/internal/protocol"
	"github.com/formbricks/wordsim/internal/service"
)

// ErrEndpointGone is returned once the endpoint has answered 410 Gone; the sink stays disabled.
var ErrEndpointGone = errors.New("webhook endpoint returned 410 Gone")

const (
	defaultRetryMax = 3
	eventTypePrefix = "wordsim."
)

// Payload is the JSON body POSTed to the endpoint.
type Payload struct {
	Type      string            `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Data      protocol.Outbound `json:"data"`
}

// DeliveryMetrics records webhook delivery outcomes. May be nil.
type DeliveryMetrics interface {
	RecordWebhookDelivery(ctx context.Context, outcome string, duration time.Duration)
}

// Options configures a WebhookSink.
type Options struct {
	URL    string
	Secret string // Standard Webhooks signing secret (whsec_...)
	// RetryMax is the number of retries for connection errors and 5xx/429 responses (default 3).
	RetryMax int
	Timeout  time.Duration // per attempt; default 15s
	Metrics  DeliveryMetrics
}

// WebhookSink signs and POSTs every engine message (Standard Webhooks).
type WebhookSink struct {
	url      string
	signer   *standardwebhooks.Webhook
	client   *http.Client
	metrics  DeliveryMetrics
	disabled atomic.Bool
}

var _ service.Sink = (*WebhookSink)(nil)

// NewWebhookSink validates the secret and builds the retrying HTTP client.
// Redirects are not followed.
func NewWebhookSink(opts Options) (*WebhookSink, error) {
	if opts.URL == "" {
		return nil, errors.New("webhook url is required")
	}

	signer, err := standardwebhooks.NewWebhook(opts.Secret)
	if err != nil {
		return nil, fmt.Errorf("create webhook signer: %w", err)
	}

	if opts.RetryMax <= 0 {
		opts.RetryMax = defaultRetryMax
	}

	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = opts.RetryMax
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.Logger = nil
	rc.HTTPClient.Timeout = opts.Timeout
	rc.HTTPClient.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	// Return the last response instead of an error so the status can be inspected.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &WebhookSink{
		url:     opts.URL,
		signer:  signer,
		client:  rc.StandardClient(),
		metrics: opts.Metrics,
	}, nil
}

// Deliver signs and POSTs event. On 410 Gone the sink disables itself.
func (s *WebhookSink) Deliver(ctx context.Context, event service.Event) error {
	if s.disabled.Load() {
		return ErrEndpointGone
	}

	start := time.Now()
	err := s.send(ctx, event)

	outcome := "success"
	if err != nil {
		outcome = "failed"
	}

	if s.metrics != nil {
		s.metrics.RecordWebhookDelivery(ctx, outcome, time.Since(start))
	}

	return err
}

func (s *WebhookSink) send(ctx context.Context, event service.Event) error {
	payload := Payload{
		Type:      eventTypePrefix + string(event.Message.Type),
		Timestamp: time.Unix(event.Timestamp, 0).UTC(),
		Data:      event.Message,
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	messageID := event.ID.String()
	timestamp := time.Now()

	signature, err := s.signer.Sign(messageID, timestamp, payloadJSON)
	if err != nil {
		return fmt.Errorf("sign webhook: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payloadJSON))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(standardwebhooks.HeaderWebhookID, messageID)
	req.Header.Set(standardwebhooks.HeaderWebhookSignature, signature)
	req.Header.Set(standardwebhooks.HeaderWebhookTimestamp, strconv.FormatInt(timestamp.Unix(), 10))

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Warn("failed to close webhook response body", "event_id", messageID, "error", closeErr)
		}
	}()

	if resp.StatusCode == http.StatusGone {
		s.disabled.Store(true)
		slog.Info("webhook disabled after 410 Gone (endpoint no longer accepts delivery)", "url", s.url)

		return ErrEndpointGone
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned non-2xx status: %d", resp.StatusCode)
	}

	return nil
}
