// Package webhooks forwards fleet events to an external HTTP endpoint.
package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"fleetnav/internal/metrics"
)

// Forwarder POSTs each event as JSON, signed with X-Signature when a secret
// is set. Failed deliveries are retried with exponential backoff.
type Forwarder struct {
	URL         string
	Secret      string
	HTTP        *http.Client
	MaxAttempts int
	// Backoff is the delay before the second attempt; it doubles per retry.
	Backoff time.Duration
}

func NewForwarder(url, secret string, maxAttempts int) *Forwarder {
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	return &Forwarder{URL: url, Secret: secret, HTTP: &http.Client{Timeout: 5 * time.Second}, MaxAttempts: maxAttempts, Backoff: time.Second}
}

type envelope struct {
	ID   string         `json:"id"`
	Type string         `json:"type"`
	TS   string         `json:"ts"`
	Data map[string]any `json:"data"`
}

// Deliver sends one event, blocking through retries until it succeeds,
// attempts run out or ctx is done.
func (f *Forwarder) Deliver(ctx context.Context, eventType string, data map[string]any) error {
	body, err := json.Marshal(envelope{
		ID:   "evt_" + uuid.NewString(),
		Type: eventType,
		TS:   time.Now().UTC().Format(time.RFC3339),
		Data: data,
	})
	if err != nil {
		return err
	}
	var lastErr error
	for attempt := 0; attempt < f.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(f.nextBackoff(attempt - 1)):
			}
		}
		start := time.Now()
		code, err := f.post(ctx, eventType, body)
		status := "delivered"
		if err != nil {
			status = "failed"
		}
		metrics.WebhookDeliveries.WithLabelValues(eventType, status).Inc()
		metrics.WebhookLatency.WithLabelValues(eventType, status).Observe(float64(time.Since(start).Milliseconds()))
		if err == nil {
			return nil
		}
		lastErr = err
		// 4xx other than 429 will not get better on retry
		if code >= 400 && code < 500 && code != http.StatusTooManyRequests {
			break
		}
	}
	return fmt.Errorf("deliver %s to %s: %w", eventType, f.URL, lastErr)
}

func (f *Forwarder) post(ctx context.Context, eventType string, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.URL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Type", eventType)
	if f.Secret != "" {
		req.Header.Set("X-Signature", SignHMAC(f.Secret, body))
	}
	resp, err := f.HTTP.Do(req)
	if err != nil {
		return 0, err
	}
	// drain so the connection is reused by the next attempt
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("status %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

func (f *Forwarder) nextBackoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 10 {
		attempts = 10
	}
	base := f.Backoff * time.Duration(1<<attempts)
	if base > time.Hour {
		base = time.Hour
	}
	return base
}

// Event is one item handed to Run.
type Event struct {
	Type string
	Data map[string]any
}

// Run delivers events in order until the channel closes or ctx is done.
// Undeliverable events are logged and dropped.
func (f *Forwarder) Run(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			if err := f.Deliver(ctx, evt.Type, evt.Data); err != nil {
				log.Printf("[webhooks] %v", err)
			}
		}
	}
}
