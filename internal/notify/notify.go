// Package notify delivers milestone announcements to a single broadcast
// channel. The concrete sender posts to a Slack incoming webhook; it is
// nil-safe so the rest of the system runs unchanged when no webhook is
// configured.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	webhookTimeout = 15 * time.Second
)

// Notifier delivers one milestone announcement. Implementations must treat
// delivery as fire-and-forget: an error is logged by the caller, never
// retried within the same cycle.
type Notifier interface {
	Send(ctx context.Context, displayName string, count int) error
}

// --------------------------------------------------------------------------
// Slack webhook sender
// --------------------------------------------------------------------------

// SlackSender posts messages to a Slack incoming webhook.
// Nil-safe: when not configured, all methods are no-ops.
type SlackSender struct {
	webhookURL string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewSlackSender creates a sender for the given incoming-webhook URL.
// Returns nil if webhookURL is empty (notifications disabled).
func NewSlackSender(webhookURL string, logger *slog.Logger) *SlackSender {
	if webhookURL == "" {
		return nil
	}
	return &SlackSender{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: webhookTimeout},
		logger:     logger,
	}
}

// Send announces a milestone crossing. The message always carries the exact
// registration count; the milestone value is only the trigger.
func (s *SlackSender) Send(ctx context.Context, displayName string, count int) error {
	return s.SendText(ctx, buildMessage(displayName, count))
}

// SendText posts a raw message to the webhook. Used for the leaderboard
// summary as well as milestone announcements.
func (s *SlackSender) SendText(ctx context.Context, text string) error {
	if s == nil {
		return nil // no-op when not configured
	}

	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}

func buildMessage(displayName string, count int) string {
	return fmt.Sprintf(":tada: *%s* is up to *%d* registrations!", displayName, count)
}
