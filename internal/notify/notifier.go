// Package notify delivers run-completion messages to chat services. Delivery
// failures are logged and swallowed: a lost notification never fails a run.
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

// sendTimeout bounds each delivery attempt.
const sendTimeout = 10 * time.Second

// Sender is one delivery channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Multi fans a notification out to every configured sender. Implements
// domain.Notifier.
type Multi struct {
	senders []Sender
	logger  *slog.Logger
}

// NewMulti creates a notifier over the given senders. An empty sender list
// is valid and makes Notify a no-op.
func NewMulti(logger *slog.Logger, senders ...Sender) *Multi {
	return &Multi{
		senders: senders,
		logger:  logger.With(slog.String("component", "notify")),
	}
}

// Notify sends the message through every channel, logging failures.
func (m *Multi) Notify(ctx context.Context, title, message string) error {
	for _, s := range m.senders {
		sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		if err := s.Send(sendCtx, title, message); err != nil {
			m.logger.Warn("notification failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()))
		}
		cancel()
	}
	return nil
}

// postJSON delivers one JSON payload and checks for a 2xx response. Both
// senders speak plain JSON-over-POST, so the transport lives here.
func postJSON(ctx context.Context, client *http.Client, service, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: marshal payload: %w", service, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: create request: %w", service, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: send request: %w", service, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s: unexpected status %d: %s", service, resp.StatusCode, string(respBody))
	}
	return nil
}
