// Package notify posts workflow messages to chat webhooks. Results and token-usage
// messages go to separate channels, each optionally routed to a thread.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds a single webhook request.
const DefaultTimeout = 10 * time.Second

// Channel is one webhook destination.
type Channel struct {
	URL      string
	ThreadID string
}

// Target returns the URL to post to, with the thread id appended as a query parameter.
func (c Channel) Target() string {
	if c.ThreadID == "" {
		return c.URL
	}
	sep := "?"
	if strings.Contains(c.URL, "?") {
		sep = "&"
	}
	return c.URL + sep + "thread_id=" + url.QueryEscape(c.ThreadID)
}

// Webhook posts messages to a results channel and a token channel.
// A channel without a URL logs the message instead.
type Webhook struct {
	results Channel
	tokens  Channel
	client  *http.Client
	logger  *zap.Logger
}

// Option configures a Webhook.
type Option func(*Webhook)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Webhook) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(w *Webhook) {
		if c != nil {
			w.client = c
		}
	}
}

// NewWebhook creates a notifier for the two channels.
func NewWebhook(results, tokens Channel, opts ...Option) *Webhook {
	w := &Webhook{
		results: results,
		tokens:  tokens,
		client:  &http.Client{Timeout: DefaultTimeout},
		logger:  zap.NewNop(),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// NotifyResults posts msg to the results channel.
func (w *Webhook) NotifyResults(ctx context.Context, msg string) error {
	return w.post(ctx, "results", w.results, msg)
}

// NotifyTokens posts msg to the token channel.
func (w *Webhook) NotifyTokens(ctx context.Context, msg string) error {
	return w.post(ctx, "tokens", w.tokens, msg)
}

type payload struct {
	Content string `json:"content"`
}

func (w *Webhook) post(ctx context.Context, channel string, c Channel, msg string) error {
	if c.URL == "" {
		w.logger.Info("no webhook configured", zap.String("channel", channel), zap.String("message", msg))
		return nil
	}
	body, err := json.Marshal(payload{Content: msg})
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Target(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook %s: %w", channel, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook %s: status %d", channel, resp.StatusCode)
	}
	w.logger.Debug("webhook delivered", zap.String("channel", channel), zap.Int("status", resp.StatusCode))
	return nil
}
